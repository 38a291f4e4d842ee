package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gasflow/store"
)

// CreateRequest registers a destination station's demand. It enters the
// pool as pending and plays no part in matching until approved.
func (s *Service) CreateRequest(ctx context.Context, stationID int64, quantityKg float64, priority string) (*store.DemandRequest, error) {
	station, err := s.db.GetStation(stationID)
	if err != nil {
		return nil, fmt.Errorf("load station %d: %w", stationID, err)
	}
	if station.Kind != store.StationDestination || station.ParentID == nil {
		return nil, ErrInvalidState
	}
	if priority == "" {
		priority = "normal"
	}
	req := &store.DemandRequest{
		StationID:  stationID,
		QuantityKg: quantityKg,
		Priority:   priority,
		Status:     store.RequestPending,
	}
	if err := s.db.CreateDemandRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveRequest moves a request into the matchable pool. approved_at is
// the FCFS ordering key, so re-approving a reclaimed request sends it to
// the back of the line. Approval immediately retries the match for the
// serving origin station.
func (s *Service) ApproveRequest(ctx context.Context, requestID int64, actor string) (*store.Trip, error) {
	req, err := s.db.GetDemandRequest(requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	ok, err := s.db.ApproveDemandRequest(requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	if err := s.db.AppendAudit("demand_request", requestID, "approve", req.Status, store.RequestApproved, actor); err != nil {
		return nil, err
	}
	if s.emitter != nil {
		s.emitter.EmitRequestApproved(requestID, req.StationID)
	}

	dest, err := s.db.GetStation(req.StationID)
	if err != nil || dest.ParentID == nil {
		return nil, err
	}
	return s.TryAllocate(ctx, *dest.ParentID)
}

// RejectRequest refuses a pending request with a reason.
func (s *Service) RejectRequest(ctx context.Context, requestID int64, reason, actor string) error {
	ok, err := s.db.RejectDemandRequest(requestID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return s.db.AppendAudit("demand_request", requestID, "reject", store.RequestPending, store.RequestRejected, actor)
}

// CancelRequest withdraws a request that has not yet been allocated.
func (s *Service) CancelRequest(ctx context.Context, requestID int64, actor string) error {
	ok, err := s.db.CancelDemandRequest(requestID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return s.db.AppendAudit("demand_request", requestID, "cancel", "", store.RequestCancelled, actor)
}

// OfferAssignment directs an approved request at one driver and starts
// the acceptance clock. The supervisor reclaims the offer if the driver
// does not accept in time.
func (s *Service) OfferAssignment(ctx context.Context, requestID, driverID int64, actor string) error {
	ok, err := s.db.StartAssignment(requestID, driverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotApproved
	}
	if err := s.db.AppendAudit("demand_request", requestID, "offer", store.RequestApproved, store.RequestAssigning, actor); err != nil {
		return err
	}
	req, err := s.db.GetDemandRequest(requestID)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifyDriverOfOffer(driverID, req)
	}
	return nil
}

// AcceptAssignment is the driver taking a directed offer: their waiting
// token at the serving origin is bound to the offered request, skipping
// queue position the same way a manual allocation does.
func (s *Service) AcceptAssignment(ctx context.Context, requestID, driverID int64) (*store.Trip, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	request, err := s.db.GetDemandRequestTx(tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotApproved
		}
		return nil, err
	}
	if request.Status != store.RequestAssigning || request.TargetDriverID == nil || *request.TargetDriverID != driverID {
		return nil, ErrNotApproved
	}

	dest, err := s.db.GetStationTx(tx, request.StationID)
	if err != nil {
		return nil, err
	}
	if dest.ParentID == nil {
		return nil, ErrStationMismatch
	}

	token, err := s.db.WaitingTokenForDriverTx(tx, driverID, *dest.ParentID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrNotWaiting
	}

	match, err := s.allocateTx(tx, token, request)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.fanOutMatch(match)
	return match.trip, nil
}

// DeclineAssignment lets the targeted driver refuse an offer before the
// timeout, putting the request straight back in the pending pool.
func (s *Service) DeclineAssignment(ctx context.Context, requestID, driverID int64) error {
	req, err := s.db.GetDemandRequest(requestID)
	if err != nil {
		return err
	}
	if req.Status != store.RequestAssigning || req.TargetDriverID == nil || *req.TargetDriverID != driverID {
		return ErrInvalidState
	}
	ok, err := s.db.ResetAssignment(requestID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return s.db.AppendAudit("demand_request", requestID, "decline", store.RequestAssigning, store.RequestPending, fmt.Sprintf("driver:%d", driverID))
}
