package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gasflow/shift"
	"gasflow/store"
)

// Service owns queue token issuance, FCFS allocation and the manual
// allocation override for one fleet of origin stations.
type Service struct {
	db       *store.DB
	shifts   *shift.Resolver
	emitter  Emitter
	notifier Notifier
}

func NewService(db *store.DB, shifts *shift.Resolver) *Service {
	return &Service{db: db, shifts: shifts}
}

// SetEmitter and SetNotifier are wired by the engine after construction.
// A nil emitter or notifier is a no-op, which keeps tests simple.
func (s *Service) SetEmitter(e Emitter)   { s.emitter = e }
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// matchResult carries everything needed for post-commit fan-out.
type matchResult struct {
	trip    *store.Trip
	token   *store.QueueToken
	request *store.DemandRequest
}

// RequestToken issues the next queue token for a driver at an origin
// station, then immediately tries to match the station's queue against
// pending demand. The returned trip is non-nil when the new state of the
// queue produced an allocation.
//
// Sequence numbers are contiguous per station and date: the station row
// lock makes concurrent requests line up, so max(seq)+1 can never skip
// or collide.
func (s *Service) RequestToken(ctx context.Context, driverID, vehicleID, stationID int64) (*store.QueueToken, *store.Trip, error) {
	now := time.Now()

	window, err := s.shifts.ActiveWindow(ctx, driverID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve work window: %w", err)
	}
	if window == nil || window.StationID != stationID || window.VehicleID != vehicleID {
		return nil, nil, ErrNoActiveWindow
	}

	station, err := s.db.GetStation(stationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load station %d: %w", stationID, err)
	}
	if station.Kind != store.StationOrigin || !station.Enabled {
		return nil, nil, ErrInvalidState
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	if err := s.db.LockStationTx(tx, stationID); err != nil {
		return nil, nil, err
	}

	held, err := s.db.DriverHasWaitingTokenTx(tx, driverID)
	if err != nil {
		return nil, nil, err
	}
	if held {
		return nil, nil, ErrDuplicateToken
	}

	tokenDate := store.TokenDate(now)
	maxSeq, err := s.db.MaxSequenceTx(tx, stationID, tokenDate)
	if err != nil {
		return nil, nil, err
	}

	token := &store.QueueToken{
		TokenNo:   store.FormatTokenNo(station.Code, tokenDate, maxSeq+1),
		StationID: stationID,
		VehicleID: vehicleID,
		DriverID:  driverID,
		WindowID:  window.ID,
		TokenDate: tokenDate,
		Seq:       maxSeq + 1,
		Status:    store.TokenWaiting,
	}
	if err := s.db.CreateQueueTokenTx(tx, token); err != nil {
		return nil, nil, fmt.Errorf("create token: %w", err)
	}

	match, err := s.tryAllocateTx(tx, stationID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	if s.emitter != nil {
		s.emitter.EmitTokenIssued(token.ID, token.TokenNo, stationID, driverID, token.Seq)
	}
	s.fanOutMatch(match)

	var trip *store.Trip
	if match != nil {
		trip = match.trip
		if match.token.ID == token.ID {
			token.Status = store.TokenAllocated
			token.TripID = &trip.ID
		}
	}
	return token, trip, nil
}

// TryAllocate matches the head of a station's queue against the oldest
// approved demand for that station's destinations. No-op when either
// side is empty.
func (s *Service) TryAllocate(ctx context.Context, stationID int64) (*store.Trip, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.db.LockStationTx(tx, stationID); err != nil {
		return nil, err
	}
	match, err := s.tryAllocateTx(tx, stationID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.fanOutMatch(match)
	return match.trip, nil
}

// tryAllocateTx performs one FCFS match inside the caller's transaction:
// oldest waiting token at the origin, oldest approved request among the
// origin's destinations. All four writes (trip insert, token flip,
// request flip) commit or roll back together.
func (s *Service) tryAllocateTx(tx *sql.Tx, originStationID int64) (*matchResult, error) {
	token, err := s.db.OldestWaitingTokenTx(tx, originStationID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, nil
	}
	request, err := s.db.OldestApprovedRequestTx(tx, originStationID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, nil
	}
	return s.allocateTx(tx, token, request)
}

// allocateTx binds a specific token to a specific request. Callers have
// already validated eligibility; the guarded updates in the store reject
// any state that shifted underneath us.
func (s *Service) allocateTx(tx *sql.Tx, token *store.QueueToken, request *store.DemandRequest) (*matchResult, error) {
	trip := &store.Trip{
		PublicID:        uuid.New().String(),
		RequestID:       &request.ID,
		TokenID:         token.ID,
		VehicleID:       token.VehicleID,
		DriverID:        token.DriverID,
		OriginStationID: token.StationID,
		DestStationID:   request.StationID,
		Status:          store.TripAccepted,
		Step:            1,
	}
	if err := s.db.CreateTripTx(tx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}
	if err := s.db.MarkTokenAllocatedTx(tx, token.ID, trip.ID); err != nil {
		return nil, err
	}
	if err := s.db.MarkRequestAssignedTx(tx, request.ID, token.ID, token.DriverID); err != nil {
		return nil, err
	}
	return &matchResult{trip: trip, token: token, request: request}, nil
}

// Allocate is the manual override: bind the given waiting token to the
// given approved request regardless of queue position. The work window
// is deliberately not re-checked here; an operator allocating by hand
// outranks the shift schedule.
func (s *Service) Allocate(ctx context.Context, tokenID, requestID int64, actor string) (*store.Trip, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	token, err := s.db.GetQueueTokenTx(tx, tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotWaiting
		}
		return nil, err
	}
	if token.Status != store.TokenWaiting {
		return nil, ErrNotWaiting
	}

	request, err := s.db.GetDemandRequestTx(tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotApproved
		}
		return nil, err
	}
	if request.Status != store.RequestApproved || request.TokenID != nil {
		return nil, ErrNotApproved
	}

	dest, err := s.db.GetStationTx(tx, request.StationID)
	if err != nil {
		return nil, err
	}
	if dest.ParentID == nil || *dest.ParentID != token.StationID {
		return nil, ErrStationMismatch
	}

	match, err := s.allocateTx(tx, token, request)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("queue: manual allocation token=%s request=%d by %s", token.TokenNo, requestID, actor)
	if err := s.db.AppendAudit("queue_token", token.ID, "manual_allocate",
		store.TokenWaiting, store.TokenAllocated, actor); err != nil {
		log.Printf("queue: audit append failed: %v", err)
	}
	s.fanOutMatch(match)
	return match.trip, nil
}

// CancelToken expires a waiting token. Allocated tokens cannot be
// cancelled from the queue side; cancel the trip instead.
func (s *Service) CancelToken(ctx context.Context, tokenID int64, reason string) error {
	token, err := s.db.GetQueueToken(tokenID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidState
		}
		return err
	}
	ok, err := s.db.ExpireToken(tokenID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	if s.emitter != nil {
		s.emitter.EmitTokenCancelled(tokenID, token.TokenNo, reason)
	}
	return nil
}

// WaitingTokens returns a station's queue in allocation order.
func (s *Service) WaitingTokens(stationID int64) ([]*store.QueueToken, error) {
	return s.db.ListWaitingTokens(stationID)
}

// CurrentToken returns the driver's waiting token, or nil when the
// driver is not queued anywhere.
func (s *Service) CurrentToken(driverID int64) (*store.QueueToken, error) {
	return s.db.CurrentToken(driverID)
}

func (s *Service) fanOutMatch(match *matchResult) {
	if match == nil {
		return
	}
	if s.emitter != nil {
		s.emitter.EmitAllocation(match.trip.ID, match.token.ID, match.request.ID,
			match.token.DriverID, match.trip.OriginStationID, match.trip.DestStationID)
	}
	if s.notifier != nil {
		s.notifier.NotifyDriverOfAllocation(match.token.DriverID, match.trip, match.request)
	}
}
