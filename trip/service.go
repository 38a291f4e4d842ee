package trip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"gasflow/store"
)

var (
	ErrNotFound = errors.New("trip not found")
	ErrTerminal = errors.New("trip is in a terminal state")
	ErrNotReady = errors.New("preceding milestone is not complete")
	ErrBadMeta  = errors.New("unknown step metadata key")
)

// Emitter bridges trip lifecycle events to the engine.
type Emitter interface {
	EmitStepChanged(tripID int64, publicID string, oldStep, newStep int, status string)
	EmitTripCompleted(tripID int64, publicID string, requestID *int64, deliveredKg float64)
	EmitTripCancelled(tripID int64, publicID, reason string)
}

// metaKeys are the step metadata fields field crews may write. The bag is
// open-ended in storage but writes are validated here.
var metaKeys = map[string]bool{
	"loading_bay":    true,
	"seal_no":        true,
	"odometer_start": true,
	"odometer_end":   true,
	"remarks":        true,
}

// Service drives trips through their lifecycle. Reads never trust the
// stored step: ComputeStep re-derives it from milestones and transfer
// events, healing the cached columns when they have gone stale.
type Service struct {
	db      *store.DB
	emitter Emitter
}

func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

func (s *Service) SetEmitter(e Emitter) { s.emitter = e }

func (s *Service) Get(tripID int64) (*store.Trip, error) {
	t, err := s.db.GetTrip(tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Service) GetByPublicID(publicID string) (*store.Trip, error) {
	t, err := s.db.GetTripByPublicID(publicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ComputeStep derives the trip's true step and opportunistically corrects
// the cached step/status columns when they disagree. The correction is
// the only write and is logged; calling again without new events writes
// nothing.
func (s *Service) ComputeStep(ctx context.Context, tripID int64) (int, error) {
	t, err := s.Get(tripID)
	if err != nil {
		return 0, err
	}
	loading, err := s.db.LatestTransferEvent(tripID, store.TransferLoading)
	if err != nil {
		return 0, err
	}
	unloading, err := s.db.LatestTransferEvent(tripID, store.TransferUnloading)
	if err != nil {
		return 0, err
	}
	derived := DeriveStep(t, loading, unloading)
	status := StatusForStep(derived)
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		status = t.Status
	}
	if derived != t.Step || status != t.Status {
		log.Printf("trip: %s stale state healed: step %d->%d status %s->%s",
			t.PublicID, t.Step, derived, t.Status, status)
		if err := s.db.UpdateTripStep(tripID, derived, status); err != nil {
			return 0, err
		}
	}
	return derived, nil
}

// AdvanceStep applies the monotonic step rule: same step and backward
// moves succeed, a forward move of exactly one succeeds, any skip returns
// false without mutating. Terminal trips only accept their current step.
func (s *Service) AdvanceStep(ctx context.Context, tripID int64, newStep int) (bool, error) {
	t, err := s.Get(tripID)
	if err != nil {
		return false, err
	}
	current, err := s.ComputeStep(ctx, tripID)
	if err != nil {
		return false, err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return newStep == current, nil
	}
	if !AdvanceAllowed(current, newStep) {
		return false, nil
	}
	if newStep == current {
		return true, nil
	}
	if newStep == StepCompleted {
		if err := s.complete(t); err != nil {
			return false, err
		}
		return true, nil
	}
	status := StatusForStep(newStep)
	if err := s.db.UpdateTripStep(tripID, newStep, status); err != nil {
		return false, err
	}
	s.emitStep(t, current, newStep, status)
	return true, nil
}

// ConfirmOriginArrival records the driver reporting at the loading bay.
func (s *Service) ConfirmOriginArrival(ctx context.Context, tripID int64) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return ErrTerminal
	}
	if err := s.db.MarkTripOriginConfirmed(tripID); err != nil {
		return err
	}
	return s.refresh(ctx, t)
}

// BeginLoading opens the metered loading event at the origin. The trip
// sits at the loading step until both confirmations and evidence arrive.
func (s *Service) BeginLoading(ctx context.Context, tripID int64, meterStart, pressureStart float64) (*store.TransferEvent, error) {
	return s.beginTransfer(ctx, tripID, store.TransferLoading, meterStart, pressureStart, StepAtOrigin)
}

// BeginUnloading opens the metered unloading event at the destination.
func (s *Service) BeginUnloading(ctx context.Context, tripID int64, meterStart, pressureStart float64) (*store.TransferEvent, error) {
	return s.beginTransfer(ctx, tripID, store.TransferUnloading, meterStart, pressureStart, StepInTransit)
}

func (s *Service) beginTransfer(ctx context.Context, tripID int64, kind string, meterStart, pressureStart float64, minStep int) (*store.TransferEvent, error) {
	t, err := s.Get(tripID)
	if err != nil {
		return nil, err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return nil, ErrTerminal
	}
	current, err := s.ComputeStep(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if current < minStep {
		return nil, ErrNotReady
	}
	existing, err := s.db.LatestTransferEvent(tripID, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	now := time.Now()
	ev := &store.TransferEvent{
		TripID:        tripID,
		Kind:          kind,
		MeterStart:    meterStart,
		PressureStart: pressureStart,
		StartedAt:     &now,
	}
	if err := s.db.CreateTransferEvent(ev); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, t); err != nil {
		return nil, err
	}
	return ev, nil
}

// RecordReadings closes out the meter for the trip's latest event of the
// given kind.
func (s *Service) RecordReadings(ctx context.Context, tripID int64, kind string, meterEnd, pressureEnd float64) error {
	ev, err := s.db.LatestTransferEvent(tripID, kind)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrNotReady
	}
	if err := s.db.UpdateTransferReadings(ev.ID, ev.MeterStart, meterEnd, ev.PressureStart, pressureEnd); err != nil {
		return err
	}
	return nil
}

// Confirm records one party's sign-off on the trip's latest transfer
// event. actor is "operator" or "driver". When the second confirmation
// and the evidence are all present the derived step moves on.
func (s *Service) Confirm(ctx context.Context, tripID int64, kind, actor string) error {
	if actor != "operator" && actor != "driver" {
		return fmt.Errorf("unknown confirming actor %q", actor)
	}
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	ev, err := s.db.LatestTransferEvent(tripID, kind)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrNotReady
	}
	if err := s.db.SetTransferConfirmation(ev.ID, actor); err != nil {
		return err
	}
	return s.refresh(ctx, t)
}

// AttachEvidence marks the trailing proof (weighbridge slip, photo) as
// captured for the trip's latest transfer event of the given kind.
func (s *Service) AttachEvidence(ctx context.Context, tripID int64, kind string) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	ev, err := s.db.LatestTransferEvent(tripID, kind)
	if err != nil {
		return err
	}
	if ev == nil {
		return ErrNotReady
	}
	if err := s.db.SetTransferEvidence(ev.ID); err != nil {
		return err
	}
	return s.refresh(ctx, t)
}

// Depart stamps departure from the origin. Requires the loading event to
// be fully confirmed.
func (s *Service) Depart(ctx context.Context, tripID int64) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return ErrTerminal
	}
	loading, err := s.db.LatestTransferEvent(tripID, store.TransferLoading)
	if err != nil {
		return err
	}
	if loading == nil || !loading.Complete() {
		return ErrNotReady
	}
	if err := s.db.MarkTripDeparted(tripID); err != nil {
		return err
	}
	return s.refresh(ctx, t)
}

// Arrive stamps arrival at the destination.
func (s *Service) Arrive(ctx context.Context, tripID int64) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return ErrTerminal
	}
	if t.DepartedAt == nil {
		return ErrNotReady
	}
	if err := s.db.MarkTripArrived(tripID); err != nil {
		return err
	}
	return s.refresh(ctx, t)
}

// Complete finishes the trip. Requires the unloading event to be fully
// confirmed; the metered delivery quantity is reported to subscribers so
// the originating request can be reconciled.
func (s *Service) Complete(ctx context.Context, tripID int64) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return ErrTerminal
	}
	unloading, err := s.db.LatestTransferEvent(tripID, store.TransferUnloading)
	if err != nil {
		return err
	}
	if unloading == nil || !unloading.Complete() {
		return ErrNotReady
	}
	return s.complete(t)
}

func (s *Service) complete(t *store.Trip) error {
	if err := s.db.MarkTripCompleted(t.ID); err != nil {
		return err
	}
	delivered := 0.0
	if unloading, err := s.db.LatestTransferEvent(t.ID, store.TransferUnloading); err == nil && unloading != nil {
		delivered = unloading.Delivered()
	}
	log.Printf("trip: %s completed, delivered %.1f kg", t.PublicID, delivered)
	if s.emitter != nil {
		s.emitter.EmitStepChanged(t.ID, t.PublicID, t.Step, StepCompleted, store.TripCompleted)
		s.emitter.EmitTripCompleted(t.ID, t.PublicID, t.RequestID, delivered)
	}
	return nil
}

// Cancel aborts a trip. The originating request, if any, is returned to
// the pending pool so it can be re-approved and matched again.
func (s *Service) Cancel(ctx context.Context, tripID int64, reason string) error {
	t, err := s.Get(tripID)
	if err != nil {
		return err
	}
	if t.Status == store.TripCancelled || t.Status == store.TripCompleted {
		return ErrTerminal
	}
	if err := s.db.MarkTripCancelled(tripID); err != nil {
		return err
	}
	if reason != "" {
		if err := s.db.SetTripMeta(tripID, "remarks", reason); err != nil {
			log.Printf("trip: %s record cancel reason: %v", t.PublicID, err)
		}
	}
	if t.RequestID != nil {
		if err := s.db.ReopenRequest(*t.RequestID); err != nil {
			log.Printf("trip: %s reopen request %d: %v", t.PublicID, *t.RequestID, err)
		}
	}
	log.Printf("trip: %s cancelled: %s", t.PublicID, reason)
	if s.emitter != nil {
		s.emitter.EmitTripCancelled(tripID, t.PublicID, reason)
	}
	return nil
}

// SetMeta writes one validated step metadata entry.
func (s *Service) SetMeta(ctx context.Context, tripID int64, key, value string) error {
	if !metaKeys[key] {
		return ErrBadMeta
	}
	if _, err := s.Get(tripID); err != nil {
		return err
	}
	return s.db.SetTripMeta(tripID, key, value)
}

func (s *Service) ListActive() ([]*store.Trip, error) {
	return s.db.ListActiveTrips()
}

func (s *Service) ListByDriver(driverID int64, limit int) ([]*store.Trip, error) {
	return s.db.ListTripsByDriver(driverID, limit)
}

func (s *Service) Events(tripID int64) ([]*store.TransferEvent, error) {
	return s.db.ListTransferEvents(tripID)
}

// refresh re-derives the step after a milestone write and emits the
// change when the cached step moved.
func (s *Service) refresh(ctx context.Context, before *store.Trip) error {
	derived, err := s.ComputeStep(ctx, before.ID)
	if err != nil {
		return err
	}
	if derived != before.Step {
		s.emitStep(before, before.Step, derived, StatusForStep(derived))
	}
	return nil
}

func (s *Service) emitStep(t *store.Trip, oldStep, newStep int, status string) {
	if s.emitter != nil {
		s.emitter.EmitStepChanged(t.ID, t.PublicID, oldStep, newStep, status)
	}
}
