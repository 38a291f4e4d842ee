package messaging

import (
	"context"
	"log"

	"gasflow/store"
	"gasflow/trip"
)

// FieldHandler applies inbound field reports to the trip lifecycle.
// Every report names a trip by its public UUID; unknown trips and
// out-of-order reports are logged and dropped, never retried, since the
// crew will simply report again.
type FieldHandler struct {
	trips *trip.Service
}

func NewFieldHandler(trips *trip.Service) *FieldHandler {
	return &FieldHandler{trips: trips}
}

func (h *FieldHandler) resolve(uuid string) (*store.Trip, bool) {
	t, err := h.trips.GetByPublicID(uuid)
	if err != nil {
		log.Printf("field: unknown trip %s: %v", uuid, err)
		return nil, false
	}
	return t, true
}

func (h *FieldHandler) HandleOriginArrival(env *Envelope, rpt OriginArrivalReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.ConfirmOriginArrival(context.Background(), t.ID); err != nil {
		log.Printf("field: origin arrival %s: %v", rpt.TripUUID, err)
	}
}

func (h *FieldHandler) HandleTransferBegin(env *Envelope, rpt TransferBeginReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	var err error
	switch rpt.Kind {
	case store.TransferLoading:
		_, err = h.trips.BeginLoading(context.Background(), t.ID, rpt.MeterStart, rpt.PressureStart)
	case store.TransferUnloading:
		_, err = h.trips.BeginUnloading(context.Background(), t.ID, rpt.MeterStart, rpt.PressureStart)
	default:
		log.Printf("field: transfer begin %s: unknown kind %q", rpt.TripUUID, rpt.Kind)
		return
	}
	if err != nil {
		log.Printf("field: transfer begin %s (%s): %v", rpt.TripUUID, rpt.Kind, err)
	}
}

func (h *FieldHandler) HandleTransferReadings(env *Envelope, rpt TransferReadingsReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.RecordReadings(context.Background(), t.ID, rpt.Kind, rpt.MeterEnd, rpt.PressureEnd); err != nil {
		log.Printf("field: readings %s (%s): %v", rpt.TripUUID, rpt.Kind, err)
	}
}

func (h *FieldHandler) HandleTransferConfirm(env *Envelope, rpt TransferConfirmReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.Confirm(context.Background(), t.ID, rpt.Kind, rpt.Actor); err != nil {
		log.Printf("field: confirm %s (%s/%s): %v", rpt.TripUUID, rpt.Kind, rpt.Actor, err)
	}
}

func (h *FieldHandler) HandleEvidence(env *Envelope, rpt EvidenceReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.AttachEvidence(context.Background(), t.ID, rpt.Kind); err != nil {
		log.Printf("field: evidence %s (%s): %v", rpt.TripUUID, rpt.Kind, err)
	}
}

func (h *FieldHandler) HandleDeparture(env *Envelope, rpt DepartureReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.Depart(context.Background(), t.ID); err != nil {
		log.Printf("field: departure %s: %v", rpt.TripUUID, err)
	}
}

func (h *FieldHandler) HandleArrival(env *Envelope, rpt ArrivalReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.Arrive(context.Background(), t.ID); err != nil {
		log.Printf("field: arrival %s: %v", rpt.TripUUID, err)
	}
}

func (h *FieldHandler) HandleTripComplete(env *Envelope, rpt TripCompleteReport) {
	t, ok := h.resolve(rpt.TripUUID)
	if !ok {
		return
	}
	if err := h.trips.Complete(context.Background(), t.ID); err != nil {
		log.Printf("field: complete %s: %v", rpt.TripUUID, err)
	}
}
