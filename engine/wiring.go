package engine

import (
	"fmt"
)

func (e *Engine) wireEventHandlers() {
	// Token issued: audit and refresh the station's queue board.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TokenIssuedEvent)
		e.logFn("engine: token %s issued to driver %d (seq %d)", ev.TokenNo, ev.DriverID, ev.Seq)
		e.db.AppendAudit("queue_token", ev.TokenID, "issued", "", ev.TokenNo, "system")
		e.refreshBoard(ev.StationID)
	}, EventTokenIssued)

	// Token cancelled: audit and refresh its station's board.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TokenCancelledEvent)
		e.db.AppendAudit("queue_token", ev.TokenID, "cancelled", "", ev.Reason, "system")
		if token, err := e.db.GetQueueToken(ev.TokenID); err == nil {
			e.refreshBoard(token.StationID)
		}
	}, EventTokenCancelled)

	// Allocation: audit the new trip and take the head token off the board.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AllocationEvent)
		e.logFn("engine: trip %d allocated: token %d + request %d, driver %d",
			ev.TripID, ev.TokenID, ev.RequestID, ev.DriverID)
		e.db.AppendAudit("trip", ev.TripID, "allocated",
			"", fmt.Sprintf("token=%d request=%d driver=%d", ev.TokenID, ev.RequestID, ev.DriverID), "system")
		e.refreshBoard(ev.OriginStationID)
	}, EventAllocation)

	// Assignment timed out: the supervisor already reset the request; log
	// with full context for the audit trail.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssignmentExpiredEvent)
		e.logFn("engine: assignment expired: request %d, driver %d (%s), destination %s",
			ev.RequestID, ev.DriverID, ev.DriverName, ev.DestinationName)
		e.db.AppendAudit("demand_request", ev.RequestID, "assignment_expired",
			"", fmt.Sprintf("driver=%d destination=%s", ev.DriverID, ev.DestinationName), "system")
	}, EventAssignmentExpired)

	// Trip progress: audit each step change.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TripStepChangedEvent)
		e.db.AppendAudit("trip", ev.TripID, "step",
			fmt.Sprintf("%d", ev.OldStep), fmt.Sprintf("%d (%s)", ev.NewStep, ev.Status), "system")
	}, EventTripStepChanged)

	// Trip completed: reconcile the originating demand request against the
	// metered delivery.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TripCompletedEvent)
		e.db.AppendAudit("trip", ev.TripID, "completed",
			"", fmt.Sprintf("delivered_kg=%.1f", ev.DeliveredKg), "system")
		if ev.RequestID != nil {
			if err := e.db.CompleteDemandRequest(*ev.RequestID); err != nil {
				e.logFn("engine: complete request %d for trip %s: %v", *ev.RequestID, ev.PublicID, err)
			}
		}
	}, EventTripCompleted)

	// Trip cancelled: audit. The trip service has already reopened the
	// request.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TripCancelledEvent)
		e.db.AppendAudit("trip", ev.TripID, "cancelled", "", ev.Reason, "system")
	}, EventTripCancelled)
}

func (e *Engine) refreshBoard(stationID int64) {
	if e.queueState != nil {
		e.queueState.RefreshStation(e.runCtx, stationID)
	}
}
