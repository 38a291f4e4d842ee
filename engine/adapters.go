package engine

// queueEmitter bridges the queue package's emitter interface to the EventBus.
type queueEmitter struct {
	bus *EventBus
}

func (e *queueEmitter) EmitTokenIssued(tokenID int64, tokenNo string, stationID, driverID int64, seq int) {
	e.bus.Emit(Event{Type: EventTokenIssued, Payload: TokenIssuedEvent{
		TokenID:   tokenID,
		TokenNo:   tokenNo,
		StationID: stationID,
		DriverID:  driverID,
		Seq:       seq,
	}})
}

func (e *queueEmitter) EmitTokenCancelled(tokenID int64, tokenNo, reason string) {
	e.bus.Emit(Event{Type: EventTokenCancelled, Payload: TokenCancelledEvent{
		TokenID: tokenID,
		TokenNo: tokenNo,
		Reason:  reason,
	}})
}

func (e *queueEmitter) EmitRequestApproved(requestID, stationID int64) {
	e.bus.Emit(Event{Type: EventRequestApproved, Payload: RequestApprovedEvent{
		RequestID: requestID,
		StationID: stationID,
	}})
}

func (e *queueEmitter) EmitAllocation(tripID, tokenID, requestID, driverID, originStationID, destStationID int64) {
	e.bus.Emit(Event{Type: EventAllocation, Payload: AllocationEvent{
		TripID:          tripID,
		TokenID:         tokenID,
		RequestID:       requestID,
		DriverID:        driverID,
		OriginStationID: originStationID,
		DestStationID:   destStationID,
	}})
}

func (e *queueEmitter) EmitAssignmentExpired(requestID, driverID int64, driverName, destinationName string) {
	e.bus.Emit(Event{Type: EventAssignmentExpired, Payload: AssignmentExpiredEvent{
		RequestID:       requestID,
		DriverID:        driverID,
		DriverName:      driverName,
		DestinationName: destinationName,
	}})
}

// tripEmitter bridges the trip package's emitter interface to the EventBus.
type tripEmitter struct {
	bus *EventBus
}

func (e *tripEmitter) EmitStepChanged(tripID int64, publicID string, oldStep, newStep int, status string) {
	e.bus.Emit(Event{Type: EventTripStepChanged, Payload: TripStepChangedEvent{
		TripID:   tripID,
		PublicID: publicID,
		OldStep:  oldStep,
		NewStep:  newStep,
		Status:   status,
	}})
}

func (e *tripEmitter) EmitTripCompleted(tripID int64, publicID string, requestID *int64, deliveredKg float64) {
	e.bus.Emit(Event{Type: EventTripCompleted, Payload: TripCompletedEvent{
		TripID:      tripID,
		PublicID:    publicID,
		RequestID:   requestID,
		DeliveredKg: deliveredKg,
	}})
}

func (e *tripEmitter) EmitTripCancelled(tripID int64, publicID, reason string) {
	e.bus.Emit(Event{Type: EventTripCancelled, Payload: TripCancelledEvent{
		TripID:   tripID,
		PublicID: publicID,
		Reason:   reason,
	}})
}
