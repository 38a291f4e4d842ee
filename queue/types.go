package queue

import (
	"errors"

	"gasflow/store"
)

// Precondition violations surfaced to callers. None of these leaves partial
// state behind: they are raised before the transaction opens or roll it back.
var (
	ErrNoActiveWindow  = errors.New("driver has no active work window at this station")
	ErrDuplicateToken  = errors.New("driver already holds a waiting token")
	ErrNotWaiting      = errors.New("token is not in waiting status")
	ErrNotApproved     = errors.New("request is not approved or already allocated")
	ErrStationMismatch = errors.New("request destination does not belong to token's origin station")
	ErrInvalidState    = errors.New("invalid state for this operation")
)

// Emitter is the interface adapters must satisfy to bridge queue events to
// the engine.
type Emitter interface {
	EmitTokenIssued(tokenID int64, tokenNo string, stationID, driverID int64, seq int)
	EmitTokenCancelled(tokenID int64, tokenNo, reason string)
	EmitRequestApproved(requestID, stationID int64)
	EmitAllocation(tripID, tokenID, requestID, driverID, originStationID, destStationID int64)
	EmitAssignmentExpired(requestID, driverID int64, driverName, destinationName string)
}

// Notifier delivers best-effort notifications after state is committed.
// Failures are logged by implementations and never affect queue state.
type Notifier interface {
	NotifyDriverOfAllocation(driverID int64, trip *store.Trip, request *store.DemandRequest)
	NotifyDriverOfOffer(driverID int64, request *store.DemandRequest)
	NotifyApproversOfExpiry(requestID, driverID int64, driverName, destinationName string)
}
