package trip

import "gasflow/store"

// Steps of a trip's physical progress. The stored step column is a cache
// of this derivation; transfer event completeness is the ground truth.
//
//	0  cancelled (or not yet accepted)
//	1  accepted, driver queued toward loading
//	2  confirmed present at the origin station
//	3  loading in progress
//	4  loaded and in transit
//	5  at the destination, unloading in progress
//	6  unloading confirmed, returning
//	7  completed
const (
	StepCancelled = 0
	StepAccepted  = 1
	StepAtOrigin  = 2
	StepLoading   = 3
	StepInTransit = 4
	StepUnloading = 5
	StepReturning = 6
	StepCompleted = 7
)

// DeriveStep computes a trip's true step from its milestone timestamps and
// transfer events, in strict priority order. A transfer event counts as
// finished only when both parties confirmed and evidence is attached;
// a merely-present event pins the trip at the in-progress step.
func DeriveStep(t *store.Trip, loading, unloading *store.TransferEvent) int {
	switch {
	case t.Status == store.TripCancelled || t.CancelledAt != nil:
		return StepCancelled
	case t.Status == store.TripCompleted || t.CompletedAt != nil:
		return StepCompleted
	case t.Status == store.TripReturning:
		return StepReturning
	case unloading != nil && unloading.Complete():
		return StepReturning
	case unloading != nil || t.ArrivedAt != nil:
		return StepUnloading
	case t.DepartedAt != nil:
		return StepInTransit
	case loading != nil && loading.Complete():
		return StepInTransit
	case loading != nil:
		return StepLoading
	case t.OriginConfirmedAt != nil:
		return StepAtOrigin
	case t.AcceptedAt != nil:
		return StepAccepted
	default:
		return StepCancelled
	}
}

// StatusForStep maps a step back to the cached status label.
func StatusForStep(step int) string {
	switch step {
	case StepCancelled:
		return store.TripCancelled
	case StepAccepted:
		return store.TripAccepted
	case StepAtOrigin:
		return store.TripAtOrigin
	case StepLoading:
		return store.TripLoading
	case StepInTransit:
		return store.TripInTransit
	case StepUnloading:
		return store.TripUnloading
	case StepReturning:
		return store.TripReturning
	case StepCompleted:
		return store.TripCompleted
	default:
		return store.TripAccepted
	}
}

// AdvanceAllowed is the monotonicity rule: same step is an idempotent yes,
// a backward move is an operator correction and allowed, forward moves may
// only go one step at a time. Step 0 is never a correction target: it means
// cancelled, and cancellation only happens through Cancel.
func AdvanceAllowed(current, next int) bool {
	if next < StepAccepted || next > StepCompleted {
		return false
	}
	return next <= current+1
}
