package trip

import (
	"testing"
	"time"

	"gasflow/store"
)

func stamp() *time.Time {
	t := time.Now()
	return &t
}

func confirmed() *store.TransferEvent {
	return &store.TransferEvent{OperatorConfirmed: true, DriverConfirmed: true, EvidenceAttached: true}
}

func TestDeriveStep(t *testing.T) {
	cases := []struct {
		name      string
		trip      store.Trip
		loading   *store.TransferEvent
		unloading *store.TransferEvent
		want      int
	}{
		{"fresh accepted", store.Trip{Status: store.TripAccepted, AcceptedAt: stamp()}, nil, nil, StepAccepted},
		{"no milestones at all", store.Trip{Status: store.TripAccepted}, nil, nil, StepCancelled},
		{"at origin", store.Trip{AcceptedAt: stamp(), OriginConfirmedAt: stamp()}, nil, nil, StepAtOrigin},
		{"loading open", store.Trip{AcceptedAt: stamp(), OriginConfirmedAt: stamp()}, &store.TransferEvent{}, nil, StepLoading},
		{"loading half-confirmed", store.Trip{AcceptedAt: stamp(), OriginConfirmedAt: stamp()},
			&store.TransferEvent{OperatorConfirmed: true, DriverConfirmed: true}, nil, StepLoading},
		{"loading complete", store.Trip{AcceptedAt: stamp(), OriginConfirmedAt: stamp()}, confirmed(), nil, StepInTransit},
		{"departed", store.Trip{AcceptedAt: stamp(), DepartedAt: stamp()}, confirmed(), nil, StepInTransit},
		{"arrived", store.Trip{AcceptedAt: stamp(), DepartedAt: stamp(), ArrivedAt: stamp()}, confirmed(), nil, StepUnloading},
		{"unloading open", store.Trip{AcceptedAt: stamp(), DepartedAt: stamp(), ArrivedAt: stamp()},
			confirmed(), &store.TransferEvent{}, StepUnloading},
		{"unloading complete", store.Trip{AcceptedAt: stamp(), DepartedAt: stamp(), ArrivedAt: stamp()},
			confirmed(), confirmed(), StepReturning},
		{"completed stamp wins", store.Trip{AcceptedAt: stamp(), CompletedAt: stamp()}, confirmed(), confirmed(), StepCompleted},
		{"completed status wins", store.Trip{Status: store.TripCompleted}, nil, nil, StepCompleted},
		{"cancelled beats everything", store.Trip{Status: store.TripCancelled, AcceptedAt: stamp(),
			DepartedAt: stamp(), CompletedAt: stamp()}, confirmed(), confirmed(), StepCancelled},
		{"cancel stamp beats everything", store.Trip{AcceptedAt: stamp(), CancelledAt: stamp()}, confirmed(), confirmed(), StepCancelled},
	}
	for _, tc := range cases {
		if got := DeriveStep(&tc.trip, tc.loading, tc.unloading); got != tc.want {
			t.Errorf("%s: DeriveStep = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestAdvanceAllowed(t *testing.T) {
	cases := []struct {
		current, next int
		want          bool
	}{
		{1, 1, true},  // same step, idempotent
		{1, 2, true},  // forward by one
		{3, 2, true},  // backward correction
		{5, 1, true},  // backward all the way to accepted
		{5, 0, false}, // cancellation is not a correction
		{1, 0, false},
		{2, 4, false}, // skip
		{0, 7, false}, // skip to completed
		{6, 7, true},
		{7, 8, false}, // out of range
		{1, -1, false},
	}
	for _, tc := range cases {
		if got := AdvanceAllowed(tc.current, tc.next); got != tc.want {
			t.Errorf("AdvanceAllowed(%d, %d) = %v, want %v", tc.current, tc.next, got, tc.want)
		}
	}
}

func TestStatusForStep(t *testing.T) {
	if got := StatusForStep(StepInTransit); got != store.TripInTransit {
		t.Errorf("step 4 = %q, want in_transit", got)
	}
	if got := StatusForStep(StepCancelled); got != store.TripCancelled {
		t.Errorf("step 0 = %q, want cancelled", got)
	}
	if got := StatusForStep(StepCompleted); got != store.TripCompleted {
		t.Errorf("step 7 = %q, want completed", got)
	}
}
