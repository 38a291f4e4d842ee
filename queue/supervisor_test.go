package queue

import (
	"context"
	"testing"
	"time"

	"gasflow/store"
)

func backdateAssignment(t *testing.T, db *store.DB, requestID int64, age time.Duration) {
	t.Helper()
	stamp := time.Now().Add(-age).Format("2006-01-02 15:04:05")
	if _, err := db.Exec(db.Q(`UPDATE demand_requests SET assignment_started_at=? WHERE id=?`), stamp, requestID); err != nil {
		t.Fatalf("backdate assignment: %v", err)
	}
}

func TestSweepReclaimsExpiredAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sv := NewSupervisor(f.db, f.svc, 300*time.Second, time.Minute)

	fresh := f.approvedRequest(t, 2000)
	stale := f.approvedRequest(t, 2400)
	if err := f.svc.OfferAssignment(ctx, fresh.ID, f.d1.ID, "op"); err != nil {
		t.Fatalf("offer fresh: %v", err)
	}
	if err := f.svc.OfferAssignment(ctx, stale.ID, f.d2.ID, "op"); err != nil {
		t.Fatalf("offer stale: %v", err)
	}

	// One offer inside the deadline, one past it.
	backdateAssignment(t, f.db, fresh.ID, 250*time.Second)
	backdateAssignment(t, f.db, stale.ID, 350*time.Second)

	n, err := sv.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d, want 1", n)
	}

	got, _ := f.db.GetDemandRequest(stale.ID)
	if got.Status != store.RequestPending || got.TargetDriverID != nil || got.AssignmentStartedAt != nil {
		t.Errorf("stale after sweep: %q target=%v, want pending/nil", got.Status, got.TargetDriverID)
	}
	got, _ = f.db.GetDemandRequest(fresh.ID)
	if got.Status != store.RequestAssigning {
		t.Errorf("fresh after sweep: %q, want assigning", got.Status)
	}

	// A reclaimed request re-enters the pool through re-approval.
	if _, err := f.svc.ApproveRequest(ctx, stale.ID, "tester"); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	got, _ = f.db.GetDemandRequest(stale.ID)
	if got.Status != store.RequestApproved {
		t.Errorf("re-approved = %q, want approved", got.Status)
	}
}

func TestSweepEmptyIsQuiet(t *testing.T) {
	f := newFixture(t)
	sv := NewSupervisor(f.db, f.svc, 300*time.Second, time.Minute)
	n, err := sv.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("reclaimed %d, want 0", n)
	}
}
