package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gasflow/config"
	"gasflow/shift"
	"gasflow/store"
)

// fixture is one origin station with a destination, plus two drivers on
// approved shifts, enough to exercise every queue path.
type fixture struct {
	db     *store.DB
	svc    *Service
	origin *store.Station
	dest   *store.Station
	d1, d2 *store.Driver
	v1, v2 *store.Vehicle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	f := &fixture{db: db, svc: NewService(db, shift.NewResolver(db, nil))}

	f.origin = &store.Station{Code: "MS1", Name: "Mother Station 1", Kind: store.StationOrigin, Enabled: true}
	if err := db.CreateStation(f.origin); err != nil {
		t.Fatalf("create origin: %v", err)
	}
	f.dest = &store.Station{Code: "DBS1", Name: "Booster 1", Kind: store.StationDestination, ParentID: &f.origin.ID, Enabled: true}
	if err := db.CreateStation(f.dest); err != nil {
		t.Fatalf("create dest: %v", err)
	}

	f.d1, f.v1 = f.addDriver(t, "A. Shah", "GJ-01-AA-0001")
	f.d2, f.v2 = f.addDriver(t, "B. Patel", "GJ-01-BB-0002")
	f.addWindow(t, f.d1, f.v1, f.origin.ID)
	f.addWindow(t, f.d2, f.v2, f.origin.ID)
	return f
}

func (f *fixture) addDriver(t *testing.T, name, plate string) (*store.Driver, *store.Vehicle) {
	t.Helper()
	d := &store.Driver{Name: name, Enabled: true}
	if err := f.db.CreateDriver(d); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	v := &store.Vehicle{PlateNo: plate, CapacityKg: 3000, Enabled: true}
	if err := f.db.CreateVehicle(v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return d, v
}

func (f *fixture) addWindow(t *testing.T, d *store.Driver, v *store.Vehicle, stationID int64) *store.WorkWindow {
	t.Helper()
	now := time.Now()
	w := &store.WorkWindow{
		DriverID: d.ID, VehicleID: v.ID, StationID: stationID,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(8 * time.Hour), Approved: true,
	}
	if err := f.db.CreateWorkWindow(w); err != nil {
		t.Fatalf("create window: %v", err)
	}
	return w
}

func (f *fixture) approvedRequest(t *testing.T, qty float64) *store.DemandRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.CreateRequest(ctx, f.dest.ID, qty, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := f.svc.ApproveRequest(ctx, req.ID, "tester"); err != nil {
		t.Fatalf("approve request: %v", err)
	}
	return req
}

func TestRequestTokenSequencing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok1, trip, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("request token 1: %v", err)
	}
	if trip != nil {
		t.Error("no demand yet, no trip expected")
	}
	tok2, _, err := f.svc.RequestToken(ctx, f.d2.ID, f.v2.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("request token 2: %v", err)
	}

	if tok1.Seq != 1 || tok2.Seq != 2 {
		t.Errorf("seqs = %d, %d; want 1, 2", tok1.Seq, tok2.Seq)
	}
	date := store.TokenDate(time.Now())
	if want := store.FormatTokenNo("MS1", date, 1); tok1.TokenNo != want {
		t.Errorf("token no = %q, want %q", tok1.TokenNo, want)
	}
	if tok1.Status != store.TokenWaiting || tok2.Status != store.TokenWaiting {
		t.Errorf("statuses = %q, %q; want waiting", tok1.Status, tok2.Status)
	}

	waiting, err := f.svc.WaitingTokens(f.origin.ID)
	if err != nil {
		t.Fatalf("waiting tokens: %v", err)
	}
	if len(waiting) != 2 || waiting[0].ID != tok1.ID {
		t.Errorf("queue order wrong: %v", waiting)
	}
}

func TestRequestTokenGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Driver with no shift at all.
	d3, v3 := f.addDriver(t, "C. Mehta", "GJ-01-CC-0003")
	if _, _, err := f.svc.RequestToken(ctx, d3.ID, v3.ID, f.origin.ID); !errors.Is(err, ErrNoActiveWindow) {
		t.Errorf("no window: err = %v, want ErrNoActiveWindow", err)
	}

	// Wrong vehicle for the shift.
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v2.ID, f.origin.ID); !errors.Is(err, ErrNoActiveWindow) {
		t.Errorf("wrong vehicle: err = %v, want ErrNoActiveWindow", err)
	}

	// Destination stations never hold a queue.
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.dest.ID); !errors.Is(err, ErrNoActiveWindow) {
		t.Errorf("wrong station: err = %v, want ErrNoActiveWindow", err)
	}

	// One waiting token per driver.
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID); err != nil {
		t.Fatalf("first token: %v", err)
	}
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID); !errors.Is(err, ErrDuplicateToken) {
		t.Errorf("second token: err = %v, want ErrDuplicateToken", err)
	}
}

func TestApprovalMatchesHeadOfQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok1, _, _ := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	tok2, _, _ := f.svc.RequestToken(ctx, f.d2.ID, f.v2.ID, f.origin.ID)

	req, err := f.svc.CreateRequest(ctx, f.dest.ID, 2500, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	trip, err := f.svc.ApproveRequest(ctx, req.ID, "tester")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if trip == nil {
		t.Fatal("approval with a waiting queue should allocate")
	}

	if trip.TokenID != tok1.ID || trip.DriverID != f.d1.ID {
		t.Errorf("trip bound to token %d driver %d, want head of queue", trip.TokenID, trip.DriverID)
	}
	if trip.Status != store.TripAccepted || trip.Step != 1 {
		t.Errorf("trip = %q/%d, want accepted/1", trip.Status, trip.Step)
	}

	// All four writes landed together.
	gotTok, _ := f.db.GetQueueToken(tok1.ID)
	if gotTok.Status != store.TokenAllocated || gotTok.TripID == nil || *gotTok.TripID != trip.ID {
		t.Errorf("token 1 = %q trip=%v, want allocated", gotTok.Status, gotTok.TripID)
	}
	gotReq, _ := f.db.GetDemandRequest(req.ID)
	if gotReq.Status != store.RequestAssigned || gotReq.TokenID == nil || *gotReq.TokenID != tok1.ID {
		t.Errorf("request = %q token=%v, want assigned to token 1", gotReq.Status, gotReq.TokenID)
	}

	// Second in line is untouched.
	gotTok2, _ := f.db.GetQueueToken(tok2.ID)
	if gotTok2.Status != store.TokenWaiting {
		t.Errorf("token 2 = %q, want waiting", gotTok2.Status)
	}
}

func TestTokenIssueMatchesPendingDemand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Demand approved before anyone queued: no trip yet.
	req := f.approvedRequest(t, 2500)
	got, _ := f.db.GetDemandRequest(req.ID)
	if got.Status != store.RequestApproved {
		t.Fatalf("request = %q, want approved while queue empty", got.Status)
	}

	tok, trip, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("request token: %v", err)
	}
	if trip == nil {
		t.Fatal("token issue against approved demand should allocate immediately")
	}
	if tok.Status != store.TokenAllocated {
		t.Errorf("returned token = %q, want allocated", tok.Status)
	}
	if trip.RequestID == nil || *trip.RequestID != req.ID {
		t.Errorf("trip request = %v, want %d", trip.RequestID, req.ID)
	}
}

func TestManualAllocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok1, _, _ := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	tok2, _, _ := f.svc.RequestToken(ctx, f.d2.ID, f.v2.ID, f.origin.ID)

	req, err := f.svc.CreateRequest(ctx, f.dest.ID, 1800, "urgent")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	// Pending requests are not allocatable.
	if _, err := f.svc.Allocate(ctx, tok2.ID, req.ID, "op"); !errors.Is(err, ErrNotApproved) {
		t.Errorf("pending request: err = %v, want ErrNotApproved", err)
	}

	if _, err := f.svc.ApproveRequest(ctx, req.ID, "tester"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Approval already matched the head of queue, so tok1 is allocated
	// and the request is taken.
	if _, err := f.svc.Allocate(ctx, tok1.ID, req.ID, "op"); !errors.Is(err, ErrNotWaiting) {
		t.Errorf("allocated token: err = %v, want ErrNotWaiting", err)
	}

	// A fresh request pinned to tok2 by hand. Approved at the store
	// level so the FCFS matcher does not get there first.
	req2, _ := f.svc.CreateRequest(ctx, f.dest.ID, 2200, "")
	if _, err := f.db.ApproveDemandRequest(req2.ID); err != nil {
		t.Fatalf("approve 2: %v", err)
	}
	trip, err := f.svc.Allocate(ctx, tok2.ID, req2.ID, "op")
	if err != nil {
		t.Fatalf("manual allocate: %v", err)
	}
	if trip.TokenID != tok2.ID || trip.DriverID != f.d2.ID {
		t.Errorf("trip bound to token %d, want %d", trip.TokenID, tok2.ID)
	}
}

func TestManualAllocateStationMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second corridor: its destination is served by a different origin.
	origin2 := &store.Station{Code: "MS2", Name: "Mother Station 2", Kind: store.StationOrigin, Enabled: true}
	if err := f.db.CreateStation(origin2); err != nil {
		t.Fatalf("create origin2: %v", err)
	}
	dest2 := &store.Station{Code: "DBS2", Name: "Booster 2", Kind: store.StationDestination, ParentID: &origin2.ID, Enabled: true}
	if err := f.db.CreateStation(dest2); err != nil {
		t.Fatalf("create dest2: %v", err)
	}

	tok, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("request token: %v", err)
	}
	req, _ := f.svc.CreateRequest(ctx, dest2.ID, 2000, "")
	if _, err := f.db.ApproveDemandRequest(req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.Allocate(ctx, tok.ID, req.ID, "op"); !errors.Is(err, ErrStationMismatch) {
		t.Errorf("cross-corridor allocate: err = %v, want ErrStationMismatch", err)
	}
}

func TestCancelToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _, _ := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	if err := f.svc.CancelToken(ctx, tok.ID, "left site"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := f.db.GetQueueToken(tok.ID)
	if got.Status != store.TokenExpired {
		t.Errorf("token = %q, want expired", got.Status)
	}

	// Cancelling again, or cancelling an unknown token, is rejected.
	if err := f.svc.CancelToken(ctx, tok.ID, "again"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("re-cancel: err = %v, want ErrInvalidState", err)
	}
	if err := f.svc.CancelToken(ctx, 9999, "ghost"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("unknown token: err = %v, want ErrInvalidState", err)
	}

	// The driver can queue again after cancelling.
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID); err != nil {
		t.Errorf("re-queue after cancel: %v", err)
	}
}

func TestDirectedOfferLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approvedRequest(t, 2500)

	if err := f.svc.OfferAssignment(ctx, req.ID, f.d2.ID, "op"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	got, _ := f.db.GetDemandRequest(req.ID)
	if got.Status != store.RequestAssigning {
		t.Fatalf("request = %q, want assigning", got.Status)
	}

	// The wrong driver cannot accept or decline someone else's offer.
	if _, err := f.svc.AcceptAssignment(ctx, req.ID, f.d1.ID); !errors.Is(err, ErrNotApproved) {
		t.Errorf("wrong driver accept: err = %v, want ErrNotApproved", err)
	}
	if err := f.svc.DeclineAssignment(ctx, req.ID, f.d1.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("wrong driver decline: err = %v, want ErrInvalidState", err)
	}

	// The target driver has no waiting token yet.
	if _, err := f.svc.AcceptAssignment(ctx, req.ID, f.d2.ID); !errors.Is(err, ErrNotWaiting) {
		t.Errorf("accept without token: err = %v, want ErrNotWaiting", err)
	}

	// Queue up, then accept: the offer binds the driver's token even
	// though another driver is ahead of them.
	if _, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID); err != nil {
		t.Fatalf("queue d1: %v", err)
	}
	tok2, _, err := f.svc.RequestToken(ctx, f.d2.ID, f.v2.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("queue d2: %v", err)
	}
	trip, err := f.svc.AcceptAssignment(ctx, req.ID, f.d2.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if trip.TokenID != tok2.ID || trip.DriverID != f.d2.ID {
		t.Errorf("trip bound to token %d, want %d", trip.TokenID, tok2.ID)
	}
	gotReq, _ := f.db.GetDemandRequest(req.ID)
	if gotReq.Status != store.RequestAssigned {
		t.Errorf("request = %q, want assigned", gotReq.Status)
	}
}

func TestAllocationIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _, err := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	if err != nil {
		t.Fatalf("request token: %v", err)
	}
	req, err := f.svc.CreateRequest(ctx, f.dest.ID, 2500, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := f.db.ApproveDemandRequest(req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	tx, err := f.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	token, err := f.db.GetQueueTokenTx(tx, tok.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	request, err := f.db.GetDemandRequestTx(tx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}

	// Claim the request mid-flight, as a concurrent allocation would:
	// the final guarded flip must fail and take the trip insert and the
	// token flip down with it.
	if _, err := tx.Exec(f.db.Q(`UPDATE demand_requests SET token_id=? WHERE id=?`), token.ID, request.ID); err != nil {
		t.Fatalf("claim request: %v", err)
	}
	if _, err := f.svc.allocateTx(tx, token, request); err == nil {
		t.Fatal("allocateTx against a claimed request should fail")
	}
	tx.Rollback()

	gotTok, _ := f.db.GetQueueToken(tok.ID)
	if gotTok.Status != store.TokenWaiting || gotTok.TripID != nil {
		t.Errorf("token = %q trip=%v, want untouched waiting", gotTok.Status, gotTok.TripID)
	}
	gotReq, _ := f.db.GetDemandRequest(req.ID)
	if gotReq.Status != store.RequestApproved || gotReq.TokenID != nil {
		t.Errorf("request = %q token=%v, want untouched approved", gotReq.Status, gotReq.TokenID)
	}
	trips, _ := f.db.ListActiveTrips()
	if len(trips) != 0 {
		t.Errorf("found %d trips after aborted allocation, want 0", len(trips))
	}
}

func TestMatchingOrderIsStrictlyFCFS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d3, v3 := f.addDriver(t, "C. Mehta", "GJ-01-CC-0003")
	f.addWindow(t, d3, v3, f.origin.ID)

	tok1, _, _ := f.svc.RequestToken(ctx, f.d1.ID, f.v1.ID, f.origin.ID)
	tok2, _, _ := f.svc.RequestToken(ctx, f.d2.ID, f.v2.ID, f.origin.ID)
	tok3, _, _ := f.svc.RequestToken(ctx, d3.ID, v3.ID, f.origin.ID)

	r1, _ := f.svc.CreateRequest(ctx, f.dest.ID, 1000, "")
	r2, _ := f.svc.CreateRequest(ctx, f.dest.ID, 2000, "")
	r3, _ := f.svc.CreateRequest(ctx, f.dest.ID, 3000, "")

	// Approval order, not creation order, is the demand side of the
	// line: r2 approved first pairs with the head token, and so on.
	approvals := []struct {
		req *store.DemandRequest
		tok *store.QueueToken
	}{
		{r2, tok1},
		{r3, tok2},
		{r1, tok3},
	}
	for _, a := range approvals {
		trip, err := f.svc.ApproveRequest(ctx, a.req.ID, "tester")
		if err != nil {
			t.Fatalf("approve %d: %v", a.req.ID, err)
		}
		if trip == nil {
			t.Fatalf("approve %d: expected a match", a.req.ID)
		}
		if trip.TokenID != a.tok.ID {
			t.Errorf("request %d matched token %d, want %d (seq %d)",
				a.req.ID, trip.TokenID, a.tok.ID, a.tok.Seq)
		}
		if trip.RequestID == nil || *trip.RequestID != a.req.ID {
			t.Errorf("trip request = %v, want %d", trip.RequestID, a.req.ID)
		}
	}
}

func TestConcurrentTokenRequestsKeepSequenceContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 5
	drivers := make([]*store.Driver, n)
	vehicles := make([]*store.Vehicle, n)
	for i := 0; i < n; i++ {
		drivers[i], vehicles[i] = f.addDriver(t, fmt.Sprintf("Driver %d", i), fmt.Sprintf("GJ-01-ZZ-%04d", i))
		f.addWindow(t, drivers[i], vehicles[i], f.origin.ID)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	tokens := make([]*store.QueueToken, 0, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, _, err := f.svc.RequestToken(ctx, drivers[i].ID, vehicles[i].ID, f.origin.ID)
			if err != nil {
				t.Errorf("driver %d: %v", i, err)
				return
			}
			mu.Lock()
			tokens = append(tokens, tok)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(tokens) != n {
		t.Fatalf("issued %d tokens, want %d", len(tokens), n)
	}
	seqs := make(map[int]bool, n)
	nos := make(map[string]bool, n)
	for _, tok := range tokens {
		if seqs[tok.Seq] {
			t.Errorf("duplicate seq %d", tok.Seq)
		}
		seqs[tok.Seq] = true
		if nos[tok.TokenNo] {
			t.Errorf("duplicate token no %s", tok.TokenNo)
		}
		nos[tok.TokenNo] = true
	}
	// Contiguous from 1: no gaps, no collisions.
	for want := 1; want <= n; want++ {
		if !seqs[want] {
			t.Errorf("seq %d missing from %v", want, seqs)
		}
	}
}

func TestDeclineAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.approvedRequest(t, 2500)
	if err := f.svc.OfferAssignment(ctx, req.ID, f.d1.ID, "op"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := f.svc.DeclineAssignment(ctx, req.ID, f.d1.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	got, _ := f.db.GetDemandRequest(req.ID)
	if got.Status != store.RequestPending || got.TargetDriverID != nil {
		t.Errorf("after decline: %q target=%v, want pending/nil", got.Status, got.TargetDriverID)
	}
}
