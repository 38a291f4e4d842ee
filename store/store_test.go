package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gasflow/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
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
	return db
}

func seedStations(t *testing.T, db *DB) (origin, dest *Station) {
	t.Helper()
	origin = &Station{Code: "MS1", Name: "Mother Station 1", Kind: StationOrigin, Enabled: true}
	if err := db.CreateStation(origin); err != nil {
		t.Fatalf("create origin: %v", err)
	}
	dest = &Station{Code: "DBS1", Name: "Booster 1", Kind: StationDestination, ParentID: &origin.ID, Enabled: true}
	if err := db.CreateStation(dest); err != nil {
		t.Fatalf("create destination: %v", err)
	}
	return origin, dest
}

func seedDriver(t *testing.T, db *DB) (*Driver, *Vehicle) {
	t.Helper()
	d := &Driver{Name: "R. Kumar", Phone: "555-0101", Enabled: true}
	if err := db.CreateDriver(d); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	v := &Vehicle{PlateNo: "GJ-01-XX-1234", CapacityKg: 3000, Enabled: true}
	if err := db.CreateVehicle(v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return d, v
}

func seedWindow(t *testing.T, db *DB, d *Driver, v *Vehicle, stationID int64) *WorkWindow {
	t.Helper()
	now := time.Now()
	w := &WorkWindow{
		DriverID: d.ID, VehicleID: v.ID, StationID: stationID,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(8 * time.Hour), Approved: true,
	}
	if err := db.CreateWorkWindow(w); err != nil {
		t.Fatalf("create window: %v", err)
	}
	return w
}

func seedToken(t *testing.T, db *DB, origin *Station, d *Driver, v *Vehicle, w *WorkWindow, seq int, status string) *QueueToken {
	t.Helper()
	date := TokenDate(time.Now())
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	tok := &QueueToken{
		TokenNo: FormatTokenNo(origin.Code, date, seq), StationID: origin.ID,
		VehicleID: v.ID, DriverID: d.ID, WindowID: w.ID,
		TokenDate: date, Seq: seq, Status: status,
	}
	if err := db.CreateQueueTokenTx(tx, tok); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return tok
}

func seedTrip(t *testing.T, db *DB, origin, dest *Station, d *Driver, v *Vehicle, tokenID int64) *Trip {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	trip := &Trip{
		PublicID: "t-" + FormatTokenNo(origin.Code, TokenDate(time.Now()), 1),
		TokenID:  tokenID, VehicleID: v.ID, DriverID: d.ID,
		OriginStationID: origin.ID, DestStationID: dest.ID,
		Status: TripAccepted, Step: 1,
	}
	if err := db.CreateTripTx(tx, trip); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return trip
}

func TestStationCRUD(t *testing.T) {
	db := testDB(t)
	origin, dest := seedStations(t, db)

	got, err := db.GetStation(origin.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Code != "MS1" || got.Kind != StationOrigin {
		t.Errorf("got %q/%q, want MS1/origin", got.Code, got.Kind)
	}

	got2, err := db.GetStationByCode("DBS1")
	if err != nil {
		t.Fatalf("getByCode: %v", err)
	}
	if got2.ParentID == nil || *got2.ParentID != origin.ID {
		t.Error("destination should point at its origin")
	}
	if got2.ID != dest.ID {
		t.Errorf("ID = %d, want %d", got2.ID, dest.ID)
	}

	origins, err := db.ListStationsByKind(StationOrigin)
	if err != nil {
		t.Fatalf("listByKind: %v", err)
	}
	if len(origins) != 1 {
		t.Errorf("origins = %d, want 1", len(origins))
	}
}

func TestActiveWindow(t *testing.T) {
	db := testDB(t)
	origin, _ := seedStations(t, db)
	d, v := seedDriver(t, db)

	now := time.Now()
	w := &WorkWindow{
		DriverID: d.ID, VehicleID: v.ID, StationID: origin.ID,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(8 * time.Hour), Approved: true,
	}
	if err := db.CreateWorkWindow(w); err != nil {
		t.Fatalf("create window: %v", err)
	}

	got, err := db.ActiveWindow(d.ID, now)
	if err != nil {
		t.Fatalf("active window: %v", err)
	}
	if got == nil || got.ID != w.ID {
		t.Fatal("expected the seeded window")
	}

	// Outside the window: nothing.
	got, err = db.ActiveWindow(d.ID, now.Add(9*time.Hour))
	if err != nil {
		t.Fatalf("active window (late): %v", err)
	}
	if got != nil {
		t.Error("expected no window after ends_at")
	}

	// Unapproved windows never resolve.
	w2 := &WorkWindow{
		DriverID: d.ID, VehicleID: v.ID, StationID: origin.ID,
		StartsAt: now.Add(10 * time.Hour), EndsAt: now.Add(18 * time.Hour), Approved: false,
	}
	if err := db.CreateWorkWindow(w2); err != nil {
		t.Fatalf("create window 2: %v", err)
	}
	got, err = db.ActiveWindow(d.ID, now.Add(11*time.Hour))
	if err != nil {
		t.Fatalf("active window (unapproved): %v", err)
	}
	if got != nil {
		t.Error("unapproved window should not resolve")
	}
}

func TestTokenNoFormat(t *testing.T) {
	if got := FormatTokenNo("MS1", "20260830", 7); got != "MS1-20260830-0007" {
		t.Errorf("FormatTokenNo = %q", got)
	}
	if got := FormatTokenNo("MS1", "20260830", 1234); got != "MS1-20260830-1234" {
		t.Errorf("FormatTokenNo = %q", got)
	}
	if got := TokenDate(time.Date(2026, 8, 30, 23, 59, 0, 0, time.Local)); got != "20260830" {
		t.Errorf("TokenDate = %q", got)
	}
}

func TestTokenSequence(t *testing.T) {
	db := testDB(t)
	origin, _ := seedStations(t, db)
	d, v := seedDriver(t, db)
	w := seedWindow(t, db, d, v, origin.ID)
	date := TokenDate(time.Now())

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	max, err := db.MaxSequenceTx(tx, origin.ID, date)
	if err != nil {
		t.Fatalf("max seq: %v", err)
	}
	tx.Rollback()
	if max != 0 {
		t.Errorf("max on empty queue = %d, want 0", max)
	}

	for seq := 1; seq <= 3; seq++ {
		seedToken(t, db, origin, d, v, w, seq, TokenExpired)
	}

	tx, err = db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	max, err = db.MaxSequenceTx(tx, origin.ID, date)
	if err != nil {
		t.Fatalf("max seq: %v", err)
	}
	if max != 3 {
		t.Errorf("max = %d, want 3", max)
	}

	// A different date starts over.
	max, err = db.MaxSequenceTx(tx, origin.ID, "19990101")
	if err != nil {
		t.Fatalf("max seq other date: %v", err)
	}
	if max != 0 {
		t.Errorf("max for other date = %d, want 0", max)
	}
}

func TestTokenStatusCAS(t *testing.T) {
	db := testDB(t)
	origin, _ := seedStations(t, db)
	d, v := seedDriver(t, db)
	w := seedWindow(t, db, d, v, origin.ID)
	tok := seedToken(t, db, origin, d, v, w, 1, TokenWaiting)

	ok, err := db.ExpireToken(tok.ID, "left site")
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !ok {
		t.Fatal("expire of waiting token should succeed")
	}

	// Second expire is a no-op: the token already left waiting.
	ok, err = db.ExpireToken(tok.ID, "again")
	if err != nil {
		t.Fatalf("expire again: %v", err)
	}
	if ok {
		t.Error("expire of expired token should report false")
	}

	got, _ := db.GetQueueToken(tok.ID)
	if got.Status != TokenExpired || got.ExpiryReason != "left site" {
		t.Errorf("status %q reason %q, want expired/left site", got.Status, got.ExpiryReason)
	}
}

func TestRequestLifecycleCAS(t *testing.T) {
	db := testDB(t)
	_, dest := seedStations(t, db)
	d, _ := seedDriver(t, db)

	r := &DemandRequest{StationID: dest.ID, QuantityKg: 2500, Priority: "normal", Status: RequestPending}
	if err := db.CreateDemandRequest(r); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := db.ApproveDemandRequest(r.ID)
	if err != nil || !ok {
		t.Fatalf("approve: ok=%v err=%v", ok, err)
	}

	// Rejection only applies to pending requests.
	ok, err = db.RejectDemandRequest(r.ID, "late")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if ok {
		t.Error("reject of approved request should report false")
	}

	ok, err = db.StartAssignment(r.ID, d.ID)
	if err != nil || !ok {
		t.Fatalf("start assignment: ok=%v err=%v", ok, err)
	}
	got, _ := db.GetDemandRequest(r.ID)
	if got.Status != RequestAssigning || got.TargetDriverID == nil || *got.TargetDriverID != d.ID {
		t.Errorf("after offer: status=%q target=%v", got.Status, got.TargetDriverID)
	}
	if got.AssignmentStartedAt == nil {
		t.Error("assignment_started_at should be stamped")
	}

	ok, err = db.ResetAssignment(r.ID)
	if err != nil || !ok {
		t.Fatalf("reset: ok=%v err=%v", ok, err)
	}
	got, _ = db.GetDemandRequest(r.ID)
	if got.Status != RequestPending || got.TargetDriverID != nil || got.AssignmentStartedAt != nil {
		t.Errorf("after reset: status=%q target=%v started=%v", got.Status, got.TargetDriverID, got.AssignmentStartedAt)
	}
}

func TestTripTimestampsAndMeta(t *testing.T) {
	db := testDB(t)
	origin, dest := seedStations(t, db)
	d, v := seedDriver(t, db)
	w := seedWindow(t, db, d, v, origin.ID)
	tok := seedToken(t, db, origin, d, v, w, 1, TokenAllocated)
	trip := seedTrip(t, db, origin, dest, d, v, tok.ID)

	got, err := db.GetTrip(trip.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AcceptedAt == nil {
		t.Error("accepted_at should be stamped on creation")
	}
	if got.DepartedAt != nil {
		t.Error("departed_at should be empty")
	}

	if err := db.MarkTripDeparted(trip.ID); err != nil {
		t.Fatalf("depart: %v", err)
	}
	got, _ = db.GetTrip(trip.ID)
	if got.DepartedAt == nil {
		t.Fatal("departed_at should be stamped")
	}
	first := *got.DepartedAt

	// Stamps are write-once.
	time.Sleep(1100 * time.Millisecond)
	if err := db.MarkTripDeparted(trip.ID); err != nil {
		t.Fatalf("depart again: %v", err)
	}
	got, _ = db.GetTrip(trip.ID)
	if !got.DepartedAt.Equal(first) {
		t.Errorf("departed_at moved: %v -> %v", first, got.DepartedAt)
	}

	if err := db.SetTripMeta(trip.ID, "seal_no", "S-778"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := db.SetTripMeta(trip.ID, "loading_bay", "2"); err != nil {
		t.Fatalf("set meta 2: %v", err)
	}
	got, _ = db.GetTrip(trip.ID)
	if got.Meta["seal_no"] != "S-778" || got.Meta["loading_bay"] != "2" {
		t.Errorf("meta = %v", got.Meta)
	}

	got2, err := db.GetTripByPublicID(trip.PublicID)
	if err != nil || got2.ID != trip.ID {
		t.Fatalf("getByPublicID: %v", err)
	}
}

func TestTransferEventCompleteness(t *testing.T) {
	db := testDB(t)
	origin, dest := seedStations(t, db)
	d, v := seedDriver(t, db)
	w := seedWindow(t, db, d, v, origin.ID)
	tok := seedToken(t, db, origin, d, v, w, 1, TokenAllocated)
	trip := seedTrip(t, db, origin, dest, d, v, tok.ID)

	e := &TransferEvent{TripID: trip.ID, Kind: TransferLoading, MeterStart: 120}
	if err := db.CreateTransferEvent(e); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := db.GetTransferEvent(e.ID)
	if got.Complete() {
		t.Error("fresh event should not be complete")
	}

	if err := db.SetTransferConfirmation(e.ID, "operator"); err != nil {
		t.Fatalf("operator confirm: %v", err)
	}
	if err := db.SetTransferConfirmation(e.ID, "driver"); err != nil {
		t.Fatalf("driver confirm: %v", err)
	}
	got, _ = db.GetTransferEvent(e.ID)
	if got.Complete() {
		t.Error("event without evidence should not be complete")
	}

	if err := db.SetTransferEvidence(e.ID); err != nil {
		t.Fatalf("evidence: %v", err)
	}
	got, _ = db.GetTransferEvent(e.ID)
	if !got.Complete() {
		t.Error("confirmed event with evidence should be complete")
	}

	if err := db.UpdateTransferReadings(e.ID, 120, 2740, 220, 18); err != nil {
		t.Fatalf("readings: %v", err)
	}
	got, _ = db.GetTransferEvent(e.ID)
	if got.Delivered() != 2620 {
		t.Errorf("delivered = %v, want 2620", got.Delivered())
	}

	latest, err := db.LatestTransferEvent(trip.ID, TransferUnloading)
	if err != nil {
		t.Fatalf("latest unloading: %v", err)
	}
	if latest != nil {
		t.Error("no unloading event should exist")
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.EnqueueOutbox("gasflow.notify.drivers", []byte(`{"x":1}`), "token_allocated", "driver:7"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MsgType != "token_allocated" {
		t.Fatalf("pending = %v", msgs)
	}

	if err := db.AckOutbox(msgs[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	msgs, _ = db.ListPendingOutbox(10)
	if len(msgs) != 0 {
		t.Errorf("pending after ack = %d, want 0", len(msgs))
	}
}
