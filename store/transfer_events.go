package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	TransferLoading   = "loading"
	TransferUnloading = "unloading"
)

// TransferEvent records one metered loading or unloading at a station.
// Complete() is the predicate the trip step derivation trusts over the trip's
// own cached status.
type TransferEvent struct {
	ID                int64      `json:"id"`
	TripID            int64      `json:"trip_id"`
	Kind              string     `json:"kind"`
	MeterStart        float64    `json:"meter_start"`
	MeterEnd          float64    `json:"meter_end"`
	PressureStart     float64    `json:"pressure_start"`
	PressureEnd       float64    `json:"pressure_end"`
	OperatorConfirmed bool       `json:"operator_confirmed"`
	DriverConfirmed   bool       `json:"driver_confirmed"`
	EvidenceAttached  bool       `json:"evidence_attached"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Complete reports whether both parties confirmed and evidence is attached.
func (e *TransferEvent) Complete() bool {
	return e.OperatorConfirmed && e.DriverConfirmed && e.EvidenceAttached
}

// Delivered returns the metered quantity moved.
func (e *TransferEvent) Delivered() float64 {
	d := e.MeterEnd - e.MeterStart
	if d < 0 {
		return 0
	}
	return d
}

const transferSelectCols = `id, trip_id, kind, meter_start, meter_end, pressure_start, pressure_end, operator_confirmed, driver_confirmed, evidence_attached, started_at, ended_at, created_at, updated_at`

func scanTransfer(row interface{ Scan(...any) error }) (*TransferEvent, error) {
	var e TransferEvent
	var startedAt, endedAt, createdAt, updatedAt any
	err := row.Scan(&e.ID, &e.TripID, &e.Kind, &e.MeterStart, &e.MeterEnd,
		&e.PressureStart, &e.PressureEnd, &e.OperatorConfirmed, &e.DriverConfirmed,
		&e.EvidenceAttached, &startedAt, &endedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.StartedAt = parseTimePtr(startedAt)
	e.EndedAt = parseTimePtr(endedAt)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func (db *DB) CreateTransferEvent(e *TransferEvent) error {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO transfer_events (trip_id, kind, meter_start, meter_end, pressure_start, pressure_end, operator_confirmed, driver_confirmed, evidence_attached, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now','localtime')) RETURNING id`),
		e.TripID, e.Kind, e.MeterStart, e.MeterEnd, e.PressureStart, e.PressureEnd,
		e.OperatorConfirmed, e.DriverConfirmed, e.EvidenceAttached).Scan(&id)
	if err != nil {
		return fmt.Errorf("create transfer event: %w", err)
	}
	e.ID = id
	return nil
}

func (db *DB) GetTransferEvent(id int64) (*TransferEvent, error) {
	row := db.QueryRow(db.Q(`SELECT `+transferSelectCols+` FROM transfer_events WHERE id=?`), id)
	return scanTransfer(row)
}

// LatestTransferEvent returns the most recent event of a kind for a trip, or
// nil when none was recorded yet.
func (db *DB) LatestTransferEvent(tripID int64, kind string) (*TransferEvent, error) {
	row := db.QueryRow(db.Q(`SELECT `+transferSelectCols+` FROM transfer_events
		WHERE trip_id=? AND kind=? ORDER BY id DESC LIMIT 1`), tripID, kind)
	e, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (db *DB) UpdateTransferReadings(id int64, meterStart, meterEnd, pressureStart, pressureEnd float64) error {
	_, err := db.Exec(db.Q(`UPDATE transfer_events SET meter_start=?, meter_end=?, pressure_start=?, pressure_end=?, ended_at=datetime('now','localtime'), updated_at=datetime('now','localtime') WHERE id=?`),
		meterStart, meterEnd, pressureStart, pressureEnd, id)
	return err
}

// SetTransferConfirmation flips one party's confirmation flag.
func (db *DB) SetTransferConfirmation(id int64, actor string) error {
	var column string
	switch actor {
	case "operator":
		column = "operator_confirmed"
	case "driver":
		column = "driver_confirmed"
	default:
		return fmt.Errorf("unknown confirming actor: %s", actor)
	}
	_, err := db.Exec(db.Q(fmt.Sprintf(`UPDATE transfer_events SET %s=%s, updated_at=datetime('now','localtime') WHERE id=?`,
		column, db.dialect.BoolTrue())), id)
	return err
}

func (db *DB) SetTransferEvidence(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE transfer_events SET evidence_attached=`+db.dialect.BoolTrue()+`, updated_at=datetime('now','localtime') WHERE id=?`), id)
	return err
}

func (db *DB) ListTransferEvents(tripID int64) ([]*TransferEvent, error) {
	rows, err := db.Query(db.Q(`SELECT `+transferSelectCols+` FROM transfer_events WHERE trip_id=? ORDER BY id`), tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []*TransferEvent
	for rows.Next() {
		e, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
