package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TripAccepted  = "accepted"
	TripAtOrigin  = "at_origin"
	TripLoading   = "loading"
	TripInTransit = "in_transit"
	TripUnloading = "unloading"
	TripReturning = "returning"
	TripCompleted = "completed"
	TripCancelled = "cancelled"
)

// Trip is one physical movement: token + request + vehicle + driver, tracked
// through loading, transit and unloading. The stored status and step are a
// cache; transfer event completeness is the ground truth (see package trip).
type Trip struct {
	ID                int64             `json:"id"`
	PublicID          string            `json:"public_id"`
	RequestID         *int64            `json:"request_id,omitempty"`
	TokenID           int64             `json:"token_id"`
	VehicleID         int64             `json:"vehicle_id"`
	DriverID          int64             `json:"driver_id"`
	OriginStationID   int64             `json:"origin_station_id"`
	DestStationID     int64             `json:"dest_station_id"`
	Status            string            `json:"status"`
	Step              int               `json:"step"`
	Meta              map[string]string `json:"meta"`
	AcceptedAt        *time.Time        `json:"accepted_at,omitempty"`
	OriginConfirmedAt *time.Time        `json:"origin_confirmed_at,omitempty"`
	DepartedAt        *time.Time        `json:"departed_at,omitempty"`
	ArrivedAt         *time.Time        `json:"arrived_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

const tripSelectCols = `id, public_id, request_id, token_id, vehicle_id, driver_id, origin_station_id, dest_station_id, status, step, meta, accepted_at, origin_confirmed_at, departed_at, arrived_at, completed_at, cancelled_at, created_at, updated_at`

func scanTrip(row interface{ Scan(...any) error }) (*Trip, error) {
	var t Trip
	var requestID sql.NullInt64
	var meta string
	var acceptedAt, originConfirmedAt, departedAt, arrivedAt, completedAt, cancelledAt any
	var createdAt, updatedAt any
	err := row.Scan(&t.ID, &t.PublicID, &requestID, &t.TokenID, &t.VehicleID, &t.DriverID,
		&t.OriginStationID, &t.DestStationID, &t.Status, &t.Step, &meta,
		&acceptedAt, &originConfirmedAt, &departedAt, &arrivedAt, &completedAt, &cancelledAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if requestID.Valid {
		t.RequestID = &requestID.Int64
	}
	t.Meta = map[string]string{}
	if meta != "" {
		json.Unmarshal([]byte(meta), &t.Meta)
	}
	t.AcceptedAt = parseTimePtr(acceptedAt)
	t.OriginConfirmedAt = parseTimePtr(originConfirmedAt)
	t.DepartedAt = parseTimePtr(departedAt)
	t.ArrivedAt = parseTimePtr(arrivedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	t.CancelledAt = parseTimePtr(cancelledAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanTrips(rows *sql.Rows) ([]*Trip, error) {
	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// CreateTripTx inserts the trip produced by a match, inside the matching
// transaction. accepted_at is stamped now: the trip starts at step 1.
func (db *DB) CreateTripTx(tx *sql.Tx, t *Trip) error {
	var requestID any
	if t.RequestID != nil {
		requestID = *t.RequestID
	}
	meta := "{}"
	if len(t.Meta) > 0 {
		b, err := json.Marshal(t.Meta)
		if err != nil {
			return fmt.Errorf("marshal trip meta: %w", err)
		}
		meta = string(b)
	}
	var id int64
	err := tx.QueryRow(db.Q(`INSERT INTO trips (public_id, request_id, token_id, vehicle_id, driver_id, origin_station_id, dest_station_id, status, step, meta, accepted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now','localtime')) RETURNING id`),
		t.PublicID, requestID, t.TokenID, t.VehicleID, t.DriverID,
		t.OriginStationID, t.DestStationID, t.Status, t.Step, meta).Scan(&id)
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}
	t.ID = id
	return nil
}

func (db *DB) GetTrip(id int64) (*Trip, error) {
	row := db.QueryRow(db.Q(`SELECT `+tripSelectCols+` FROM trips WHERE id=?`), id)
	return scanTrip(row)
}

func (db *DB) GetTripByPublicID(publicID string) (*Trip, error) {
	row := db.QueryRow(db.Q(`SELECT `+tripSelectCols+` FROM trips WHERE public_id=?`), publicID)
	return scanTrip(row)
}

// UpdateTripStatus corrects only the cached status field; the self-heal path
// in the step derivation is the sole caller besides step advances.
func (db *DB) UpdateTripStatus(id int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE trips SET status=?, updated_at=datetime('now','localtime') WHERE id=?`), status, id)
	return err
}

func (db *DB) UpdateTripStep(id int64, step int, status string) error {
	_, err := db.Exec(db.Q(`UPDATE trips SET step=?, status=?, updated_at=datetime('now','localtime') WHERE id=?`), step, status, id)
	return err
}

// stampTripTimestamp sets a milestone column if it is still empty.
func (db *DB) stampTripTimestamp(id int64, column string) error {
	_, err := db.Exec(db.Q(fmt.Sprintf(`UPDATE trips SET %s=datetime('now','localtime'), updated_at=datetime('now','localtime') WHERE id=? AND %s IS NULL`, column, column)), id)
	return err
}

func (db *DB) MarkTripOriginConfirmed(id int64) error {
	return db.stampTripTimestamp(id, "origin_confirmed_at")
}

func (db *DB) MarkTripDeparted(id int64) error {
	return db.stampTripTimestamp(id, "departed_at")
}

func (db *DB) MarkTripArrived(id int64) error {
	return db.stampTripTimestamp(id, "arrived_at")
}

func (db *DB) MarkTripCompleted(id int64) error {
	if err := db.stampTripTimestamp(id, "completed_at"); err != nil {
		return err
	}
	return db.UpdateTripStep(id, 7, TripCompleted)
}

func (db *DB) MarkTripCancelled(id int64) error {
	if err := db.stampTripTimestamp(id, "cancelled_at"); err != nil {
		return err
	}
	return db.UpdateTripStep(id, 0, TripCancelled)
}

// SetTripMeta merges a key into the trip's step-metadata bag.
func (db *DB) SetTripMeta(id int64, key, value string) error {
	t, err := db.GetTrip(id)
	if err != nil {
		return err
	}
	if t.Meta == nil {
		t.Meta = map[string]string{}
	}
	t.Meta[key] = value
	b, err := json.Marshal(t.Meta)
	if err != nil {
		return err
	}
	_, err = db.Exec(db.Q(`UPDATE trips SET meta=?, updated_at=datetime('now','localtime') WHERE id=?`), string(b), id)
	return err
}

func (db *DB) ListActiveTrips() ([]*Trip, error) {
	rows, err := db.Query(db.Q(`SELECT ` + tripSelectCols + ` FROM trips WHERE status NOT IN ('completed', 'cancelled') ORDER BY id DESC`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (db *DB) ListTripsByDriver(driverID int64, limit int) ([]*Trip, error) {
	rows, err := db.Query(db.Q(`SELECT `+tripSelectCols+` FROM trips WHERE driver_id=? ORDER BY id DESC LIMIT ?`), driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}
