package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	TokenWaiting   = "waiting"
	TokenAllocated = "allocated"
	TokenExpired   = "expired"
)

// QueueToken is a vehicle's position in an origin station's daily queue.
// Rows are append-only: a token leaves waiting exactly once, to allocated or
// expired, and is never deleted.
type QueueToken struct {
	ID           int64      `json:"id"`
	TokenNo      string     `json:"token_no"`
	StationID    int64      `json:"station_id"`
	VehicleID    int64      `json:"vehicle_id"`
	DriverID     int64      `json:"driver_id"`
	WindowID     int64      `json:"window_id"`
	TokenDate    string     `json:"token_date"`
	Seq          int        `json:"seq"`
	Status       string     `json:"status"`
	IssuedAt     time.Time  `json:"issued_at"`
	AllocatedAt  *time.Time `json:"allocated_at,omitempty"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`
	ExpiryReason string     `json:"expiry_reason,omitempty"`
	TripID       *int64     `json:"trip_id,omitempty"`
}

// TokenNo formats the human-readable token identifier.
func FormatTokenNo(stationCode, tokenDate string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", stationCode, tokenDate, seq)
}

// TokenDate formats the queue-scoping date key for an instant.
func TokenDate(at time.Time) string {
	return at.Format("20060102")
}

const tokenSelectCols = `id, token_no, station_id, vehicle_id, driver_id, window_id, token_date, seq, status, issued_at, allocated_at, expired_at, expiry_reason, trip_id`

func scanToken(row interface{ Scan(...any) error }) (*QueueToken, error) {
	var t QueueToken
	var issuedAt, allocatedAt, expiredAt any
	var tripID sql.NullInt64
	err := row.Scan(&t.ID, &t.TokenNo, &t.StationID, &t.VehicleID, &t.DriverID, &t.WindowID,
		&t.TokenDate, &t.Seq, &t.Status, &issuedAt, &allocatedAt, &expiredAt, &t.ExpiryReason, &tripID)
	if err != nil {
		return nil, err
	}
	t.IssuedAt = parseTime(issuedAt)
	t.AllocatedAt = parseTimePtr(allocatedAt)
	t.ExpiredAt = parseTimePtr(expiredAt)
	if tripID.Valid {
		t.TripID = &tripID.Int64
	}
	return &t, nil
}

func scanTokens(rows *sql.Rows) ([]*QueueToken, error) {
	var tokens []*QueueToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// MaxSequenceTx reads the highest sequence issued for (station, date) inside
// the issuing transaction. Returns 0 when the day's queue is empty.
func (db *DB) MaxSequenceTx(tx *sql.Tx, stationID int64, tokenDate string) (int, error) {
	var max int
	err := tx.QueryRow(db.Q(`SELECT COALESCE(MAX(seq), 0) FROM queue_tokens WHERE station_id=? AND token_date=?`),
		stationID, tokenDate).Scan(&max)
	return max, err
}

// DriverHasWaitingTokenTx reports whether the driver already holds a waiting
// token anywhere.
func (db *DB) DriverHasWaitingTokenTx(tx *sql.Tx, driverID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(db.Q(`SELECT EXISTS (SELECT 1 FROM queue_tokens WHERE driver_id=? AND status='waiting')`),
		driverID).Scan(&exists)
	return exists, err
}

func (db *DB) CreateQueueTokenTx(tx *sql.Tx, t *QueueToken) error {
	var id int64
	err := tx.QueryRow(db.Q(`INSERT INTO queue_tokens (token_no, station_id, vehicle_id, driver_id, window_id, token_date, seq, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		t.TokenNo, t.StationID, t.VehicleID, t.DriverID, t.WindowID, t.TokenDate, t.Seq, t.Status).Scan(&id)
	if err != nil {
		return fmt.Errorf("create queue token: %w", err)
	}
	t.ID = id
	return nil
}

// OldestWaitingTokenTx locks and returns the head of the station's queue, or
// nil when no vehicle is waiting.
func (db *DB) OldestWaitingTokenTx(tx *sql.Tx, stationID int64) (*QueueToken, error) {
	row := tx.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens
		WHERE station_id=? AND status='waiting'
		ORDER BY token_date, seq LIMIT 1`)+db.ForUpdate(), stationID)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// WaitingTokenForDriverTx locks the driver's waiting token at one station,
// or returns nil when the driver is not queued there.
func (db *DB) WaitingTokenForDriverTx(tx *sql.Tx, driverID, stationID int64) (*QueueToken, error) {
	row := tx.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens
		WHERE driver_id=? AND station_id=? AND status='waiting' LIMIT 1`)+db.ForUpdate(), driverID, stationID)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (db *DB) GetQueueTokenTx(tx *sql.Tx, id int64) (*QueueToken, error) {
	row := tx.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens WHERE id=?`)+db.ForUpdate(), id)
	return scanToken(row)
}

// MarkTokenAllocatedTx flips waiting -> allocated and records the trip the
// token produced. Guarded on status so a raced token cannot allocate twice.
func (db *DB) MarkTokenAllocatedTx(tx *sql.Tx, tokenID, tripID int64) error {
	res, err := tx.Exec(db.Q(`UPDATE queue_tokens SET status='allocated', allocated_at=datetime('now','localtime'), trip_id=? WHERE id=? AND status='waiting'`),
		tripID, tokenID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return fmt.Errorf("token %d not waiting", tokenID)
	}
	return nil
}

func (db *DB) GetQueueToken(id int64) (*QueueToken, error) {
	row := db.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens WHERE id=?`), id)
	return scanToken(row)
}

func (db *DB) GetQueueTokenByNo(tokenNo string) (*QueueToken, error) {
	row := db.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens WHERE token_no=?`), tokenNo)
	return scanToken(row)
}

// CurrentToken returns the driver's waiting token, or nil.
func (db *DB) CurrentToken(driverID int64) (*QueueToken, error) {
	row := db.QueryRow(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens WHERE driver_id=? AND status='waiting' ORDER BY id DESC LIMIT 1`), driverID)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListWaitingTokens returns the station's queue in service order.
func (db *DB) ListWaitingTokens(stationID int64) ([]*QueueToken, error) {
	rows, err := db.Query(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens
		WHERE station_id=? AND status='waiting' ORDER BY token_date, seq`), stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

// ExpireToken flips waiting -> expired with a reason. Returns false when the
// token had already left waiting.
func (db *DB) ExpireToken(id int64, reason string) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE queue_tokens SET status='expired', expired_at=datetime('now','localtime'), expiry_reason=? WHERE id=? AND status='waiting'`),
		reason, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (db *DB) ListTokensByStationDate(stationID int64, tokenDate string) ([]*QueueToken, error) {
	rows, err := db.Query(db.Q(`SELECT `+tokenSelectCols+` FROM queue_tokens
		WHERE station_id=? AND token_date=? ORDER BY seq`), stationID, tokenDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}
