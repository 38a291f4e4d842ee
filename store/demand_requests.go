package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestAssigning = "assigning"
	RequestAssigned  = "assigned"
	RequestRejected  = "rejected"
	RequestCompleted = "completed"
	RequestCancelled = "cancelled"
)

// DemandRequest is a destination station's ask for supply. Only approved
// requests with no allocated token are eligible for matching.
type DemandRequest struct {
	ID                  int64      `json:"id"`
	StationID           int64      `json:"station_id"`
	QuantityKg          float64    `json:"quantity_kg"`
	Priority            string     `json:"priority"`
	Status              string     `json:"status"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	AssignmentStartedAt *time.Time `json:"assignment_started_at,omitempty"`
	TargetDriverID      *int64     `json:"target_driver_id,omitempty"`
	TokenID             *int64     `json:"token_id,omitempty"`
	RejectReason        string     `json:"reject_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

const requestSelectCols = `id, station_id, quantity_kg, priority, status, approved_at, assignment_started_at, target_driver_id, token_id, reject_reason, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*DemandRequest, error) {
	var r DemandRequest
	var approvedAt, assignStartedAt, createdAt, updatedAt any
	var targetDriverID, tokenID sql.NullInt64
	err := row.Scan(&r.ID, &r.StationID, &r.QuantityKg, &r.Priority, &r.Status,
		&approvedAt, &assignStartedAt, &targetDriverID, &tokenID, &r.RejectReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.ApprovedAt = parseTimePtr(approvedAt)
	r.AssignmentStartedAt = parseTimePtr(assignStartedAt)
	if targetDriverID.Valid {
		r.TargetDriverID = &targetDriverID.Int64
	}
	if tokenID.Valid {
		r.TokenID = &tokenID.Int64
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanRequests(rows *sql.Rows) ([]*DemandRequest, error) {
	var reqs []*DemandRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (db *DB) CreateDemandRequest(r *DemandRequest) error {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO demand_requests (station_id, quantity_kg, priority, status) VALUES (?, ?, ?, 'pending') RETURNING id`),
		r.StationID, r.QuantityKg, r.Priority).Scan(&id)
	if err != nil {
		return fmt.Errorf("create demand request: %w", err)
	}
	r.ID = id
	r.Status = RequestPending
	return nil
}

func (db *DB) GetDemandRequest(id int64) (*DemandRequest, error) {
	row := db.QueryRow(db.Q(`SELECT `+requestSelectCols+` FROM demand_requests WHERE id=?`), id)
	return scanRequest(row)
}

func (db *DB) GetDemandRequestTx(tx *sql.Tx, id int64) (*DemandRequest, error) {
	row := tx.QueryRow(db.Q(`SELECT `+requestSelectCols+` FROM demand_requests WHERE id=?`)+db.ForUpdate(), id)
	return scanRequest(row)
}

// ApproveDemandRequest flips pending -> approved, stamping the approval time
// that fixes the request's place in the FCFS order.
func (db *DB) ApproveDemandRequest(id int64) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE demand_requests SET status='approved', approved_at=datetime('now','localtime'), updated_at=datetime('now','localtime') WHERE id=? AND status IN ('pending','assigning')`), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (db *DB) RejectDemandRequest(id int64, reason string) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE demand_requests SET status='rejected', reject_reason=?, updated_at=datetime('now','localtime') WHERE id=? AND status='pending'`), reason, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (db *DB) CancelDemandRequest(id int64) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE demand_requests SET status='cancelled', updated_at=datetime('now','localtime') WHERE id=? AND status IN ('pending','approved','assigning')`), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// StartAssignment records a directed offer to one driver: approved -> assigning
// with the deadline clock started.
func (db *DB) StartAssignment(id, driverID int64) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE demand_requests SET status='assigning', target_driver_id=?, assignment_started_at=datetime('now','localtime'), updated_at=datetime('now','localtime') WHERE id=? AND status='approved' AND token_id IS NULL`),
		driverID, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// OldestApprovedRequestTx locks and returns the oldest approved, unallocated
// request whose destination belongs to the given origin station.
func (db *DB) OldestApprovedRequestTx(tx *sql.Tx, originStationID int64) (*DemandRequest, error) {
	cols := "r.id, r.station_id, r.quantity_kg, r.priority, r.status, r.approved_at, r.assignment_started_at, r.target_driver_id, r.token_id, r.reject_reason, r.created_at, r.updated_at"
	row := tx.QueryRow(db.Q(`SELECT `+cols+` FROM demand_requests r
		JOIN stations s ON s.id = r.station_id
		WHERE s.parent_id=? AND r.status='approved' AND r.token_id IS NULL
		ORDER BY r.approved_at, r.id LIMIT 1`)+db.forUpdateOf("r"), originStationID)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// MarkRequestAssignedTx attaches the allocated token and driver: the token
// reference is set exactly once and never changes afterwards.
func (db *DB) MarkRequestAssignedTx(tx *sql.Tx, requestID, tokenID, driverID int64) error {
	res, err := tx.Exec(db.Q(`UPDATE demand_requests SET status='assigned', token_id=?, target_driver_id=?, updated_at=datetime('now','localtime') WHERE id=? AND status IN ('approved','assigning') AND token_id IS NULL`),
		tokenID, driverID, requestID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		return fmt.Errorf("request %d not eligible for assignment", requestID)
	}
	return nil
}

// ListExpiredAssignments returns requests stuck in assigning since before the
// cutoff.
func (db *DB) ListExpiredAssignments(cutoff time.Time) ([]*DemandRequest, error) {
	rows, err := db.Query(db.Q(`SELECT `+requestSelectCols+` FROM demand_requests
		WHERE status='assigning' AND assignment_started_at < ? ORDER BY assignment_started_at`),
		cutoff.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ResetAssignment returns a timed-out offer to the pending pool, clearing the
// target driver and deadline so the request can be re-approved and re-matched.
func (db *DB) ResetAssignment(id int64) (bool, error) {
	res, err := db.Exec(db.Q(`UPDATE demand_requests SET status='pending', target_driver_id=NULL, assignment_started_at=NULL, updated_at=datetime('now','localtime') WHERE id=? AND status='assigning'`), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReopenRequest returns an assigned request to the pending pool after its
// trip was cancelled, detaching the token so a fresh match can happen.
func (db *DB) ReopenRequest(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE demand_requests SET status='pending', token_id=NULL, target_driver_id=NULL, assignment_started_at=NULL, approved_at=NULL, updated_at=datetime('now','localtime') WHERE id=? AND status='assigned'`), id)
	return err
}

func (db *DB) CompleteDemandRequest(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE demand_requests SET status='completed', updated_at=datetime('now','localtime') WHERE id=? AND status='assigned'`), id)
	return err
}

func (db *DB) ListRequestsByStatus(status string, limit int) ([]*DemandRequest, error) {
	rows, err := db.Query(db.Q(`SELECT `+requestSelectCols+` FROM demand_requests WHERE status=? ORDER BY id DESC LIMIT ?`), status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (db *DB) ListRequestsByStation(stationID int64, limit int) ([]*DemandRequest, error) {
	rows, err := db.Query(db.Q(`SELECT `+requestSelectCols+` FROM demand_requests WHERE station_id=? ORDER BY id DESC LIMIT ?`), stationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}
