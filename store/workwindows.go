package store

import (
	"database/sql"
	"fmt"
	"time"
)

// WorkWindow is a driver's approved interval for operating a given vehicle
// out of a given origin station.
type WorkWindow struct {
	ID        int64     `json:"id"`
	DriverID  int64     `json:"driver_id"`
	VehicleID int64     `json:"vehicle_id"`
	StationID int64     `json:"station_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

const windowSelectCols = `id, driver_id, vehicle_id, station_id, starts_at, ends_at, approved, created_at`

func scanWindow(row interface{ Scan(...any) error }) (*WorkWindow, error) {
	var w WorkWindow
	var startsAt, endsAt, createdAt any
	err := row.Scan(&w.ID, &w.DriverID, &w.VehicleID, &w.StationID, &startsAt, &endsAt, &w.Approved, &createdAt)
	if err != nil {
		return nil, err
	}
	w.StartsAt = parseTime(startsAt)
	w.EndsAt = parseTime(endsAt)
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

func (db *DB) CreateWorkWindow(w *WorkWindow) error {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO work_windows (driver_id, vehicle_id, station_id, starts_at, ends_at, approved) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		w.DriverID, w.VehicleID, w.StationID, w.StartsAt.Format("2006-01-02 15:04:05"), w.EndsAt.Format("2006-01-02 15:04:05"), w.Approved).Scan(&id)
	if err != nil {
		return fmt.Errorf("create work window: %w", err)
	}
	w.ID = id
	return nil
}

func (db *DB) GetWorkWindow(id int64) (*WorkWindow, error) {
	row := db.QueryRow(db.Q(`SELECT `+windowSelectCols+` FROM work_windows WHERE id=?`), id)
	return scanWindow(row)
}

// ActiveWindow returns the approved work window covering the given instant for
// a driver, or nil if none. At most one window should be active per driver;
// the newest wins if shift edits overlap.
func (db *DB) ActiveWindow(driverID int64, at time.Time) (*WorkWindow, error) {
	ts := at.Format("2006-01-02 15:04:05")
	row := db.QueryRow(db.Q(`SELECT `+windowSelectCols+` FROM work_windows
		WHERE driver_id=? AND approved=`+db.dialect.BoolTrue()+` AND starts_at<=? AND ends_at>?
		ORDER BY starts_at DESC LIMIT 1`), driverID, ts, ts)
	w, err := scanWindow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (db *DB) ListWindowsByDriver(driverID int64) ([]*WorkWindow, error) {
	rows, err := db.Query(db.Q(`SELECT `+windowSelectCols+` FROM work_windows WHERE driver_id=? ORDER BY starts_at DESC`), driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var windows []*WorkWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
