package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	StationOrigin      = "origin"
	StationDestination = "destination"
)

// Station is either a supply point ("origin", e.g. a mother station) or a
// demand point ("destination") whose parent_id names the origin that serves it.
type Station struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	ParentID  *int64     `json:"parent_id,omitempty"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

const stationSelectCols = `id, code, name, kind, parent_id, enabled, created_at, updated_at`

func scanStation(row interface{ Scan(...any) error }) (*Station, error) {
	var s Station
	var parentID sql.NullInt64
	var createdAt, updatedAt any
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Kind, &parentID, &s.Enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		s.ParentID = &parentID.Int64
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanStations(rows *sql.Rows) ([]*Station, error) {
	var stations []*Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

func (db *DB) CreateStation(s *Station) error {
	var parentID any
	if s.ParentID != nil {
		parentID = *s.ParentID
	}
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO stations (code, name, kind, parent_id, enabled) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		s.Code, s.Name, s.Kind, parentID, s.Enabled).Scan(&id)
	if err != nil {
		return fmt.Errorf("create station: %w", err)
	}
	s.ID = id
	return nil
}

func (db *DB) GetStation(id int64) (*Station, error) {
	row := db.QueryRow(db.Q(`SELECT `+stationSelectCols+` FROM stations WHERE id=?`), id)
	return scanStation(row)
}

func (db *DB) GetStationTx(tx *sql.Tx, id int64) (*Station, error) {
	row := tx.QueryRow(db.Q(`SELECT `+stationSelectCols+` FROM stations WHERE id=?`), id)
	return scanStation(row)
}

func (db *DB) GetStationByCode(code string) (*Station, error) {
	row := db.QueryRow(db.Q(`SELECT `+stationSelectCols+` FROM stations WHERE code=?`), code)
	return scanStation(row)
}

func (db *DB) ListStations() ([]*Station, error) {
	rows, err := db.Query(db.Q(`SELECT ` + stationSelectCols + ` FROM stations ORDER BY code`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStations(rows)
}

func (db *DB) ListStationsByKind(kind string) ([]*Station, error) {
	rows, err := db.Query(db.Q(`SELECT `+stationSelectCols+` FROM stations WHERE kind=? ORDER BY code`), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStations(rows)
}

func (db *DB) UpdateStation(s *Station) error {
	var parentID any
	if s.ParentID != nil {
		parentID = *s.ParentID
	}
	_, err := db.Exec(db.Q(`UPDATE stations SET code=?, name=?, kind=?, parent_id=?, enabled=?, updated_at=datetime('now','localtime') WHERE id=?`),
		s.Code, s.Name, s.Kind, parentID, s.Enabled, s.ID)
	return err
}

// LockStationTx takes the row lock that serializes sequence issuance and
// matching for one origin station. On SQLite the single connection already
// serializes, so the lock clause is empty and this is a plain existence check.
func (db *DB) LockStationTx(tx *sql.Tx, stationID int64) error {
	var id int64
	err := tx.QueryRow(db.Q(`SELECT id FROM stations WHERE id=? AND kind='origin'`)+db.ForUpdate(), stationID).Scan(&id)
	if err != nil {
		return fmt.Errorf("lock origin station %d: %w", stationID, err)
	}
	return nil
}
