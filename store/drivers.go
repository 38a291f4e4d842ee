package store

import (
	"fmt"
	"time"
)

type Driver struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func scanDriver(row interface{ Scan(...any) error }) (*Driver, error) {
	var d Driver
	var createdAt any
	if err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Enabled, &createdAt); err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (db *DB) CreateDriver(d *Driver) error {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO drivers (name, phone, enabled) VALUES (?, ?, ?) RETURNING id`),
		d.Name, d.Phone, d.Enabled).Scan(&id)
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	d.ID = id
	return nil
}

func (db *DB) GetDriver(id int64) (*Driver, error) {
	row := db.QueryRow(db.Q(`SELECT id, name, phone, enabled, created_at FROM drivers WHERE id=?`), id)
	return scanDriver(row)
}

func (db *DB) ListDrivers() ([]*Driver, error) {
	rows, err := db.Query(db.Q(`SELECT id, name, phone, enabled, created_at FROM drivers ORDER BY name`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drivers []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

type Vehicle struct {
	ID         int64     `json:"id"`
	PlateNo    string    `json:"plate_no"`
	CapacityKg float64   `json:"capacity_kg"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

func scanVehicle(row interface{ Scan(...any) error }) (*Vehicle, error) {
	var v Vehicle
	var createdAt any
	if err := row.Scan(&v.ID, &v.PlateNo, &v.CapacityKg, &v.Enabled, &createdAt); err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

func (db *DB) CreateVehicle(v *Vehicle) error {
	var id int64
	err := db.QueryRow(db.Q(`INSERT INTO vehicles (plate_no, capacity_kg, enabled) VALUES (?, ?, ?) RETURNING id`),
		v.PlateNo, v.CapacityKg, v.Enabled).Scan(&id)
	if err != nil {
		return fmt.Errorf("create vehicle: %w", err)
	}
	v.ID = id
	return nil
}

func (db *DB) GetVehicle(id int64) (*Vehicle, error) {
	row := db.QueryRow(db.Q(`SELECT id, plate_no, capacity_kg, enabled, created_at FROM vehicles WHERE id=?`), id)
	return scanVehicle(row)
}
