package queuestate

import "time"

// StationQueue is the live queue board for one origin station, served to
// display screens and the API without touching SQL on every read.
type StationQueue struct {
	StationID    int64        `json:"station_id"`
	StationCode  string       `json:"station_code"`
	StationName  string       `json:"station_name"`
	Waiting      []QueueEntry `json:"waiting"`
	WaitingCount int          `json:"waiting_count"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// QueueEntry is one waiting vehicle on the board, in allocation order.
type QueueEntry struct {
	TokenID  int64     `json:"token_id"`
	TokenNo  string    `json:"token_no"`
	Seq      int       `json:"seq"`
	DriverID int64     `json:"driver_id"`
	Driver   string    `json:"driver"`
	PlateNo  string    `json:"plate_no"`
	IssuedAt time.Time `json:"issued_at"`
}
