package queuestate

import (
	"context"
	"log"
	"time"

	"gasflow/store"
)

// Manager keeps the Redis queue boards in step with SQL. SQL is the
// source of truth; the board is rebuilt from it on every queue change
// and read back from Redis, falling through to SQL when Redis is cold.
type Manager struct {
	db    *store.DB
	redis *RedisStore
}

func NewManager(db *store.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis}
}

// RefreshStation rebuilds one station's board from SQL and writes it
// through to Redis. Redis write failures are logged, not surfaced: the
// board is a cache.
func (m *Manager) RefreshStation(ctx context.Context, stationID int64) {
	q, err := m.build(stationID)
	if err != nil {
		log.Printf("queuestate: rebuild station %d: %v", stationID, err)
		return
	}
	if m.redis == nil {
		return
	}
	if err := m.redis.SetBoard(ctx, q); err != nil {
		log.Printf("queuestate: redis write station %d: %v", stationID, err)
	}
}

// Board returns a station's queue board, preferring Redis.
func (m *Manager) Board(ctx context.Context, stationID int64) (*StationQueue, error) {
	if m.redis != nil {
		if q, err := m.redis.GetBoard(ctx, stationID); err == nil && q != nil {
			return q, nil
		}
	}
	return m.build(stationID)
}

// RefreshAll rebuilds every origin station's board, used at startup so
// screens come up warm after a restart.
func (m *Manager) RefreshAll(ctx context.Context) {
	stations, err := m.db.ListStationsByKind(store.StationOrigin)
	if err != nil {
		log.Printf("queuestate: list stations: %v", err)
		return
	}
	for _, st := range stations {
		m.RefreshStation(ctx, st.ID)
	}
}

func (m *Manager) build(stationID int64) (*StationQueue, error) {
	station, err := m.db.GetStation(stationID)
	if err != nil {
		return nil, err
	}
	tokens, err := m.db.ListWaitingTokens(stationID)
	if err != nil {
		return nil, err
	}
	q := &StationQueue{
		StationID:   station.ID,
		StationCode: station.Code,
		StationName: station.Name,
		Waiting:     make([]QueueEntry, 0, len(tokens)),
		UpdatedAt:   time.Now(),
	}
	for _, t := range tokens {
		entry := QueueEntry{
			TokenID:  t.ID,
			TokenNo:  t.TokenNo,
			Seq:      t.Seq,
			DriverID: t.DriverID,
			IssuedAt: t.IssuedAt,
		}
		if d, err := m.db.GetDriver(t.DriverID); err == nil {
			entry.Driver = d.Name
		}
		if v, err := m.db.GetVehicle(t.VehicleID); err == nil {
			entry.PlateNo = v.PlateNo
		}
		q.Waiting = append(q.Waiting, entry)
	}
	q.WaitingCount = len(q.Waiting)
	return q, nil
}
