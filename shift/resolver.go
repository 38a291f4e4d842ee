// Package shift resolves a driver's currently valid work window: the
// pre-approved interval binding a driver to a vehicle and an origin station.
// Resolution is a pure read; nothing here mutates shift data.
package shift

import (
	"context"
	"time"

	"gasflow/store"
)

type Resolver struct {
	db    *store.DB
	cache *Cache // nil when Redis is unavailable
}

func NewResolver(db *store.DB, cache *Cache) *Resolver {
	return &Resolver{db: db, cache: cache}
}

// ActiveWindow returns the single work window covering at for the driver, or
// nil when the driver is off shift.
func (r *Resolver) ActiveWindow(ctx context.Context, driverID int64, at time.Time) (*store.WorkWindow, error) {
	if r.cache != nil {
		if w, ok := r.cache.Get(ctx, driverID); ok {
			return w, nil
		}
	}
	w, err := r.db.ActiveWindow(driverID, at)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(ctx, driverID, w)
	}
	return w, nil
}

// Invalidate drops the cached window after shift edits.
func (r *Resolver) Invalidate(ctx context.Context, driverID int64) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, driverID)
	}
}
