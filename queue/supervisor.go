package queue

import (
	"context"
	"log"
	"time"

	"gasflow/store"
)

// Supervisor periodically reclaims directed assignments the driver never
// acted on. A request stuck in assigning past the timeout goes back to
// pending and approvers are told to re-approve or retarget it.
type Supervisor struct {
	db       *store.DB
	svc      *Service
	timeout  time.Duration
	interval time.Duration
}

func NewSupervisor(db *store.DB, svc *Service, timeout, interval time.Duration) *Supervisor {
	return &Supervisor{db: db, svc: svc, timeout: timeout, interval: interval}
}

// Run sweeps until the context is cancelled.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sv.Sweep(ctx); err != nil {
				log.Printf("queue: assignment sweep: %v", err)
			} else if n > 0 {
				log.Printf("queue: reclaimed %d expired assignments", n)
			}
		}
	}
}

// Sweep reclaims every assignment older than the timeout and returns how
// many were reset. Each reset is independent: one failure does not stop
// the rest of the batch.
func (sv *Supervisor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-sv.timeout)
	expired, err := sv.db.ListExpiredAssignments(cutoff)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, req := range expired {
		driverID := int64(0)
		if req.TargetDriverID != nil {
			driverID = *req.TargetDriverID
		}
		ok, err := sv.db.ResetAssignment(req.ID)
		if err != nil {
			log.Printf("queue: reset assignment %d: %v", req.ID, err)
			continue
		}
		if !ok {
			continue // driver accepted while we were sweeping
		}
		reclaimed++
		sv.notifyExpired(req, driverID)
	}
	return reclaimed, nil
}

func (sv *Supervisor) notifyExpired(req *store.DemandRequest, driverID int64) {
	driverName, destName := "", ""
	if d, err := sv.db.GetDriver(driverID); err == nil {
		driverName = d.Name
	}
	if st, err := sv.db.GetStation(req.StationID); err == nil {
		destName = st.Name
	}
	if sv.svc.emitter != nil {
		sv.svc.emitter.EmitAssignmentExpired(req.ID, driverID, driverName, destName)
	}
	if sv.svc.notifier != nil {
		sv.svc.notifier.NotifyApproversOfExpiry(req.ID, driverID, driverName, destName)
	}
}
