package messaging

import (
	"fmt"
	"log"

	"gasflow/config"
	"gasflow/store"
)

// Notifier turns queue outcomes into outbound messages via the outbox.
// Delivery is best-effort and decoupled from queue state: an enqueue
// failure is logged and dropped, never propagated to the caller.
type Notifier struct {
	db  *store.DB
	cfg *config.MessagingConfig
}

func NewNotifier(db *store.DB, cfg *config.MessagingConfig) *Notifier {
	return &Notifier{db: db, cfg: cfg}
}

func (n *Notifier) NotifyDriverOfAllocation(driverID int64, trip *store.Trip, request *store.DemandRequest) {
	notice := AllocationNotice{
		TripUUID:   trip.PublicID,
		DriverID:   driverID,
		QuantityKg: request.QuantityKg,
	}
	if token, err := n.db.GetQueueToken(trip.TokenID); err == nil {
		notice.TokenNo = token.TokenNo
	}
	if dest, err := n.db.GetStation(trip.DestStationID); err == nil {
		notice.DestinationCode = dest.Code
		notice.DestinationName = dest.Name
	}
	n.enqueue(n.cfg.DriverNotifyTopic, "token_allocated", driverID, notice)
}

func (n *Notifier) NotifyDriverOfOffer(driverID int64, request *store.DemandRequest) {
	notice := OfferNotice{
		RequestID:  request.ID,
		DriverID:   driverID,
		QuantityKg: request.QuantityKg,
	}
	if dest, err := n.db.GetStation(request.StationID); err == nil {
		notice.DestinationCode = dest.Code
	}
	n.enqueue(n.cfg.DriverNotifyTopic, "assignment_offer", driverID, notice)
}

func (n *Notifier) NotifyApproversOfExpiry(requestID, driverID int64, driverName, destinationName string) {
	n.enqueue(n.cfg.ApproverNotifyTopic, "assignment_expired", 0, AssignmentExpiredNotice{
		RequestID:       requestID,
		DriverID:        driverID,
		DriverName:      driverName,
		DestinationName: destinationName,
	})
}

func (n *Notifier) enqueue(topic, msgType string, driverID int64, payload any) {
	env := NewEnvelope(msgType, n.cfg.NodeID, payload)
	data, err := env.Encode()
	if err != nil {
		log.Printf("notifier: encode %s: %v", msgType, err)
		return
	}
	recipient := ""
	if driverID > 0 {
		recipient = fmt.Sprintf("driver:%d", driverID)
	}
	if err := n.db.EnqueueOutbox(topic, data, msgType, recipient); err != nil {
		log.Printf("notifier: enqueue %s: %v", msgType, err)
	}
}
