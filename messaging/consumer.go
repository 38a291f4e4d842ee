package messaging

import (
	"log"
)

// InboundHandler is called for each decoded inbound field report.
type InboundHandler interface {
	HandleOriginArrival(env *Envelope, rpt OriginArrivalReport)
	HandleTransferBegin(env *Envelope, rpt TransferBeginReport)
	HandleTransferReadings(env *Envelope, rpt TransferReadingsReport)
	HandleTransferConfirm(env *Envelope, rpt TransferConfirmReport)
	HandleEvidence(env *Envelope, rpt EvidenceReport)
	HandleDeparture(env *Envelope, rpt DepartureReport)
	HandleArrival(env *Envelope, rpt ArrivalReport)
	HandleTripComplete(env *Envelope, rpt TripCompleteReport)
}

// Consumer subscribes to the field reports topic and routes messages to
// the handler.
type Consumer struct {
	client  *Client
	topic   string
	handler InboundHandler
}

func NewConsumer(client *Client, topic string, handler InboundHandler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Printf("consumer: decode error: %v", err)
		return
	}

	switch p := env.Payload.(type) {
	case OriginArrivalReport:
		c.handler.HandleOriginArrival(env, p)
	case TransferBeginReport:
		c.handler.HandleTransferBegin(env, p)
	case TransferReadingsReport:
		c.handler.HandleTransferReadings(env, p)
	case TransferConfirmReport:
		c.handler.HandleTransferConfirm(env, p)
	case EvidenceReport:
		c.handler.HandleEvidence(env, p)
	case DepartureReport:
		c.handler.HandleDeparture(env, p)
	case ArrivalReport:
		c.handler.HandleArrival(env, p)
	case TripCompleteReport:
		c.handler.HandleTripComplete(env, p)
	default:
		log.Printf("consumer: unhandled payload type: %T", p)
	}
}
