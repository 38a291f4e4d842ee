package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the typed wrapper for all field <-> core messages.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// --- Inbound payloads (field crews -> core) ---

type OriginArrivalReport struct {
	TripUUID string `json:"trip_uuid"`
}

type TransferBeginReport struct {
	TripUUID      string  `json:"trip_uuid"`
	Kind          string  `json:"kind"` // loading, unloading
	MeterStart    float64 `json:"meter_start"`
	PressureStart float64 `json:"pressure_start"`
}

type TransferReadingsReport struct {
	TripUUID    string  `json:"trip_uuid"`
	Kind        string  `json:"kind"`
	MeterEnd    float64 `json:"meter_end"`
	PressureEnd float64 `json:"pressure_end"`
}

type TransferConfirmReport struct {
	TripUUID string `json:"trip_uuid"`
	Kind     string `json:"kind"`
	Actor    string `json:"actor"` // operator, driver
}

type EvidenceReport struct {
	TripUUID string `json:"trip_uuid"`
	Kind     string `json:"kind"`
}

type DepartureReport struct {
	TripUUID string `json:"trip_uuid"`
}

type ArrivalReport struct {
	TripUUID string `json:"trip_uuid"`
}

type TripCompleteReport struct {
	TripUUID string `json:"trip_uuid"`
}

// --- Outbound payloads (core -> drivers / approvers) ---

type AllocationNotice struct {
	TripUUID        string  `json:"trip_uuid"`
	TokenNo         string  `json:"token_no"`
	DriverID        int64   `json:"driver_id"`
	DestinationCode string  `json:"destination_code"`
	DestinationName string  `json:"destination_name"`
	QuantityKg      float64 `json:"quantity_kg"`
}

type OfferNotice struct {
	RequestID       int64   `json:"request_id"`
	DriverID        int64   `json:"driver_id"`
	DestinationCode string  `json:"destination_code"`
	QuantityKg      float64 `json:"quantity_kg"`
	ExpiresAt       string  `json:"expires_at,omitempty"`
}

type AssignmentExpiredNotice struct {
	RequestID       int64  `json:"request_id"`
	DriverID        int64  `json:"driver_id"`
	DriverName      string `json:"driver_name"`
	DestinationName string `json:"destination_name"`
}

// RawEnvelope is used for two-stage unmarshalling: first decode the
// envelope, then decode the payload based on msg_type.
type RawEnvelope struct {
	MsgType   string          `json:"msg_type"`
	MsgID     string          `json:"msg_id"`
	NodeID    string          `json:"node_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope unmarshals a raw message into a typed Envelope with the
// correct payload type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw RawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		MsgType:   raw.MsgType,
		MsgID:     raw.MsgID,
		NodeID:    raw.NodeID,
		Timestamp: raw.Timestamp,
	}

	var payload any
	var err error
	switch raw.MsgType {
	case "origin_arrival":
		payload, err = decodePayload[OriginArrivalReport](raw)
	case "transfer_begin":
		payload, err = decodePayload[TransferBeginReport](raw)
	case "transfer_readings":
		payload, err = decodePayload[TransferReadingsReport](raw)
	case "transfer_confirm":
		payload, err = decodePayload[TransferConfirmReport](raw)
	case "evidence":
		payload, err = decodePayload[EvidenceReport](raw)
	case "departure":
		payload, err = decodePayload[DepartureReport](raw)
	case "arrival":
		payload, err = decodePayload[ArrivalReport](raw)
	case "trip_complete":
		payload, err = decodePayload[TripCompleteReport](raw)
	default:
		return nil, fmt.Errorf("unknown msg_type: %s", raw.MsgType)
	}
	if err != nil {
		return nil, err
	}
	env.Payload = payload
	return env, nil
}

func decodePayload[T any](raw RawEnvelope) (T, error) {
	var p T
	if err := json.Unmarshal(raw.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", raw.MsgType, err)
	}
	return p, nil
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, nodeID string, payload any) *Envelope {
	return &Envelope{
		MsgType:   msgType,
		MsgID:     uuid.New().String(),
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Encode marshals an envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
