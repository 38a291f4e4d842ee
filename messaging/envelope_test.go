package messaging

import (
	"strings"
	"testing"
)

func TestDecodeEnvelopeTypes(t *testing.T) {
	data := []byte(`{
		"msg_type": "transfer_begin",
		"msg_id": "m-1",
		"node_id": "ms1-bay2",
		"timestamp": "2026-08-30T09:15:00Z",
		"payload": {"trip_uuid": "t-abc", "kind": "loading", "meter_start": 120.5, "pressure_start": 220}
	}`)
	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.MsgType != "transfer_begin" || env.NodeID != "ms1-bay2" {
		t.Errorf("envelope = %q/%q", env.MsgType, env.NodeID)
	}
	p, ok := env.Payload.(TransferBeginReport)
	if !ok {
		t.Fatalf("payload type = %T, want TransferBeginReport", env.Payload)
	}
	if p.TripUUID != "t-abc" || p.Kind != "loading" || p.MeterStart != 120.5 {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeEnvelopeAllInboundTypes(t *testing.T) {
	cases := []struct {
		msgType string
		payload string
		check   func(any) bool
	}{
		{"origin_arrival", `{"trip_uuid":"t-1"}`,
			func(p any) bool { r, ok := p.(OriginArrivalReport); return ok && r.TripUUID == "t-1" }},
		{"transfer_readings", `{"trip_uuid":"t-1","kind":"unloading","meter_end":2600,"pressure_end":18}`,
			func(p any) bool { r, ok := p.(TransferReadingsReport); return ok && r.MeterEnd == 2600 }},
		{"transfer_confirm", `{"trip_uuid":"t-1","kind":"loading","actor":"driver"}`,
			func(p any) bool { r, ok := p.(TransferConfirmReport); return ok && r.Actor == "driver" }},
		{"evidence", `{"trip_uuid":"t-1","kind":"loading"}`,
			func(p any) bool { r, ok := p.(EvidenceReport); return ok && r.Kind == "loading" }},
		{"departure", `{"trip_uuid":"t-1"}`,
			func(p any) bool { _, ok := p.(DepartureReport); return ok }},
		{"arrival", `{"trip_uuid":"t-1"}`,
			func(p any) bool { _, ok := p.(ArrivalReport); return ok }},
		{"trip_complete", `{"trip_uuid":"t-1"}`,
			func(p any) bool { _, ok := p.(TripCompleteReport); return ok }},
	}
	for _, tc := range cases {
		data := []byte(`{"msg_type":"` + tc.msgType + `","msg_id":"m","node_id":"n","timestamp":"2026-08-30T09:15:00Z","payload":` + tc.payload + `}`)
		env, err := DecodeEnvelope(data)
		if err != nil {
			t.Errorf("%s: decode: %v", tc.msgType, err)
			continue
		}
		if !tc.check(env.Payload) {
			t.Errorf("%s: payload = %#v", tc.msgType, env.Payload)
		}
	}
}

func TestDecodeEnvelopeUnknownType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"msg_type":"teleport","payload":{}}`))
	if err == nil {
		t.Fatal("expected error for unknown msg_type")
	}
	if !strings.Contains(err.Error(), "unknown msg_type") {
		t.Errorf("err = %v", err)
	}
}

func TestDecodeEnvelopeBadJSON(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
	// Valid envelope, garbage payload.
	if _, err := DecodeEnvelope([]byte(`{"msg_type":"departure","payload":"not an object"}`)); err == nil {
		t.Fatal("expected error for mistyped payload")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	out := NewEnvelope("transfer_confirm", "core", TransferConfirmReport{
		TripUUID: "t-9", Kind: "unloading", Actor: "operator",
	})
	if out.MsgID == "" {
		t.Error("outbound envelope should get a msg_id")
	}
	data, err := out.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := back.Payload.(TransferConfirmReport)
	if !ok {
		t.Fatalf("payload type = %T", back.Payload)
	}
	if p.TripUUID != "t-9" || p.Actor != "operator" {
		t.Errorf("payload = %+v", p)
	}
	if back.MsgID != out.MsgID || back.NodeID != "core" {
		t.Errorf("envelope fields lost: %+v", back)
	}
}
