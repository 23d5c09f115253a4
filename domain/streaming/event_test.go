package streaming

import (
	"strings"
	"testing"
)

func TestParseEvent_Sync(t *testing.T) {
	data := `{"type":"sync","quota_used":120,"quota_remaining":380,"balance":-1.5,"allowed":false}`

	ev, err := ParseEvent([]byte(data))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	sync, ok := ev.(SyncEvent)
	if !ok {
		t.Fatalf("expected SyncEvent, got %T", ev)
	}
	if sync.Delta.QuotaUsed == nil || *sync.Delta.QuotaUsed != 120 {
		t.Errorf("QuotaUsed = %v, want 120", sync.Delta.QuotaUsed)
	}
	if sync.Delta.QuotaRemaining == nil || *sync.Delta.QuotaRemaining != 380 {
		t.Errorf("QuotaRemaining = %v, want 380", sync.Delta.QuotaRemaining)
	}
	if sync.Delta.Balance == nil || *sync.Delta.Balance != -1.5 {
		t.Errorf("Balance = %v, want -1.5", sync.Delta.Balance)
	}
	if sync.Delta.Allowed == nil || *sync.Delta.Allowed {
		t.Errorf("Allowed = %v, want false", sync.Delta.Allowed)
	}
}

func TestParseEvent_SyncPartialFieldsStayNil(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"sync","quota_used":7}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	sync := ev.(SyncEvent)
	if sync.Delta.QuotaUsed == nil || *sync.Delta.QuotaUsed != 7 {
		t.Errorf("QuotaUsed = %v, want 7", sync.Delta.QuotaUsed)
	}
	if sync.Delta.QuotaRemaining != nil || sync.Delta.Balance != nil || sync.Delta.Allowed != nil {
		t.Errorf("absent fields must decode to nil: %+v", sync.Delta)
	}
}

func TestParseEvent_Heartbeat(t *testing.T) {
	data := `{"type":"heartbeat","quota_remaining":500,"quota_used":0,"balance":0,"allowed":true,"timestamp":"2025-06-01T12:00:00Z"}`

	ev, err := ParseEvent([]byte(data))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	hb, ok := ev.(HeartbeatEvent)
	if !ok {
		t.Fatalf("expected HeartbeatEvent, got %T", ev)
	}
	if hb.Delta.QuotaRemaining == nil || *hb.Delta.QuotaRemaining != 500 {
		t.Errorf("QuotaRemaining = %v, want 500", hb.Delta.QuotaRemaining)
	}
	if hb.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", hb.Timestamp)
	}
}

func TestParseEvent_QuotaUpdated(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"quota_updated"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if _, ok := ev.(QuotaUpdatedEvent); !ok {
		t.Fatalf("expected QuotaUpdatedEvent, got %T", ev)
	}
}

func TestParseEvent_Advisories(t *testing.T) {
	for _, kind := range []string{TypeQuotaLow, TypeQuotaExhausted} {
		ev, err := ParseEvent([]byte(`{"type":"` + kind + `","quota_remaining":10}`))
		if err != nil {
			t.Fatalf("ParseEvent(%s): %v", kind, err)
		}
		adv, ok := ev.(AdvisoryEvent)
		if !ok {
			t.Fatalf("expected AdvisoryEvent for %s, got %T", kind, ev)
		}
		if adv.Kind != kind {
			t.Errorf("Kind = %q, want %q", adv.Kind, kind)
		}
		if adv.EventType() != kind {
			t.Errorf("EventType() = %q, want %q", adv.EventType(), kind)
		}
	}
}

func TestParseEvent_Error(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"error","message":"Failed to connect to billing service"}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	errEv, ok := ev.(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %T", ev)
	}
	if errEv.Message != "Failed to connect to billing service" {
		t.Errorf("Message = %q", errEv.Message)
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `{"type":"sync"`},
		{name: "missing type", data: `{"quota_used":5}`},
		{name: "unknown type", data: `{"type":"billing_restarted"}`},
		{name: "not an object", data: `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent([]byte(tt.data)); err == nil {
				t.Errorf("ParseEvent(%s) succeeded, want error", tt.data)
			}
		})
	}
}

func TestFrame(t *testing.T) {
	frame, err := Frame(struct {
		Type string `json:"type"`
	}{Type: "sync"})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	got := string(frame)
	if !strings.HasPrefix(got, "data: ") {
		t.Errorf("frame missing data prefix: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("frame missing blank-line terminator: %q", got)
	}
	if got != "data: {\"type\":\"sync\"}\n\n" {
		t.Errorf("frame = %q", got)
	}
}

func TestErrorFrame_RoundTrips(t *testing.T) {
	frame := ErrorFrame("upstream down")

	payload := strings.TrimSuffix(strings.TrimPrefix(string(frame), "data: "), "\n\n")
	ev, err := ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	errEv, ok := ev.(ErrorEvent)
	if !ok {
		t.Fatalf("expected ErrorEvent, got %T", ev)
	}
	if errEv.Message != "upstream down" {
		t.Errorf("Message = %q, want %q", errEv.Message, "upstream down")
	}
}
