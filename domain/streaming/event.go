// Package streaming provides the live quota channel's wire vocabulary:
// a closed event union decoded by a single dispatch-on-type parser, plus
// SSE frame encoding and scanning.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/quotagate/domain/quota"
)

// Event types carried in the "type" field of each frame.
const (
	TypeSync           = "sync"
	TypeHeartbeat      = "heartbeat"
	TypeQuotaUpdated   = "quota_updated"
	TypeQuotaLow       = "quota_low"
	TypeQuotaExhausted = "quota_exhausted"
	TypeError          = "error"
)

// Event is the closed union of live channel events. Exactly one concrete
// type exists per event kind; consumer logic switches exhaustively on them.
type Event interface {
	EventType() string
}

// SyncEvent carries a partial quota delta.
type SyncEvent struct {
	Delta     quota.Delta
	Timestamp string
}

// HeartbeatEvent has the same shape as SyncEvent but means "still connected,
// no material change expected".
type HeartbeatEvent struct {
	Delta     quota.Delta
	Timestamp string
}

// QuotaUpdatedEvent carries no payload; it tells the consumer to perform a
// full refresh against the aggregator.
type QuotaUpdatedEvent struct{}

// AdvisoryEvent is a quota_low or quota_exhausted notification. The payload
// is informational only and never mutates consumer state.
type AdvisoryEvent struct {
	Kind    string
	Payload json.RawMessage
}

// ErrorEvent is terminal for the stream attempt that delivered it.
type ErrorEvent struct {
	Message string
}

func (SyncEvent) EventType() string         { return TypeSync }
func (HeartbeatEvent) EventType() string    { return TypeHeartbeat }
func (QuotaUpdatedEvent) EventType() string { return TypeQuotaUpdated }
func (e AdvisoryEvent) EventType() string   { return e.Kind }
func (ErrorEvent) EventType() string        { return TypeError }

// envelope is the superset wire shape all event kinds decode from.
type envelope struct {
	Type        string `json:"type"`
	quota.Delta        // quota_used, quota_remaining, balance, allowed
	Message     string `json:"message,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// ParseEvent decodes one frame payload into its event kind.
// Unknown types and malformed JSON are errors; the caller decides whether to
// drop the frame or tear down the stream.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch env.Type {
	case TypeSync:
		return SyncEvent{Delta: env.Delta, Timestamp: env.Timestamp}, nil
	case TypeHeartbeat:
		return HeartbeatEvent{Delta: env.Delta, Timestamp: env.Timestamp}, nil
	case TypeQuotaUpdated:
		return QuotaUpdatedEvent{}, nil
	case TypeQuotaLow, TypeQuotaExhausted:
		return AdvisoryEvent{Kind: env.Type, Payload: json.RawMessage(data)}, nil
	case TypeError:
		return ErrorEvent{Message: env.Message}, nil
	case "":
		return nil, fmt.Errorf("event missing type field")
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// Frame renders a payload as one SSE frame: "data: <json>\n\n".
func Frame(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// ErrorFrame renders an error event frame with the given message.
func ErrorFrame(message string) []byte {
	frame, _ := Frame(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{Type: TypeError, Message: message})
	return frame
}
