package usage

import (
	"testing"
	"time"
)

func TestFromLedger(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 5, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ledger LedgerRecord
		want   Record
	}{
		{
			name: "complete record",
			ledger: LedgerRecord{
				ID:           "rec-1",
				Timestamp:    ts,
				Model:        "claude-3",
				Provider:     "anthropic",
				InputTokens:  120,
				OutputTokens: 480,
				TotalCost:    0.0042,
			},
			want: Record{
				ID:           "rec-1",
				Time:         "02:05 PM",
				Model:        "claude-3",
				Provider:     "anthropic",
				InputTokens:  120,
				OutputTokens: 480,
				Cost:         0.0042,
			},
		},
		{
			name: "trace id fallback",
			ledger: LedgerRecord{
				TraceID:   "trace-9",
				Timestamp: ts,
				Model:     "gpt-4o",
				Provider:  "openai",
			},
			want: Record{
				ID:       "trace-9",
				Time:     "02:05 PM",
				Model:    "gpt-4o",
				Provider: "openai",
			},
		},
		{
			name: "created_at fallback",
			ledger: LedgerRecord{
				ID:        "rec-2",
				CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
				Model:     "gemini-pro",
				Provider:  "google",
			},
			want: Record{
				ID:       "rec-2",
				Time:     "09:30 AM",
				Model:    "gemini-pro",
				Provider: "google",
			},
		},
		{
			name: "missing numerics default to zero",
			ledger: LedgerRecord{
				ID:        "rec-3",
				Timestamp: ts,
				Model:     "claude-3",
				Provider:  "anthropic",
			},
			want: Record{
				ID:       "rec-3",
				Time:     "02:05 PM",
				Model:    "claude-3",
				Provider: "anthropic",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromLedger(tt.ledger); got != tt.want {
				t.Errorf("FromLedger() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWhen_PrefersExplicitTimestamp(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)

	r := LedgerRecord{Timestamp: ts, CreatedAt: created}
	if got := r.When(); !got.Equal(ts) {
		t.Errorf("When() = %v, want explicit timestamp %v", got, ts)
	}

	r = LedgerRecord{CreatedAt: created}
	if got := r.When(); !got.Equal(created) {
		t.Errorf("When() = %v, want created_at %v", got, created)
	}
}
