// Package usage provides value types for the authority's usage ledger.
package usage

import "time"

// LedgerRecord is the billing authority's wire format for one ledger entry,
// as returned by GET /api/v1/billing/stats/{id}. Older authority versions
// omit id in favor of trace_id and timestamp in favor of created_at.
type LedgerRecord struct {
	ID           string    `json:"id,omitempty"`
	TraceID      string    `json:"trace_id,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	InputTokens  int64     `json:"input_tokens,omitempty"`
	OutputTokens int64     `json:"output_tokens,omitempty"`
	TotalCost    float64   `json:"total_cost,omitempty"`
}

// When returns the record's effective timestamp, preferring the explicit
// timestamp over the row creation time.
func (r LedgerRecord) When() time.Time {
	if !r.Timestamp.IsZero() {
		return r.Timestamp
	}
	return r.CreatedAt
}

// Record is the canonical usage record shape served to clients.
type Record struct {
	ID           string  `json:"id"`
	Time         string  `json:"time"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// timeLayout renders timestamps as localized hour:minute, matching the
// 2-digit en-US clock the clients expect.
const timeLayout = "03:04 PM"

// FromLedger normalizes one authority ledger entry into the canonical shape.
// Missing numeric fields stay at their zero values. This is a PURE function.
func FromLedger(r LedgerRecord) Record {
	id := r.ID
	if id == "" {
		id = r.TraceID
	}
	return Record{
		ID:           id,
		Time:         r.When().Format(timeLayout),
		Model:        r.Model,
		Provider:     r.Provider,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		Cost:         r.TotalCost,
	}
}
