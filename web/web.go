// Package web provides the HTTP surface of the quota gateway: the live
// event stream, the aggregated quota snapshot, and the usage history.
// Stateless design - every request authenticates itself.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/artpar/quotagate/adapters/auth"
	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/app"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
	"github.com/artpar/quotagate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// QuotaReader serves point-in-time quota reads.
type QuotaReader interface {
	GetQuotaStatus(ctx context.Context, userID string) quota.Status
	GetUsageHistory(ctx context.Context, userID string, limit int) []usage.Record
}

// StreamRelay pumps the live event stream for one account to a client.
type StreamRelay interface {
	Relay(ctx context.Context, accountID string, w app.FlushWriter) error
}

// Handler provides the gateway endpoints.
type Handler struct {
	quota     QuotaReader
	stream    StreamRelay
	tokens    *auth.TokenService
	apiTokens ports.TokenStore
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Quota     QuotaReader
	Stream    StreamRelay
	Tokens    *auth.TokenService
	APITokens ports.TokenStore // optional; nil disables API key auth
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// NewHandler creates a new web handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		quota:     deps.Quota,
		stream:    deps.Stream,
		tokens:    deps.Tokens,
		apiTokens: deps.APITokens,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "web").Logger(),
	}
}

// Routes builds the router for the gateway endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.requestLogger)
	r.Use(h.requireAuth)

	r.Get("/stream", h.Stream)
	r.Get("/quota/status", h.QuotaStatus)
	r.Get("/quota/history", h.QuotaHistory)

	return r
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
