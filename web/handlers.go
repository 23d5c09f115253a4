package web

import (
	"net/http"
	"strconv"
)

const defaultHistoryLimit = 10

// flushWriter adapts an http.ResponseWriter with flush support to the
// stream relay's writer contract.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) { return fw.w.Write(p) }
func (fw flushWriter) Flush()                      { fw.f.Flush() }

// Stream subscribes the caller to the live quota event stream for one
// billing account. The response stays open until the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "Missing accountId parameter")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := h.stream.Relay(r.Context(), accountID, flushWriter{w: w, f: flusher}); err != nil {
		h.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("stream relay ended with error")
	}
}

// QuotaStatus returns the caller's aggregated quota snapshot.
func (h *Handler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	status := h.quota.GetQuotaStatus(r.Context(), claims.UserID)
	writeJSON(w, http.StatusOK, status)
}

// QuotaHistory returns the caller's recent usage records, newest first.
func (h *Handler) QuotaHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records := h.quota.GetUsageHistory(r.Context(), claims.UserID, limit)
	writeJSON(w, http.StatusOK, records)
}
