package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/quotagate/adapters/auth"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs each request and records request metrics.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration.Seconds())

		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Msg("request")
	})
}

// requireAuth authenticates the request and stores the caller's claims in
// the request context. Credentials are checked in order: Authorization
// bearer token, "token" cookie, X-API-Key header.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func (h *Handler) authenticate(r *http.Request) (*auth.Claims, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return h.validateJWT(r, strings.TrimPrefix(header, "Bearer "))
	}

	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return h.validateJWT(r, cookie.Value)
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return h.validateAPIKey(r, key)
	}

	h.metrics.AuthFailures.WithLabelValues("no_credentials").Inc()
	return nil, false
}

func (h *Handler) validateJWT(r *http.Request, token string) (*auth.Claims, bool) {
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		h.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
		return nil, false
	}
	return claims, true
}

func (h *Handler) validateAPIKey(r *http.Request, key string) (*auth.Claims, bool) {
	if h.apiTokens == nil {
		h.metrics.AuthFailures.WithLabelValues("api_key_disabled").Inc()
		return nil, false
	}

	prefix := auth.KeyPrefix(key)
	if prefix == "" {
		h.metrics.AuthFailures.WithLabelValues("invalid_api_key").Inc()
		return nil, false
	}

	candidates, err := h.apiTokens.GetByPrefix(r.Context(), prefix)
	if err != nil {
		h.metrics.AuthFailures.WithLabelValues("token_store").Inc()
		h.logger.Warn().Err(err).Msg("api key lookup failed")
		return nil, false
	}

	for _, t := range candidates {
		if bcrypt.CompareHashAndPassword(t.Hash, []byte(key)) == nil {
			if err := h.apiTokens.TouchLastUsed(r.Context(), t.ID, time.Now().UTC()); err != nil {
				h.logger.Debug().Err(err).Str("token_id", t.ID).Msg("touch last_used failed")
			}
			return &auth.Claims{UserID: t.UserID}, true
		}
	}

	h.metrics.AuthFailures.WithLabelValues("invalid_api_key").Inc()
	return nil, false
}
