package app

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/domain/streaming"
	"github.com/artpar/quotagate/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval is the fallback-mode heartbeat period.
const DefaultHeartbeatInterval = 30 * time.Second

// Fallback heartbeat literals. These guard the stream failure domain and are
// intentionally distinct from the aggregator's unprovisioned defaults.
const (
	fallbackQuotaRemaining = 500
	fallbackQuotaUsed      = 0
	fallbackBalance        = 0
	fallbackAllowed        = true
)

// FlushWriter is a client stream that can push buffered bytes immediately.
type FlushWriter interface {
	io.Writer
	Flush()
}

// StreamService relays the billing authority's live event stream to clients,
// degrading to synthetic heartbeats when the upstream cannot be reached.
//
// The happy path is a byte-transparent relay: no parsing, no transformation.
// That keeps the gateway resilient to upstream protocol evolution.
type StreamService struct {
	billing ports.BillingAuthority
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger

	// Nanoseconds; atomic so config hot reload can adjust it while
	// fallback sessions are running.
	heartbeatInterval atomic.Int64
}

// StreamDeps contains dependencies for StreamService.
type StreamDeps struct {
	Billing ports.BillingAuthority
	Clock   ports.Clock
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// StreamConfig contains configuration for StreamService.
type StreamConfig struct {
	HeartbeatInterval time.Duration
}

// NewStreamService creates a new stream relay service.
func NewStreamService(deps StreamDeps, cfg StreamConfig) *StreamService {
	s := &StreamService{
		billing: deps.Billing,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "stream").Logger(),
	}
	s.heartbeatInterval.Store(int64(DefaultHeartbeatInterval))
	s.SetHeartbeatInterval(cfg.HeartbeatInterval)
	return s
}

// SetHeartbeatInterval changes the fallback heartbeat period. Running
// fallback sessions pick it up after their next heartbeat. Non-positive
// values are ignored.
func (s *StreamService) SetHeartbeatInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.heartbeatInterval.Store(int64(interval))
}

func (s *StreamService) interval() time.Duration {
	return time.Duration(s.heartbeatInterval.Load())
}

// Relay opens one upstream connection for the account and pumps its bytes to
// the client until either side closes. On upstream failure it emits a single
// error event and enters fallback mode for the rest of the session - the
// client must resubscribe to retry upstream.
//
// Cancelling ctx (the client disconnecting) releases the upstream connection
// and any running timer on every exit path.
func (s *StreamService) Relay(ctx context.Context, accountID string, w FlushWriter) error {
	sessionID := uuid.NewString()
	logger := s.logger.With().Str("session_id", sessionID).Str("account_id", accountID).Logger()

	s.metrics.StreamsActive.Inc()
	defer s.metrics.StreamsActive.Dec()

	upstream, err := s.billing.OpenStream(ctx, accountID)
	if err != nil {
		logger.Warn().Err(err).Msg("upstream stream unavailable, entering fallback mode")
		s.metrics.UpstreamErrors.WithLabelValues("billing").Inc()

		if _, werr := w.Write(streaming.ErrorFrame("Failed to connect to billing service")); werr != nil {
			return nil
		}
		w.Flush()

		return s.fallback(ctx, w, logger)
	}
	defer upstream.Close()

	logger.Debug().Msg("relaying upstream stream")
	return s.pump(ctx, upstream, w, logger)
}

// pump copies upstream chunks to the client verbatim, flushing after each
// chunk. Upstream-read and client-write are sequential; a slow client
// naturally pauses the upstream read.
func (s *StreamService) pump(ctx context.Context, upstream io.Reader, w FlushWriter, logger zerolog.Logger) error {
	buf := make([]byte, 4096)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			s.metrics.StreamBytesTotal.Add(float64(n))
			if _, werr := w.Write(buf[:n]); werr != nil {
				logger.Debug().Err(werr).Msg("client write failed, closing relay")
				return nil
			}
			w.Flush()
		}
		if err != nil {
			switch {
			case err == io.EOF:
				logger.Debug().Msg("upstream closed stream")
				return nil
			case ctx.Err() != nil:
				logger.Debug().Msg("client disconnected")
				return nil
			default:
				logger.Warn().Err(err).Msg("upstream read failed")
				return err
			}
		}
	}
}

// fallback emits a synthetic heartbeat immediately and then one per interval
// until the client disconnects. No upstream retry happens here.
func (s *StreamService) fallback(ctx context.Context, w FlushWriter, logger zerolog.Logger) error {
	s.metrics.FallbackSessions.Inc()

	if err := s.writeHeartbeat(w); err != nil {
		return nil
	}

	interval := s.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("client disconnected from fallback stream")
			return nil
		case <-ticker.C:
			if err := s.writeHeartbeat(w); err != nil {
				return nil
			}
			if cur := s.interval(); cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
		}
	}
}

func (s *StreamService) writeHeartbeat(w FlushWriter) error {
	payload := struct {
		Type           string  `json:"type"`
		QuotaRemaining int64   `json:"quota_remaining"`
		QuotaUsed      int64   `json:"quota_used"`
		Balance        float64 `json:"balance"`
		Allowed        bool    `json:"allowed"`
		Timestamp      string  `json:"timestamp"`
	}{
		Type:           streaming.TypeHeartbeat,
		QuotaRemaining: fallbackQuotaRemaining,
		QuotaUsed:      fallbackQuotaUsed,
		Balance:        fallbackBalance,
		Allowed:        fallbackAllowed,
		Timestamp:      s.clock.Now().UTC().Format(time.RFC3339),
	}

	frame, err := streaming.Frame(payload)
	if err != nil {
		// Marshalling a static struct cannot fail; guard anyway.
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	w.Flush()
	return nil
}
