// Package client provides a Go consumer for the quota gateway: a live
// stream subscription that maintains a continuously updated quota snapshot,
// with automatic reconnection.
package client

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/streaming"
	"github.com/rs/zerolog"
)

// DefaultRetryDelay is the pause before reconnecting after a dropped stream.
const DefaultRetryDelay = 5 * time.Second

// State is the consumer's connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// StreamOpener opens the gateway's live event stream for an account.
// Cancelling ctx must unblock any pending read on the returned stream.
type StreamOpener interface {
	Open(ctx context.Context, accountID string) (io.ReadCloser, error)
}

// QuotaFetcher fetches the caller's full quota snapshot.
type QuotaFetcher interface {
	QuotaStatus(ctx context.Context) (quota.Status, error)
}

// Options configures a Consumer.
type Options struct {
	// RetryDelay is the pause before reconnecting. Defaults to
	// DefaultRetryDelay; tests shorten it.
	RetryDelay time.Duration

	// OnChange is invoked with the new snapshot after every update.
	// Called from the consumer's event goroutine, so invocations are
	// ordered. Optional.
	OnChange func(quota.Status)

	// OnAdvisory is invoked for quota_low and quota_exhausted events.
	// Optional.
	OnAdvisory func(streaming.AdvisoryEvent)

	Logger zerolog.Logger
}

// Consumer subscribes to the gateway's event stream and folds the events
// into an always-current quota snapshot.
//
// All event handling happens on a single goroutine per subscription, so
// partial merges and full refetches are applied in stream order. The
// snapshot accessors are safe for concurrent use.
type Consumer struct {
	opener  StreamOpener
	fetcher QuotaFetcher
	opts    Options

	mu        sync.Mutex
	status    quota.Status
	state     State
	accountID string
	gen       int
	cancel    context.CancelFunc
}

// NewConsumer creates a consumer. The snapshot starts zero-valued: quota
// figures stay at 0 until the first event or refetch fills them in.
func NewConsumer(opener StreamOpener, fetcher QuotaFetcher, opts Options) *Consumer {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Consumer{
		opener:  opener,
		fetcher: fetcher,
		opts:    opts,
		status:  quota.Zero(),
		state:   StateDisconnected,
	}
}

// Connect subscribes to the event stream for the given billing account.
// Connecting to the account already subscribed is a no-op; a different
// account tears down the old subscription first.
func (c *Consumer) Connect(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accountID == accountID && c.state != StateDisconnected {
		return
	}

	c.teardownLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.accountID = accountID
	c.gen++
	c.state = StateConnecting

	go c.run(ctx, accountID, c.gen)
}

// Disconnect tears down the subscription. Idempotent.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.accountID = ""
}

// teardownLocked cancels the running subscription, if any. Callers hold mu.
func (c *Consumer) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = StateDisconnected
}

// Status returns the current snapshot.
func (c *Consumer) Status() quota.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// State returns the connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// run is the subscription loop: connect, consume until the stream drops,
// wait, reconnect. Exits when ctx is cancelled or the generation goes stale.
func (c *Consumer) run(ctx context.Context, accountID string, gen int) {
	for {
		stream, err := c.opener.Open(ctx, accountID)
		if err == nil {
			c.setState(gen, StateConnected)
			c.consume(ctx, gen, stream)
		} else {
			c.opts.Logger.Debug().Err(err).Str("account_id", accountID).Msg("stream open failed")
		}

		if ctx.Err() != nil {
			return
		}
		if !c.setState(gen, StateRetrying) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.RetryDelay):
		}

		if !c.setState(gen, StateConnecting) {
			return
		}
	}
}

// consume reads frames until the stream errors or ends.
func (c *Consumer) consume(ctx context.Context, gen int, stream io.ReadCloser) {
	defer stream.Close()

	scanner := streaming.NewScanner(stream)
	for {
		data, err := scanner.Next()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				c.opts.Logger.Debug().Err(err).Msg("stream read failed")
			}
			return
		}

		event, err := streaming.ParseEvent(data)
		if err != nil {
			// A bad frame must not kill the subscription.
			c.opts.Logger.Debug().Err(err).Msg("skipping unparseable event")
			continue
		}

		c.handle(ctx, gen, event)
	}
}

func (c *Consumer) handle(ctx context.Context, gen int, event streaming.Event) {
	switch ev := event.(type) {
	case streaming.SyncEvent:
		c.applyDelta(gen, ev.Delta)
	case streaming.HeartbeatEvent:
		c.applyDelta(gen, ev.Delta)
	case streaming.QuotaUpdatedEvent:
		c.refetch(ctx, gen)
	case streaming.AdvisoryEvent:
		if c.opts.OnAdvisory != nil {
			c.opts.OnAdvisory(ev)
		}
	case streaming.ErrorEvent:
		c.opts.Logger.Warn().Str("message", ev.Message).Msg("gateway reported stream error")
	}
}

// applyDelta merges a partial update into the snapshot. Absent fields keep
// their current values.
func (c *Consumer) applyDelta(gen int, delta quota.Delta) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.status = quota.Apply(c.status, delta)
	snapshot := c.status
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(snapshot)
	}
}

// refetch replaces the snapshot wholesale. Runs synchronously on the event
// goroutine so a later sync event cannot be overtaken by the refetch.
func (c *Consumer) refetch(ctx context.Context, gen int) {
	status, err := c.fetcher.QuotaStatus(ctx)
	if err != nil {
		c.opts.Logger.Warn().Err(err).Msg("quota refetch failed, keeping current snapshot")
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(status)
	}
}

// setState transitions the connection state. Returns false when the
// subscription generation is stale (superseded or disconnected).
func (c *Consumer) setState(gen int, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.state = state
	return true
}
