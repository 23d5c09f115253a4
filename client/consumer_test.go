package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/streaming"
	"github.com/rs/zerolog"
)

// fakeOpener hands out one in-memory pipe per subscription. Cancelling the
// open context unblocks reads, matching the StreamOpener contract.
type fakeOpener struct {
	mu       sync.Mutex
	failures int // fail this many opens before succeeding
	opens    int
	writers  chan *io.PipeWriter
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{writers: make(chan *io.PipeWriter, 8)}
}

func (f *fakeOpener) Open(ctx context.Context, accountID string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opens++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return nil, errors.New("gateway unavailable")
	}

	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pr.CloseWithError(ctx.Err())
	}()
	f.writers <- pw
	return pr, nil
}

func (f *fakeOpener) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// connection returns the writer side of the next accepted subscription.
func (f *fakeOpener) connection(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-f.writers:
		return pw
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription was opened")
		return nil
	}
}

// fakeFetcher serves a scripted snapshot for refetches.
type fakeFetcher struct {
	mu     sync.Mutex
	status quota.Status
	err    error
	calls  int
}

func (f *fakeFetcher) QuotaStatus(context.Context) (quota.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type consumerEnv struct {
	consumer *Consumer
	opener   *fakeOpener
	fetcher  *fakeFetcher
	changes  chan quota.Status
	advisory chan streaming.AdvisoryEvent
}

func newConsumerEnv(t *testing.T, retryDelay time.Duration) *consumerEnv {
	t.Helper()
	env := &consumerEnv{
		opener:   newFakeOpener(),
		fetcher:  &fakeFetcher{},
		changes:  make(chan quota.Status, 16),
		advisory: make(chan streaming.AdvisoryEvent, 16),
	}
	env.consumer = NewConsumer(env.opener, env.fetcher, Options{
		RetryDelay: retryDelay,
		OnChange:   func(s quota.Status) { env.changes <- s },
		OnAdvisory: func(ev streaming.AdvisoryEvent) { env.advisory <- ev },
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(env.consumer.Disconnect)
	return env
}

func (env *consumerEnv) nextChange(t *testing.T) quota.Status {
	t.Helper()
	select {
	case s := <-env.changes:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot change arrived")
		return quota.Status{}
	}
}

func send(t *testing.T, pw *io.PipeWriter, frames ...string) {
	t.Helper()
	for _, frame := range frames {
		if _, err := io.WriteString(pw, frame); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConsumer_StartsZeroValued(t *testing.T) {
	env := newConsumerEnv(t, time.Second)

	got := env.consumer.Status()
	if got != quota.Zero() {
		t.Errorf("initial status = %+v, want zero-valued defaults", got)
	}
	if got.MonthlyQuota != 0 || got.DailyQuota != 0 {
		t.Errorf("initial quotas = %d/%d, want 0/0 before any event", got.DailyQuota, got.MonthlyQuota)
	}
	if !got.IsDailyExhausted() {
		t.Error("IsDailyExhausted = false before any event, want true for zero remaining")
	}
	if got := env.consumer.State(); got != StateDisconnected {
		t.Errorf("initial state = %v, want disconnected", got)
	}
}

func TestConsumer_PartialEventsMergeIntoSnapshot(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	send(t, pw, "data: {\"type\":\"sync\",\"quota_used\":120,\"quota_remaining\":380}\n\n")
	first := env.nextChange(t)
	if first.MonthlyUsed != 120 || first.MonthlyRemaining != 380 {
		t.Errorf("after sync: used/remaining = %d/%d, want 120/380", first.MonthlyUsed, first.MonthlyRemaining)
	}

	send(t, pw, "data: {\"type\":\"heartbeat\",\"balance\":7.25}\n\n")
	second := env.nextChange(t)
	if second.Balance != 7.25 {
		t.Errorf("after heartbeat: balance = %v, want 7.25", second.Balance)
	}
	if second.MonthlyUsed != 120 {
		t.Errorf("heartbeat without quota_used clobbered it: %d, want 120", second.MonthlyUsed)
	}
	if second.DailyQuota != 0 {
		t.Errorf("untouched field changed: DailyQuota = %d, want initial 0", second.DailyQuota)
	}
}

func TestConsumer_QuotaUpdatedRefetchesBeforeLaterEvents(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.fetcher.status = quota.Status{
		MonthlyQuota: 1000, MonthlyUsed: 600, MonthlyRemaining: 400,
		CurrentGroup: "pro", Allowed: true,
	}

	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	// The refetch must land before the trailing sync is applied.
	send(t, pw,
		"data: {\"type\":\"quota_updated\"}\n\n",
		"data: {\"type\":\"sync\",\"quota_used\":650}\n\n",
	)

	refetched := env.nextChange(t)
	if refetched.MonthlyUsed != 600 || refetched.CurrentGroup != "pro" {
		t.Errorf("refetched = %+v, want the fetcher's snapshot", refetched)
	}

	merged := env.nextChange(t)
	if merged.MonthlyUsed != 650 {
		t.Errorf("after sync: MonthlyUsed = %d, want 650 applied on refetched base", merged.MonthlyUsed)
	}
	if merged.MonthlyQuota != 1000 || merged.CurrentGroup != "pro" {
		t.Errorf("sync clobbered refetched fields: %+v", merged)
	}
	if env.fetcher.callCount() != 1 {
		t.Errorf("refetch count = %d, want 1", env.fetcher.callCount())
	}
}

func TestConsumer_RefetchFailureKeepsSnapshot(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.fetcher.err = errors.New("gateway 500")

	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	send(t, pw,
		"data: {\"type\":\"sync\",\"quota_used\":42}\n\n",
		"data: {\"type\":\"quota_updated\"}\n\n",
		"data: {\"type\":\"sync\",\"quota_used\":43}\n\n",
	)

	env.nextChange(t)
	after := env.nextChange(t)
	if after.MonthlyUsed != 43 {
		t.Errorf("MonthlyUsed = %d, want 43 (failed refetch must not reset)", after.MonthlyUsed)
	}
}

func TestConsumer_UnparseableFrameDoesNotKillSubscription(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	send(t, pw,
		"data: not json at all\n\n",
		"data: {\"no_type\":true}\n\n",
		"data: {\"type\":\"sync\",\"quota_used\":9}\n\n",
	)

	got := env.nextChange(t)
	if got.MonthlyUsed != 9 {
		t.Errorf("MonthlyUsed = %d, want 9 after skipping bad frames", got.MonthlyUsed)
	}
	if env.opener.openCount() != 1 {
		t.Errorf("opens = %d, want 1 (bad frames must not reconnect)", env.opener.openCount())
	}
}

func TestConsumer_AdvisoriesReachCallback(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	send(t, pw, "data: {\"type\":\"quota_low\",\"quota_remaining\":50}\n\n")

	select {
	case ev := <-env.advisory:
		if ev.Kind != streaming.TypeQuotaLow {
			t.Errorf("advisory kind = %q, want %q", ev.Kind, streaming.TypeQuotaLow)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("advisory never delivered")
	}
}

func TestConsumer_DroppedStreamReconnects(t *testing.T) {
	env := newConsumerEnv(t, 10*time.Millisecond)
	env.consumer.Connect("acc-1")
	pw := env.opener.connection(t)

	send(t, pw, "data: {\"type\":\"sync\",\"quota_used\":5}\n\n")
	env.nextChange(t)

	pw.Close()
	waitFor(t, func() bool { return env.opener.openCount() == 2 }, "no reconnect after stream drop")
	waitFor(t, func() bool { return env.consumer.State() == StateConnected }, "not connected after reconnect")

	// The snapshot survives the reconnect.
	if got := env.consumer.Status(); got.MonthlyUsed != 5 {
		t.Errorf("MonthlyUsed = %d, want 5 preserved across reconnect", got.MonthlyUsed)
	}
}

func TestConsumer_DisconnectCancelsPendingRetry(t *testing.T) {
	env := newConsumerEnv(t, 30*time.Millisecond)
	env.opener.failures = 100

	env.consumer.Connect("acc-1")
	waitFor(t, func() bool { return env.consumer.State() == StateRetrying }, "never entered retrying")

	opens := env.opener.openCount()
	env.consumer.Disconnect()

	time.Sleep(100 * time.Millisecond)
	if got := env.opener.openCount(); got != opens {
		t.Errorf("opens after disconnect = %d, want %d (retry must be cancelled)", got, opens)
	}
	if got := env.consumer.State(); got != StateDisconnected {
		t.Errorf("state = %v, want disconnected", got)
	}
}

func TestConsumer_ConnectSameAccountIsNoop(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	env.opener.connection(t)

	env.consumer.Connect("acc-1")

	time.Sleep(20 * time.Millisecond)
	if got := env.opener.openCount(); got != 1 {
		t.Errorf("opens = %d, want 1 (same-account connect is a no-op)", got)
	}
}

func TestConsumer_ConnectDifferentAccountResubscribes(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	env.opener.connection(t)

	env.consumer.Connect("acc-2")
	env.opener.connection(t)

	waitFor(t, func() bool { return env.opener.openCount() == 2 }, "no new subscription for new account")
	waitFor(t, func() bool { return env.consumer.State() == StateConnected }, "not connected on new account")
}

func TestConsumer_DisconnectIsIdempotent(t *testing.T) {
	env := newConsumerEnv(t, time.Second)
	env.consumer.Connect("acc-1")
	env.opener.connection(t)

	env.consumer.Disconnect()
	env.consumer.Disconnect()

	if got := env.consumer.State(); got != StateDisconnected {
		t.Errorf("state = %v, want disconnected", got)
	}
}
