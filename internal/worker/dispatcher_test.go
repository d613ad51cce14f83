package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
	"github.com/masjidconnect/reminder-service/internal/metrics"
)

// fakeTransport answers per address and tracks concurrency.
type fakeTransport struct {
	mu       sync.Mutex
	answers  map[string][]error
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	panicOn  string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{answers: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeTransport) Send(ctx context.Context, to domain.Recipient, msg domain.Message) (*domain.SendResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	call := f.calls[to.Address]
	f.calls[to.Address]++
	var err error
	if answers := f.answers[to.Address]; call < len(answers) {
		err = answers[call]
	}
	f.mu.Unlock()

	if to.Address == f.panicOn {
		panic("transport exploded")
	}

	if err != nil {
		return nil, err
	}
	return &domain.SendResult{MessageID: to.Address}, nil
}

func (f *fakeTransport) callCount(addr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[addr]
}

type recordingDeactivator struct {
	mu      sync.Mutex
	batches [][]uuid.UUID
	err     error
}

func (r *recordingDeactivator) Deactivate(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]uuid.UUID(nil), ids...))
	return r.err
}

func recipients(n int) []domain.Recipient {
	out := make([]domain.Recipient, n)
	for i := range out {
		id := uuid.New()
		out[i] = domain.Recipient{SubscriberID: id, Channel: domain.ChannelPush, Address: id.String()}
	}
	return out
}

func newTestDispatcher(t domain.Transport, d Deactivator, cfg config.DispatchConfig) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewDispatcher(t, nil, d, logger, metrics.New(prometheus.NewRegistry()), cfg,
		config.RetryConfig{MaxCount: 2, BaseDelay: time.Millisecond})
}

func TestDispatcher_AllSucceed(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(25)

	res := newTestDispatcher(transport, nil, config.DispatchConfig{Concurrency: 10}).
		Dispatch(context.Background(), rs, domain.Message{Body: "Fajr"})

	assert.Equal(t, 25, res.Total)
	assert.Equal(t, 25, res.Successful)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, res.Succeeded, 25)
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(10)
	transport.answers[rs[3].Address] = []error{errors.New("connection refused")}
	transport.panicOn = rs[7].Address

	res := newTestDispatcher(transport, nil, config.DispatchConfig{Concurrency: 4}).
		Dispatch(context.Background(), rs, domain.Message{})

	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 8, res.Successful)
	assert.Equal(t, 2, res.Failed)
	for i, r := range rs {
		assert.Equal(t, 1, transport.callCount(r.Address), "recipient %d attempted once", i)
	}
	assert.Contains(t, res.Results[7].Error, "panic")
	assert.NotContains(t, res.Succeeded, rs[3].SubscriberID)
}

func TestDispatcher_BoundedConcurrency(t *testing.T) {
	transport := newFakeTransport()
	transport.delay = 5 * time.Millisecond

	newTestDispatcher(transport, nil, config.DispatchConfig{Concurrency: 3}).
		Dispatch(context.Background(), recipients(30), domain.Message{})

	assert.LessOrEqual(t, transport.peak.Load(), int32(3))
	assert.Greater(t, transport.peak.Load(), int32(0))
}

func TestDispatcher_RetriesRetryableErrors(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(2)
	transport.answers[rs[0].Address] = []error{
		domain.NewProviderError(503, "busy", true),
		domain.NewProviderError(429, "slow down", true),
	}
	transport.answers[rs[1].Address] = []error{
		domain.NewProviderError(500, "down", true),
		domain.NewProviderError(500, "down", true),
		domain.NewProviderError(500, "down", true),
		domain.NewProviderError(500, "down", true),
	}

	res := newTestDispatcher(transport, nil, config.DispatchConfig{Concurrency: 2}).
		Dispatch(context.Background(), rs, domain.Message{})

	assert.True(t, res.Results[0].Success)
	assert.Equal(t, 3, res.Results[0].Attempts)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, 3, transport.callCount(rs[1].Address), "initial attempt plus two retries")
}

func TestDispatcher_NonRetryableNotRetried(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(1)
	transport.answers[rs[0].Address] = []error{domain.NewProviderError(400, "bad number", false)}

	res := newTestDispatcher(transport, nil, config.DispatchConfig{}).
		Dispatch(context.Background(), rs, domain.Message{})

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, transport.callCount(rs[0].Address))
	assert.Empty(t, res.Expired)
}

func TestDispatcher_GoneRecipientsDeactivatedInBatches(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(7)
	gone := map[uuid.UUID]bool{}
	for _, i := range []int{0, 2, 3, 5, 6} {
		transport.answers[rs[i].Address] = []error{domain.NewProviderError(410, "expired", false)}
		gone[rs[i].SubscriberID] = true
	}
	deactivator := &recordingDeactivator{}

	res := newTestDispatcher(transport, deactivator, config.DispatchConfig{Concurrency: 3, UpdateBatchSize: 2}).
		Dispatch(context.Background(), rs, domain.Message{})

	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 5, res.Failed)
	assert.Len(t, res.Expired, 5)

	require.Len(t, deactivator.batches, 3)
	var all []uuid.UUID
	for _, b := range deactivator.batches {
		assert.LessOrEqual(t, len(b), 2)
		all = append(all, b...)
	}
	assert.Len(t, all, 5)
	for _, id := range all {
		assert.True(t, gone[id])
	}
	for _, i := range []int{0, 2} {
		assert.Equal(t, 1, transport.callCount(rs[i].Address), "gone endpoints are not retried")
	}
}

func TestDispatcher_DeactivationErrorDoesNotFailBatch(t *testing.T) {
	transport := newFakeTransport()
	rs := recipients(2)
	transport.answers[rs[0].Address] = []error{domain.NewProviderError(410, "expired", false)}

	res := newTestDispatcher(transport, &recordingDeactivator{err: errors.New("db down")}, config.DispatchConfig{}).
		Dispatch(context.Background(), rs, domain.Message{})

	assert.Equal(t, 1, res.Successful)
	assert.Len(t, res.Expired, 1)
}

func TestDispatcher_Empty(t *testing.T) {
	res := newTestDispatcher(newFakeTransport(), nil, config.DispatchConfig{}).
		Dispatch(context.Background(), nil, domain.Message{})

	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Succeeded)
}

func TestForEachChunk(t *testing.T) {
	var sizes []int
	err := ForEachChunk([]int{1, 2, 3, 4, 5}, 2, func(c []int) error {
		sizes = append(sizes, len(c))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	calls := 0
	err = ForEachChunk([]int{1, 2, 3}, 1, func(c []int) error {
		calls++
		return errors.New("stop")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	d := &Dispatcher{retry: config.RetryConfig{BaseDelay: time.Second}}

	assert.Equal(t, time.Second, d.calculateBackoff(1))
	assert.Equal(t, 4*time.Second, d.calculateBackoff(3))
	assert.Equal(t, maxBackoff, d.calculateBackoff(10))
}
