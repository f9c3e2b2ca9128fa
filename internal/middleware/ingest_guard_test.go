package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigFuse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string, string)    {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordScore(string, float64)   {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordGauge(string, float64)   {}

type recordingProc struct {
	mu   sync.Mutex
	got  []*models.RawEvent
	fail bool
}

func (p *recordingProc) Process(_ context.Context, ev *models.RawEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream down")
	}
	p.got = append(p.got, ev)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func (p *recordingProc) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
}

func validRaw(source string) *models.RawEvent {
	return &models.RawEvent{
		Source:     source,
		Symbols:    []string{"BTC"},
		RawText:    "BTC will be listed",
		EventType:  models.EventListing,
		DetectedAt: time.Now().UnixMilli(),
	}
}

func TestGuardForwardsValidEvents(t *testing.T) {
	proc := &recordingProc{}
	g := NewIngestGuard(proc, nopMetrics{})

	require.NoError(t, g.Process(context.Background(), validRaw("okx_announcement")))
	assert.Equal(t, 1, proc.count())
}

func TestGuardRejectsMalformedEnvelopes(t *testing.T) {
	proc := &recordingProc{}
	g := NewIngestGuard(proc, nopMetrics{})
	ctx := context.Background()

	assert.Error(t, g.Process(ctx, nil))

	noSource := validRaw("")
	assert.Error(t, g.Process(ctx, noSource))

	empty := validRaw("okx_announcement")
	empty.Symbols = nil
	empty.RawText = ""
	assert.Error(t, g.Process(ctx, empty))

	stale := validRaw("okx_announcement")
	stale.DetectedAt = 0
	assert.Error(t, g.Process(ctx, stale))

	assert.Zero(t, proc.count())
}

func TestGuardThrottlesPerSource(t *testing.T) {
	proc := &recordingProc{}
	g := NewIngestGuard(proc, nopMetrics{}, WithMaxSourceRPS(3))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		// Throttled events drop silently; they are not errors.
		require.NoError(t, g.Process(ctx, validRaw("spammy_scraper")))
	}
	forwarded := proc.count()
	assert.GreaterOrEqual(t, forwarded, 3)
	assert.Less(t, forwarded, 10)

	// A different source has its own bucket.
	require.NoError(t, g.Process(ctx, validRaw("okx_announcement")))
	assert.Equal(t, forwarded+1, proc.count())
}

func TestGuardBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordingProc{}
	proc.setFail(true)
	g := NewIngestGuard(proc, nopMetrics{}, WithBufferSize(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, g.Process(ctx, validRaw("okx_announcement")))
	assert.Zero(t, proc.count())

	// Once downstream recovers, the flusher replays the buffered event.
	proc.setFail(false)
	g.Start(ctx)
	defer g.Stop()

	assert.Eventually(t, func() bool { return proc.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}
