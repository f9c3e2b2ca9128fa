package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/internal/service/ratelimit"
)

// Proc is the downstream the guard hands accepted events to.
type Proc interface {
	Process(ctx context.Context, ev *models.RawEvent) error
}

// IngestGuard sits between the raw event stream and the scoring pipeline.
// It validates the envelope, throttles noisy sources per source name, and
// buffers events when the downstream errors so ingest hiccups do not drop
// a whole burst.
type IngestGuard struct {
	proc    Proc
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	maxRPS  int
	bufSize int
	bufCh   chan *models.RawEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type GuardOption func(*IngestGuard)

// WithMaxSourceRPS caps accepted events per second per source.
func WithMaxSourceRPS(n int) GuardOption {
	return func(g *IngestGuard) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used when downstream is unavailable.
func WithBufferSize(n int) GuardOption {
	return func(g *IngestGuard) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// NewIngestGuard creates the ingest guard.
func NewIngestGuard(proc Proc, metrics domrepo.Metrics, opts ...GuardOption) *IngestGuard {
	g := &IngestGuard{
		proc:    proc,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan *models.RawEvent, g.bufSize)
	return g
}

// Start launches the background retry flusher for buffered events.
func (g *IngestGuard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-g.stopCh:
				return
			case ev := <-g.bufCh:
				if ev == nil {
					continue
				}
				if err := g.proc.Process(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					g.metrics.RecordError("guard_flush")
					time.Sleep(backoff)
					select {
					case g.bufCh <- ev:
					default:
						g.metrics.RecordError("guard_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop halts the retry flusher.
func (g *IngestGuard) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Process validates and throttles one raw event, forwarding it downstream
// and buffering on downstream failure. Throttled events are dropped, not
// errors.
func (g *IngestGuard) Process(ctx context.Context, ev *models.RawEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		g.metrics.RecordError("guard_validate")
		return err
	}
	if !g.limiter.Allow(ev.Source, float64(g.maxRPS), float64(g.maxRPS)) {
		g.metrics.RecordEvent("guard", "throttled")
		return nil
	}

	if err := g.proc.Process(ctx, ev); err != nil {
		g.metrics.RecordError("guard_process")
		select {
		case g.bufCh <- ev:
			g.metrics.RecordGauge("guard_buffer_depth", float64(len(g.bufCh)))
		default:
			g.metrics.RecordError("guard_buffer_full")
		}
		return fmt.Errorf("ingest downstream: %w", err)
	}
	g.metrics.RecordLatency("guard_process", time.Since(start).Seconds())
	return nil
}

func validateEvent(ev *models.RawEvent) error {
	if ev == nil {
		return fmt.Errorf("event nil")
	}
	if ev.Source == "" {
		return fmt.Errorf("source empty")
	}
	if len(ev.Symbols) == 0 && ev.RawText == "" {
		return fmt.Errorf("no symbols or text")
	}
	if ev.DetectedAt <= 0 {
		return fmt.Errorf("detected_at invalid")
	}
	return nil
}
