package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/config"
	"SigFuse/pkg/logger"
)

// Ingest fronts the consume loop. Decoded events pass through it before
// scoring; the ingest guard implements it with validation and throttling.
type Ingest interface {
	Process(ctx context.Context, ev *models.RawEvent) error
}

// Pipeline is the consumer loop tying the stages together: it reads raw
// events off the bus, runs dedup, scoring and dispatch, drives the
// aggregation sweep, and pushes fused signals through routing, risk and
// execution. One event failing never stops the loop; failures are logged
// and counted, the loop moves on.
type Pipeline struct {
	cfg        *config.Config
	bus        domrepo.Bus
	dedup      *Deduplicator
	scorer     *Scorer
	dispatcher *Dispatcher
	aggregator *Aggregator
	router     *Router
	executor   *Executor
	directory  domrepo.SymbolDirectory
	metrics    domrepo.Metrics
	logger     *logger.Logger
	front      Ingest
}

// NewPipeline wires the stage components into the loop.
func NewPipeline(
	cfg *config.Config,
	b domrepo.Bus,
	dedup *Deduplicator,
	scorer *Scorer,
	dispatcher *Dispatcher,
	aggregator *Aggregator,
	router *Router,
	executor *Executor,
	directory domrepo.SymbolDirectory,
	metrics domrepo.Metrics,
	lgr *logger.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		bus:        b,
		dedup:      dedup,
		scorer:     scorer,
		dispatcher: dispatcher,
		aggregator: aggregator,
		router:     router,
		executor:   executor,
		directory:  directory,
		metrics:    metrics,
		logger:     lgr,
	}
}

// SetFront installs the ingest stage the consume loop hands decoded events
// to. Must be set before Run; without one, events go straight to Process.
func (p *Pipeline) SetFront(f Ingest) { p.front = f }

// Run starts the consume loop, the sweep ticker, and the directory refresh
// ticker, blocking until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.consumeLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sweepLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.refreshLoop(ctx)
	}()

	wg.Wait()
	return ctx.Err()
}

// Process scores one accepted raw event and queues it for dispatch. It is
// the downstream the ingest guard forwards into.
func (p *Pipeline) Process(ctx context.Context, ev *models.RawEvent) error {
	if p.dedup.Seen(ev) {
		return nil
	}

	info := p.scorer.Score(ev)
	p.logger.Debug("event scored",
		logger.String("source", info.Source.Name),
		logger.String("symbol", ev.Symbol()),
		logger.Float64("score", info.TotalScore),
		logger.String("trigger", info.TriggerReason))

	p.dispatcher.Enqueue(info)
	return nil
}

// ingest routes one decoded event through the front when one is installed.
func (p *Pipeline) ingest(ctx context.Context, ev *models.RawEvent) error {
	if p.front != nil {
		return p.front.Process(ctx, ev)
	}
	return p.Process(ctx, ev)
}

// consumeLoop reads raw events from the bus with a short block so shutdown
// is responsive, and acks each batch after handing it off.
func (p *Pipeline) consumeLoop(ctx context.Context) {
	group := p.cfg.Bus.Group
	consumer := p.cfg.Bus.Consumer

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := p.bus.Read(ctx, bus.TopicRawEvents, group, consumer,
			p.cfg.Bus.ReadCount, p.cfg.Bus.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.metrics.RecordError("bus_read")
			p.logger.Error("bus read failed", logger.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			ids = append(ids, m.ID)

			var ev models.RawEvent
			if err := json.Unmarshal(m.Payload, &ev); err != nil {
				p.metrics.RecordError("event_decode")
				p.logger.Warn("undecodable raw event",
					logger.String("id", m.ID), logger.Error(err))
				continue
			}
			if err := p.ingest(ctx, &ev); err != nil {
				p.metrics.RecordError("event_process")
			}
		}

		if err := p.bus.Ack(ctx, bus.TopicRawEvents, group, ids...); err != nil {
			p.metrics.RecordError("bus_ack")
		}
	}
}

// sweepLoop drains the priority queues and expires aggregation windows on
// the sweep interval.
func (p *Pipeline) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Pipeline.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.tick(ctx, now)
		}
	}
}

// tick is one sweep cycle: drain dispatched events, then finalize elapsed
// windows. An instant-lane event below threshold falls back into the
// aggregation window so it can still corroborate a multi-exchange burst.
func (p *Pipeline) tick(ctx context.Context, now time.Time) {
	for _, d := range p.dispatcher.Drain() {
		if d.Instant && d.Info.ShouldTrigger {
			p.handleFused(ctx, p.dispatcher.ToSuperEvent(d.Info))
			continue
		}
		p.aggregator.Add(d.Info)
	}

	for _, se := range p.aggregator.Sweep(now) {
		p.handleFused(ctx, se)
	}
}

// handleFused pushes one fused signal through routing and execution, and
// mirrors it onto the fused and per-route streams for external consumers.
func (p *Pipeline) handleFused(ctx context.Context, se *models.SuperEvent) {
	if err := p.bus.Publish(ctx, bus.TopicFused, se); err != nil {
		p.metrics.RecordError("fused_publish")
	}

	sig, outcome := p.router.Route(ctx, se)
	if outcome != OutcomeRouted {
		return
	}

	if topic := routeTopic(sig.RouteType); topic != "" {
		if err := p.bus.Publish(ctx, topic, sig); err != nil {
			p.metrics.RecordError("route_publish")
		}
	}

	res := p.executor.Execute(ctx, sig)
	p.logger.Info("signal executed",
		logger.String("route_id", res.RouteID),
		logger.String("symbol", res.Symbol),
		logger.String("venue", res.Venue),
		logger.Bool("success", res.Success),
		logger.Bool("simulated", res.Simulated))
}

// refreshLoop keeps the symbol directory snapshots current.
func (p *Pipeline) refreshLoop(ctx context.Context) {
	if err := p.directory.Refresh(ctx); err != nil {
		p.metrics.RecordError("directory_refresh")
		p.logger.Warn("initial directory refresh failed", logger.Error(err))
	}

	ticker := time.NewTicker(p.cfg.Routing.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.directory.Refresh(ctx); err != nil {
				p.metrics.RecordError("directory_refresh")
				p.logger.Warn("directory refresh failed", logger.Error(err))
			}
		}
	}
}

func routeTopic(rt models.RouteType) string {
	switch rt {
	case models.RouteCEXSpot:
		return bus.TopicRouteCEX
	case models.RouteHLPerp:
		return bus.TopicRouteHL
	case models.RouteDEX:
		return bus.TopicRouteDEX
	default:
		return ""
	}
}
