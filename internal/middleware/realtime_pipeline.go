package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeDeck/internal/domain/models"
	domrepo "TradeDeck/internal/domain/repository"
	"TradeDeck/internal/service/ratelimit"
)

// PricePipeline sits between the event stream and the tick store.
// It validates and throttles price updates per symbol, batches them,
// and flushes batches to the store in the background.
type PricePipeline struct {
	ticks   domrepo.TickStore
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter

	maxRPS    int
	batchSz   int
	flushTO   time.Duration
	inCh      chan *models.PriceUpdateEvent
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	transform func(*models.PriceUpdateEvent) *models.PriceUpdateEvent
}

type PipelineOption func(*PricePipeline)

// WithMaxRPS sets the max accepted price updates per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *PricePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBatchSize sets how many ticks accumulate before a flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *PricePipeline) {
		if n > 0 {
			p.batchSz = n
		}
	}
}

// WithFlushTimeout sets the max age of a partial batch before it flushes.
func WithFlushTimeout(d time.Duration) PipelineOption {
	return func(p *PricePipeline) {
		if d > 0 {
			p.flushTO = d
		}
	}
}

// WithTransform sets a transformation hook to normalize tick format.
func WithTransform(fn func(*models.PriceUpdateEvent) *models.PriceUpdateEvent) PipelineOption {
	return func(p *PricePipeline) { p.transform = fn }
}

// NewPricePipeline creates a new pipeline.
func NewPricePipeline(ticks domrepo.TickStore, metrics domrepo.Metrics, opts ...PipelineOption) *PricePipeline {
	p := &PricePipeline{
		ticks:   ticks,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		batchSz: 200,
		flushTO: time.Second,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.inCh = make(chan *models.PriceUpdateEvent, p.batchSz*4)
	return p
}

// Start launches the background batcher.
func (p *PricePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop stops the background batcher. Buffered ticks not yet flushed are lost.
func (p *PricePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and throttles a tick, then queues it for batching.
// Throttled and overflowing ticks are dropped; history is best-effort.
func (p *PricePipeline) Process(ctx context.Context, e *models.PriceUpdateEvent) error {
	if e == nil {
		return fmt.Errorf("price update is nil")
	}
	if err := e.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		e = p.transform(e)
		if err := e.Validate(); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.limiter.Allow(e.StockCode, float64(p.maxRPS), float64(p.maxRPS)) {
		p.metrics.RecordEventDiscarded(string(models.EventPriceUpdate), "throttled")
		return nil
	}

	select {
	case p.inCh <- e:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
	return nil
}

func (p *PricePipeline) run(ctx context.Context) {
	batch := make([]*models.PriceUpdateEvent, 0, p.batchSz)
	ticker := time.NewTicker(p.flushTO)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := p.ticks.StoreBatch(ctx, batch); err != nil {
			p.metrics.RecordError("pipeline_flush")
		} else {
			p.metrics.RecordLatency("tick_flush", time.Since(start).Seconds())
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-p.stopCh:
			flush()
			return
		case <-ticker.C:
			flush()
		case e := <-p.inCh:
			if e == nil {
				continue
			}
			batch = append(batch, e)
			if len(batch) >= p.batchSz {
				flush()
			}
		}
	}
}
