package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

// CandleWriter persists finished candles.
type CandleWriter interface {
	StoreCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, candles models.Series) error
}

// CandlePipeline sits between the kline stream and the candle store.
// Kline updates for the forming candle replace each other; a candle is
// forwarded only once its successor opens. Finished candles are written in
// batches and kept in a bounded buffer while the store is unavailable.
type CandlePipeline struct {
	writer  CandleWriter
	metrics domrepo.Metrics
	logger  *xlogger.Logger
	symbol  string
	tf      domrepo.Timeframe

	batchSize  int
	flushEvery time.Duration
	bufSize    int

	mu      sync.Mutex
	forming *models.Candle
	pending models.Series
	started bool

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type PipelineOption func(*CandlePipeline)

// WithBatchSize sets how many finished candles trigger an early flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *CandlePipeline) {
		if d > 0 {
			p.flushEvery = d
		}
	}
}

// WithBufferSize bounds the candles held while the store fails. Oldest are dropped first.
func WithBufferSize(n int) PipelineOption {
	return func(p *CandlePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewCandlePipeline(writer CandleWriter, symbol string, tf domrepo.Timeframe, metrics domrepo.Metrics, logger *xlogger.Logger, opts ...PipelineOption) *CandlePipeline {
	p := &CandlePipeline{
		writer:     writer,
		metrics:    metrics,
		logger:     logger,
		symbol:     symbol,
		tf:         tf,
		batchSize:  10,
		flushEvery: 30 * time.Second,
		bufSize:    1000,
		flushCh:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of finished candles.
func (p *CandlePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *CandlePipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	backoff := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
		case <-p.flushCh:
		}
		if err := p.Flush(ctx); err != nil {
			p.logger.Warn("candle flush failed", xlogger.Error(err), xlogger.Int("buffered", p.Pending()))
			if backoff < 2*time.Second {
				backoff *= 2
			}
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 50 * time.Millisecond
	}
}

// Stop stops the background loop and writes what is left.
func (p *CandlePipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.Flush(ctx)
}

// Process accepts one kline update.
func (p *CandlePipeline) Process(_ context.Context, c models.Candle) error {
	if err := validateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	switch {
	case p.forming == nil || c.Time.Equal(p.forming.Time):
		p.forming = &c
	case c.Time.Before(p.forming.Time):
		p.mu.Unlock()
		p.metrics.RecordError("pipeline_stale")
		return nil
	default:
		p.pending = append(p.pending, *p.forming)
		p.forming = &c
		p.trimLocked()
	}
	full := len(p.pending) >= p.batchSize
	p.mu.Unlock()

	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush writes all finished candles. On failure they stay buffered.
func (p *CandlePipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := p.writer.StoreCandles(ctx, p.symbol, p.tf, batch); err != nil {
		p.metrics.RecordError("pipeline_flush")
		p.mu.Lock()
		p.pending = append(batch, p.pending...)
		p.trimLocked()
		p.mu.Unlock()
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
	return nil
}

// Pending returns the number of finished candles not yet written.
func (p *CandlePipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *CandlePipeline) trimLocked() {
	if over := len(p.pending) - p.bufSize; over > 0 {
		p.pending = append(models.Series(nil), p.pending[over:]...)
		p.metrics.RecordError("pipeline_buffer_drop")
	}
}

func validateCandle(c models.Candle) error {
	if c.Time.IsZero() {
		return fmt.Errorf("candle time is zero")
	}
	if !c.Finite() {
		return fmt.Errorf("candle at %s has non-finite fields", c.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
