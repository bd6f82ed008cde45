// Package recorder persists reconciled quotes to PostgreSQL.
//
// Record never blocks the caller: rows go through a buffered channel and
// are dropped (and counted) when it is full. A consumer goroutine batches
// rows and inserts them with pgx.Batch, flushing on size or interval.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/livequote/internal/metrics"
	"github.com/rickgao/livequote/internal/model"
)

// BatchSender is satisfied by *pgxpool.Pool.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Config configures a Recorder.
type Config struct {
	SessionID     uuid.UUID
	Channel       string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Tick is one reconciled quote update.
type Tick struct {
	Quote      model.Quote
	Flash      model.FlashDirection
	Generation uint64
}

// Stats holds recorder counters.
type Stats struct {
	Inserts int64
	Dropped int64
	Errors  int64
	Flushes int64
}

// quoteRow is a tick flattened for insertion.
type quoteRow struct {
	Symbol        string
	Price         string
	Change        string
	PercentChange string
	Volume        *string
	Flash         string
	Generation    int64
	ReceivedAt    time.Time
}

// Recorder writes ticks to the quote_ticks table.
type Recorder struct {
	cfg    Config
	db     BatchSender
	logger *slog.Logger

	input chan quoteRow

	// Batching
	batch   []quoteRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// New creates a recorder. Call Start before Record.
func New(cfg Config, db BatchSender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan quoteRow, cfg.BufferSize),
		batch:  make([]quoteRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming ticks and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.consumeLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered ticks and performs a final flush.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
		return ctx.Err()
	}

	// Drain whatever arrived after the consumer exited
drain:
	for {
		select {
		case row := <-r.input:
			r.append(row)
		default:
			break drain
		}
	}

	r.flush(ctx)

	r.logger.Info("recorder stopped", "inserts", r.Stats().Inserts)
	return nil
}

// Record queues a tick. Returns false if the buffer was full and the tick
// was dropped.
func (r *Recorder) Record(t Tick) bool {
	select {
	case r.input <- transform(t):
		return true
	default:
		r.statsMu.Lock()
		r.stats.Dropped++
		r.statsMu.Unlock()
		metrics.RecorderDropped.Inc()
		return false
	}
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// consumeLoop accumulates batches and flushes on size or interval.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case row := <-r.input:
			if r.append(row) {
				r.flush(r.ctx)
			}
		case <-ticker.C:
			r.flush(r.ctx)
		}
	}
}

// append adds a row to the batch and reports whether it is full.
func (r *Recorder) append(row quoteRow) bool {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	r.batch = append(r.batch, row)
	return len(r.batch) >= r.cfg.BatchSize
}

func transform(t Tick) quoteRow {
	row := quoteRow{
		Symbol:        t.Quote.Symbol,
		Price:         t.Quote.Price.String(),
		Change:        t.Quote.Change.String(),
		PercentChange: t.Quote.PercentChange.String(),
		Flash:         t.Flash.String(),
		Generation:    int64(t.Generation),
		ReceivedAt:    t.Quote.UpdatedAt,
	}
	if t.Quote.Volume.Valid {
		v := t.Quote.Volume.Decimal.String()
		row.Volume = &v
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now()
	}
	return row
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]quoteRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	if err := r.batchInsert(ctx, batch); err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.statsMu.Lock()
		r.stats.Errors++
		r.statsMu.Unlock()
		return
	}

	elapsed := time.Since(start)
	metrics.RecorderWrites.Add(float64(len(batch)))
	metrics.RecorderFlushDuration.Observe(elapsed.Seconds())

	r.statsMu.Lock()
	r.stats.Inserts += int64(len(batch))
	r.stats.Flushes++
	r.statsMu.Unlock()

	r.logger.Debug("flushed quotes",
		"count", len(batch),
		"duration", elapsed,
	)
}

// batchInsert inserts rows using pgx.Batch.
func (r *Recorder) batchInsert(ctx context.Context, rows []quoteRow) error {
	sessionID := r.cfg.SessionID.String()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO quote_ticks (session_id, channel, symbol, price, change, percent_change, volume, flash, generation, received_at)
			VALUES ($1::uuid, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10)
		`, sessionID, r.cfg.Channel, row.Symbol, row.Price, row.Change, row.PercentChange, row.Volume, row.Flash, row.Generation, row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}
