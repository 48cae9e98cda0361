package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parkingrobot/odd-telemetry/internal/database"
	"github.com/parkingrobot/odd-telemetry/internal/metrics"
	"github.com/parkingrobot/odd-telemetry/internal/router"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits in a batch
	QueueSize     int           // Initial capacity of the sample queue
}

// DefaultWriterConfig returns default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
		QueueSize:     256,
	}
}

// WriterMetrics contains recorder statistics.
type WriterMetrics struct {
	TelemetryInserts  int64
	NavigationInserts int64
	Errors            int64
	Flushes           int64
}

// BatchSender sends a queued batch in one round trip. *pgxpool.Pool
// satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// SessionFunc returns the id of the connection the current state arrived on.
type SessionFunc func() uuid.UUID

type sampleKind int

const (
	sampleTelemetry sampleKind = iota
	sampleNavigation
)

// sample is one published slot value waiting to be recorded.
type sample struct {
	kind       sampleKind
	receivedAt time.Time
	session    uuid.UUID
	telemetry  state.TelemetrySnapshot
	navigation state.NavigationState
}

type telemetryRow struct {
	ReceivedAt time.Time
	SessionID  uuid.UUID
	Speed      float64
	Battery    float64
	PosX       float64
	PosY       float64
	Heading    float64
}

type navigationRow struct {
	ReceivedAt time.Time
	SessionID  uuid.UUID
	Value      int
	Label      string
	SourceTs   string
}

// Recorder subscribes to the telemetry and navigation slots and writes
// every published value to the database.
type Recorder struct {
	cfg     WriterConfig
	logger  *slog.Logger
	view    state.View
	session SessionFunc

	// Samples queued by slot subscribers
	input *router.Queue[sample]

	// Database
	db BatchSender

	// Batching (separate batches per table)
	telemetryBatch  []telemetryRow
	navigationBatch []navigationRow
	batchMu         sync.Mutex
	flushMu         sync.Mutex
	flushTicker     *time.Ticker

	// Subscriptions
	cancels []func()

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewRecorder creates a Recorder reading from view. session may be nil.
func NewRecorder(
	cfg WriterConfig,
	view state.View,
	db BatchSender,
	session SessionFunc,
	logger *slog.Logger,
) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if session == nil {
		session = func() uuid.UUID { return uuid.Nil }
	}
	return &Recorder{
		cfg:             cfg,
		logger:          logger,
		view:            view,
		session:         session,
		input:           router.NewQueue[sample](cfg.QueueSize),
		stopCh:          make(chan struct{}),
		db:              db,
		telemetryBatch:  make([]telemetryRow, 0, cfg.BatchSize),
		navigationBatch: make([]navigationRow, 0, cfg.BatchSize),
	}
}

// Start subscribes to the store and begins writing to the database.
func (w *Recorder) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.subscribe()

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("telemetry recorder started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop unsubscribes, writes what is queued and shuts down.
func (w *Recorder) Stop(ctx context.Context) error {
	w.logger.Info("stopping telemetry recorder")

	for _, cancel := range w.cancels {
		cancel()
	}
	w.cancels = nil
	w.input.Close()
	close(w.stopCh)

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// consumeLoop drains the queue before exiting.
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("telemetry recorder stop timed out", "queued", w.input.Len())
		err = ctx.Err()
	}

	// Final flush
	w.flush(ctx)

	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("telemetry recorder stopped")
	return err
}

// Stats returns current metrics.
func (w *Recorder) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// subscribe registers slot callbacks. The value replayed on subscribe is
// skipped: only values published while recording are written.
func (w *Recorder) subscribe() {
	replayed := false
	w.cancels = append(w.cancels, w.view.Telemetry.Subscribe(func(snap state.TelemetrySnapshot) {
		if !replayed {
			replayed = true
			return
		}
		w.input.Push(sample{
			kind:       sampleTelemetry,
			receivedAt: w.receivedAt(),
			session:    w.session(),
			telemetry:  snap,
		})
	}))

	navReplayed := false
	w.cancels = append(w.cancels, w.view.Navigation.Subscribe(func(nav *state.NavigationState) {
		if !navReplayed {
			navReplayed = true
			return
		}
		if nav == nil {
			return
		}
		w.input.Push(sample{
			kind:       sampleNavigation,
			receivedAt: w.receivedAt(),
			session:    w.session(),
			navigation: *nav,
		})
	}))
}

// receivedAt is the receive time of the message that changed the slot.
func (w *Recorder) receivedAt() time.Time {
	if at := w.view.LastUpdate.Get(); !at.IsZero() {
		return at
	}
	return time.Now()
}

// consumeLoop moves queued samples into batches until the queue is closed
// and empty.
func (w *Recorder) consumeLoop() {
	defer w.wg.Done()

	for {
		s, ok := w.input.Pop()
		if !ok {
			return
		}
		w.handleSample(s)
	}
}

// flushLoop periodically flushes the batches.
func (w *Recorder) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// handleSample transforms and adds a sample to its batch.
func (w *Recorder) handleSample(s sample) {
	w.batchMu.Lock()
	var size int
	switch s.kind {
	case sampleTelemetry:
		w.telemetryBatch = append(w.telemetryBatch, transformTelemetry(s))
		size = len(w.telemetryBatch)
	case sampleNavigation:
		w.navigationBatch = append(w.navigationBatch, transformNavigation(s))
		size = len(w.navigationBatch)
	}
	w.batchMu.Unlock()

	if size >= w.cfg.BatchSize {
		w.flush(w.ctx)
	}
}

func transformTelemetry(s sample) telemetryRow {
	return telemetryRow{
		ReceivedAt: s.receivedAt,
		SessionID:  s.session,
		Speed:      s.telemetry.Speed,
		Battery:    s.telemetry.Battery,
		PosX:       s.telemetry.Position.X,
		PosY:       s.telemetry.Position.Y,
		Heading:    s.telemetry.Heading,
	}
}

func transformNavigation(s sample) navigationRow {
	return navigationRow{
		ReceivedAt: s.receivedAt,
		SessionID:  s.session,
		Value:      s.navigation.Value,
		Label:      s.navigation.Label(),
		SourceTs:   s.navigation.Timestamp,
	}
}

// flush writes the current batches to the database.
func (w *Recorder) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	telemetry := w.telemetryBatch
	navigation := w.navigationBatch
	if len(telemetry) == 0 && len(navigation) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batches
	w.telemetryBatch = make([]telemetryRow, 0, w.cfg.BatchSize)
	w.navigationBatch = make([]navigationRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, telemetry, navigation); err != nil {
		w.logger.Error("batch insert failed",
			"error", err,
			"telemetry", len(telemetry),
			"navigation", len(navigation),
		)
		metrics.RecorderRows(database.TelemetryTable, "error", len(telemetry))
		metrics.RecorderRows(database.NavigationTable, "error", len(navigation))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	metrics.RecorderRows(database.TelemetryTable, "ok", len(telemetry))
	metrics.RecorderRows(database.NavigationTable, "ok", len(navigation))

	w.batchMu.Lock()
	w.metrics.TelemetryInserts += int64(len(telemetry))
	w.metrics.NavigationInserts += int64(len(navigation))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed recorder batch",
		"telemetry", len(telemetry),
		"navigation", len(navigation),
		"duration", time.Since(start),
	)
}

// batchInsert inserts both batches with one pgx.Batch round trip.
func (w *Recorder) batchInsert(ctx context.Context, telemetry []telemetryRow, navigation []navigationRow) error {
	batch := &pgx.Batch{}
	for _, r := range telemetry {
		batch.Queue(`
			INSERT INTO `+database.TelemetryTable+` (received_at, session_id, speed, battery, pos_x, pos_y, heading)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ReceivedAt, r.SessionID, r.Speed, r.Battery, r.PosX, r.PosY, r.Heading)
	}
	for _, r := range navigation {
		batch.Queue(`
			INSERT INTO `+database.NavigationTable+` (received_at, session_id, value, label, source_ts)
			VALUES ($1, $2, $3, $4, $5)
		`, r.ReceivedAt, r.SessionID, r.Value, r.Label, r.SourceTs)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
