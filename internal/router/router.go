package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/metrics"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// Router decodes raw frames from the Connection Manager and publishes them
// into the state store. It implements connection.MessageHandler.
type Router interface {
	// Start begins routing queued messages.
	Start(ctx context.Context) error

	// Stop routes what is already queued, then shuts down.
	Stop(ctx context.Context) error

	// HandleMessage queues a frame for routing. It never blocks.
	HandleMessage(msg connection.RawMessage)

	// Route decodes and applies one frame synchronously.
	Route(msg connection.RawMessage)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// Option customizes a Router.
type Option func(*router)

// WithClock replaces the clock used for command feedback timestamps and
// frames without a receive time.
func WithClock(now func() time.Time) Option {
	return func(r *router) {
		r.now = now
	}
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	store  *state.Store
	logger *slog.Logger
	now    func() time.Time

	// Input from Connection Manager
	queue *Queue[connection.RawMessage]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
}

// NewRouter creates a new Message Router writing into store.
func NewRouter(cfg RouterConfig, store *state.Store, logger *slog.Logger, opts ...Option) Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &router{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		queue:  NewQueue[connection.RawMessage](cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	// Cancelling the parent context stops intake as well.
	go func() {
		<-r.ctx.Done()
		r.queue.Close()
	}()

	r.logger.Info("message router started", "queue_size", r.cfg.QueueSize)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	r.queue.Close()
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
		r.logger.Info("message router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out", "queued", r.queue.Len())
		return ctx.Err()
	}
}

// HandleMessage queues a frame for the routing goroutine.
func (r *router) HandleMessage(msg connection.RawMessage) {
	if !r.queue.Push(msg) {
		r.logger.Debug("router stopped, dropping message")
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
		Queue:            r.queue.Stats(),
	}
}

// routeLoop is the main routing goroutine. It exits once the queue is
// closed and drained.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		raw, ok := r.queue.Pop()
		if !ok {
			return
		}
		r.Route(raw)
	}
}

// Route decodes one frame, updates the matching slot, then records it in
// the message log. Decode failures are logged and counted only.
func (r *router) Route(raw connection.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	msg, err := Decode(raw.Data)
	if err != nil {
		r.logger.Warn("error processing message", "error", err, "session", raw.SessionID)
		metrics.DecodeError(reasonOf(err))
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	r.logger.Debug("received", "variant", msg.Variant(), "data", string(raw.Data))

	at := raw.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}

	r.store.LastUpdate.Set(at)
	r.apply(msg)

	r.store.Log.Append(state.LogEntry{Time: at, Data: compact(raw.Data)})
	metrics.SetLogLength(r.store.Log.Len())
	metrics.MessageRouted(msg.Variant())

	r.mu.Lock()
	r.routed++
	if _, ok := msg.(Unknown); ok {
		r.unknownMessages++
	}
	r.mu.Unlock()
}

func (r *router) apply(msg Message) {
	switch m := msg.(type) {
	case Telemetry:
		r.store.Telemetry.Set(m.Snapshot)

	case Welcome:
		r.logger.Info("bridge says hello", "message", m.Text)

	case StateUpdate:
		r.store.Vehicle.Set(m.Vehicle)

	case CommandResponse:
		r.store.Feedback.Set(&state.CommandFeedback{
			Command:   m.Command,
			Success:   m.Success,
			Message:   m.Message,
			Timestamp: r.now(),
		})
		if !m.Success {
			r.logger.Warn("command failed", "command", m.Command, "message", m.Message)
		}

	case NavigationUpdate:
		nav := m.State
		r.store.Navigation.Set(&nav)

	case LegacyTelemetry:
		r.store.Telemetry.Set(m.Snapshot)

	case CoordinatesUpdate:
		coords := m.Coordinates
		r.store.Coordinates.Set(&coords)

	case Unknown:
		r.logger.Debug("no route for message", "type", m.Type, "key", m.Key)
	}
}
