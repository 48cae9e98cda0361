package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parkingrobot/odd-telemetry/internal/metrics"
	"github.com/parkingrobot/odd-telemetry/internal/state"
)

// Manager owns the bridge connection and its reconnect timer.
//
// Connect, Send and Disconnect never block on the network; outcomes are
// published through the connection state slot. Subscribers of that slot
// are notified synchronously, without mu held, so they may call State,
// Stats or ReconnectPending. They must not call Connect or Disconnect from
// the callback.
type Manager struct {
	cfg     ManagerConfig
	states  *state.Slot[state.ConnectionState]
	handler MessageHandler
	policy  ReconnectPolicy
	dial    DialFunc
	logger  *slog.Logger

	// Publication is ordered by ticket; pubMu is never taken with mu held.
	pubMu     sync.Mutex
	pubCond   *sync.Cond
	published uint64                // last ticket published
	lastPub   state.ConnectionState // last value published

	mu         sync.Mutex
	state      state.ConnectionState
	url        string
	manual     bool   // set by Disconnect, cleared by Connect
	gen        uint64 // current transport generation
	issued     uint64 // last publication ticket handed out
	sessionID  uuid.UUID
	client     Client
	cancelDial context.CancelFunc
	timer      *time.Timer
	timerGen   uint64
	attempts   int64
	reconnects int64
	lastErr    error

	wg sync.WaitGroup
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket client constructor.
func WithDialer(dial DialFunc) Option {
	return func(m *Manager) {
		m.dial = dial
	}
}

// WithPolicy replaces the reconnect policy derived from the config.
func WithPolicy(policy ReconnectPolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// NewManager creates a Connection Manager publishing into states and
// handing inbound frames to handler.
func NewManager(
	cfg ManagerConfig,
	states *state.Slot[state.ConnectionState],
	handler MessageHandler,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:     cfg,
		states:  states,
		handler: handler,
		policy:  policyFor(cfg),
		dial:    NewClient,
		logger:  logger,
		state:   states.Get(),
		lastPub: states.Get(),
		url:     cfg.URL,
	}
	m.pubCond = sync.NewCond(&m.pubMu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect starts connecting to url, or to the last used URL when url is
// empty. It is a no-op while a connection is open or being opened.
func (m *Manager) Connect(url string) {
	m.mu.Lock()
	if m.state.Active() {
		current := m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", "state", current, "url", url)
		return
	}
	if url != "" {
		m.url = url
	}

	m.manual = false
	m.stopTimerLocked()
	m.startDialLocked()
	m.transitionAndUnlock(state.StateConnecting)
}

// Disconnect closes the connection and cancels any pending reconnect.
// The manager stays disconnected until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	m.stopTimerLocked()

	// Invalidate the in-flight dial and read loop.
	m.gen++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	client := m.client
	m.client = nil
	m.transitionAndUnlock(state.StateDisconnected)

	if client != nil {
		client.Close()
	}
	m.logger.Info("disconnected from bridge")
}

// Close disconnects and waits for the manager goroutines to exit.
func (m *Manager) Close(ctx context.Context) error {
	m.Disconnect()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager close timed out")
		return ctx.Err()
	}
}

// Send JSON-encodes v and writes it as one frame. Messages are never
// queued: when not connected the message is dropped and ErrNotConnected
// returned.
func (m *Manager) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.Send("encode_error")
		return fmt.Errorf("encode message: %w", err)
	}
	return m.SendRaw(data)
}

// SendRaw writes data verbatim as one text frame.
func (m *Manager) SendRaw(data []byte) error {
	m.mu.Lock()
	client := m.client
	current := m.state
	m.mu.Unlock()

	if current != state.StateConnected || client == nil {
		m.logger.Warn("websocket is not connected, dropping message", "state", current)
		metrics.Send("not_connected")
		return ErrNotConnected
	}

	if err := client.Send(data); err != nil {
		m.logger.Warn("send failed", "error", err)
		metrics.Send("error")
		return fmt.Errorf("send: %w", err)
	}

	metrics.Send("ok")
	return nil
}

// State returns the current connection state.
func (m *Manager) State() state.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectPending reports whether a reconnect timer is armed.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{
		State:            m.state.String(),
		URL:              m.url,
		SessionID:        m.sessionID,
		Attempts:         m.attempts,
		Reconnects:       m.reconnects,
		ReconnectPending: m.timer != nil,
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}
	return stats
}

// startDialLocked opens a new transport generation. Must be called with mu held.
func (m *Manager) startDialLocked() {
	m.gen++
	gen := m.gen
	m.sessionID = uuid.New()
	m.attempts++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	cfg := m.cfg.Client
	cfg.URL = m.url
	logger := m.logger.With("session", m.sessionID.String())

	metrics.DialAttempt()
	logger.Info("connecting to bridge", "url", m.url, "attempt", m.attempts)

	m.wg.Add(1)
	go m.dialLoop(ctx, cancel, gen, m.sessionID, m.dial(cfg, logger), logger)
}

// dialLoop performs one dial and, on success, runs the read loop.
func (m *Manager) dialLoop(ctx context.Context, cancel context.CancelFunc, gen uint64, session uuid.UUID, client Client, logger *slog.Logger) {
	defer m.wg.Done()
	defer cancel()

	err := client.Connect(ctx)

	m.mu.Lock()
	if gen != m.gen {
		// Superseded by Disconnect while dialing.
		m.mu.Unlock()
		client.Close()
		return
	}
	m.cancelDial = nil

	if err != nil {
		m.lastErr = err
		logger.Warn("connection error", "url", m.url, "error", err)
		client.Close()
		m.scheduleReconnectLocked()
		m.transitionAndUnlock(state.StateError)
		return
	}

	m.client = client
	m.policy.Reset()
	m.transitionAndUnlock(state.StateConnected)
	logger.Info("websocket connected")

	m.readLoop(gen, session, client, logger)
}

// readLoop forwards frames until the transport ends or is closed.
func (m *Manager) readLoop(gen uint64, session uuid.UUID, client Client, logger *slog.Logger) {
	for {
		select {
		case msg := <-client.Messages():
			if !m.deliver(gen, session, msg) {
				return
			}

		case err := <-client.Errors():
			// Frames read before the error come first.
			m.drain(gen, session, client)
			m.handleLoss(gen, client, err, logger)
			return

		case <-client.Done():
			return
		}
	}
}

func (m *Manager) drain(gen uint64, session uuid.UUID, client Client) {
	for {
		select {
		case msg := <-client.Messages():
			if !m.deliver(gen, session, msg) {
				return
			}
		default:
			return
		}
	}
}

// deliver hands msg to the handler unless its generation was superseded.
// It reports whether the generation is still current.
func (m *Manager) deliver(gen uint64, session uuid.UUID, msg TimestampedMessage) bool {
	m.mu.Lock()
	current := gen == m.gen
	m.mu.Unlock()
	if !current {
		return false
	}

	metrics.FrameReceived()
	m.handler.HandleMessage(RawMessage{
		Data:       msg.Data,
		SessionID:  session,
		ReceivedAt: msg.ReceivedAt,
	})
	return true
}

// handleLoss moves to Disconnected (clean close) or Error and schedules a
// reconnect unless the loss belongs to a superseded generation.
func (m *Manager) handleLoss(gen uint64, client Client, err error, logger *slog.Logger) {
	client.Close()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.client = nil

	next := state.StateError
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		next = state.StateDisconnected
		logger.Info("websocket disconnected", "reason", err)
	} else {
		m.lastErr = err
		logger.Warn("websocket error", "error", err)
	}

	if !m.manual {
		m.scheduleReconnectLocked()
	}
	m.transitionAndUnlock(next)
}

// scheduleReconnectLocked arms the reconnect timer. Must be called with mu held.
func (m *Manager) scheduleReconnectLocked() {
	m.stopTimerLocked()

	delay := m.policy.Next()
	tg := m.timerGen
	m.timer = time.AfterFunc(delay, func() { m.reconnect(tg) })

	metrics.ReconnectScheduled()
	m.logger.Info("reconnect scheduled", "delay", delay)
}

// stopTimerLocked cancels the reconnect timer, including one that already
// fired and is waiting for mu. Must be called with mu held.
func (m *Manager) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) reconnect(tg uint64) {
	m.mu.Lock()
	if tg != m.timerGen || m.manual || m.state.Active() {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.timerGen++
	m.reconnects++

	m.startDialLocked()
	m.transitionAndUnlock(state.StateConnecting)
}

// transitionAndUnlock records s, releases mu and publishes s. Each
// transition takes a ticket under mu and publishes only after the previous
// ticket, so publication order matches transition order without holding mu
// while subscribers run.
func (m *Manager) transitionAndUnlock(s state.ConnectionState) {
	m.state = s
	m.issued++
	ticket := m.issued
	m.mu.Unlock()

	m.pubMu.Lock()
	for m.published != ticket-1 {
		m.pubCond.Wait()
	}
	changed := m.lastPub != s
	m.lastPub = s
	m.pubMu.Unlock()

	if changed {
		metrics.SetConnectionState(int(s))
		m.states.Set(s)
	}

	m.pubMu.Lock()
	m.published = ticket
	m.pubCond.Broadcast()
	m.pubMu.Unlock()
}
