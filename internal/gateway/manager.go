// ABOUTME: Shard connection manager: owns one gateway session per shard
// ABOUTME: Drives the connect/resume state machine and feeds the worker pool

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcbot/arcbot/internal/dedupe"
	"github.com/arcbot/arcbot/internal/metrics"
	"github.com/arcbot/arcbot/internal/worker"
)

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateResuming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateResuming:
		return "resuming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrRetryBudgetExhausted indicates the bounded reconnect budget ran out.
// This escalates to a process-level failure; it is never swallowed.
var ErrRetryBudgetExhausted = errors.New("gateway retry budget exhausted")

// ErrNotConnected indicates an operation that needs a live session.
var ErrNotConnected = errors.New("gateway not connected")

// errServerReconnect is a server-requested disconnect; always resumable.
var errServerReconnect = errors.New("server requested reconnect")

// errSessionInvalidated means the server rejected the session; the next
// attempt must be a fresh identify.
var errSessionInvalidated = errors.New("session invalidated")

// errHeartbeatTimeout means a heartbeat went unacknowledged for a full
// interval; the connection is considered dead.
var errHeartbeatTimeout = errors.New("heartbeat not acknowledged")

// Submitter is the worker pool surface the manager needs.
type Submitter interface {
	Submit(ctx context.Context, item *worker.Item) error
}

// EventHandler processes one decoded dispatch event. It runs on a pool
// worker, never on the manager's goroutines.
type EventHandler func(ctx context.Context, ev *Event) error

// Config holds one shard manager's connection parameters.
type Config struct {
	URL      string
	Token    string
	Identity string // reported in identify properties
	Status   string // presence text published after each handshake, optional

	ShardID    int
	ShardTotal int

	BackoffBase   time.Duration
	BackoffCap    time.Duration
	MaxReconnects int
}

// Manager owns the gateway connection for one shard. It receives raw
// events, wraps them as work items, and submits them to the pool. Heartbeat
// scheduling runs on its own goroutine and is never blocked by event
// submission backpressure.
type Manager struct {
	cfg    Config
	dialer Dialer
	pool   Submitter
	handle EventHandler
	guard  *dedupe.Cache
	logger *slog.Logger

	state    atomic.Int32
	sequence atomic.Int64
	ping     atomic.Int64 // round-trip in milliseconds
	beatSent atomic.Int64 // unix nano of last heartbeat
	acked    atomic.Bool
	resumed  atomic.Bool // set when a session reaches READY/RESUMED

	sessionID string // touched only between sessions, by Run's goroutine

	transportMu sync.Mutex
	transport   Transport
}

// replayGuardTTL bounds how long dispatched event keys are remembered.
const replayGuardTTL = 5 * time.Minute

// NewManager creates a manager for one shard. Run must be called to start it.
func NewManager(cfg Config, dialer Dialer, pool Submitter, handle EventHandler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:    cfg,
		dialer: dialer,
		pool:   pool,
		handle: handle,
		guard:  dedupe.New(replayGuardTTL, 4096),
		logger: logger.With("component", "gateway", "shard", cfg.ShardID),
	}
	m.state.Store(int32(StateDisconnected))
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Ping returns the last measured heartbeat round trip in milliseconds,
// or -1 before the first acknowledgement.
func (m *Manager) Ping() int64 {
	if p := m.ping.Load(); p > 0 {
		return p
	}
	return -1
}

// Sequence returns the last dispatch sequence seen on this shard.
func (m *Manager) Sequence() int64 {
	return m.sequence.Load()
}

func (m *Manager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s {
		m.logger.Debug("connection state changed", "from", old.String(), "to", s.String())
	}
}

// Run drives the connection until ctx is cancelled or the retry budget is
// exhausted. Failures during Connecting/Resuming back off exponentially with
// a cap; exceeding MaxReconnects consecutive failures returns
// ErrRetryBudgetExhausted so the process can surface a real alert instead of
// dying silently.
func (m *Manager) Run(ctx context.Context) error {
	attempts := 0
	resume := false
	shard := strconv.Itoa(m.cfg.ShardID)

	for {
		if resume {
			m.setState(StateResuming)
		} else {
			m.setState(StateConnecting)
		}

		m.resumed.Store(false)
		err := m.runSession(ctx, resume)

		if ctx.Err() != nil {
			m.setState(StateClosed)
			m.logger.Info("gateway manager stopped")
			return nil
		}

		metrics.Reconnects.WithLabelValues(shard).Inc()

		if Fatal(err) {
			m.setState(StateClosed)
			return fmt.Errorf("unrecoverable gateway error: %w", err)
		}

		// A session that completed its handshake earns a fresh budget.
		if m.resumed.Load() {
			attempts = 0
		}
		attempts++
		if attempts > m.cfg.MaxReconnects {
			m.setState(StateClosed)
			return fmt.Errorf("%w: %d consecutive failures, last: %v",
				ErrRetryBudgetExhausted, attempts, err)
		}

		resume = m.sessionID != "" && Resumable(err) && !errors.Is(err, errSessionInvalidated)
		if !resume {
			m.sessionID = ""
		}

		delay := m.backoff(attempts)
		m.setState(StateDisconnected)
		m.logger.Warn("gateway connection lost",
			"error", err,
			"attempt", attempts,
			"max_attempts", m.cfg.MaxReconnects,
			"resume", resume,
			"retry_in", delay,
		)

		select {
		case <-ctx.Done():
			m.setState(StateClosed)
			return nil
		case <-time.After(delay):
		}
	}
}

// backoff computes the exponential delay for the nth consecutive failure.
func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.cfg.BackoffCap {
			return m.cfg.BackoffCap
		}
	}
	if delay > m.cfg.BackoffCap {
		delay = m.cfg.BackoffCap
	}
	return delay
}

// runSession runs one connection lifetime: handshake, heartbeats, and the
// read loop. Returns the error that ended the session.
func (m *Manager) runSession(ctx context.Context, resume bool) error {
	t, err := m.dialer.Dial(ctx, m.cfg.URL)
	if err != nil {
		return err
	}
	defer t.Close()

	m.setTransport(t)
	defer m.setTransport(nil)

	// First frame must be hello with the heartbeat interval.
	hello, err := t.ReadFrame(ctx)
	if err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != OpHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil {
		return fmt.Errorf("decoding hello: %w", err)
	}
	interval := time.Duration(hd.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		return fmt.Errorf("invalid heartbeat interval %d", hd.HeartbeatInterval)
	}

	var handshake *Frame
	if resume {
		handshake, err = resumeFrame(m.cfg.Token, m.sessionID, m.sequence.Load())
	} else {
		handshake, err = identifyFrame(m.cfg.Token, m.cfg.Identity, m.cfg.ShardID, m.cfg.ShardTotal)
	}
	if err != nil {
		return fmt.Errorf("building handshake: %w", err)
	}
	if err := t.WriteFrame(ctx, handshake); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Heartbeats run on their own timing, independent of the read loop and
	// of any submission backpressure.
	hbDone := make(chan struct{})
	m.acked.Store(true)
	go func() {
		defer close(hbDone)
		m.heartbeatLoop(sctx, t, interval)
	}()

	err = m.readLoop(sctx, t)
	cancel()
	<-hbDone

	if !m.acked.Load() && !errors.Is(err, errServerReconnect) {
		return errHeartbeatTimeout
	}
	return err
}

// heartbeatLoop sends a heartbeat every interval, carrying the last seen
// sequence. A missed acknowledgement marks the connection dead and tears
// down the session so Run can resume.
func (m *Manager) heartbeatLoop(ctx context.Context, t Transport, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.acked.Load() {
				m.logger.Warn("heartbeat unacknowledged, closing connection")
				t.Close()
				return
			}
			m.acked.Store(false)
			m.beatSent.Store(time.Now().UnixNano())
			if err := t.WriteFrame(ctx, heartbeatFrame(m.sequence.Load())); err != nil {
				if ctx.Err() == nil {
					m.logger.Warn("heartbeat write failed", "error", err)
				}
				return
			}
			m.logger.Debug("heartbeat sent", "sequence", m.sequence.Load())
		}
	}
}

// readLoop consumes frames until the connection dies or the session is torn
// down by the server.
func (m *Manager) readLoop(ctx context.Context, t Transport) error {
	for {
		f, err := t.ReadFrame(ctx)
		if err != nil {
			return err
		}

		switch f.Op {
		case OpDispatch:
			m.sequence.Store(f.Sequence)
			m.handleDispatch(ctx, t, f)

		case OpHeartbeat:
			// Server asked for an immediate heartbeat.
			if err := t.WriteFrame(ctx, heartbeatFrame(m.sequence.Load())); err != nil {
				return err
			}

		case OpHeartbeatACK:
			m.acked.Store(true)
			if sent := m.beatSent.Load(); sent > 0 {
				m.ping.Store(time.Since(time.Unix(0, sent)).Milliseconds())
			}

		case OpReconnect:
			return errServerReconnect

		case OpInvalidSession:
			m.sessionID = ""
			return errSessionInvalidated

		case OpHello:
			// Duplicate hello mid-session; nothing to do.

		default:
			m.logger.Debug("unhandled opcode", "op", int(f.Op))
		}
	}
}

// handleDispatch processes one op 0 frame: session bookkeeping for
// READY/RESUMED, everything else wrapped as a work item and submitted.
func (m *Manager) handleDispatch(ctx context.Context, t Transport, f *Frame) {
	switch f.Type {
	case eventReady:
		var rd readyData
		if err := json.Unmarshal(f.Data, &rd); err != nil {
			m.logger.Error("decoding ready", "error", err)
			return
		}
		m.sessionID = rd.SessionID
		m.resumed.Store(true)
		m.setState(StateConnected)
		m.logger.Info("gateway session established", "session_id", rd.SessionID)
		m.publishStatus(ctx, t)
		return

	case eventResumed:
		m.resumed.Store(true)
		m.setState(StateConnected)
		m.logger.Info("gateway session resumed", "sequence", m.sequence.Load())
		m.publishStatus(ctx, t)
		return
	}

	if m.guard.Seen(dedupe.EventKey(m.sessionID, f.Sequence)) {
		m.logger.Debug("duplicate event after resume, skipping",
			"type", f.Type, "sequence", f.Sequence)
		return
	}

	metrics.EventsReceived.WithLabelValues(strconv.Itoa(m.cfg.ShardID)).Inc()

	ev := &Event{
		Shard:    m.cfg.ShardID,
		Type:     f.Type,
		Sequence: f.Sequence,
		Data:     f.Data,
	}
	item := worker.NewItem(ev.Shard, ev.Type, func(ctx context.Context) error {
		return m.handle(ctx, ev)
	})

	// Submit applies backpressure when the pool is saturated. Blocking here
	// only stalls the read loop; heartbeats keep their own goroutine and
	// their own timing.
	if err := m.pool.Submit(ctx, item); err != nil {
		if ctx.Err() == nil {
			m.logger.Error("submitting work item", "type", f.Type, "error", err)
		}
	}
}

// publishStatus sends the configured presence text after a handshake.
func (m *Manager) publishStatus(ctx context.Context, t Transport) {
	if m.cfg.Status == "" {
		return
	}
	f, err := presenceFrame(m.cfg.Status)
	if err != nil {
		m.logger.Warn("building presence frame", "error", err)
		return
	}
	if err := t.WriteFrame(ctx, f); err != nil {
		m.logger.Warn("publishing presence", "error", err)
	}
}

// UpdateStatus publishes a presence update on the live session.
func (m *Manager) UpdateStatus(ctx context.Context, status string) error {
	m.transportMu.Lock()
	t := m.transport
	m.transportMu.Unlock()

	if t == nil || m.State() != StateConnected {
		return ErrNotConnected
	}
	f, err := presenceFrame(status)
	if err != nil {
		return err
	}
	return t.WriteFrame(ctx, f)
}

func (m *Manager) setTransport(t Transport) {
	m.transportMu.Lock()
	m.transport = t
	m.transportMu.Unlock()
}
