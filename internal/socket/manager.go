// Package socket owns the lifecycle of the single persistent push-channel
// connection: establishment, the authenticated handshake, bounded automatic
// reconnection, and outbound command emission. It carries bytes and a
// connected boolean; chat and message state never lives here.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ebarros/parley/internal/bus"
	"github.com/ebarros/parley/internal/config"
	"github.com/ebarros/parley/internal/status"
	"github.com/ebarros/parley/internal/wire"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ErrNoCredential is returned by Connect when no credential is available.
// There is nothing to retry: a connection attempt without a credential
// would be rejected anyway.
var ErrNoCredential = errors.New("no credential, connection aborted")

// ErrNotConnected is returned by Emit while the channel is down. Callers
// must fail fast rather than queue.
var ErrNotConnected = errors.New("push channel not connected")

// AuthError reports a credential rejected during the handshake.
// Authorization failures are fatal to the attempt and never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "push channel auth rejected: " + e.Message
	}
	return "push channel auth rejected"
}

const writeTimeout = 5 * time.Second

// Manager owns the persistent connection. All other components reach the
// socket only through this API, so duplicate concurrent connections are
// impossible by construction.
type Manager struct {
	serverURL        string
	handshakeTimeout time.Duration
	bus              *bus.Bus
	machine          *status.Machine
	logger           *zap.Logger
	recon            *reconnector

	mu           sync.Mutex
	conn         *websocket.Conn
	cancel       context.CancelFunc
	credential   string
	intentional  bool
	dialing      bool
	reconnecting bool
}

// NewManager creates a connection manager for the given server.
func NewManager(serverURL string, policy config.Reconnect, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Manager {
	return &Manager{
		serverURL:        strings.TrimRight(serverURL, "/"),
		handshakeTimeout: policy.HandshakeTimeoutD(),
		bus:              b,
		machine:          machine,
		logger:           logger,
		recon:            newReconnector(policy),
	}
}

// Connect establishes the push channel authenticated with credential.
// Idempotent: a live connection is kept as is; a stale one is torn down
// first. An absent credential aborts without creating a connection.
// A manual call also resets the automatic-retry budget.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	if credential == "" {
		m.logger.Warn("no credential, push channel connection aborted")
		return ErrNoCredential
	}

	m.mu.Lock()
	if m.conn != nil && m.machine.Current() == status.Connected {
		m.mu.Unlock()
		return nil
	}
	if old := m.conn; old != nil {
		// Stale connection: tear it down before dialing fresh.
		m.conn = nil
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		go old.Close(websocket.StatusNormalClosure, "replaced by new connection")
	}
	m.credential = credential
	m.intentional = false
	m.recon.reset()
	m.mu.Unlock()

	if err := m.dial(ctx); err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			m.scheduleReconnect()
		}
		return err
	}
	return nil
}

// Disconnect tears down the connection and clears all socket references.
// This is the single exit path for the connection resource; it also
// suppresses any scheduled reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	m.credential = ""
	conn := m.conn
	m.conn = nil
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if m.machine.Current() != status.Disconnected {
		_ = m.machine.Transition(status.Disconnected)
	}
	m.bus.Publish(bus.Event{Kind: "socket.disconnected", Payload: "client disconnect"})
	m.logger.Info("push channel disconnected by client")
}

// IsConnected reports the current boolean state. A manager that holds a
// credential but is not connected kicks off a self-healing reconnection
// attempt and still reports false for this call.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	conn := m.conn
	hasCredential := m.credential != ""
	intentional := m.intentional
	m.mu.Unlock()

	if conn != nil && m.machine.Current() == status.Connected {
		return true
	}
	if hasCredential && !intentional {
		m.logger.Info("connection probe found channel down, reconnecting")
		m.scheduleReconnect()
	}
	return false
}

// Emit sends an outbound command. Fails fast when the channel is down.
func (m *Manager) Emit(cmd wire.Command) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || m.machine.Current() != status.Connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("emit %s: %w", cmd.Event, err)
	}
	return nil
}

// dial performs one connection attempt: websocket dial plus the server's
// connect acknowledgment, both bounded by the handshake timeout.
func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	if m.dialing || (m.conn != nil && m.machine.Current() == status.Connected) {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	credential := m.credential
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.dialing = false
		m.mu.Unlock()
	}()

	_ = m.machine.Transition(status.Connecting)

	hctx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(hctx, m.wsURL(credential), nil)
	if err != nil {
		_ = m.machine.Transition(status.Disconnected)
		return fmt.Errorf("dial push channel: %w", err)
	}

	// The first frame must be the server's connect acknowledgment.
	_, data, err := conn.Read(hctx)
	if err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		_ = m.machine.Transition(status.Disconnected)
		return fmt.Errorf("handshake read: %w", err)
	}
	env, err := wire.ParseEnvelope(data)
	if err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		_ = m.machine.Transition(status.Disconnected)
		return fmt.Errorf("handshake: %w", err)
	}
	switch env.Event {
	case wire.EventConnect:
	case wire.EventError:
		var p wire.ServerError
		_ = json.Unmarshal(env.Payload, &p)
		_ = conn.Close(websocket.StatusPolicyViolation, "auth rejected")
		_ = m.machine.Transition(status.Disconnected)
		m.logger.Error("push channel auth rejected", zap.String("reason", p.Message))
		return &AuthError{Message: p.Message}
	default:
		_ = conn.Close(websocket.StatusNormalClosure, "")
		_ = m.machine.Transition(status.Disconnected)
		return fmt.Errorf("handshake: expected %q, got %q", wire.EventConnect, env.Event)
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	m.mu.Lock()
	m.conn = conn
	m.cancel = cancelRun
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	m.recon.markConnected()
	m.logger.Info("push channel connected")
	m.bus.Publish(bus.Event{Kind: "socket.connected"})

	go m.readLoop(runCtx, conn)
	return nil
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			intentional := m.intentional
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			if intentional {
				return
			}

			if m.machine.Current() != status.Disconnected {
				_ = m.machine.Transition(status.Disconnected)
			}
			m.logger.Warn("push channel dropped", zap.Error(err))
			m.bus.Publish(bus.Event{Kind: "socket.disconnected", Payload: err.Error()})
			m.scheduleReconnect()
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame decodes one inbound frame and publishes it on the bus.
// Malformed events are dropped and logged; they never reach the engine.
func (m *Manager) handleFrame(data []byte) {
	env, err := wire.ParseEnvelope(data)
	if err != nil {
		m.logger.Warn("dropping unparseable push frame", zap.Error(err))
		return
	}

	payload, err := wire.Decode(env)
	if err != nil {
		m.logger.Warn("dropping malformed push event",
			zap.String("event", env.Event), zap.Error(err))
		return
	}

	switch p := payload.(type) {
	case *wire.NewMessage:
		m.bus.Publish(bus.Event{Kind: "push.message", Payload: p})
	case *wire.TypingEvent:
		kind := "push.typing"
		if env.Event == wire.EventStopTyping {
			kind = "push.stop_typing"
		}
		m.bus.Publish(bus.Event{Kind: kind, Payload: p})
	case *wire.MessageRead:
		m.bus.Publish(bus.Event{Kind: "push.read", Payload: p})
	case *wire.UserStatus:
		m.bus.Publish(bus.Event{Kind: "push.presence", Payload: p})
	case *wire.Disconnect:
		// The server closes right after; the read error handles teardown.
		m.logger.Warn("server announced disconnect", zap.String("reason", p.Reason))
	case *wire.ServerError:
		m.logger.Error("push channel server error", zap.String("message", p.Message))
	case nil:
		// Redundant connect event mid-stream; nothing to do.
	}
}

// scheduleReconnect queues one delayed reconnection attempt, respecting the
// bounded retry budget. After exhaustion only a manual Connect clears the
// disconnected state.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.intentional || m.credential == "" {
		m.mu.Unlock()
		return
	}
	if !m.recon.shouldReconnect() {
		m.mu.Unlock()
		m.logger.Error("reconnect attempts exhausted, staying disconnected")
		m.bus.Publish(bus.Event{Kind: "socket.retries_exhausted"})
		return
	}
	m.reconnecting = true
	delay, attempt := m.recon.next()
	m.mu.Unlock()

	m.logger.Info("scheduling reconnect",
		zap.Int("attempt", attempt), zap.Duration("delay", delay))

	go func() {
		time.Sleep(delay)

		m.mu.Lock()
		m.reconnecting = false
		intentional := m.intentional
		m.mu.Unlock()
		if intentional {
			return
		}

		if err := m.dial(context.Background()); err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return
			}
			m.logger.Warn("reconnect attempt failed", zap.Error(err))
			m.scheduleReconnect()
		}
	}()
}

func (m *Manager) wsURL(credential string) string {
	u := strings.Replace(m.serverURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws?token=" + url.QueryEscape(credential)
}
