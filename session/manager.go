// Package session keeps the agent connected to its messaging server and
// routes inbound stanzas to the command dispatcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/atomic"

	"github.com/younglifestyle/conflate4go/alarm"
	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/stanza"
	"github.com/younglifestyle/conflate4go/store"
)

// presencePriority is announced on every new connection.
const presencePriority = "5"

// Config describes one session.
type Config struct {
	Credentials     Credentials
	SoftwareName    string
	SoftwareVersion string
	// AlarmRecipient receives alarm notifications. Alarms are dropped when
	// it is empty.
	AlarmRecipient string
	Timeouts       *Timeouts
	Logging        LoggingConfig
	Logger         common.Logger
	// OnStoredConfig receives the persisted configuration once, before the
	// first connection attempt.
	OnStoredConfig func(*form.Form)
}

// Events are fired from the session loop goroutine.
type Events struct {
	// StateChanged data: "from", "to".
	StateChanged common.Event
	// CommandDispatched data: "command", "outcome", "direct".
	CommandDispatched common.Event
	// AlarmSent data: "id".
	AlarmSent common.Event
	// AlarmDiscarded data: "count", "reason".
	AlarmDiscarded common.Event
}

// Stats counts stanzas moved by the session.
type Stats struct {
	Received uint64
	Sent     uint64
}

type handlerKey struct {
	name string
	ns   string
}

type stanzaHandler func(ctx context.Context, el *stanza.Element) error

// Manager owns the connection lifecycle. All handlers, the keepalive and
// the alarm drain run on the goroutine that called Run.
type Manager struct {
	cfg        Config
	timeouts   *Timeouts
	dialer     Dialer
	dispatcher *command.Dispatcher
	store      store.Store
	alarms     *alarm.Queue
	logger     common.Logger
	traffic    *trafficLogger
	events     *Events

	state *ConnectionStateMachine

	running   *atomic.Bool
	connected *atomic.Bool
	boundJID  *atomic.String
	received  *atomic.Uint64
	sent      *atomic.Uint64

	// owned by the loop goroutine
	conn     Conn
	handlers map[handlerKey]stanzaHandler

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a session manager. st and alarms may be nil.
func New(cfg Config, dialer Dialer, dispatcher *command.Dispatcher, st store.Store, alarms *alarm.Queue) (*Manager, error) {
	if dialer == nil {
		return nil, errors.New("session: dialer is required")
	}
	if dispatcher == nil {
		return nil, errors.New("session: dispatcher is required")
	}
	if cfg.Credentials.JID == "" {
		return nil, errors.New("session: jid is required")
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = NewTimeouts()
	}
	cfg.Timeouts.normalize()

	m := &Manager{
		cfg:        cfg,
		timeouts:   cfg.Timeouts,
		dialer:     dialer,
		dispatcher: dispatcher,
		store:      st,
		alarms:     alarms,
		logger:     common.OrNop(cfg.Logger),
		traffic:    newTrafficLogger(cfg.Logging),
		events:     &Events{},
		running:    atomic.NewBool(false),
		connected:  atomic.NewBool(false),
		boundJID:   atomic.NewString(""),
		received:   atomic.NewUint64(0),
		sent:       atomic.NewUint64(0),
		sleep:      sleepContext,
	}
	m.state = NewConnectionStateMachine(fsm.Callbacks{
		"enter_state":                func(_ context.Context, e *fsm.Event) { m.onStateChange(e) },
		"enter_" + StateConnected:    m.onStateConnected,
		"enter_" + StateDisconnected: m.onStateDisconnected,
	})
	return m, nil
}

func (m *Manager) Events() *Events { return m.events }

func (m *Manager) State() string { return m.state.CurrentState() }

func (m *Manager) Connected() bool { return m.connected.Load() }

// BoundJID returns the address of the current connection, or the last one.
func (m *Manager) BoundJID() string { return m.boundJID.Load() }

func (m *Manager) Stats() Stats {
	return Stats{Received: m.received.Load(), Sent: m.sent.Load()}
}

func (m *Manager) Timeouts() *Timeouts { return m.timeouts }

// Close releases the traffic log.
func (m *Manager) Close() error { return m.traffic.Close() }

func (m *Manager) onStateChange(e *fsm.Event) {
	m.logger.Info("session state", "from", e.Src, "to", e.Dst)
	m.events.StateChanged.Fire(map[string]interface{}{"from": e.Src, "to": e.Dst})
}

func (m *Manager) onStateConnected(ctx context.Context, _ *fsm.Event) {
	m.connected.Store(true)
	m.boundJID.Store(m.conn.BoundJID())
	m.installHandlers()

	presence := stanza.New(common.StanzaPresence).SetAttr("id", uuid.NewString())
	presence.NewChild("priority").SetText(presencePriority)
	if err := m.send(presence); err != nil {
		m.logger.Warn("send presence failed", "error", err)
	}

	if jid := m.conn.BoundJID(); jid != "" && m.store != nil {
		if err := m.store.SetPrivate(ctx, store.KeyStoredJID, jid); err != nil {
			m.logger.Warn("failed to save the bound jid", "jid", jid, "error", err)
		}
	}
}

func (m *Manager) onStateDisconnected(_ context.Context, _ *fsm.Event) {
	m.connected.Store(false)
	m.handlers = nil
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close connection", "error", err)
		}
		m.conn = nil
	}
}

// resolveJID prefers the address persisted from the last bound connection.
func (m *Manager) resolveJID(ctx context.Context) string {
	if m.store == nil {
		return m.cfg.Credentials.JID
	}
	jid, err := m.store.GetPrivate(ctx, store.KeyStoredJID)
	switch {
	case err == nil && jid != "":
		m.logger.Debug("using jid from store", "jid", jid)
		return jid
	case err != nil && !errors.Is(err, store.ErrNotFound):
		m.logger.Warn("read stored jid failed", "error", err)
	}
	m.logger.Debug("using provided jid", "jid", m.cfg.Credentials.JID)
	return m.cfg.Credentials.JID
}

func (m *Manager) loadStoredConfig(ctx context.Context) {
	if m.store == nil || m.cfg.OnStoredConfig == nil {
		return
	}
	conf, err := m.store.LoadConfig(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("load stored config failed", "error", err)
		}
		return
	}
	m.cfg.OnStoredConfig(conf)
}

func (m *Manager) send(el *stanza.Element) error {
	if m.conn == nil {
		return ErrNotConnected
	}
	m.traffic.stanza("TX", el)
	if err := m.conn.Send(el); err != nil {
		return fmt.Errorf("send %s: %w", el.Name, err)
	}
	m.sent.Inc()
	return nil
}

func (m *Manager) sendKeepalive() error {
	if m.conn == nil {
		return ErrNotConnected
	}
	m.traffic.keepalive()
	if err := m.conn.SendRaw([]byte(" ")); err != nil {
		return fmt.Errorf("send keepalive: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
