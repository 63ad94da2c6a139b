package session

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetb/go-linq/v3"
	"github.com/google/uuid"

	"github.com/younglifestyle/conflate4go/alarm"
	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

var errMissingNode = errors.New("command without node")

func (m *Manager) installHandlers() {
	m.handlers = map[handlerKey]stanzaHandler{
		{common.StanzaIQ, common.NSVersion}:    m.handleVersion,
		{common.StanzaIQ, common.NSCommands}:   m.handleCommand,
		{common.StanzaIQ, common.NSDiscoItems}: m.handleDiscoItems,
		{common.StanzaMessage, ""}:             m.handleMessage,
	}
}

// serve pumps inbound stanzas and timers until the connection fails or ctx
// ends.
func (m *Manager) serve(ctx context.Context, conn Conn) error {
	inbound := make(chan *stanza.Element)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			el, err := conn.Receive()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- el:
			case <-done:
				return
			}
		}
	}()

	keepalive := time.NewTicker(m.timeouts.Keepalive())
	defer keepalive.Stop()
	alarmTick := time.NewTicker(m.timeouts.AlarmInterval())
	defer alarmTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case el := <-inbound:
			m.received.Inc()
			m.traffic.stanza("RX", el)
			if err := m.route(ctx, el); err != nil {
				return err
			}
		case <-keepalive.C:
			if err := m.sendKeepalive(); err != nil {
				return err
			}
		case <-alarmTick.C:
			if err := m.deliverAlarms(); err != nil {
				return err
			}
		}
	}
}

// route hands el to the installed handler for its kind. Only send failures
// are returned; anything the peer sent wrong is logged.
func (m *Manager) route(ctx context.Context, el *stanza.Element) error {
	if el.Name == common.StanzaIQ {
		return m.routeIQ(ctx, el)
	}
	handler, ok := m.handlers[handlerKey{name: el.Name}]
	if !ok {
		m.logger.Debug("unhandled stanza", "name", el.Name, "from", el.From())
		return nil
	}
	return handler(ctx, el)
}

// routeIQ picks the handler by the namespace of the first child that has
// one. A get or set nobody handles is answered with service-unavailable.
func (m *Manager) routeIQ(ctx context.Context, el *stanza.Element) error {
	if t := el.Type(); t != common.IQTypeGet && t != common.IQTypeSet {
		m.logger.Debug("ignoring iq", "type", t, "id", el.ID(), "from", el.From())
		return nil
	}
	for _, child := range el.Children {
		if handler, ok := m.handlers[handlerKey{name: common.StanzaIQ, ns: child.NS()}]; ok {
			return handler(ctx, el)
		}
	}
	m.logger.Debug("unhandled iq", "id", el.ID(), "from", el.From())
	return m.send(serviceUnavailable(el))
}

func serviceUnavailable(req *stanza.Element) *stanza.Element {
	reply := stanza.New(common.StanzaIQ).SetAttr("type", common.IQTypeError)
	reply.CopyAttr(req, "id")
	if from := req.From(); from != "" {
		reply.SetAttr("to", from)
	}
	reply.NewChild("error").
		SetAttr("type", "cancel").
		SetAttr("code", "503").
		AddChild(stanza.NewNS("service-unavailable", common.NSStanzas))
	return reply
}

func (m *Manager) handleVersion(_ context.Context, el *stanza.Element) error {
	m.logger.Debug("version request", "from", el.From())

	reply := stanza.New(common.StanzaIQ).SetAttr("type", common.IQTypeResult)
	reply.CopyAttr(el, "id")
	if from := el.From(); from != "" {
		reply.SetAttr("to", from)
	}

	query := reply.NewChild("query").SetAttr("xmlns", common.NSVersion)
	query.NewChild("name").SetText(m.cfg.SoftwareName)
	query.NewChild("version").SetText(m.cfg.SoftwareVersion)
	return m.send(reply)
}

func (m *Manager) handleCommand(ctx context.Context, el *stanza.Element) error {
	cmd := el.ChildNS("command", common.NSCommands)
	name := cmd.AttrValue("node")

	var env *command.Envelope
	if name == "" {
		m.logger.Warn("command without node", "from", el.From(), "id", el.ID())
		env = m.dispatcher.Reject(name, el, cmd, command.Malformed(errMissingNode))
	} else {
		m.logger.Info("command", "command", name, "from", el.From())
		env = m.dispatcher.Dispatch(ctx, name, el, cmd, true)
	}
	m.fireDispatched(env)
	return m.send(env.Reply)
}

// handleMessage runs commands published to the agent's pubsub node. Their
// replies are discarded.
func (m *Manager) handleMessage(ctx context.Context, el *stanza.Element) error {
	event := el.Child("event")
	if event == nil {
		m.logger.Debug("ignoring message", "from", el.From())
		return nil
	}
	items := event.Child("items")
	if items == nil {
		m.logger.Warn("pubsub event without items element", "from", el.From())
		return nil
	}
	item := items.Child("item")
	if item == nil {
		m.logger.Info("received pubsub event with no items", "from", el.From())
		return nil
	}
	cmd := item.Child("command")
	if cmd == nil {
		m.logger.Warn("pubsub item without command", "from", el.From())
		return nil
	}
	name := cmd.AttrValue("command")
	if name == "" {
		name = cmd.AttrValue("node")
	}
	if name == "" {
		m.logger.Warn("pubsub command without name", "from", el.From())
		return nil
	}

	m.logger.Info("pubsub command", "command", name, "from", el.From())
	env := m.dispatcher.Dispatch(ctx, name, el, cmd, false)
	if env.Failed() {
		m.logger.Warn("pubsub command failed", "command", name, "error", env.Err)
	}
	m.fireDispatched(env)
	return nil
}

func (m *Manager) handleDiscoItems(_ context.Context, el *stanza.Element) error {
	jid := m.boundJID.Load()

	reply := stanza.New(common.StanzaIQ).SetAttr("type", common.IQTypeResult)
	reply.CopyAttr(el, "id")
	if from := el.From(); from != "" {
		reply.SetAttr("to", from)
	}
	reply.SetAttr("from", jid)

	query := stanza.NewNS("query", common.NSDiscoItems).SetAttr("node", common.NSCommands)
	var items []*stanza.Element
	linq.From(m.dispatcher.Registry().Definitions()).
		SelectT(func(d command.Definition) *stanza.Element {
			return stanza.New("item").
				SetAttr("jid", jid).
				SetAttr("node", d.Name).
				SetAttr("name", d.Description)
		}).
		ToSlice(&items)
	query.AddChild(items...)
	reply.AddChild(query)
	return m.send(reply)
}

// deliverAlarms empties the alarm queue, notifying the recipient of every
// open alarm.
func (m *Manager) deliverAlarms() error {
	if m.alarms == nil || m.alarms.Len() == 0 {
		return nil
	}
	open, closed := m.alarms.DrainOpen()
	if closed > 0 {
		m.events.AlarmDiscarded.Fire(map[string]interface{}{"count": closed, "reason": "closed"})
	}
	if len(open) == 0 {
		return nil
	}
	if m.cfg.AlarmRecipient == "" {
		m.logger.Warn("no alarm recipient configured, dropping alarms", "count", len(open))
		m.events.AlarmDiscarded.Fire(map[string]interface{}{"count": len(open), "reason": "no_recipient"})
		return nil
	}

	for i, rec := range open {
		msg := alarm.Notification(rec, m.cfg.AlarmRecipient, uuid.NewString())
		if err := m.send(msg); err != nil {
			lost := len(open) - i
			m.logger.Error("alarm notifications lost", "count", lost, "error", err)
			m.events.AlarmDiscarded.Fire(map[string]interface{}{"count": lost, "reason": "send_failed"})
			return err
		}
		m.events.AlarmSent.Fire(map[string]interface{}{"id": rec.ID})
	}
	return nil
}

func (m *Manager) fireDispatched(env *command.Envelope) {
	m.events.CommandDispatched.Fire(map[string]interface{}{
		"command": env.Name,
		"outcome": env.Outcome(),
		"direct":  env.Direct,
	})
}
