package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younglifestyle/conflate4go/alarm"
	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/store"
)

func echoDefinition() command.Definition {
	return command.Definition{
		Name:        "echo",
		Description: "Echo the submitted form.",
		Handler: func(_ context.Context, req *command.Request, rb *command.ResponseBuilder) command.Result {
			for _, p := range req.Form.Pairs() {
				rb.AddFields(p.Key, p.Values...)
			}
			return command.ResultOK
		},
	}
}

func TestReconnectUsesFixedDelay(t *testing.T) {
	h := newHarness(t, Config{})
	h.dialer.hangup = true

	var mu sync.Mutex
	var delays []time.Duration
	var transitions []string
	h.m.Events().StateChanged.AddCallback(func(data map[string]interface{}) {
		mu.Lock()
		transitions = append(transitions, data["to"].(string))
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.m.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, h.m.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, delays)
	assert.Len(t, h.dialer.dialed(), 3)
	cycle := []string{StateConnecting, StateConnected, StateDisconnected}
	assert.Equal(t, append(append(append([]string{}, cycle...), cycle...), cycle...), transitions)
	assert.Equal(t, StateDisconnected, h.m.State())
}

func TestReconnectHonoursConfiguredDelay(t *testing.T) {
	h := newHarness(t, Config{})
	h.dialer.fail = errDialRefused
	h.m.Timeouts().SetReconnectDelay(1500 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	h.m.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, h.m.Run(ctx))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, delays)
}

func TestReconnectAfterDialFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.dialer.fail = errDialRefused

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0
	h.m.sleep = func(context.Context, time.Duration) error {
		attempts++
		if attempts == 4 {
			cancel()
		}
		return ctx.Err()
	}

	require.NoError(t, h.m.Run(ctx))
	assert.Len(t, h.dialer.dialed(), 4)
	assert.False(t, h.m.Connected())
}

func TestRunRejectsSecondCaller(t *testing.T) {
	h := newHarness(t, Config{})
	h.connect(t)

	assert.ErrorIs(t, h.m.Run(context.Background()), ErrAlreadyRunning)
}

func TestConnectSendsPresenceAndStoresJID(t *testing.T) {
	h := newHarness(t, Config{})
	h.start(t)
	conn := h.dialer.nextConn(t)

	presence := conn.nextSent(t)
	assert.Equal(t, common.StanzaPresence, presence.Name)
	assert.Equal(t, "5", presence.Child("priority").Text)
	assert.NotEmpty(t, presence.ID())

	require.Eventually(t, func() bool {
		jid, err := h.store.GetPrivate(context.Background(), store.KeyStoredJID)
		return err == nil && jid == "agent@example.com/agent"
	}, waitTimeout, 5*time.Millisecond)
	assert.True(t, h.m.Connected())
	assert.Equal(t, "agent@example.com/agent", h.m.BoundJID())
}

func TestStoredJIDPreferred(t *testing.T) {
	h := newHarness(t, Config{Credentials: Credentials{JID: "fresh@example.com", Password: "pw", Host: "relay"}})
	require.NoError(t, h.store.SetPrivate(context.Background(), store.KeyStoredJID, "kept@example.com/r1"))

	h.connect(t)

	creds := h.dialer.dialed()
	require.NotEmpty(t, creds)
	assert.Equal(t, Credentials{JID: "kept@example.com/r1", Password: "pw", Host: "relay"}, creds[0])
}

func TestStoredConfigDeliveredBeforeConnect(t *testing.T) {
	var got *form.Form
	var dialsAtDelivery int
	var h *harness
	h = newHarness(t, Config{OnStoredConfig: func(f *form.Form) {
		got = f
		dialsAtDelivery = len(h.dialer.dialed())
	}})
	saved := form.FromPairs(form.KeyValueList{Key: "servers", Values: []string{"a:1", "b:2"}})
	require.NoError(t, h.store.SaveConfig(context.Background(), saved))

	h.connect(t)

	require.NotNil(t, got)
	assert.Equal(t, saved.Pairs(), got.Pairs())
	assert.Zero(t, dialsAtDelivery)
}

func TestDirectCommandReply(t *testing.T) {
	h := newHarness(t, Config{}, echoDefinition())
	outcomes := make(chan string, 4)
	h.m.Events().CommandDispatched.AddCallback(func(data map[string]interface{}) {
		outcomes <- data["outcome"].(string)
	})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="set" id="c1" from="admin@example.com/ctl">`+
		`<command xmlns="http://jabber.org/protocol/commands" node="echo">`+
		`<x xmlns="jabber:x:data" type="submit"><field var="k"><value>v</value></field></x>`+
		`</command></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, common.IQTypeResult, reply.Type())
	assert.Equal(t, "c1", reply.ID())
	assert.Equal(t, "admin@example.com/ctl", reply.To())
	field := reply.Child("command").ChildNS("x", common.NSDataForms).Child("field")
	require.NotNil(t, field)
	assert.Equal(t, "k", field.AttrValue("var"))
	assert.Equal(t, command.OutcomeOK, <-outcomes)
	assert.True(t, h.m.dispatcher.Registry().Frozen())
}

func TestUnknownDirectCommand(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="set" id="c2" from="admin@example.com">`+
		`<command xmlns="http://jabber.org/protocol/commands" node="nope"/></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, common.IQTypeError, reply.Type())
	assert.Equal(t, command.CodeNotFound, reply.Child("error").AttrValue("code"))
}

func TestCommandWithoutNode(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="set" id="c3" from="admin@example.com">`+
		`<command xmlns="http://jabber.org/protocol/commands"/></iq>`)

	reply := conn.nextSent(t)
	errEl := reply.Child("error")
	require.NotNil(t, errEl)
	assert.Equal(t, command.CodeBadRequest, errEl.AttrValue("code"))
	assert.NotNil(t, errEl.ChildNS(command.SpecificMalformedAction, common.NSCommands))
}

func TestPubsubCommandIsNotAnswered(t *testing.T) {
	calls := make(chan *command.Request, 1)
	h := newHarness(t, Config{}, command.Definition{
		Name:        "serverlist",
		Description: "Configure a server list.",
		Handler: func(_ context.Context, req *command.Request, _ *command.ResponseBuilder) command.Result {
			calls <- req
			return command.ResultOK
		},
	})
	conn := h.connect(t)

	conn.deliver(t, `<message from="pubsub.example.com" to="agent@example.com/agent">`+
		`<event xmlns="http://jabber.org/protocol/pubsub#event"><items node="agents">`+
		`<item id="1"><command command="serverlist">`+
		`<x xmlns="jabber:x:data"><field var="servers"><value>a:1</value></field></x>`+
		`</command></item></items></event></message>`)

	select {
	case req := <-calls:
		assert.False(t, req.Direct)
		values, _ := req.Form.Get("servers")
		assert.Equal(t, []string{"a:1"}, values)
	case <-time.After(waitTimeout):
		t.Fatalf("pubsub command was not dispatched")
	}
	conn.expectNothingSent(t, 50*time.Millisecond)
}

func TestMalformedPubsubKeepsSession(t *testing.T) {
	h := newHarness(t, Config{SoftwareName: "conflated", SoftwareVersion: "1.2.3"})
	conn := h.connect(t)

	malformed := []string{
		`<message from="pubsub.example.com"><event xmlns="http://jabber.org/protocol/pubsub#event"/></message>`,
		`<message from="pubsub.example.com"><event xmlns="http://jabber.org/protocol/pubsub#event"><items/></event></message>`,
		`<message from="pubsub.example.com"><event xmlns="http://jabber.org/protocol/pubsub#event"><items><item/></items></event></message>`,
		`<message from="pubsub.example.com"><event xmlns="http://jabber.org/protocol/pubsub#event"><items><item><command/></item></items></event></message>`,
		`<message from="pubsub.example.com"><event xmlns="http://jabber.org/protocol/pubsub#event"><items><item><command command="nope"><x xmlns="jabber:x:data"><field/></x></command></item></items></event></message>`,
		`<message from="someone@example.com"><body>hi</body></message>`,
		`<iq type="result" id="r1" from="example.com"/>`,
	}
	for _, raw := range malformed {
		conn.deliver(t, raw)
	}

	conn.deliver(t, `<iq type="get" id="v1" from="admin@example.com"><query xmlns="jabber:iq:version"/></iq>`)
	reply := conn.nextSent(t)
	assert.Equal(t, "v1", reply.ID())
	assert.True(t, h.m.Connected())
}

func TestVersionReply(t *testing.T) {
	h := newHarness(t, Config{SoftwareName: "conflated", SoftwareVersion: "1.2.3"})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="get" id="v1" from="admin@example.com/ctl"><query xmlns="jabber:iq:version"/></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, common.IQTypeResult, reply.Type())
	assert.Equal(t, "admin@example.com/ctl", reply.To())
	query := reply.ChildNS("query", common.NSVersion)
	require.NotNil(t, query)
	assert.Equal(t, "conflated", query.Child("name").Text)
	assert.Equal(t, "1.2.3", query.Child("version").Text)
}

func TestIQRoutedByPayloadNamespace(t *testing.T) {
	h := newHarness(t, Config{SoftwareName: "conflated", SoftwareVersion: "1.2.3"})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="get" id="v2" from="admin@example.com/ctl">`+
		`<trace/><query xmlns="jabber:iq:version"/></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, common.IQTypeResult, reply.Type())
	assert.Equal(t, "v2", reply.ID())
	require.NotNil(t, reply.ChildNS("query", common.NSVersion))
}

func TestUnhandledIQGetsServiceUnavailable(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.connect(t)

	conn.deliver(t, `<iq type="get" id="u1" from="admin@example.com/ctl"><ping xmlns="urn:xmpp:ping"/></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, common.IQTypeError, reply.Type())
	assert.Equal(t, "u1", reply.ID())
	assert.Equal(t, "admin@example.com/ctl", reply.To())
	errEl := reply.Child("error")
	require.NotNil(t, errEl)
	assert.Equal(t, "cancel", errEl.Type())
	assert.Equal(t, "503", errEl.AttrValue("code"))
	assert.NotNil(t, errEl.ChildNS("service-unavailable", common.NSStanzas))

	conn.deliver(t, `<iq type="set" id="u2" from="admin@example.com/ctl"/>`)
	assert.Equal(t, "u2", conn.nextSent(t).ID())
	assert.True(t, h.m.Connected())
}

func TestDiscoItemsListsCommands(t *testing.T) {
	noop := func(context.Context, *command.Request, *command.ResponseBuilder) command.Result { return command.ResultOK }
	h := newHarness(t, Config{},
		command.Definition{Name: "set_private", Description: "Set a private value on the agent.", Handler: noop},
		command.Definition{Name: "ping_test", Description: "Perform a ping test", Handler: noop},
	)
	conn := h.connect(t)

	conn.deliver(t, `<iq type="get" id="d1" from="admin@example.com">`+
		`<query xmlns="http://jabber.org/protocol/disco#items" node="http://jabber.org/protocol/commands"/></iq>`)

	reply := conn.nextSent(t)
	assert.Equal(t, "agent@example.com/agent", reply.From())
	query := reply.ChildNS("query", common.NSDiscoItems)
	require.NotNil(t, query)
	assert.Equal(t, common.NSCommands, query.AttrValue("node"))
	items := query.ChildrenNamed("item")
	require.Len(t, items, 2)
	assert.Equal(t, "set_private", items[0].AttrValue("node"))
	assert.Equal(t, "Set a private value on the agent.", items[0].AttrValue("name"))
	assert.Equal(t, "ping_test", items[1].AttrValue("node"))
	assert.Equal(t, "agent@example.com/agent", items[1].AttrValue("jid"))
}

func TestKeepalive(t *testing.T) {
	timeouts := NewTimeouts()
	timeouts.SetKeepalive(10 * time.Millisecond)
	h := newHarness(t, Config{Timeouts: timeouts})
	conn := h.connect(t)

	select {
	case b := <-conn.raw:
		assert.Equal(t, " ", string(b))
	case <-time.After(waitTimeout):
		t.Fatalf("no keepalive sent")
	}
}

func TestAlarmDelivery(t *testing.T) {
	timeouts := NewTimeouts()
	timeouts.SetAlarmInterval(10 * time.Millisecond)
	queue := alarm.NewQueue()

	reg := command.NewRegistry()
	dialer := newFakeDialer()
	m, err := New(Config{
		Credentials:    Credentials{JID: "agent@example.com"},
		AlarmRecipient: "ops@example.com",
		Timeouts:       timeouts,
	}, dialer, command.NewDispatcher(reg, nil), nil, queue)
	require.NoError(t, err)
	h := &harness{m: m, dialer: dialer}

	discarded := make(chan int, 4)
	m.Events().AlarmDiscarded.AddCallback(func(data map[string]interface{}) {
		discarded <- data["count"].(int)
	})

	queue.Put(alarm.Record{ID: 1, Open: true, Level: 1, LevelMax: 3, Message: "disk full"})
	queue.Put(alarm.Record{ID: 2, Open: false, Message: "cleared"})
	queue.Put(alarm.Record{ID: 3, Open: true, Level: 2, LevelMax: 3, Message: "evictions"})
	conn := h.connect(t)

	for _, num := range []string{"1", "3"} {
		msg := conn.nextSent(t)
		assert.Equal(t, common.StanzaMessage, msg.Name)
		assert.Equal(t, "ops@example.com", msg.To())
		assert.Equal(t, num, msg.Child("alert").AttrValue("num"))
	}
	assert.Equal(t, 1, <-discarded)
	assert.Zero(t, queue.Len())
	conn.expectNothingSent(t, 50*time.Millisecond)
}

func TestNewValidates(t *testing.T) {
	reg := command.NewRegistry()
	d := command.NewDispatcher(reg, nil)
	_, err := New(Config{Credentials: Credentials{JID: "a@b"}}, nil, d, nil, nil)
	assert.Error(t, err)
	_, err = New(Config{Credentials: Credentials{JID: "a@b"}}, newFakeDialer(), nil, nil, nil)
	assert.Error(t, err)
	_, err = New(Config{}, newFakeDialer(), d, nil, nil)
	assert.Error(t, err)
}
