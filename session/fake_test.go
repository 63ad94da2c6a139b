package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
	"github.com/younglifestyle/conflate4go/store"
	"github.com/younglifestyle/conflate4go/store/memstore"
)

const waitTimeout = 2 * time.Second

type fakeConn struct {
	jid       string
	in        chan *stanza.Element
	sent      chan *stanza.Element
	raw       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(jid string) *fakeConn {
	return &fakeConn{
		jid:    jid,
		in:     make(chan *stanza.Element),
		sent:   make(chan *stanza.Element, 64),
		raw:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) BoundJID() string { return c.jid }

func (c *fakeConn) Send(el *stanza.Element) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.sent <- el
	return nil
}

func (c *fakeConn) SendRaw(b []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.raw <- b:
	default:
	}
	return nil
}

func (c *fakeConn) Receive() (*stanza.Element, error) {
	select {
	case el := <-c.in:
		return el, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// deliver hands raw XML to the session as if the server had sent it.
func (c *fakeConn) deliver(t *testing.T, raw string) {
	t.Helper()
	el, err := stanza.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse inbound: %v", err)
	}
	select {
	case c.in <- el:
	case <-time.After(waitTimeout):
		t.Fatalf("session did not accept inbound stanza")
	}
}

func (c *fakeConn) nextSent(t *testing.T) *stanza.Element {
	t.Helper()
	select {
	case el := <-c.sent:
		return el
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for outbound stanza")
		return nil
	}
}

func (c *fakeConn) expectNothingSent(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case el := <-c.sent:
		t.Fatalf("unexpected outbound stanza: %s", el)
	case <-time.After(d):
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	creds []Credentials
	conns chan *fakeConn
	// fail makes every dial fail when set.
	fail error
	// hangup closes each connection right after it is handed out.
	hangup bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, creds Credentials) (Conn, error) {
	d.mu.Lock()
	d.creds = append(d.creds, creds)
	d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	conn := newFakeConn(creds.JID + "/agent")
	if d.hangup {
		_ = conn.Close()
	}
	select {
	case d.conns <- conn:
	default:
	}
	return conn, nil
}

func (d *fakeDialer) dialed() []Credentials {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Credentials, len(d.creds))
	copy(out, d.creds)
	return out
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for dial")
		return nil
	}
}

var errDialRefused = errors.New("connection refused")

type harness struct {
	m      *Manager
	dialer *fakeDialer
	store  store.Store
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, cfg Config, defs ...command.Definition) *harness {
	t.Helper()
	reg := command.NewRegistry()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	if cfg.Credentials.JID == "" {
		cfg.Credentials.JID = "agent@example.com"
	}
	if cfg.Logger == nil {
		cfg.Logger = common.NopLogger()
	}
	h := &harness{dialer: newFakeDialer(), store: memstore.New()}
	m, err := New(cfg, h.dialer, command.NewDispatcher(reg, cfg.Logger), h.store, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.sleep = func(context.Context, time.Duration) error { return nil }
	h.m = m
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.m.Run(ctx) }()
	t.Cleanup(func() { h.stop(t) })
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(waitTimeout):
		t.Errorf("run did not stop after cancellation")
	}
}

// connect starts the session and consumes the initial presence.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	h.start(t)
	conn := h.dialer.nextConn(t)
	presence := conn.nextSent(t)
	if presence.Name != common.StanzaPresence {
		t.Fatalf("expected presence first, got %s", presence)
	}
	return conn
}
