package session

import (
	"context"
	"errors"

	"github.com/younglifestyle/conflate4go/stanza"
)

var (
	// ErrNotConnected is returned when sending while no connection is bound.
	ErrNotConnected = errors.New("session: connection not established")
	// ErrLoopExited is returned by Run when the session loop stops for any
	// reason other than cancellation.
	ErrLoopExited = errors.New("session: loop exited without cancellation")
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("session: already running")
)

// Credentials identify the agent to the messaging server.
type Credentials struct {
	JID      string
	Password string
	// Host overrides the server derived from the JID domain.
	Host string
}

// Conn is an authenticated, bound stanza stream.
type Conn interface {
	// BoundJID is the full address the server assigned to this connection.
	BoundJID() string
	Send(el *stanza.Element) error
	SendRaw(b []byte) error
	// Receive blocks for the next inbound stanza. It fails once the stream
	// ends or Close is called.
	Receive() (*stanza.Element, error)
	Close() error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, creds Credentials) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, creds Credentials) (Conn, error) {
	return f(ctx, creds)
}
