// Package tcp connects sessions over a plain TCP XML stream.
//
// The stream is opened addressed to the JID domain and used as-is: there is
// no SASL or TLS negotiation, so the peer must be a relay that already
// trusts this host.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/younglifestyle/conflate4go/codec"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/session"
	"github.com/younglifestyle/conflate4go/stanza"
)

const (
	DefaultPort     = "5222"
	DefaultResource = "conflate"
	bufferSize      = 4096
)

// ErrInvalidJID is returned for an address without a domain.
var ErrInvalidJID = errors.New("tcp: invalid jid")

// Dialer opens XML streams. The zero value is ready to use.
type Dialer struct {
	// Resource is appended to JIDs that carry none.
	Resource string
	Logger   common.Logger
	// NetDialer overrides the network dialer.
	NetDialer *net.Dialer
}

var _ session.Dialer = (*Dialer)(nil)

func (d *Dialer) Dial(ctx context.Context, creds session.Credentials) (session.Conn, error) {
	local, domain, resource, err := SplitJID(creds.JID)
	if err != nil {
		return nil, err
	}
	if resource == "" {
		resource = d.Resource
		if resource == "" {
			resource = DefaultResource
		}
	}
	bare := domain
	if local != "" {
		bare = local + "@" + domain
	}

	addr := creds.Host
	if addr == "" {
		addr = domain
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}

	nd := d.NetDialer
	if nd == nil {
		nd = &net.Dialer{}
	}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = nc.SetWriteDeadline(deadline)
	}

	cc, err := codec.Bufio(codec.XMLStream(), bufferSize, bufferSize).NewCodec(nc)
	if err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("create codec: %w", err)
	}
	if err := cc.SendRaw(codec.StreamOpen(domain, bare)); err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("open stream to %s: %w", addr, err)
	}
	_ = nc.SetWriteDeadline(time.Time{})

	common.OrNop(d.Logger).Debug("stream opened", "addr", addr, "jid", bare+"/"+resource)
	return &Conn{codec: cc, jid: bare + "/" + resource}, nil
}

// SplitJID splits local@domain/resource. Local and resource may be empty.
func SplitJID(jid string) (local, domain, resource string, err error) {
	rest := jid
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest, resource = rest[:i], rest[i+1:]
	}
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		local, rest = rest[:i], rest[i+1:]
	}
	if rest == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidJID, jid)
	}
	return local, rest, resource, nil
}

// Conn is one open stream.
type Conn struct {
	codec codec.Codec
	jid   string

	sendMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) BoundJID() string { return c.jid }

func (c *Conn) Send(el *stanza.Element) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.codec.Send(el)
}

func (c *Conn) SendRaw(b []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.codec.SendRaw(b)
}

func (c *Conn) Receive() (*stanza.Element, error) {
	return c.codec.Receive()
}

// Close ends the stream and closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		endErr := c.codec.SendRaw([]byte(codec.StreamClose))
		c.sendMu.Unlock()
		if errors.Is(endErr, net.ErrClosed) {
			endErr = nil
		}
		c.closeErr = multierr.Combine(endErr, c.codec.Close())
	})
	return c.closeErr
}
