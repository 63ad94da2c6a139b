// Package codec frames stanzas on a byte stream.
package codec

import (
	"errors"
	"io"

	"github.com/younglifestyle/conflate4go/stanza"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("codec: closed")

// Protocol creates a codec over one connection.
type Protocol interface {
	NewCodec(rw io.ReadWriter) (Codec, error)
}

// Codec reads and writes stanzas of a single stream.
type Codec interface {
	Send(el *stanza.Element) error
	// SendRaw writes b verbatim, e.g. the stream header or keepalive bytes.
	SendRaw(b []byte) error
	Receive() (*stanza.Element, error)
	// PeerHeader returns the peer's stream header once it has been read.
	PeerHeader() *stanza.Element
	Close() error
}
