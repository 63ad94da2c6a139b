package codec

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/atomic"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

// StreamClose ends an XML stream.
const StreamClose = "</stream:stream>"

// StreamOpen renders the opening tag of a client stream addressed to domain.
func StreamOpen(domain, from string) []byte {
	var b strings.Builder
	b.WriteString("<?xml version='1.0'?>")
	b.WriteString("<stream:stream")
	fmt.Fprintf(&b, " to=%q", domain)
	if from != "" {
		fmt.Fprintf(&b, " from=%q", from)
	}
	fmt.Fprintf(&b, " xmlns=%q xmlns:stream=%q version=\"1.0\">", common.NSClient, common.NSStreams)
	return []byte(b.String())
}

type XMLStreamProtocol struct{}

// XMLStream returns the protocol for newline-agnostic XML stanza streams.
func XMLStream() *XMLStreamProtocol {
	return &XMLStreamProtocol{}
}

func (p *XMLStreamProtocol) NewCodec(rw io.ReadWriter) (Codec, error) {
	c := &xmlStreamCodec{rw: rw, dec: stanza.NewDecoder(rw)}
	c.closer, _ = rw.(io.Closer)
	return c, nil
}

type xmlStreamCodec struct {
	rw     io.ReadWriter
	closer io.Closer
	dec    *stanza.Decoder
	closed atomic.Bool
}

func (c *xmlStreamCodec) Send(el *stanza.Element) error {
	if c.closed.Load() {
		return ErrClosed
	}
	_, err := el.WriteTo(c.rw)
	return err
}

func (c *xmlStreamCodec) SendRaw(b []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	_, err := c.rw.Write(b)
	return err
}

func (c *xmlStreamCodec) Receive() (*stanza.Element, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.dec.Next()
}

func (c *xmlStreamCodec) PeerHeader() *stanza.Element {
	return c.dec.Header()
}

func (c *xmlStreamCodec) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
