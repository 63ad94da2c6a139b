package codec

import (
	"bufio"
	"io"

	"go.uber.org/multierr"

	"github.com/younglifestyle/conflate4go/stanza"
)

// Bufio wraps base so that reads go through a readBuf-sized buffer and
// writes are collected in a writeBuf-sized buffer flushed after every
// stanza. A size of zero disables that side's buffer.
func Bufio(base Protocol, readBuf, writeBuf int) Protocol {
	return &bufferedProtocol{base: base, readSize: readBuf, writeSize: writeBuf}
}

type bufferedProtocol struct {
	base      Protocol
	readSize  int
	writeSize int
}

func (p *bufferedProtocol) NewCodec(rw io.ReadWriter) (Codec, error) {
	conn := &bufferedConn{r: rw, w: rw}
	if p.readSize > 0 {
		conn.r = bufio.NewReaderSize(rw, p.readSize)
	}
	if p.writeSize > 0 {
		conn.bw = bufio.NewWriterSize(rw, p.writeSize)
		conn.w = conn.bw
	}
	conn.closer, _ = rw.(io.Closer)

	inner, err := p.base.NewCodec(conn)
	if err != nil {
		return nil, err
	}
	return &bufferedCodec{Codec: inner, conn: conn}, nil
}

// bufferedConn hides the underlying Closer from the inner codec so the
// connection is closed exactly once, by bufferedCodec.
type bufferedConn struct {
	r      io.Reader
	w      io.Writer
	bw     *bufio.Writer
	closer io.Closer
}

func (c *bufferedConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *bufferedConn) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *bufferedConn) flush() error {
	if c.bw == nil {
		return nil
	}
	return c.bw.Flush()
}

type bufferedCodec struct {
	Codec
	conn *bufferedConn
}

func (c *bufferedCodec) Send(el *stanza.Element) error {
	if err := c.Codec.Send(el); err != nil {
		return err
	}
	return c.conn.flush()
}

func (c *bufferedCodec) SendRaw(b []byte) error {
	if err := c.Codec.SendRaw(b); err != nil {
		return err
	}
	return c.conn.flush()
}

func (c *bufferedCodec) Close() error {
	err := c.Codec.Close()
	if c.conn.closer != nil {
		err = multierr.Append(err, c.conn.closer.Close())
	}
	return err
}
