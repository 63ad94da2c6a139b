package stanza

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// StreamRoot is the name of the element that wraps a session's stanzas.
const StreamRoot = "stream:stream"

const (
	// MaxDepth bounds element nesting inside one stanza.
	MaxDepth = 256
	// MaxStanzaSize bounds the bytes read for one stanza.
	MaxStanzaSize = 1 << 20
)

var (
	// ErrNoElement is returned by Parse when the input holds no element.
	ErrNoElement = errors.New("stanza: no element")
	// ErrMismatchedEnd is returned when an end tag does not close the open element.
	ErrMismatchedEnd = errors.New("stanza: mismatched end element")
	// ErrTooDeep is returned for a stanza nested deeper than MaxDepth.
	ErrTooDeep = errors.New("stanza: element nesting too deep")
	// ErrTooLarge is returned for a stanza larger than MaxStanzaSize.
	ErrTooLarge = errors.New("stanza: stanza too large")
)

// Decoder reads successive top-level elements from a stream. A leading
// <stream:stream> start tag is consumed and kept as the stream header; its end
// tag is reported as io.EOF.
type Decoder struct {
	dec      *xml.Decoder
	in       *budgetReader
	header   *Element
	maxDepth int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	in := &budgetReader{r: r, size: MaxStanzaSize}
	return &Decoder{dec: xml.NewDecoder(in), in: in, maxDepth: MaxDepth}
}

// budgetReader fails once more than size bytes were read since the last
// reset.
type budgetReader struct {
	r        io.Reader
	size     int
	left     int
	exceeded bool
}

func (b *budgetReader) reset() { b.left = b.size }

func (b *budgetReader) Read(p []byte) (int, error) {
	if b.left <= 0 {
		b.exceeded = true
		return 0, ErrTooLarge
	}
	if len(p) > b.left {
		p = p[:b.left]
	}
	n, err := b.r.Read(p)
	b.left -= n
	return n, err
}

// Header returns the stream header once it has been read, or nil.
func (d *Decoder) Header() *Element {
	return d.header
}

// Next returns the next complete top-level element.
func (d *Decoder) Next() (*Element, error) {
	for {
		d.in.reset()
		tok, err := d.dec.RawToken()
		if err != nil {
			return nil, d.readErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := rawName(t.Name)
			if name == StreamRoot {
				d.header = fromStart(t)
				continue
			}
			return d.readElement(t)
		case xml.EndElement:
			if rawName(t.Name) == StreamRoot {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: </%s>", ErrMismatchedEnd, rawName(t.Name))
		}
		// Whitespace keepalives, comments and processing instructions between
		// stanzas carry nothing.
	}
}

// readElement reads up to the end tag matching start. Nesting is tracked on
// an explicit stack so hostile input cannot grow the goroutine stack.
func (d *Decoder) readElement(start xml.StartElement) (*Element, error) {
	type frame struct {
		el   *Element
		text bytes.Buffer
	}
	root := &frame{el: fromStart(start)}
	stack := []*frame{root}
	for {
		tok, err := d.dec.RawToken()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, d.readErr(err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) >= d.maxDepth {
				return nil, fmt.Errorf("%w: more than %d levels in <%s>", ErrTooDeep, d.maxDepth, root.el.Name)
			}
			child := fromStart(t)
			top.el.Children = append(top.el.Children, child)
			stack = append(stack, &frame{el: child})
		case xml.EndElement:
			if name := rawName(t.Name); name != top.el.Name {
				return nil, fmt.Errorf("%w: </%s> closes <%s>", ErrMismatchedEnd, name, top.el.Name)
			}
			top.el.Text = top.text.String()
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return root.el, nil
			}
		case xml.CharData:
			top.text.Write(t)
		}
	}
}

func (d *Decoder) readErr(err error) error {
	if d.in.exceeded {
		return fmt.Errorf("%w: limit %d bytes", ErrTooLarge, d.in.size)
	}
	return err
}

// Parse decodes a single element from data.
func Parse(data []byte) (*Element, error) {
	el, err := NewDecoder(bytes.NewReader(data)).Next()
	if err == io.EOF {
		return nil, ErrNoElement
	}
	return el, err
}

func fromStart(start xml.StartElement) *Element {
	el := New(rawName(start.Name))
	for _, a := range start.Attr {
		el.Attrs = append(el.Attrs, Attr{Name: rawName(a.Name), Value: a.Value})
	}
	return el
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
