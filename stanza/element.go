// Package stanza models the XML elements exchanged over the messaging session.
//
// Namespace declarations are kept as plain "xmlns" attributes and prefixed names
// keep their prefix ("stream:stream"), so an element reads back exactly as the
// peer wrote it.
package stanza

import (
	"bytes"
	"encoding/xml"
	"io"
)

// Attr is a single attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of a stanza tree. Character data directly inside the
// element is accumulated in Text.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	Text     string
}

// New creates an element with the given name.
func New(name string) *Element {
	return &Element{Name: name}
}

// NewNS creates an element with the given name and xmlns attribute.
func NewNS(name, ns string) *Element {
	return New(name).SetAttr("xmlns", ns)
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrValue returns the value of the named attribute or "" when absent.
func (e *Element) AttrValue(name string) string {
	v, _ := e.Attr(name)
	return v
}

// SetAttr sets or replaces an attribute and returns e for chaining.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// CopyAttr copies the named attribute from src when src carries it.
func (e *Element) CopyAttr(src *Element, name string) *Element {
	if v, ok := src.Attr(name); ok {
		e.SetAttr(name, v)
	}
	return e
}

func (e *Element) NS() string   { return e.AttrValue("xmlns") }
func (e *Element) ID() string   { return e.AttrValue("id") }
func (e *Element) Type() string { return e.AttrValue("type") }
func (e *Element) From() string { return e.AttrValue("from") }
func (e *Element) To() string   { return e.AttrValue("to") }

// SetText replaces the character data of e.
func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// AddChild appends children and returns e.
func (e *Element) AddChild(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// NewChild appends a new child element and returns the child.
func (e *Element) NewChild(name string) *Element {
	child := New(name)
	e.Children = append(e.Children, child)
	return child
}

// Child returns the first child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildNS returns the first child with the given name and namespace, or nil.
func (e *Element) ChildNS(name, ns string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name && c.NS() == ns {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children with the given name in document order.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first child element, or nil.
func (e *Element) FirstChild() *Element {
	if e == nil || len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// WriteTo serializes e to w.
func (e *Element) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	e.write(&buf)
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Bytes returns the serialized element.
func (e *Element) Bytes() []byte {
	var buf bytes.Buffer
	e.write(&buf)
	return buf.Bytes()
}

func (e *Element) String() string {
	return string(e.Bytes())
}

func (e *Element) write(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(e.Name)
	for _, a := range e.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		escape(buf, a.Value)
		buf.WriteByte('"')
	}
	if len(e.Children) == 0 && e.Text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	escape(buf, e.Text)
	for _, c := range e.Children {
		c.write(buf)
	}
	buf.WriteString("</")
	buf.WriteString(e.Name)
	buf.WriteByte('>')
}

func escape(buf *bytes.Buffer, s string) {
	// bytes.Buffer writes never fail.
	_ = xml.EscapeText(buf, []byte(s))
}
