package command

import (
	"errors"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/stanza"
)

// ErrFieldsetAfterFlat is reported when a handler asks for a new fieldset
// after it already wrote fields directly into the result container.
var ErrFieldsetAfterFlat = errors.New("command: fieldset requested after flat fields")

type fieldMode int

const (
	modeNone fieldMode = iota
	modeFlat
	modeGrouped
)

// ResponseBuilder accumulates the data payload of a command reply. A reply
// is either flat (fields directly in the container) or grouped (fields in
// <item> children); the first write decides.
type ResponseBuilder struct {
	cmd       *stanza.Element
	container *stanza.Element
	current   *stanza.Element
	mode      fieldMode
	err       error
}

// NewResponseBuilder writes into the command result section cmd.
func NewResponseBuilder(cmd *stanza.Element) *ResponseBuilder {
	return &ResponseBuilder{cmd: cmd}
}

// EnsureContainer adds the result form to the reply once.
func (rb *ResponseBuilder) EnsureContainer() *stanza.Element {
	if rb.container == nil {
		rb.container = stanza.NewNS("x", common.NSDataForms).SetAttr("type", "result")
		rb.cmd.AddChild(rb.container)
	}
	return rb.container
}

// AddFields writes one field with any number of values to the current
// fieldset. An empty key writes nothing.
func (rb *ResponseBuilder) AddFields(key string, values ...string) {
	rb.EnsureContainer()
	if key == "" {
		return
	}
	if rb.mode == modeNone {
		rb.current = rb.container
		rb.mode = modeFlat
	}
	form.EncodeField(rb.current, key, values)
}

// AddField writes a single-valued field.
func (rb *ResponseBuilder) AddField(key, value string) {
	rb.AddFields(key, value)
}

// NextFieldset starts a new <item> group. It fails once flat fields exist;
// the failure is remembered and turns the reply into an internal error.
func (rb *ResponseBuilder) NextFieldset() error {
	rb.EnsureContainer()
	if rb.mode == modeFlat {
		rb.err = ErrFieldsetAfterFlat
		return rb.err
	}
	rb.mode = modeGrouped
	rb.current = rb.container.NewChild("item")
	return nil
}

// Err returns the first builder misuse, if any.
func (rb *ResponseBuilder) Err() error { return rb.err }

// Container returns the result form, or nil when nothing was written.
func (rb *ResponseBuilder) Container() *stanza.Element { return rb.container }
