package command

import (
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

// Envelope is the reply to one command request: an IQ result carrying the
// command result section, or an IQ error once an error is attached.
type Envelope struct {
	Name    string
	Direct  bool
	Reply   *stanza.Element
	Command *stanza.Element
	Result  Result
	Err     *Error
}

// newEnvelope addresses a reply to the sender of req and echoes its id.
func newEnvelope(name string, req, cmd *stanza.Element, direct bool) *Envelope {
	reply := stanza.New(common.StanzaIQ).SetAttr("type", common.IQTypeResult)
	reply.CopyAttr(req, "id")
	if from := req.From(); from != "" {
		reply.SetAttr("to", from)
	}

	res := stanza.NewNS("command", common.NSCommands)
	res.CopyAttr(cmd, "xmlns")
	res.SetAttr("node", name)
	res.CopyAttr(cmd, "sessionid")
	res.SetAttr("status", "completed")
	reply.AddChild(res)

	return &Envelope{Name: name, Direct: direct, Reply: reply, Command: res}
}

// attachError marks the reply as an error and appends the error child.
// Fields already written by the handler stay in the reply.
func (e *Envelope) attachError(err *Error) {
	e.Err = err
	e.Reply.SetAttr("type", common.IQTypeError)
	e.Reply.AddChild(err.Element())
}

// Failed reports whether the reply carries an error.
func (e *Envelope) Failed() bool { return e.Err != nil }

// Results returns the result form of the reply, or nil.
func (e *Envelope) Results() *stanza.Element {
	return e.Command.ChildNS("x", common.NSDataForms)
}

// Outcome labels the reply for logs and metrics.
func (e *Envelope) Outcome() string {
	if e.Err == nil {
		return OutcomeOK
	}
	switch e.Err.Category {
	case CategoryNotFound:
		return OutcomeNotFound
	case CategoryBadArgument:
		return OutcomeBadArgument
	case CategoryMalformed:
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}
