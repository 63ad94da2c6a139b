package command

import (
	"errors"
	"fmt"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

// Category classifies a command failure.
type Category int

const (
	// CategoryNotFound: the command name is not registered.
	CategoryNotFound Category = iota + 1
	// CategoryBadArgument: the handler rejected the form contents.
	CategoryBadArgument
	// CategoryInternal: the handler failed.
	CategoryInternal
	// CategoryMalformed: the inbound stanza is structurally invalid.
	CategoryMalformed
)

func (c Category) String() string {
	switch c {
	case CategoryNotFound:
		return "NotFound"
	case CategoryBadArgument:
		return "BadArgument"
	case CategoryInternal:
		return "InternalError"
	case CategoryMalformed:
		return "MalformedRequest"
	default:
		return "Unknown"
	}
}

// Wire error codes and conditions.
const (
	CodeBadRequest = "400"
	CodeNotFound   = "404"
	CodeInternal   = "500"

	ConditionBadRequest     = "bad-request"
	ConditionItemNotFound   = "item-not-found"
	ConditionInternalServer = "internal-server-error"

	SpecificBadPayload      = "bad-payload"
	SpecificMalformedAction = "malformed-action"
)

var (
	// ErrUnknownCommand is wrapped by NotFound errors.
	ErrUnknownCommand = errors.New("command: unknown command")
	// ErrBadArgument is wrapped by BadArgument errors.
	ErrBadArgument = errors.New("command: bad argument")
	// ErrHandlerFailed is wrapped by Internal errors.
	ErrHandlerFailed = errors.New("command: handler failed")
	// ErrMalformedRequest is wrapped by Malformed errors.
	ErrMalformedRequest = errors.New("command: malformed request")
)

// Error is a command failure together with its wire representation.
type Error struct {
	Category          Category
	Code              string
	Condition         string
	SpecificNS        string
	SpecificCondition string
	Err               error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s %s): %v", e.Category, e.Code, e.Condition, e.Err)
	}
	return fmt.Sprintf("%s (%s %s)", e.Category, e.Code, e.Condition)
}

func (e *Error) Unwrap() error { return e.Err }

// Element renders the error child of an error reply.
//
//	<error type="modify" code="400">
//	  <bad-request xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/>
//	  <bad-payload xmlns="http://jabber.org/protocol/commands"/>
//	</error>
func (e *Error) Element() *stanza.Element {
	el := stanza.New("error").SetAttr("type", "modify").SetAttr("code", e.Code)
	el.AddChild(stanza.NewNS(e.Condition, common.NSStanzas))
	if e.SpecificNS != "" && e.SpecificCondition != "" {
		el.AddChild(stanza.NewNS(e.SpecificCondition, e.SpecificNS))
	}
	return el
}

// NotFound builds the error for an unregistered command name.
func NotFound(name string) *Error {
	return &Error{
		Category:  CategoryNotFound,
		Code:      CodeNotFound,
		Condition: ConditionItemNotFound,
		Err:       fmt.Errorf("%w %q", ErrUnknownCommand, name),
	}
}

// BadArgument builds the error for a handler reporting ResultBadArgument.
func BadArgument(name string) *Error {
	return &Error{
		Category:          CategoryBadArgument,
		Code:              CodeBadRequest,
		Condition:         ConditionBadRequest,
		SpecificNS:        common.NSCommands,
		SpecificCondition: SpecificBadPayload,
		Err:               fmt.Errorf("%w for %q", ErrBadArgument, name),
	}
}

// Internal builds the error for a failed handler.
func Internal(name string, cause error) *Error {
	err := fmt.Errorf("%w: %q", ErrHandlerFailed, name)
	if cause != nil {
		err = fmt.Errorf("%w: %q: %w", ErrHandlerFailed, name, cause)
	}
	return &Error{
		Category:  CategoryInternal,
		Code:      CodeInternal,
		Condition: ConditionInternalServer,
		Err:       err,
	}
}

// Malformed builds the error for a structurally invalid request.
func Malformed(cause error) *Error {
	return &Error{
		Category:          CategoryMalformed,
		Code:              CodeBadRequest,
		Condition:         ConditionBadRequest,
		SpecificNS:        common.NSCommands,
		SpecificCondition: SpecificMalformedAction,
		Err:               fmt.Errorf("%w: %w", ErrMalformedRequest, cause),
	}
}

// CategoryOf returns the category of a command error, or 0 when err is not one.
func CategoryOf(err error) Category {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Category
	}
	return 0
}
