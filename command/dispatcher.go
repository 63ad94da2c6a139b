package command

import (
	"context"
	"fmt"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/stanza"
)

// Dispatcher routes command requests to registered handlers and turns
// their outcome into a reply envelope.
type Dispatcher struct {
	registry *Registry
	logger   common.Logger
}

func NewDispatcher(registry *Registry, logger common.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: common.OrNop(logger)}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch runs the command name carried by cmd. req is the enclosing
// stanza and addresses the reply. direct is false when the command arrived
// as a broadcast event; the reply is still built so callers can log it.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, req, cmd *stanza.Element, direct bool) *Envelope {
	env := newEnvelope(name, req, cmd, direct)

	def, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.Warn("unknown command", "command", name, "from", req.From(), "direct", direct)
		env.attachError(NotFound(name))
		return env
	}

	f, err := form.DecodeCommand(cmd)
	if err != nil {
		d.logger.Warn("malformed command form", "command", name, "error", err)
		env.attachError(Malformed(err))
		return env
	}

	request := &Request{
		Command:   name,
		Direct:    direct,
		From:      req.From(),
		SessionID: cmd.AttrValue("sessionid"),
		Form:      f,
	}
	rb := NewResponseBuilder(env.Command)
	rv, err := d.invokeHandler(ctx, def.Handler, request, rb)
	env.Result = rv
	d.logger.Debug("command result", "command", name, "result", rv.String(), "direct", direct)

	switch {
	case err != nil:
		d.logger.Error("command handler failed", "command", name, "error", err)
		env.attachError(Internal(name, err))
	case rb.Err() != nil:
		d.logger.Error("command reply misuse", "command", name, "error", rb.Err())
		env.attachError(Internal(name, rb.Err()))
	case rv == ResultError:
		env.attachError(Internal(name, nil))
	case rv == ResultBadArgument:
		env.attachError(BadArgument(name))
	}
	return env
}

// Reject builds an error reply without consulting the registry.
func (d *Dispatcher) Reject(name string, req, cmd *stanza.Element, cause *Error) *Envelope {
	env := newEnvelope(name, req, cmd, true)
	env.attachError(cause)
	return env
}

func (d *Dispatcher) invokeHandler(ctx context.Context, h Handler, req *Request, rb *ResponseBuilder) (rv Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			rv = ResultError
			if cause, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", cause)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return h(ctx, req, rb), nil
}

// RequireDirect wraps a handler that must only run for addressed requests.
// Event delivery is refused with ResultError and logged.
func RequireDirect(logger common.Logger, h Handler) Handler {
	logger = common.OrNop(logger)
	return func(ctx context.Context, req *Request, rb *ResponseBuilder) Result {
		if !req.Direct {
			logger.Error("direct-only command delivered as event", "command", req.Command, "from", req.From)
			return ResultError
		}
		return h(ctx, req, rb)
	}
}
