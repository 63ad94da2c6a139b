package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/younglifestyle/conflate4go/form"
)

var (
	// ErrRegistryFrozen is returned by Register once the session has started.
	ErrRegistryFrozen = errors.New("command: registry is frozen")
	// ErrInvalidDefinition is returned for a definition without name or handler.
	ErrInvalidDefinition = errors.New("command: invalid definition")
)

// Request is what a handler sees of an inbound command.
type Request struct {
	Command   string
	Direct    bool
	From      string
	SessionID string
	Form      *form.Form
}

// Handler executes one command. Fields written to rb form the reply payload.
type Handler func(ctx context.Context, req *Request, rb *ResponseBuilder) Result

// Definition binds a command name to its description and handler.
type Definition struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry maps command names to definitions. It is populated before the
// session starts and read-only afterwards.
type Registry struct {
	handlerMu sync.RWMutex
	defs      map[string]Definition
	order     []string
	frozen    atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def. Registering an existing name replaces its description
// and handler while keeping its original position in Definitions.
func (r *Registry) Register(def Definition) error {
	if r.frozen.Load() {
		return fmt.Errorf("%w: %q", ErrRegistryFrozen, def.Name)
	}
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("%w: %q", ErrInvalidDefinition, def.Name)
	}

	r.handlerMu.Lock()
	defer r.handlerMu.Unlock()
	if _, ok := r.defs[def.Name]; !ok {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.handlerMu.RLock()
	def, ok := r.defs[name]
	r.handlerMu.RUnlock()
	return def, ok
}

// Definitions lists every registered command in first-registration order.
func (r *Registry) Definitions() []Definition {
	r.handlerMu.RLock()
	defer r.handlerMu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.handlerMu.RLock()
	defer r.handlerMu.RUnlock()
	return len(r.order)
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() { r.frozen.Store(true) }

func (r *Registry) Frozen() bool { return r.frozen.Load() }
