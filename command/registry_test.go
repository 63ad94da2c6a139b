package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nopHandler(context.Context, *Request, *ResponseBuilder) Result { return ResultOK }

func TestRegistryOrderAndReplace(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"set_private", "get_private", "ping_test"} {
		if err := reg.Register(Definition{Name: name, Description: name, Handler: nopHandler}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := reg.Register(Definition{Name: "get_private", Description: "replaced", Handler: nopHandler}); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	defs := reg.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"set_private", "get_private", "ping_test"}, names)
	assert.Equal(t, "replaced", defs[1].Description)
	assert.Equal(t, 3, reg.Len())

	def, ok := reg.Lookup("ping_test")
	assert.True(t, ok)
	assert.Equal(t, "ping_test", def.Name)
	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	tests := []Definition{
		{Name: "", Handler: nopHandler},
		{Name: "nohandler"},
	}
	for _, def := range tests {
		assert.ErrorIs(t, reg.Register(def), ErrInvalidDefinition)
	}
	assert.Zero(t, reg.Len())
}

func TestRegistryFreeze(t *testing.T) {
	reg := NewRegistry()
	assert.NoError(t, reg.Register(Definition{Name: "a", Handler: nopHandler}))
	reg.Freeze()
	assert.True(t, reg.Frozen())
	assert.ErrorIs(t, reg.Register(Definition{Name: "b", Handler: nopHandler}), ErrRegistryFrozen)
	_, ok := reg.Lookup("a")
	assert.True(t, ok)
}

func TestResultNames(t *testing.T) {
	assert.Equal(t, "OK", ResultOK.String())
	assert.Equal(t, "BADARG", ResultBadArgument.String())
	assert.Equal(t, "ERROR", ResultError.String())
}
