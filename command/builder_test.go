package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

func TestEnsureContainerIdempotent(t *testing.T) {
	cmd := stanza.NewNS("command", common.NSCommands)
	rb := NewResponseBuilder(cmd)

	first := rb.EnsureContainer()
	second := rb.EnsureContainer()

	assert.Same(t, first, second)
	assert.Len(t, cmd.ChildrenNamed("x"), 1)
	assert.Equal(t, common.NSDataForms, first.NS())
}

func TestAddFieldEmptyKey(t *testing.T) {
	rb := NewResponseBuilder(stanza.New("command"))

	rb.AddField("", "ignored")

	assert.Empty(t, rb.Container().Children)
	assert.NoError(t, rb.NextFieldset(), "empty key must not fix flat mode")
}

func TestAddFieldsWithoutValues(t *testing.T) {
	rb := NewResponseBuilder(stanza.New("command"))

	rb.AddFields("empty")

	field := rb.Container().Child("field")
	if field == nil {
		t.Fatalf("field not written")
	}
	assert.Equal(t, "empty", field.AttrValue("var"))
	assert.Empty(t, field.Children)
}

func TestNextFieldsetAfterFlatRemembered(t *testing.T) {
	rb := NewResponseBuilder(stanza.New("command"))
	rb.AddField("a", "1")

	assert.ErrorIs(t, rb.NextFieldset(), ErrFieldsetAfterFlat)
	assert.ErrorIs(t, rb.Err(), ErrFieldsetAfterFlat)
	assert.Empty(t, rb.Container().ChildrenNamed("item"))
}
