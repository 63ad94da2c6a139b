package form

import (
	"errors"
	"fmt"

	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/stanza"
)

// ErrMissingVar is returned when a field element carries no var attribute.
var ErrMissingVar = errors.New("form: field without var attribute")

// Decode builds a Form from field elements in document order. Non-field
// elements are skipped. When a var repeats, the last occurrence wins.
func Decode(fields []*stanza.Element) (*Form, error) {
	f := New()
	for i, field := range fields {
		if field.Name != "field" {
			continue
		}
		key, ok := field.Attr("var")
		if !ok {
			return nil, fmt.Errorf("%w (field %d)", ErrMissingVar, i)
		}
		var values []string
		for _, v := range field.ChildrenNamed("value") {
			values = append(values, v.Text)
		}
		f.Set(key, values...)
	}
	return f, nil
}

// DecodeCommand decodes the data form carried by a command element. A command
// without an x child decodes to an empty form.
func DecodeCommand(cmd *stanza.Element) (*Form, error) {
	x := cmd.Child("x")
	if x == nil {
		return New(), nil
	}
	return Decode(x.Children)
}

// EncodeField appends a field with one value child per value to parent.
func EncodeField(parent *stanza.Element, key string, values []string) *stanza.Element {
	field := parent.NewChild("field").SetAttr("var", key)
	for _, v := range values {
		field.NewChild("value").SetText(v)
	}
	return field
}

// Encode writes f as a complete data form of the given type ("submit",
// "result", ...).
func Encode(f *Form, formType string) *stanza.Element {
	x := stanza.NewNS("x", common.NSDataForms).SetAttr("type", formType)
	for _, p := range f.Pairs() {
		EncodeField(x, p.Key, p.Values)
	}
	return x
}
