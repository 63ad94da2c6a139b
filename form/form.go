// Package form converts between data-form field trees and an ordered key to
// value-list structure.
package form

import (
	"time"

	"github.com/spf13/cast"
)

// KeyValueList is one key and its values in document order.
type KeyValueList struct {
	Key    string
	Values []string
}

// Form is an ordered collection of KeyValueLists. Setting an existing key
// replaces its values and keeps the key's original position.
//
// The zero value is an empty form ready to use.
type Form struct {
	keys   []string
	values map[string][]string
}

// New returns an empty form.
func New() *Form {
	return &Form{}
}

// FromPairs builds a form from pairs; later duplicates overwrite earlier ones.
func FromPairs(pairs ...KeyValueList) *Form {
	f := New()
	for _, p := range pairs {
		f.Set(p.Key, p.Values...)
	}
	return f
}

// Set stores values under key, overwriting any previous values.
func (f *Form) Set(key string, values ...string) {
	if f.values == nil {
		f.values = make(map[string][]string)
	}
	if _, exists := f.values[key]; !exists {
		f.keys = append(f.keys, key)
	}
	stored := make([]string, len(values))
	copy(stored, values)
	f.values[key] = stored
}

// Get returns the values stored under key.
func (f *Form) Get(key string) ([]string, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// Value returns the first value stored under key. A key present with no
// values reports false.
func (f *Form) Value(key string) (string, bool) {
	v, ok := f.Get(key)
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Int converts the first value under key to an int.
func (f *Form) Int(key string) (int, bool, error) {
	v, ok := f.Value(key)
	if !ok {
		return 0, false, nil
	}
	n, err := cast.ToIntE(v)
	return n, true, err
}

// Duration converts the first value under key to a duration. Bare numbers
// are read as nanoseconds, so callers usually send "250ms" or "2s".
func (f *Form) Duration(key string) (time.Duration, bool, error) {
	v, ok := f.Value(key)
	if !ok {
		return 0, false, nil
	}
	d, err := cast.ToDurationE(v)
	return d, true, err
}

// Keys returns the keys in order.
func (f *Form) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of keys.
func (f *Form) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Pairs returns the form's contents in order.
func (f *Form) Pairs() []KeyValueList {
	if f == nil {
		return nil
	}
	out := make([]KeyValueList, 0, len(f.keys))
	for _, k := range f.keys {
		values := make([]string, len(f.values[k]))
		copy(values, f.values[k])
		out = append(out, KeyValueList{Key: k, Values: values})
	}
	return out
}
