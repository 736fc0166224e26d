// Package nullable carries PATCH fields that distinguish "absent" from
// "explicitly null".
//
// A zero Value is absent.  Tag fields `json:"name,omitzero"` so absent
// values drop out when a patch is encoded into a store document while an
// explicit null survives as JSON null.
package nullable

import (
	"bytes"
	"encoding/json"
)

// Value is an optional, nullable T.
type Value[T any] struct {
	Set  bool // field present in the payload
	Null bool // present and null
	V    T
}

// Of returns a present, non-null value.
func Of[T any](v T) Value[T] { return Value[T]{Set: true, V: v} }

// Null returns a present null.
func Null[T any]() Value[T] { return Value[T]{Set: true, Null: true} }

// IsZero reports absence; encoding/json consults it for omitzero.
func (n Value[T]) IsZero() bool { return !n.Set }

// Ptr returns nil for absent or null, else a pointer to the value.
func (n Value[T]) Ptr() *T {
	if !n.Set || n.Null {
		return nil
	}
	v := n.V
	return &v
}

func (n Value[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

func (n *Value[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		var zero T
		n.V = zero
		return nil
	}
	n.Null = false
	return json.Unmarshal(b, &n.V)
}

/*──────────────────────────── blank strings ────────────────────────────────*/

// Blank returns nil for nil or "", else p.  Form clients send "" for an
// unset optional field.
func Blank(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}

// BlankAsNull turns a present "" into an explicit null.
func BlankAsNull(v Value[string]) Value[string] {
	if v.Set && !v.Null && v.V == "" {
		return Null[string]()
	}
	return v
}
