package services

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was absent from one sent as null and
// one sent with a value. The zero value is absent.
type Optional[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Some returns a present optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

// Null returns a present optional explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{Present: true, Null: true}
}

// HasValue reports whether a non-null value was supplied.
func (o Optional[T]) HasValue() bool {
	return o.Present && !o.Null
}

// UnmarshalJSON is only called by encoding/json for keys present in the
// document, including literal nulls.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null, o.Value = true, zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// apply returns current when o is absent, nil for null, and the value
// otherwise.
func (o Optional[T]) apply(current *T) *T {
	switch {
	case !o.Present:
		return current
	case o.Null:
		return nil
	default:
		v := o.Value
		return &v
	}
}
