package model

import (
	"bytes"
	"encoding/json"
)

// Field is an optional catalog value. Missing keys, JSON null, and values of
// the wrong JSON type all leave Present false; a type mismatch is kept in Err
// so callers can log it without failing the record.
type Field[T any] struct {
	Value   T
	Present bool
	Err     error
}

// Some returns a present Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// UnmarshalJSON never returns an error.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	*f = Field[T]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		f.Err = err
		return nil
	}
	f.Value = v
	f.Present = true
	return nil
}

// MarshalJSON writes the value, or null when absent.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Get returns the value and whether it was present.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Present
}

// Or returns the value, or def when absent.
func (f Field[T]) Or(def T) T {
	if !f.Present {
		return def
	}
	return f.Value
}
