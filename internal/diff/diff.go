// Package diff produces structural diffs between two configs of the
// same resource type. Each field is either unchanged or carries its
// old and new value. The reconciler never mutates state; the resource
// manager consumes its predicates to decide which side effects an
// update implies.
package diff

import (
	"encoding/json"
	"slices"
)

// Field records the change to a single config field. The zero value
// means unchanged, which keeps unchanged fields out of rendered diffs
// via omitzero.
type Field[T any] struct {
	Changed bool
	Old     T
	New     T
}

// IsZero reports whether the field is unchanged.
func (f Field[T]) IsZero() bool { return !f.Changed }

// MarshalJSON renders a changed field as {"old": ..., "new": ...}.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Old T `json:"old"`
		New T `json:"new"`
	}{f.Old, f.New})
}

// Compare diffs two comparable values.
func Compare[T comparable](oldVal, newVal T) Field[T] {
	if oldVal == newVal {
		return Field[T]{}
	}
	return Field[T]{Changed: true, Old: oldVal, New: newVal}
}

// CompareSlices diffs two slices element-wise.
func CompareSlices[T comparable](oldVal, newVal []T) Field[[]T] {
	if slices.Equal(oldVal, newVal) {
		return Field[[]T]{}
	}
	return Field[[]T]{Changed: true, Old: oldVal, New: newVal}
}

// CompareFunc diffs two values with a caller-supplied equality.
func CompareFunc[T any](oldVal, newVal T, eq func(T, T) bool) Field[T] {
	if eq(oldVal, newVal) {
		return Field[T]{}
	}
	return Field[T]{Changed: true, Old: oldVal, New: newVal}
}

// Render pretty-prints a diff record for inclusion as the first log of
// an update operation.
func Render(d any) string {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
