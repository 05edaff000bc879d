package domain

import (
	"encoding/json"
	"fmt"
)

// FieldStatus tells whether a Field carries a usable value.
type FieldStatus uint8

const (
	StatusMissing FieldStatus = iota
	StatusOK
)

// String implements fmt.Stringer
func (s FieldStatus) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "missing"
}

// MissingReason explains why a Field has no value.
type MissingReason string

const (
	ReasonNone           MissingReason = ""
	ReasonEmpty          MissingReason = "empty"
	ReasonMarker         MissingReason = "marker"
	ReasonUnparseable    MissingReason = "unparseable"
	ReasonNoColumn       MissingReason = "no_column"
	ReasonUndefined      MissingReason = "undefined"
	ReasonDivisionByZero MissingReason = "division_by_zero"
)

// Field is a tagged result: either a value or a missing marker with a reason.
// Raw keeps the source text the value was derived from, if any.
//
// A missing Field never hands its zero Value to callers through Get, so an
// unparseable date can not silently become 0001-01-01.
type Field[T any] struct {
	Value  T             `json:"-"`
	Status FieldStatus   `json:"-"`
	Raw    string        `json:"-"`
	Reason MissingReason `json:"-"`
}

// Present builds a successful Field.
func Present[T any](v T, raw string) Field[T] {
	return Field[T]{Value: v, Status: StatusOK, Raw: raw}
}

// Missing builds a Field without a value.
func Missing[T any](raw string, reason MissingReason) Field[T] {
	return Field[T]{Status: StatusMissing, Raw: raw, Reason: reason}
}

// OK reports whether the field holds a value.
func (f Field[T]) OK() bool {
	return f.Status == StatusOK
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	if f.Status != StatusOK {
		var zero T
		return zero, false
	}
	return f.Value, true
}

// OrElse returns the value or def when missing.
func (f Field[T]) OrElse(def T) T {
	if v, ok := f.Get(); ok {
		return v
	}
	return def
}

// String renders the value, or a bracketed reason when missing.
func (f Field[T]) String() string {
	if v, ok := f.Get(); ok {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("<missing:%s>", f.Reason)
}

// MarshalJSON encodes the value, or null when missing.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if v, ok := f.Get(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}
