package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Number is the set of numeric kinds a Quantity can carry.
type Number interface {
	~int64 | ~float64
}

// Quantity is an optionally reported number. The zero value means "not
// reported", which is distinct from a reported zero.
type Quantity[T Number] struct {
	value T
	valid bool
}

// Some returns a reported quantity.
func Some[T Number](v T) Quantity[T] {
	return Quantity[T]{value: v, valid: true}
}

// None returns an unreported quantity.
func None[T Number]() Quantity[T] {
	return Quantity[T]{}
}

// Get returns the value and whether it was reported.
func (q Quantity[T]) Get() (T, bool) {
	return q.value, q.valid
}

// Valid reports whether the quantity was reported.
func (q Quantity[T]) Valid() bool {
	return q.valid
}

// OrZero returns the value, or zero when unreported. Only summation should
// use this.
func (q Quantity[T]) OrZero() T {
	if !q.valid {
		var zero T
		return zero
	}
	return q.value
}

// Negative reports whether a reported value is below zero.
func (q Quantity[T]) Negative() bool {
	return q.valid && q.value < 0
}

// String renders the value, or an empty string when unreported.
func (q Quantity[T]) String() string {
	if !q.valid {
		return ""
	}
	return formatRaw(q.value)
}

func formatRaw[T Number](v T) string {
	switch x := any(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (q Quantity[T]) MarshalJSON() ([]byte, error) {
	if !q.valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.value)
}

func (q *Quantity[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*q = Quantity[T]{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	var v T
	switch any(v).(type) {
	case int64:
		if f != math.Trunc(f) {
			return fmt.Errorf("quantity: %v is not a whole number", f)
		}
	}
	*q = Some(T(f))
	return nil
}
