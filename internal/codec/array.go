// Package codec converts numeric observations and actions to and from the
// plain nested JSON numbers carried on the wire.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotNumeric is returned when a JSON value is not a number or a
// rectangular nested list of numbers.
var ErrNotNumeric = errors.New("not a numeric value")

// Array is a row-major numeric array. An empty shape means a scalar.
type Array struct {
	shape []int
	data  []float64
}

// Scalar returns a 0-d array holding v.
func Scalar(v float64) Array {
	return Array{data: []float64{v}}
}

// Int returns a 0-d array holding the integer v.
func Int(v int) Array {
	return Scalar(float64(v))
}

// Vector returns a 1-d array of vs.
func Vector(vs ...float64) Array {
	data := make([]float64, len(vs))
	copy(data, vs)
	return Array{shape: []int{len(vs)}, data: data}
}

// Float32s returns a 1-d array of vs widened to float64, so the wire carries
// exactly the float32 values.
func Float32s(vs ...float32) Array {
	data := make([]float64, len(vs))
	for i, v := range vs {
		data[i] = float64(v)
	}
	return Array{shape: []int{len(vs)}, data: data}
}

// New returns an array with the given shape. len(data) must equal the
// product of shape.
func New(shape []int, data []float64) (Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Array{}, fmt.Errorf("negative dimension %d", d)
		}
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	a := Array{shape: append([]int(nil), shape...), data: append([]float64(nil), data...)}
	return a, nil
}

// Shape returns a copy of the array's dimensions.
func (a Array) Shape() []int { return append([]int(nil), a.shape...) }

// Values returns a copy of the elements in row-major order.
func (a Array) Values() []float64 { return append([]float64(nil), a.data...) }

// Len returns the number of elements.
func (a Array) Len() int { return len(a.data) }

// IsScalar reports whether the array is 0-d.
func (a Array) IsScalar() bool { return len(a.shape) == 0 && len(a.data) == 1 }

// Float returns the value of a scalar array.
func (a Array) Float() (float64, error) {
	if !a.IsScalar() {
		return 0, fmt.Errorf("expected a scalar, got shape %v", a.shape)
	}
	return a.data[0], nil
}

// AsInt returns the value of a scalar array that holds an integer.
func (a Array) AsInt() (int, error) {
	v, err := a.Float()
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, fmt.Errorf("expected an integer, got %v", v)
	}
	return int(v), nil
}

// Equal reports whether a and b have the same shape and elements.
func (a Array) Equal(b Array) bool {
	if len(a.shape) != len(b.shape) || len(a.data) != len(b.data) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

func (a Array) String() string {
	data, err := a.MarshalJSON()
	if err != nil {
		return "<invalid array>"
	}
	return string(data)
}

// MarshalJSON encodes scalars as numbers and arrays as nested lists.
func (a Array) MarshalJSON() ([]byte, error) {
	for _, v := range a.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("codec: cannot encode non-finite value %v", v)
		}
	}
	if len(a.shape) == 0 {
		if len(a.data) != 1 {
			return []byte("null"), nil
		}
		return json.Marshal(a.data[0])
	}
	nested, _ := nest(a.shape, a.data)
	return json.Marshal(nested)
}

func nest(shape []int, data []float64) (any, []float64) {
	if len(shape) == 0 {
		return data[0], data[1:]
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i], data = nest(shape[1:], data)
	}
	return out, data
}

// UnmarshalJSON accepts a number or a rectangular nested list of numbers.
// Unlike most decoders it rejects null: an absent value is never a valid
// observation or action.
func (a *Array) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	shape, data, err := flatten(v)
	if err != nil {
		return err
	}
	a.shape, a.data = shape, data
	return nil
}

func flatten(v any) ([]int, []float64, error) {
	switch x := v.(type) {
	case float64:
		return nil, []float64{x}, nil
	case []any:
		if len(x) == 0 {
			return []int{0}, []float64{}, nil
		}
		var inner []int
		var data []float64
		for i, el := range x {
			s, d, err := flatten(el)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				inner = s
			} else if !sameShape(inner, s) {
				return nil, nil, fmt.Errorf("%w: ragged list (element %d has shape %v, want %v)", ErrNotNumeric, i, s, inner)
			}
			data = append(data, d...)
		}
		return append([]int{len(x)}, inner...), data, nil
	case nil:
		return nil, nil, fmt.Errorf("%w: null", ErrNotNumeric)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrNotNumeric, jsonKind(x))
	}
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
	}
}

// Decode parses raw JSON into an Array.
func Decode(raw json.RawMessage) (Array, error) {
	var a Array
	if err := a.UnmarshalJSON(raw); err != nil {
		return Array{}, err
	}
	return a, nil
}
