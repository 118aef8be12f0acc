package codec

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	matrix, err := New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   Array
		want string
	}{
		{"int_scalar", Int(3), `3`},
		{"float_scalar", Scalar(-1.1), `-1.1`},
		{"vector", Vector(0.5, 1, -2), `[0.5,1,-2]`},
		{"matrix_row_major", matrix, `[[1,2,3],[4,5,6]]`},
		{"empty_vector", Vector(), `[]`},
		{"float32_widened", Float32s(float32(math.Cos(1))), `[0.5403022766113281]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestMarshal_NonFinite(t *testing.T) {
	_, err := json.Marshal(Vector(1, math.NaN()))
	assert.Error(t, err)
	_, err = json.Marshal(Scalar(math.Inf(1)))
	assert.Error(t, err)
}

func TestDecode_InfersShape(t *testing.T) {
	a, err := Decode(json.RawMessage(`[[1,2],[3,4],[5,6]]`))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, a.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, a.Values())

	a, err = Decode(json.RawMessage(`2`))
	require.NoError(t, err)
	assert.True(t, a.IsScalar())
	n, err := a.AsInt()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDecode_Rejects(t *testing.T) {
	for _, raw := range []string{`null`, `"rock"`, `true`, `{"a":1}`, `[1,[2]]`, `[[1,2],[3]]`, `[1,"x"]`} {
		_, err := Decode(json.RawMessage(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrNotNumeric), "%s: %v", raw, err)
	}
}

func TestRoundTrip_PreservesOrderAndValues(t *testing.T) {
	orig, err := New([]int{2, 2, 2}, []float64{0.1, -0.2, 1e-9, 12345.678, math.Pi, -math.E, 0, 7})
	require.NoError(t, err)

	data, err := json.Marshal(orig)
	require.NoError(t, err)
	var back Array
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, orig.Equal(back), "got %s want %s", back, orig)
}

func TestAsInt(t *testing.T) {
	_, err := Scalar(1.5).AsInt()
	assert.Error(t, err)
	_, err = Vector(1).AsInt()
	assert.Error(t, err, "a one-element vector is not a scalar")
	n, err := Scalar(4).AsInt()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNew_ShapeMismatch(t *testing.T) {
	_, err := New([]int{2, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
	_, err = New([]int{-1}, nil)
	assert.Error(t, err)
}
