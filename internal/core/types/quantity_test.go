package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityString(t *testing.T) {
	tests := []struct {
		q    Quantity
		want string
	}{
		{NewQuantityFromInt(0), "0.0000"},
		{NewQuantityFromInt(5), "5.0000"},
		{NewQuantityFromInt64Scaled(12_5000), "12.5000"},
		{NewQuantityFromInt64Scaled(1), "0.0001"},
		{NewQuantityFromInt64Scaled(-7_2500), "-0.7250"},
		{NewQuantityFromInt(-3), "-3.0000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.q.String())
	}
}

func TestQuantityMarshalJSON_IsNumber(t *testing.T) {
	type doc struct {
		Qty Quantity `json:"qty"`
	}
	data, err := json.Marshal(doc{Qty: NewQuantityFromInt64Scaled(10_2500)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":10.2500}`, string(data))
}

func TestQuantityUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Quantity
	}{
		{"integer", `10`, NewQuantityFromInt(10)},
		{"decimal", `2.5`, NewQuantityFromInt64Scaled(2_5000)},
		{"string number", `"7.25"`, NewQuantityFromInt64Scaled(7_2500)},
		{"negative", `-1.5`, NewQuantityFromInt64Scaled(-1_5000)},
		{"null is zero", `null`, 0},
		{"extra digits truncated", `0.123456`, NewQuantityFromInt64Scaled(1234)},
		{"exponent form", `1e2`, NewQuantityFromInt(100)},
		{"leading dot", `.5`, NewQuantityFromInt64Scaled(5000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			require.NoError(t, json.Unmarshal([]byte(tt.in), &q))
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestQuantityUnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"abc"`, `""`, `"1.2.3"`} {
		var q Quantity
		assert.Error(t, json.Unmarshal([]byte(in), &q), in)
	}
}

func TestQuantityRoundTripStaysExact(t *testing.T) {
	// 0.1 is not representable in binary floating point; the scaled
	// integer form keeps it exact through a marshal cycle.
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`0.1`), &q))
	assert.Equal(t, NewQuantityFromInt64Scaled(1000), q)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Equal(t, "0.1000", string(data))
}

func TestQuantityArithmeticHelpers(t *testing.T) {
	a := NewQuantityFromInt(3)
	b := NewQuantityFromInt(5)

	assert.Equal(t, a, a.Min(b))
	assert.Equal(t, a, b.Min(a))
	assert.Equal(t, NewQuantityFromInt(-3), a.Neg())
	assert.Equal(t, a, a.Neg().Abs())
	assert.True(t, a.IsPositive())
	assert.True(t, a.Neg().IsNegative())
	assert.True(t, Quantity(0).IsZero())
	assert.InDelta(t, 3.0, a.Float64(), 1e-9)
}
