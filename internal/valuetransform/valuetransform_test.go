package valuetransform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForward(t *testing.T) {
	var testCases = []struct {
		name   string
		expr   string
		value  float64
		expect float64
	}{
		{name: "empty expression is identity", expr: "", value: 42, expect: 42},
		{name: "divide", expr: "value / 10", expect: 2.5, value: 25},
		{name: "scale and offset", expr: "value * 0.1 + 5", value: 20, expect: 7},
		{name: "parentheses change precedence", expr: "(value + 2) * 10", value: 3, expect: 50},
		{name: "unary minus", expr: "-value", value: 4, expect: -4},
		{name: "modulo", expr: "value % 3", value: 10, expect: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Forward(tc.expr, tc.value)
			assert.NoError(t, err)
			assert.InDelta(t, tc.expect, got, 0.0001)
		})
	}
}

func TestForward_errors(t *testing.T) {
	var testCases = []struct {
		name string
		expr string
	}{
		{name: "unknown identifier", expr: "raw_value / 10"},
		{name: "division by zero", expr: "value / 0"},
		{name: "trailing garbage", expr: "value 10"},
		{name: "unmatched paren", expr: "(value + 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Forward(tc.expr, 1)
			assert.Error(t, err)
		})
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.235, Round(1.23456, 3))
	assert.Equal(t, 6285.0, Round(6285.00001, 4))
}

func TestDecodeSTR(t *testing.T) {
	var testCases = []struct {
		name    string
		payload []byte
		expect  string
	}{
		{name: "plain ascii", payload: []byte("R410a"), expect: "R410a"},
		{name: "padding bytes become spaces and get trimmed", payload: []byte{0x00, 'O', 'K', 0xFF}, expect: "OK"},
		{name: "non printable falls back to decimal join", payload: []byte{0x41, 0x01, 0x42}, expect: "65 1 66"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, DecodeSTR(tc.payload))
		})
	}
}

func TestDecodeEnum(t *testing.T) {
	mapping := map[int64]string{0: "Off", 1: "On"}
	assert.Equal(t, "On", DecodeEnum(1, mapping))
	assert.Equal(t, "Unknown enum value: 7", DecodeEnum(7, mapping))
}

func TestReverseEnum(t *testing.T) {
	mapping := map[int64]string{0: "Off", 1: "On"}
	raw, ok := ReverseEnum("On", mapping)
	assert.True(t, ok)
	assert.Equal(t, int64(1), raw)

	_, ok = ReverseEnum("Unknown", mapping)
	assert.False(t, ok)
}

func TestReverseNumeric(t *testing.T) {
	raw, err := ReverseNumeric("value * 10", "2.5")
	assert.NoError(t, err)
	assert.Equal(t, int64(25), raw)

	_, err = ReverseNumeric("value * 10", "not-a-number")
	assert.Error(t, err)
}
