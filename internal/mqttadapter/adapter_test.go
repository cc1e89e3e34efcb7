package mqttadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundIfFloat_roundsFractional(t *testing.T) {
	assert.Equal(t, 30.12, roundIfFloat(30.12345))
}

func TestRoundIfFloat_leavesIntegralFloatUnrounded(t *testing.T) {
	assert.Equal(t, 30.0, roundIfFloat(30.0))
}

func TestRoundIfFloat_passesThroughNonFloat(t *testing.T) {
	assert.Equal(t, "On", roundIfFloat("On"))
}

func TestAdapter_topicJoinsPrefixAndSuffix(t *testing.T) {
	a := &Adapter{topicPrefix: "ehs"}
	assert.Equal(t, "ehs/known/devices", a.topic(a.topicPrefix, "known/devices"))
}

func TestAdapter_topicNoPrefix(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "known/devices", a.topic("", "known/devices"))
}

func TestStringifyValue_floatRendersAsPlainDecimal(t *testing.T) {
	assert.Equal(t, "30.12", stringifyValue(30.12))
	assert.Equal(t, "30", stringifyValue(30.0))
}

func TestStringifyValue_stringPassesThroughUnchanged(t *testing.T) {
	assert.Equal(t, "On", stringifyValue("On"))
}
