package mqttadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownDevices_addIsIdempotentAndOrdered(t *testing.T) {
	k := newKnownDevices()
	assert.True(t, k.add("A"))
	assert.True(t, k.add("B"))
	assert.False(t, k.add("A"))
	assert.Equal(t, []string{"A", "B"}, k.names())
	assert.Equal(t, "A,B", k.joined())
}

func TestKnownDevices_clearEmptiesSet(t *testing.T) {
	k := newKnownDevices()
	k.add("A")
	k.clear()
	assert.Empty(t, k.names())
	assert.False(t, k.contains("A"))
}

func TestKnownDevices_loadRetainedReplacesContents(t *testing.T) {
	k := newKnownDevices()
	k.add("STALE")
	k.loadRetained("A, B ,C")
	assert.Equal(t, []string{"A", "B", "C"}, k.names())
	assert.False(t, k.contains("STALE"))
}

func TestKnownDevices_loadRetainedEmptyPayloadClears(t *testing.T) {
	k := newKnownDevices()
	k.add("A")
	k.loadRetained(" ")
	assert.Empty(t, k.names())
}
