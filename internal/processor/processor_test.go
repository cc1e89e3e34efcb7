package processor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpbridge/nasa-ehs-bridge/internal/nasa"
	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
)

type recordingSink struct {
	published []publishCall
}

type publishCall struct {
	name  string
	value any
}

func (s *recordingSink) Publish(pt *repository.Point, value any) error {
	s.published = append(s.published, publishCall{name: pt.Name, value: value})
	return nil
}

func (s *recordingSink) find(name string) (any, bool) {
	for _, c := range s.published {
		if c.name == name {
			return c.value, true
		}
	}
	return nil, false
}

const testRepoYAML = `
outdoor_return_temp:
  address: "0x8001"
  type: VAR
  arithmetic: "value / 10"

outdoor_supply_temp:
  address: "0x8002"
  type: VAR
  arithmetic: "value / 10"

flow_sensor_calc:
  address: "0x8003"
  type: VAR
  arithmetic: "value / 10"

total_wattmeter:
  address: "0x8004"
  type: VAR
  arithmetic: "value / 10"

MODE:
  address: "0x4001"
  type: ENUM
  enum:
    0: Off
    1: On
`

func buildPacket(t *testing.T, srcClass nasa.AddressClass, dataType nasa.DataType, msgs []nasa.Message) nasa.Packet {
	t.Helper()
	p := nasa.Packet{
		SourceClass: srcClass,
		DestClass:   nasa.BroadcastSetLayer,
		Type:        nasa.PacketNormal,
		DataType:    dataType,
		Capacity:    uint8(len(msgs)),
		Messages:    msgs,
	}
	return p
}

func varMessage(t *testing.T, addr uint16, tenths int16) nasa.Message {
	t.Helper()
	payload := []byte{byte(tenths >> 8), byte(tenths)}
	return nasa.NewMessage(addr, payload)
}

func TestProcessor_S6_derivedMetricsChain(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	sink := &recordingSink{}
	p := New(repo, sink, Config{})

	// wattmeter = 1.5 already present before the temperature/flow updates.
	p.Process(buildPacket(t, nasa.Outdoor, nasa.DataNotification, []nasa.Message{
		varMessage(t, 0x8004, 15),
	}))

	p.Process(buildPacket(t, nasa.Outdoor, nasa.DataNotification, []nasa.Message{
		varMessage(t, 0x8002, 350), // TW2 = 35.0
		varMessage(t, 0x8001, 300), // TW1 = 30.0
		varMessage(t, 0x8003, 180), // flow = 18.0
	}))

	heatOutput, ok := sink.find(NameHeatOutput)
	require.True(t, ok, "HEAT_OUTPUT should have been published")
	assert.InDelta(t, 6285.0, heatOutput, 0.0001)

	cop, ok := sink.find(NameCOP)
	require.True(t, ok, "COP should have been published")
	assert.InDelta(t, 4.190, cop, 0.0001)
}

func TestProcessor_unknownPointCounted(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	sink := &recordingSink{}
	p := New(repo, sink, Config{})

	p.Process(buildPacket(t, nasa.Outdoor, nasa.DataNotification, []nasa.Message{
		nasa.NewMessage(0xABCD, []byte{0x00, 0x01}),
	}))

	assert.Equal(t, uint64(1), p.Stats.UnknownCount())
	assert.Empty(t, sink.published)
}

func TestProcessor_sourceFilterDropsUnexpectedSource(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	sink := &recordingSink{}
	p := New(repo, sink, Config{})

	p.Process(buildPacket(t, nasa.RMC, nasa.DataNotification, []nasa.Message{
		varMessage(t, 0x8001, 300),
	}))

	assert.Empty(t, sink.published)
}

func TestProcessor_wifiKitBroadcastSelfNotificationSilentlyDropped(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	sink := &recordingSink{}
	p := New(repo, sink, Config{})

	pkt := buildPacket(t, nasa.WiFiKit, nasa.DataNotification, []nasa.Message{
		varMessage(t, 0x8001, 300),
	})
	pkt.DestClass = nasa.BroadcastSelfLayer
	p.Process(pkt)

	assert.Empty(t, sink.published)
}

func TestProcessor_enumDecode(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	sink := &recordingSink{}
	p := New(repo, sink, Config{})

	p.Process(buildPacket(t, nasa.Indoor, nasa.DataNotification, []nasa.Message{
		nasa.NewMessage(0x4001, []byte{0x01}),
	}))

	v, ok := sink.find("MODE")
	require.True(t, ok)
	assert.Equal(t, "On", v)
}

func TestProcessor_protocolLogAppendsCSVLine(t *testing.T) {
	repo, err := repository.Parse([]byte(testRepoYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	sink := &recordingSink{}
	p := New(repo, sink, Config{ProtocolLog: &buf})

	p.Process(buildPacket(t, nasa.Indoor, nasa.DataNotification, []nasa.Message{
		varMessage(t, 0x8001, 300),
	}))

	assert.Contains(t, buf.String(), "outdoor_return_temp")
}
