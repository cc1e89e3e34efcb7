// Package processor decodes parsed NASA packets message-by-message, applies
// the point repository's transform rules, maintains the value store derived
// metrics read from, and publishes results to a sink (normally the MQTT
// adapter).
package processor

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/nasa"
	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
	"github.com/hpbridge/nasa-ehs-bridge/internal/valuetransform"
)

// Synthetic addresses for derived metrics. They never trigger further
// derivation beyond the explicit chain HEAT_OUTPUT -> COP.
const (
	AddrHeatOutput uint16 = 0x9999
	AddrCOP        uint16 = 0x9998
	AddrTotalCOP   uint16 = 0x9997
)

// Point names the derived metrics watch and publish under. The distilled
// spec names these descriptively rather than by their real repository
// identifiers; a deployment's repository file is expected to define points
// under exactly these names for the derived metrics to engage.
const (
	PointOutdoorReturnTemp         = "outdoor_return_temp" // TW1
	PointOutdoorSupplyTemp         = "outdoor_supply_temp" // TW2
	PointFlowSensorCalc            = "flow_sensor_calc"
	PointTotalWattmeter            = "total_wattmeter"
	PointAccumulatedWattmeter      = "accumulated_wattmeter"
	PointAccumulatedGeneratedPower = "accumulated_generated_power"

	NameHeatOutput = "HEAT_OUTPUT"
	NameCOP        = "COP"
	NameTotalCOP   = "TOTAL_COP"
)

// Sink receives decoded point values for publishing, normally the MQTT
// adapter. Implementations must not block indefinitely - a slow sink stalls
// the whole ingress path, since processing is single-threaded per spec §5.
type Sink interface {
	Publish(point *repository.Point, value any) error
}

// Stats tracks processor-wide counters, notably unknown-point occurrences.
type Stats struct {
	mu               sync.Mutex
	unknownCount     uint64
	unknownByAddress map[uint16]uint64
}

// IncUnknown records an occurrence of a message number with no matching
// repository entry.
func (s *Stats) IncUnknown(addr uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unknownByAddress == nil {
		s.unknownByAddress = make(map[uint16]uint64)
	}
	s.unknownCount++
	s.unknownByAddress[addr]++
}

// UnknownCount returns the total number of unknown-point occurrences seen.
func (s *Stats) UnknownCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unknownCount
}

// Config configures a Processor.
type Config struct {
	Logger *zap.Logger
	// ProtocolLog receives one CSV line per decoded message when non-nil.
	ProtocolLog io.Writer
	// LogUnknownPoints enables info-level logging of unmatched addresses;
	// otherwise they are only counted in Stats.
	LogUnknownPoints bool
}

// Processor decodes messages from parsed packets, maintains the value
// store, computes derived metrics, and publishes results to Sink.
type Processor struct {
	logger           *zap.Logger
	repo             *repository.Repository
	sink             Sink
	logUnknownPoints bool

	protocolLog *csv.Writer

	mu     sync.Mutex
	values map[string]float64

	Stats Stats
}

// New builds a Processor. A nil logger is treated as a no-op logger.
func New(repo *repository.Repository, sink Sink, conf Config) *Processor {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var w *csv.Writer
	if conf.ProtocolLog != nil {
		w = csv.NewWriter(conf.ProtocolLog)
	}
	return &Processor{
		logger:           logger,
		repo:             repo,
		sink:             sink,
		logUnknownPoints: conf.LogUnknownPoints,
		protocolLog:      w,
		values:           make(map[string]float64),
	}
}

// Process decodes every message in pkt, in wire order, applying the source
// filter first. Per-message decode errors are logged and skip only that
// message; they never abort the rest of the packet.
func (p *Processor) Process(pkt nasa.Packet) {
	if !p.passesSourceFilter(pkt) {
		p.logger.Debug("dropping packet from unexpected source",
			zap.String("source_class", pkt.SourceClass.String()),
			zap.String("data_type", pkt.DataType.String()),
		)
		return
	}

	for _, msg := range pkt.Messages {
		p.processMessage(msg)
	}
}

// passesSourceFilter implements the §4.3 source filter: only Indoor and
// Outdoor sources are accepted, except the known-benign WiFiKit notification
// to the broadcast-self layer, which is silently dropped (not logged).
func (p *Processor) passesSourceFilter(pkt nasa.Packet) bool {
	switch pkt.SourceClass {
	case nasa.Indoor, nasa.Outdoor:
		return true
	case nasa.WiFiKit:
		if pkt.DataType == nasa.DataNotification && pkt.DestClass == nasa.BroadcastSelfLayer {
			return false // benign, not logged
		}
	}
	p.logger.Warn("packet not from indoor/outdoor",
		zap.String("source_class", pkt.SourceClass.String()),
	)
	return false
}

func (p *Processor) processMessage(msg nasa.Message) {
	pt, ok := p.repo.ByAddress(msg.Number)
	if !ok {
		p.Stats.IncUnknown(msg.Number)
		if p.logUnknownPoints {
			p.logger.Info("message not found in repository",
				zap.Uint16("address", msg.Number),
				zap.Uint8("message_type", uint8(msg.Type)),
			)
		}
		return
	}

	value, err := p.decode(pt, msg)
	if err != nil {
		p.logger.Warn("failed to determine value, skipping message",
			zap.String("point", pt.Name),
			zap.Error(err),
		)
		return
	}

	p.publish(pt, value)
}

// decode applies the value-transform rules of §4.2 to msg's payload
// according to pt's semantic type.
func (p *Processor) decode(pt *repository.Point, msg nasa.Message) (any, error) {
	if pt.Type == repository.TypeSTR {
		return valuetransform.DecodeSTR(msg.Payload), nil
	}

	raw := decodeSignedInt(msg.Payload)

	if pt.Type == repository.TypeENUM {
		if len(pt.Enum) == 0 {
			return fmt.Sprintf("Unknown enum value: %d", raw), nil
		}
		return valuetransform.DecodeEnum(raw, pt.Enum), nil
	}

	v, err := valuetransform.Forward(pt.Arithmetic, float64(raw))
	if err != nil {
		p.logger.Warn("arithmetic function could not be applied, using raw value",
			zap.String("point", pt.Name),
			zap.String("arithmetic", pt.Arithmetic),
			zap.Error(err),
		)
		return float64(raw), nil
	}
	return valuetransform.Round(v, 3), nil
}

// publish records value into the value store (when numeric), writes the
// protocol log line, sends to Sink, and triggers any derived metrics that
// depend on pt.
func (p *Processor) publish(pt *repository.Point, value any) {
	p.logger.Debug("processed message",
		zap.String("point", pt.Name),
		zap.Any("value", value),
	)

	if f, ok := value.(float64); ok {
		p.mu.Lock()
		p.values[pt.Name] = f
		p.mu.Unlock()
	}

	p.appendProtocolLog(pt, value)

	if p.sink != nil {
		if err := p.sink.Publish(pt, value); err != nil {
			p.logger.Warn("failed to publish point", zap.String("point", pt.Name), zap.Error(err))
		}
	}

	p.triggerDerivedMetrics(pt.Name)
}

// appendProtocolLog writes one CSV line per decoded message: address, point
// name, semantic type, value - matching MessageProcessor.py's protocol log
// line shape (address, name, type, value).
func (p *Processor) appendProtocolLog(pt *repository.Point, value any) {
	if p.protocolLog == nil {
		return
	}
	_ = p.protocolLog.Write([]string{
		fmt.Sprintf("0x%04X", pt.Address),
		pt.Name,
		string(pt.Type),
		fmt.Sprintf("%v", value),
	})
	p.protocolLog.Flush()
}

// valueOf returns the stored numeric value for name, if any.
func (p *Processor) valueOf(name string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[name]
	return v, ok
}

// decodeSignedInt interprets up to 4 bytes, big-endian, as a signed
// integer - matching NASAMessage's int.from_bytes(..., signed=True).
func decodeSignedInt(payload []byte) int64 {
	var u uint64
	for _, b := range payload {
		u = u<<8 | uint64(b)
	}
	bits := uint(len(payload)) * 8
	if bits == 0 || bits >= 64 {
		return int64(u)
	}
	signBit := uint64(1) << (bits - 1)
	if u&signBit != 0 {
		return int64(u) - int64(uint64(1)<<bits)
	}
	return int64(u)
}
