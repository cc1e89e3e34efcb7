// Package producer builds NASA read- and write-request packets and sends
// them through a Transport-provided sender, chunking large read groups and
// pacing requests the way the bus expects.
package producer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/nasa"
	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
	"github.com/hpbridge/nasa-ehs-bridge/internal/valuetransform"
)

const (
	// ChunkSize is the maximum number of messages requested in a single
	// read packet - experience on the bus shows more than this overloads
	// a single packet.
	ChunkSize = 10

	// interChunkPause is the required gap between consecutive chunks of a
	// multi-chunk read.
	interChunkPause = 500 * time.Millisecond

	// writeSettleDelay is how long a write waits before the confirming
	// follow-up read, giving the unit time to apply the change.
	writeSettleDelay = 1 * time.Second
)

// Sender submits a serialized frame to the transport's write side. It
// blocks until the frame has been handed off (or ctx is done), so that
// Producer's inter-chunk and post-write pacing has well-defined timing.
type Sender interface {
	Send(ctx context.Context, frame []byte) error
}

// Sleeper abstracts time.Sleep so tests can run without the real pacing
// delays; a nil Sleeper defaults to a context-aware real sleep.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config configures a Producer.
type Config struct {
	Logger *zap.Logger
	Sender Sender
	Repo   *repository.Repository

	// SourceClass is the address class the bridge identifies itself as
	// on outgoing packets. Deployments vary between a JIGTester-looking
	// client and a WiFiKit-looking one depending on what the installed
	// indoor unit firmware tolerates.
	SourceClass nasa.AddressClass

	Sleep Sleeper
}

// Producer builds and sends read/write request packets.
type Producer struct {
	logger      *zap.Logger
	sender      Sender
	repo        *repository.Repository
	sourceClass nasa.AddressClass
	sleep       Sleeper

	packetNumber atomic.Uint32
}

// New builds a Producer. SourceClass defaults to JIGTester when zero.
func New(conf Config) *Producer {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sourceClass := conf.SourceClass
	if sourceClass == 0 {
		sourceClass = nasa.JIGTester
	}
	sleep := conf.Sleep
	if sleep == nil {
		sleep = realSleep
	}
	return &Producer{
		logger:      logger,
		sender:      conf.Sender,
		repo:        conf.Repo,
		sourceClass: sourceClass,
		sleep:       sleep,
	}
}

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) nextPacketNumber() uint8 {
	return uint8(p.packetNumber.Add(1))
}

// Read requests the current value of every named point, splitting the
// request into chunks of at most ChunkSize and pacing chunks
// interChunkPause apart.
func (p *Producer) Read(ctx context.Context, points []string) error {
	for i := 0; i < len(points); i += ChunkSize {
		if i > 0 {
			if err := p.sleep(ctx, interChunkPause); err != nil {
				return err
			}
		}
		end := i + ChunkSize
		if end > len(points) {
			end = len(points)
		}
		if err := p.sendReadChunk(ctx, points[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Producer) sendReadChunk(ctx context.Context, names []string) error {
	messages := make([]nasa.Message, 0, len(names))
	for _, name := range names {
		pt, ok := p.repo.ByName(name)
		if !ok {
			p.logger.Warn("read request references unknown point, skipping", zap.String("point", name))
			continue
		}
		width := payloadWidth(pt.Type)
		messages = append(messages, nasa.NewMessage(pt.Address, make([]byte, width)))
	}
	if len(messages) == 0 {
		return nil
	}

	pkt := nasa.Packet{
		SourceClass:   p.sourceClass,
		SourceChannel: 0xFF,
		DestClass:     nasa.BroadcastSetLayer,
		DestAddress:   32,
		Information:   true,
		Version:       2,
		Type:          nasa.PacketNormal,
		DataType:      nasa.DataRead,
		Number:        p.nextPacketNumber(),
		Capacity:      uint8(len(messages)),
		Messages:      messages,
	}
	frame := pkt.Serialize()
	return p.sender.Send(ctx, frame)
}

// Write sends a single-message write-request packet for point, encoding
// textual through the point's reverse transform, then - if followUpRead is
// set - waits writeSettleDelay and issues a confirming Read for that point.
func (p *Producer) Write(ctx context.Context, point, textual string, followUpRead bool) error {
	pt, ok := p.repo.ByName(point)
	if !ok {
		return fmt.Errorf("producer: unknown point %q", point)
	}

	raw, err := p.reverseTransform(pt, textual)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	width := payloadWidth(pt.Type)
	payload := encodeSignedInt(raw, width)
	msg := nasa.NewMessage(pt.Address, payload)

	pkt := nasa.Packet{
		SourceClass: p.sourceClass,
		DestClass:   nasa.Indoor,
		Information: true,
		Version:     2,
		Type:        nasa.PacketNormal,
		DataType:    nasa.DataRequest,
		Number:      p.nextPacketNumber(),
		Capacity:    1,
		Messages:    []nasa.Message{msg},
	}
	frame := pkt.Serialize()
	if err := p.sender.Send(ctx, frame); err != nil {
		return err
	}

	if !followUpRead {
		return nil
	}
	if err := p.sleep(ctx, writeSettleDelay); err != nil {
		return err
	}
	return p.Read(ctx, []string{point})
}

func (p *Producer) reverseTransform(pt *repository.Point, textual string) (int64, error) {
	if pt.Type == repository.TypeENUM {
		raw, ok := valuetransform.ReverseEnum(textual, pt.Enum)
		if !ok {
			return 0, fmt.Errorf("value %q is not a known enum label for %q", textual, pt.Name)
		}
		return raw, nil
	}
	return valuetransform.ReverseNumeric(pt.ReverseArithmetic, textual)
}

// payloadWidth returns the wire payload width in bytes for a point's
// semantic type. STR points are not writable/pollable through this path
// and fall back to the 1-byte ENUM width, matching type-3's exclusion from
// outgoing traffic (spec §4.1).
func payloadWidth(t repository.PointType) int {
	switch t {
	case repository.TypeVAR:
		return 2
	case repository.TypeLVAR:
		return 4
	default:
		return 1
	}
}

func encodeSignedInt(v int64, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
