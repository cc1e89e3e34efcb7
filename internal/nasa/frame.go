package nasa

import "go.uber.org/zap"

// frameState is the byte-level reframer's scanning state.
type frameState int

const (
	stateIdle frameState = iota
	stateFraming
)

// FrameReader reassembles raw transport bytes into complete NASA frames. It
// implements the idle/framing state machine of the transport design: in
// idle it watches for the (0x32, 0x00) start sequence; once framing it
// accumulates bytes until the declared size is reached, then checks the
// trailing byte for 0x34 before handing the frame to the caller. It is
// tolerant of bus noise - a misaligned or truncated candidate frame is
// logged and dropped rather than treated as fatal, since the NASA bus is a
// shared medium other controllers also write to.
type FrameReader struct {
	logger *zap.Logger
	state  frameState
	buf    []byte
}

// NewFrameReader builds a FrameReader that logs discarded frames to logger.
// A nil logger is treated as a no-op logger.
func NewFrameReader(logger *zap.Logger) *FrameReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameReader{logger: logger, state: stateIdle}
}

// Feed appends newly read bytes to the reader and returns every complete
// frame extracted as a result. Frames are returned in the order found;
// misaligned candidates are dropped internally and never surface as frames.
func (f *FrameReader) Feed(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		switch f.state {
		case stateIdle:
			switch {
			case len(f.buf) == 1 && f.buf[0] == StartByte && b == 0x00:
				f.buf = append(f.buf, b)
				f.state = stateFraming
			case b == StartByte:
				f.buf = []byte{b}
			default:
				f.buf = f.buf[:0]
			}
		case stateFraming:
			f.buf = append(f.buf, b)
			if len(f.buf) < 3 {
				continue
			}
			// The declared size field is the total frame length minus 2 -
			// see Packet.Serialize - so the frame is complete once the
			// buffer holds declared+2 bytes.
			declared := int(uint16(f.buf[1])<<8|uint16(f.buf[2])) + 2
			if len(f.buf) < declared {
				continue
			}

			frame := make([]byte, len(f.buf))
			copy(frame, f.buf)
			if frame[len(frame)-1] == EndByte {
				frames = append(frames, frame)
			} else {
				f.logger.Warn("nasa: frame misaligned, missing end byte, resynchronizing",
					zap.Binary("frame", frame))
			}
			f.buf = f.buf[:0]
			f.state = stateIdle
		}
	}
	return frames
}

// Reset discards any partially accumulated frame and returns to idle. Used
// when the underlying transport connection is re-established.
func (f *FrameReader) Reset() {
	f.buf = f.buf[:0]
	f.state = stateIdle
}
