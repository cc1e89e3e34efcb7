package nasa

import "errors"

// Sentinel errors for packet parsing, matching the disposition table of
// the error handling design. All but ErrFrameMisaligned are returned by
// Parse; all are recoverable - callers drop the offending frame or packet
// and continue.
var (
	// ErrTooShort is returned when fewer than the minimum 14 bytes are
	// available to form a packet.
	ErrTooShort = errors.New("nasa: packet too short")
	// ErrUnknownAddressClass is returned when the source or destination
	// address class byte is outside the known enumeration.
	ErrUnknownAddressClass = errors.New("nasa: unknown address class")
	// ErrUnknownPacketType is returned when the packet type nibble is
	// outside the known enumeration.
	ErrUnknownPacketType = errors.New("nasa: unknown packet type")
	// ErrUnknownDataType is returned when the data type nibble is outside
	// the known enumeration.
	ErrUnknownDataType = errors.New("nasa: unknown data type")
	// ErrCRCMismatch is returned when the recomputed CRC does not match
	// the CRC stored in the packet.
	ErrCRCMismatch = errors.New("nasa: crc mismatch")
	// ErrUnknownMessageType is returned when a message number's type bits
	// fall outside {0,1,2,3}.
	ErrUnknownMessageType = errors.New("nasa: unknown message type")
	// ErrStructureRequiresCapacityOne is returned when a type-3 (structure)
	// message appears in a packet whose capacity is not 1.
	ErrStructureRequiresCapacityOne = errors.New("nasa: structure message requires capacity of 1")
	// ErrOversizePayload is returned when a message payload exceeds 255 bytes.
	ErrOversizePayload = errors.New("nasa: payload exceeds 255 bytes")
	// ErrTrailingBytes is returned when bytes remain after extracting the
	// declared capacity of messages.
	ErrTrailingBytes = errors.New("nasa: trailing bytes after capacity messages")
	// ErrFrameMisaligned names the case of a candidate frame whose last
	// byte is not the end marker. FrameReader does not return it: it logs
	// such a frame as a warning and drops it.
	ErrFrameMisaligned = errors.New("nasa: frame misaligned, missing end byte")
)
