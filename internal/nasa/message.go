package nasa

// Message is one point-level datum carried inside a Packet. Number is both
// the wire message-number word and the canonical point identifier used to
// look up a repository entry: repository addresses are recorded as the full
// 16-bit number (e.g. 0x4247), not the 9-bit field its low bits happen to
// occupy, matching how the bus itself is addressed.
type Message struct {
	Number  uint16
	Type    MessageType
	Payload []byte
}

// typeOf extracts bits 9-10 of a message number, selecting its payload width.
func typeOf(number uint16) MessageType {
	return MessageType((number >> 9) & 0x3)
}

// payloadLen returns the fixed payload length for message type t, or -1 for
// the variable-length structure type (MessageTypeStructure), whose length is
// the remainder of the packet.
func payloadLen(t MessageType) int {
	switch t {
	case MessageTypeEnum:
		return 1
	case MessageTypeVar:
		return 2
	case MessageTypeLVar:
		return 4
	default:
		return -1
	}
}

// NewMessage builds a Message for number carrying payload. The caller is
// responsible for ensuring payload's length matches the message type implied
// by number's bits 9-10.
func NewMessage(number uint16, payload []byte) Message {
	return Message{
		Number:  number,
		Type:    typeOf(number),
		Payload: payload,
	}
}

// bytes serializes the message's 2-byte number header followed by its
// payload. Serializing a structure-typed (type 3) message is not supported:
// outgoing traffic never carries structures (spec 4.1).
func (m Message) bytes() []byte {
	out := make([]byte, 2+len(m.Payload))
	out[0] = byte(m.Number >> 8)
	out[1] = byte(m.Number)
	copy(out[2:], m.Payload)
	return out
}
