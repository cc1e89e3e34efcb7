package nasa

import "fmt"

const (
	// StartByte marks the beginning of a NASA packet on the wire.
	StartByte = 0x32
	// EndByte marks the end of a NASA packet on the wire.
	EndByte = 0x34

	// minPacketLen is the "too-short" floor Parse applies to the whole input:
	// fewer than 14 bytes fails with ErrTooShort. A well-formed packet with
	// zero messages is start(1) + size(2) + src(3) + dst(3) + info(1) +
	// type/datatype(1) + number(1) + capacity(1) + crc(2) + end(1) = 16
	// bytes, so inputs of 14 or 15 bytes pass this check and are left to the
	// later header and CRC checks.
	minPacketLen = 14
)

// Packet is a single framed NASA wire unit.
type Packet struct {
	Size uint16

	SourceClass   AddressClass
	SourceChannel uint8
	SourceAddress uint8

	DestClass   AddressClass
	DestChannel uint8
	DestAddress uint8

	Information bool
	Version     uint8
	RetryCount  uint8

	Type     PacketType
	DataType DataType

	Number   uint8
	Capacity uint8

	Messages []Message

	CRC uint16
}

// Parse decodes a byte slice into a Packet. It fails with ErrTooShort,
// ErrUnknownAddressClass, ErrUnknownPacketType, ErrUnknownDataType,
// ErrCRCMismatch, or one of the message-extraction errors - all recoverable;
// callers should log and drop the packet.
func Parse(data []byte) (Packet, error) {
	var p Packet
	if len(data) < minPacketLen {
		return p, ErrTooShort
	}

	p.Size = uint16(data[1])<<8 | uint16(data[2])

	srcClass := AddressClass(data[3])
	if !srcClass.Valid() {
		return Packet{}, fmt.Errorf("%w: source 0x%02X", ErrUnknownAddressClass, data[3])
	}
	p.SourceClass = srcClass
	p.SourceChannel = data[4]
	p.SourceAddress = data[5]

	dstClass := AddressClass(data[6])
	if !dstClass.Valid() {
		return Packet{}, fmt.Errorf("%w: dest 0x%02X", ErrUnknownAddressClass, data[6])
	}
	p.DestClass = dstClass
	p.DestChannel = data[7]
	p.DestAddress = data[8]

	p.Information = data[9]&0x80 != 0
	p.Version = (data[9] & 0x60) >> 5
	p.RetryCount = (data[9] & 0x18) >> 3

	pt := PacketType((data[10] & 0xF0) >> 4)
	if !pt.Valid() {
		return Packet{}, fmt.Errorf("%w: 0x%X", ErrUnknownPacketType, uint8(pt))
	}
	p.Type = pt

	dt := DataType(data[10] & 0x0F)
	if !dt.Valid() {
		return Packet{}, fmt.Errorf("%w: 0x%X", ErrUnknownDataType, uint8(dt))
	}
	p.DataType = dt

	p.Number = data[11]
	p.Capacity = data[12]

	crcEnd := len(data) - 3
	crcRegion := data[3:crcEnd]
	computed := crc16CCITT(crcRegion)
	storedCRC := uint16(data[len(data)-3])<<8 | uint16(data[len(data)-2])
	p.CRC = storedCRC

	messageRegion := []byte{}
	if crcEnd > 13 {
		messageRegion = data[13:crcEnd]
	}
	messages, err := extractMessages(messageRegion, p.Capacity)
	if err != nil {
		return Packet{}, err
	}
	p.Messages = messages

	if computed != storedCRC {
		return Packet{}, fmt.Errorf("%w: computed 0x%04X, got 0x%04X", ErrCRCMismatch, computed, storedCRC)
	}

	return p, nil
}

// extractMessages walks the message region of a packet, bounded by the
// declared capacity. Implemented iteratively (the original is tail-recursive
// over typically small capacities, but an iterative loop avoids any stack
// depth concern for larger-than-typical capacity values).
func extractMessages(region []byte, capacity uint8) ([]Message, error) {
	messages := make([]Message, 0, capacity)
	rest := region
	for i := 0; i < int(capacity); i++ {
		if len(rest) < 2 {
			break
		}
		number := uint16(rest[0])<<8 | uint16(rest[1])
		msgType := typeOf(number)

		size := payloadLen(msgType)
		switch msgType {
		case MessageTypeEnum, MessageTypeVar, MessageTypeLVar:
			// fixed-width payload
		case MessageTypeStructure:
			if capacity != 1 {
				return nil, ErrStructureRequiresCapacityOne
			}
			size = len(rest) - 2
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(msgType))
		}

		if size > 255 {
			return nil, ErrOversizePayload
		}
		if len(rest) < 2+size {
			break
		}

		payload := make([]byte, size)
		copy(payload, rest[2:2+size])
		messages = append(messages, Message{
			Number:  number,
			Type:    msgType,
			Payload: payload,
		})
		rest = rest[2+size:]
	}

	if len(rest) > 0 {
		return nil, ErrTrailingBytes
	}
	return messages, nil
}

// Serialize encodes p back into wire bytes. Size and CRC are (re)computed
// from the packet's current contents; any value previously set on those
// fields is overwritten.
func (p *Packet) Serialize() []byte {
	body := make([]byte, 0, 10+len(p.Messages)*6)
	body = append(body,
		p.SourceClass.byte(), p.SourceChannel, p.SourceAddress,
		p.DestClass.byte(), p.DestChannel, p.DestAddress,
		infoByte(p.Information, p.Version, p.RetryCount),
		byte(p.Type)<<4|byte(p.DataType),
		p.Number,
		p.Capacity,
	)
	for _, m := range p.Messages {
		body = append(body, m.bytes()...)
	}

	crc := crc16CCITT(body)
	p.CRC = crc

	// Total bytes on the wire are start(1) + size(2) + body + crc(2) + end(1),
	// but the declared size field itself carries that total minus 2 - the
	// receiver reconstructs the full frame length as size+2 (see the transport
	// reframer and original firmware's own framing loop).
	totalLen := 1 + 2 + len(body) + 2 + 1
	declaredSize := uint16(totalLen - 2)
	p.Size = declaredSize

	out := make([]byte, 0, totalLen)
	out = append(out, StartByte, byte(declaredSize>>8), byte(declaredSize))
	out = append(out, body...)
	out = append(out, byte(crc>>8), byte(crc))
	out = append(out, EndByte)
	return out
}

func (a AddressClass) byte() byte { return byte(a) }

func infoByte(info bool, version, retry uint8) byte {
	var b byte
	if info {
		b |= 0x80
	}
	b |= (version & 0x3) << 5
	b |= (retry & 0x3) << 3
	return b
}
