package valuetransform

import (
	"strconv"
	"strings"
)

// DecodeSTR renders a STR-typed payload as text. Printable ASCII bytes
// (0x20-0x7E) are kept as-is; 0x00 and 0xFF are treated as padding and
// rendered as a space; any other byte means the payload is not really
// printable text, so the whole payload falls back to a decimal-joined
// representation instead of partially-garbled ASCII. The result is trimmed
// of surrounding whitespace either way.
func DecodeSTR(payload []byte) string {
	var sb strings.Builder
	for _, b := range payload {
		switch {
		case b >= 0x20 && b <= 0x7E:
			sb.WriteByte(b)
		case b == 0x00 || b == 0xFF:
			sb.WriteByte(' ')
		default:
			return decimalJoin(payload)
		}
	}
	return strings.TrimSpace(sb.String())
}

func decimalJoin(payload []byte) string {
	parts := make([]string, len(payload))
	for i, b := range payload {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, " ")
}
