package valuetransform

import "fmt"

// DecodeEnum looks raw up in mapping. A raw value absent from the mapping
// yields a synthetic, still-publishable label rather than an error - an
// unmapped enum value is a data-quality problem, not a transport failure.
func DecodeEnum(raw int64, mapping map[int64]string) string {
	if label, ok := mapping[raw]; ok {
		return label
	}
	return fmt.Sprintf("Unknown enum value: %d", raw)
}

// ReverseEnum looks label up in mapping's values, returning the raw key
// that produces it. ok is false when no key maps to label.
func ReverseEnum(label string, mapping map[int64]string) (raw int64, ok bool) {
	for k, v := range mapping {
		if v == label {
			return k, true
		}
	}
	return 0, false
}
