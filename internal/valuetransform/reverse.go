package valuetransform

import (
	"fmt"
	"strconv"
	"strings"
)

// ReverseNumeric parses textual into a number, applies the reverse
// arithmetic expression with value bound to it, and truncates to an
// integer - the raw wire value the caller encodes into 1/2/4 signed bytes.
func ReverseNumeric(expr, textual string) (int64, error) {
	textual = strings.TrimSpace(textual)
	parsed, err := strconv.ParseFloat(textual, 64)
	if err != nil {
		return 0, fmt.Errorf("valuetransform: %q is not numeric: %w", textual, err)
	}

	result := parsed
	if strings.TrimSpace(expr) != "" {
		result, err = Forward(expr, parsed)
		if err != nil {
			return 0, err
		}
	}
	return int64(result), nil
}
