package wire

import (
	"strconv"
	"strings"
)

// ParseField converts one numeric wire field to a float64. The controller
// occasionally emits truncated or garbled fields mid-line; those decode as
// 0.0 rather than dropping the line, matching the firmware's long-standing
// contract.
func ParseField(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
