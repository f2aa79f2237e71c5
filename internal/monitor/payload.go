package monitor

import (
	"strconv"
	"strings"
)

// SplitPayload parses a data line into its numeric values. Groups are
// separated by ':' and values inside a group by ','. Tokens that are not
// valid floats are skipped; the rest of the line is kept.
func SplitPayload(payload string) []float64 {
	values := make([]float64, 0, 8)
	for _, group := range strings.Split(payload, ":") {
		for _, tok := range strings.Split(group, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
			if err != nil {
				continue
			}
			values = append(values, v)
		}
	}
	return values
}
