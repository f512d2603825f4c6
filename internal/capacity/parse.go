package capacity

import (
	"regexp"
	"strconv"
)

var percentPattern = regexp.MustCompile(`(\d+)%`)

// ParsePercentage extracts the first run of digits immediately preceding a
// '%' sign, e.g. "40% full" -> 40. Text without such a run yields 0.
func ParsePercentage(text string) float64 {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
