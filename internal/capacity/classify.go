package capacity

// Band thresholds; each band includes its lower edge.
const (
	mediumThreshold = 30.0
	highThreshold   = 70.0
)

// Classify maps an occupancy percentage to its severity band.
func Classify(percentage float64) Status {
	switch {
	case percentage < mediumThreshold:
		return StatusLow
	case percentage < highThreshold:
		return StatusMedium
	default:
		return StatusHigh
	}
}
