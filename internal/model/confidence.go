package model

// LowConfidenceThreshold is the score below which a candidate must be
// treated as unverified. Fallback-synthesized records always sit below it.
const LowConfidenceThreshold = 50

// Confidence bands reported alongside AI categorization results.
const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidenceVeryLow = "very_low"
)

// ConfidenceBand maps a 0-100 extraction score onto the band vocabulary.
func ConfidenceBand(score int) string {
	switch {
	case score >= 90:
		return ConfidenceHigh
	case score >= 70:
		return ConfidenceMedium
	case score >= LowConfidenceThreshold:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// ValidConfidenceBand reports whether band is a known token.
func ValidConfidenceBand(band string) bool {
	switch band {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceVeryLow:
		return true
	}
	return false
}

// ClampScore forces a score into the 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
