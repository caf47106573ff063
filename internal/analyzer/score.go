package analyzer

import "math"

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func roundToInt(f float64) int {
	return int(math.Round(f))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
