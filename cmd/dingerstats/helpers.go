package main

import (
	"fmt"
	"math"
)

// formatClock renders seconds as h:mm:ss.s for humans scrubbing a video
func formatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "?"
	}

	whole := int(seconds)
	tenths := int(math.Round((seconds - float64(whole)) * 10))
	if tenths == 10 {
		whole++
		tenths = 0
	}

	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%d", h, m, s, tenths)
	}
	return fmt.Sprintf("%d:%02d.%d", m, s, tenths)
}
