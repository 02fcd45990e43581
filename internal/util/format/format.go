// Package format renders progress numbers the way the web widgets do.
package format

import (
	"math"
	"strconv"
)

// Percent renders p without trailing zeros, e.g. "42%" or "42.5%".
func Percent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		p = 0
	}
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// ClampPercent bounds p to [0, 100].
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// MinutesSeconds renders a duration in seconds as "Xm Ys", flooring both parts.
func MinutesSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	m := int64(math.Floor(seconds / 60))
	s := int64(math.Floor(math.Mod(seconds, 60)))
	return strconv.FormatInt(m, 10) + "m " + strconv.FormatInt(s, 10) + "s"
}

// WholeSeconds renders seconds floored to an integer, e.g. "12s".
func WholeSeconds(seconds float64) string {
	return strconv.FormatInt(int64(math.Floor(seconds)), 10) + "s"
}

// Rate renders a per-second rate with one decimal.
func Rate(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}
