package utils

// ClampInt returns v limited to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OrDefault returns v, or def when v is not positive.
func OrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
