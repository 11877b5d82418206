package resolver

import "math"

// NormalizeNumber maps any finite numeric value into the displayable range
// [1, 9999]: absolute value, floored; 0 becomes 1; values past 9999 wrap
// as (n mod 9999) + 1. Total, no error path.
func NormalizeNumber(raw float64) int {
	m := math.Floor(math.Abs(raw))
	if m == 0 {
		return 1
	}
	if m > 9999 {
		// Wrap before converting: inputs at or above 2^63 do not fit in
		// an int and would overflow.
		return int(math.Mod(m, 9999)) + 1
	}
	return int(m)
}
