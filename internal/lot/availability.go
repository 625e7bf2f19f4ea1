package lot

import "math"

// Availability returns how many more units of a product may be purchased in a
// lot. A maxUnits of zero or less means the supplier maximum is not tracked
// and the product is treated as unlimited (+Inf); this inherited business
// rule must not be "fixed" to mean zero capacity. The result never goes
// negative even when confirmed units overshoot the maximum.
func Availability(maxUnits, confirmedUnits int) float64 {
	if maxUnits <= 0 {
		return math.Inf(1)
	}
	remaining := maxUnits - confirmedUnits
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining)
}

// IsSoldOut reports whether the product has a tracked maximum and no
// remaining capacity.
func IsSoldOut(maxUnits, confirmedUnits int) bool {
	remaining := Availability(maxUnits, confirmedUnits)
	return !math.IsInf(remaining, 1) && remaining <= 0
}

// DisplayAvailability mirrors Availability but returns nil for unlimited
// capacity so response payloads can carry null instead of an infinity
// sentinel.
func DisplayAvailability(maxUnits, confirmedUnits int) *int {
	remaining := Availability(maxUnits, confirmedUnits)
	if math.IsInf(remaining, 1) {
		return nil
	}
	v := int(remaining)
	return &v
}
