package indicator

import "math"

// SnapToTick quantizes a price to the instrument's tick grid using
// round-half-up. A non-positive tick size returns the price unchanged.
func SnapToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Floor(price/tickSize+0.5) * tickSize
}
