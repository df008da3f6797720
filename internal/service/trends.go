package service

// Period-over-period trend deltas: the current window compared against the
// immediately preceding window of equal length.

// NoShowChange is the percentage-point delta between the current and previous
// no-show rates.
func NoShowChange(current, previous float64) float64 {
	return (current - previous) * 100
}

// ReservationGrowth is the percent change in total reservations versus the
// previous period. A previous period with zero reservations yields 0 growth
// rather than a division error.
func ReservationGrowth(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
