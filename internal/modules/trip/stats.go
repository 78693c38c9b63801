// README: Trip statistics derived from raw per-status aggregates.
package trip

type Statistics struct {
	TotalTrips           int            `json:"total_trips"`
	StatusBreakdown      map[Status]int `json:"status_breakdown"`
	CompletionRate       float64        `json:"completion_rate"`
	TotalDistanceKm      float64        `json:"total_distance_km"`
	AverageDurationHours float64        `json:"average_duration_hours"`
}

// buildStatistics reports every status, zero-filled, with the rate as a fraction rounded to 2 places.
func buildStatistics(t Totals) Statistics {
	st := Statistics{StatusBreakdown: make(map[Status]int, len(AllStatuses))}
	for _, s := range AllStatuses {
		n := t.Counts[s]
		st.StatusBreakdown[s] = n
		st.TotalTrips += n
	}
	if st.TotalTrips > 0 {
		st.CompletionRate = roundTo2(float64(st.StatusBreakdown[StatusCompleted]) / float64(st.TotalTrips))
	}
	st.TotalDistanceKm = roundTo2(t.CompletedDistanceKm)
	if t.CompletedHoursCount > 0 {
		st.AverageDurationHours = roundTo2(t.CompletedHoursSum / float64(t.CompletedHoursCount))
	}
	return st
}
