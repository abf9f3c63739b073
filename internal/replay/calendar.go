package replay

import "time"

// BusinessDays generates Mon-Fri dates in [start, end], normalized to
// midnight UTC. Fallback when the exchange calendar is unavailable;
// exchange holidays are not observed here.
func BusinessDays(start, end time.Time) []time.Time {
	var days []time.Time

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !day.After(last) {
		wd := day.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	return days
}
