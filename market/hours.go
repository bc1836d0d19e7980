package market

import "time"

// IsRegularHours reports whether t falls inside regular US equity
// trading hours: Monday through Friday, 09:30-16:00 Eastern. Schedulers
// use it to skip cycles outside the session; the core never sleeps on it.
func IsRegularHours(t time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return false
	}
	et := t.In(loc)

	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes <= 16*60
}
