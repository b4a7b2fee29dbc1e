package domain

import "time"

// BusinessHours gates the evaluation and dispatch loops to working hours,
// Monday through Friday.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// Contains reports whether now falls inside business hours. The end hour is
// exclusive.
func (b BusinessHours) Contains(now time.Time) bool {
	local := now.In(b.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= b.StartHour && hour < b.EndHour
}
