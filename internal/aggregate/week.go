package aggregate

import (
	"fmt"
	"time"
)

// Week is a Monday-to-Monday bucket. End is exclusive.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the ISO week containing t, with boundaries at local midnight in loc.
func WeekOf(t time.Time, loc *time.Location) Week {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
	return Week{Start: start, End: start.AddDate(0, 0, 7)}
}

// Prev is the week immediately before w.
func (w Week) Prev() Week {
	return Week{Start: w.Start.AddDate(0, 0, -7), End: w.Start}
}

// LastDay is the Sunday that closes the week.
func (w Week) LastDay() time.Time {
	return w.End.AddDate(0, 0, -1)
}

func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Week) String() string {
	year, wk := w.Start.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, wk)
}
