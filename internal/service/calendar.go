package service

import (
	"time"

	"skillpath_miniapp/internal/model"
)

// Calendar is the wall-clock resolution every operation starts from.
// CurrentDay is empty on Saturday and Sunday.
type Calendar struct {
	CurrentDay   model.Weekday
	IsWeekend    bool
	WeeksElapsed int
}

// WeekStart returns the Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

func ResolveCalendar(now time.Time, weekStartDate time.Time) Calendar {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	cal := Calendar{}
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		cal.IsWeekend = true
	case time.Monday:
		cal.CurrentDay = model.Monday
	case time.Tuesday:
		cal.CurrentDay = model.Tuesday
	case time.Wednesday:
		cal.CurrentDay = model.Wednesday
	case time.Thursday:
		cal.CurrentDay = model.Thursday
	case time.Friday:
		cal.CurrentDay = model.Friday
	}

	if !weekStartDate.IsZero() {
		elapsed := WeekStart(now).Sub(WeekStart(weekStartDate))
		cal.WeeksElapsed = int(elapsed.Hours() / (24 * 7))
	}

	return cal
}

// DayIndex returns a weekday's offset from Monday, or -1 for an
// unknown day name.
func DayIndex(day model.Weekday) int {
	for i, d := range model.QuestWeekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// todayIndex positions "now" against the five quest days: 0..4 on a
// weekday, 5 on the weekend (every quest day is in the past).
func (c Calendar) todayIndex() int {
	if c.IsWeekend {
		return len(model.QuestWeekdays)
	}
	return DayIndex(c.CurrentDay)
}
