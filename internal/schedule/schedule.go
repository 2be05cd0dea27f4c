// Package schedule holds the calendar rules of the planner: visit cadence per
// frequency, week boundaries and frequency urgency weights.
package schedule

import (
	"time"

	"siteplan/internal/model"
)

// Week is the half-open interval [Start, End) from Monday 00:00 to the next Monday 00:00.
type Week struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the week.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayDate returns the calendar date of the given weekday within the week.
func (w Week) DayDate(d model.Day) time.Time {
	for i, wd := range model.Weekdays {
		if wd == d {
			return w.Start.AddDate(0, 0, i)
		}
	}
	return w.Start
}

// WeekOf returns the Monday-Sunday week containing t, in t's location.
func WeekOf(t time.Time) Week {
	day := startOfDay(t)
	// time.Weekday: Sunday=0 ... Saturday=6; shift so Monday=0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 7)}
}

// MostRecentFriday returns the Friday on or before t, at midnight.
func MostRecentFriday(t time.Time) time.Time {
	day := startOfDay(t)
	back := (int(day.Weekday()) - int(time.Friday) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// SameDay reports whether a and b fall on the same calendar date in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FrequencyWeight orders frequencies by urgency; lower is more urgent.
func FrequencyWeight(f model.Frequency) int {
	switch f {
	case model.FrequencyWeekly:
		return 1
	case model.FrequencyBiWeekly:
		return 2
	case model.FrequencyMonthly:
		return 3
	case model.FrequencyShopAudit:
		return 4
	}
	return 99
}

// NextDue returns the first date on which the site becomes due again.
// ok is false when the site was never visited or the frequency is unknown,
// in which case the site is always due.
func NextDue(site model.Site) (due time.Time, ok bool) {
	if site.LastVisited == nil || site.LastVisited.IsZero() {
		return time.Time{}, false
	}
	last := startOfDay(*site.LastVisited)
	switch site.Frequency {
	case model.FrequencyWeekly:
		return last.AddDate(0, 0, 7), true
	case model.FrequencyBiWeekly:
		return last.AddDate(0, 0, 14), true
	case model.FrequencyMonthly:
		return last.AddDate(0, 1, 0), true
	case model.FrequencyShopAudit:
		return last.AddDate(0, 3, 0), true
	}
	return time.Time{}, false
}

// IsSiteDue reports whether enough time has elapsed since the last visit for
// the site's frequency. Comparison is by calendar date.
func IsSiteDue(site model.Site, today time.Time) bool {
	due, ok := NextDue(site)
	if !ok {
		return true
	}
	return !startOfDay(today.In(due.Location())).Before(due)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
