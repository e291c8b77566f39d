package fetch

import (
	"fmt"
	"net/url"
	"time"

	"github.com/teambition/rrule-go"
)

// Week is one ISO week of a schedule, as addressed by the portal's
// week=WWYYYY query parameter (e.g. 062026 for ISO week 6 of 2026).
type Week struct {
	Week int
	Year int
}

// Param renders the portal's WWYYYY query value.
func (w Week) Param() string {
	return fmt.Sprintf("%02d%d", w.Week, w.Year)
}

// WeeksForWindow returns the ISO weeks overlapping the date window
// [today-daysPast, today+daysFuture], in chronological order without
// duplicates. The end week is always included even for windows shorter
// than seven days.
func WeeksForWindow(today time.Time, daysPast, daysFuture int) []Week {
	windowStart := today.AddDate(0, 0, -daysPast)
	windowEnd := today.AddDate(0, 0, daysFuture)

	weeks := make([]Week, 0)
	seen := make(map[Week]struct{})
	add := func(t time.Time) {
		year, week := t.ISOWeek()
		w := Week{Week: week, Year: year}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		weeks = append(weeks, w)
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: windowStart,
		Until:   windowEnd,
	})
	if err == nil {
		for _, t := range r.All() {
			add(t)
		}
	}

	add(windowEnd)
	return weeks
}

// BuildWeekURL returns scheduleURL with its week query parameter set or
// overwritten for the given week.
func BuildWeekURL(scheduleURL string, w Week) (string, error) {
	u, err := url.Parse(scheduleURL)
	if err != nil {
		return "", fmt.Errorf("invalid schedule url: %w", err)
	}
	q := u.Query()
	q.Set("week", w.Param())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
