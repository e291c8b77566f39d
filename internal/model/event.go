package model

import (
	"sort"
	"time"
)

// Status marks whether an activity is still on the schedule.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Event is one schedule or assignment entry, ready for serialization.
// It is constructed once by the extractor and not mutated afterwards.
type Event struct {
	// UID is the stable identity of this entry across regenerations.
	// Derived from the source's brick/exercise id when present, else a
	// deterministic content hash (see extract.BuildUID).
	UID string

	// Title is a single-line display string; never empty.
	Title string

	// AllDay marks entries with no time of day. When set, Date is the
	// authoritative field and Start/End are zero.
	AllDay bool

	// Date is the calendar date of the entry at midnight in the
	// configured zone. Set for both all-day and timed entries.
	Date time.Time

	// Start and End are floating local times in the configured zone.
	// Zero when AllDay is set.
	Start time.Time
	End   time.Time

	// Location is the room, when known.
	Location string

	// Classes and Teachers preserve insertion order; either may be empty.
	Classes  []string
	Teachers []string

	// Description is free text with embedded newlines preserved,
	// including category header lines ("Lektier:", "Note:", ...).
	Description string

	Status Status
}

// Cancelled reports whether the entry was withdrawn at the source.
func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// SortEvents orders events deterministically: all-day entries first by
// (date, title, uid), then timed entries by (start, title, uid). The same
// input always yields the same order, which the feeds rely on for
// byte-identical regeneration.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		at, bt := a.Date, b.Date
		if !a.AllDay {
			at, bt = a.Start, b.Start
		}
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.UID < b.UID
	})
}
