package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/ktmouritzen-byte/Lectioskema/internal/htmltext"
	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
	"github.com/ktmouritzen-byte/Lectioskema/internal/model"
	"github.com/ktmouritzen-byte/Lectioskema/internal/tooltip"
)

const (
	brickClass        = "s2skemabrik"
	brickContentClass = "s2skemabrikcontent"
)

// cancelledClasses are CSS classes Lectio puts on withdrawn activities.
var cancelledClasses = map[string]struct{}{
	"s2cancelled": {},
	"cancelled":   {},
	"canceled":    {},
	"aflyst":      {},
}

// cancelledFirstLines are tooltip banner lines marking a cancellation.
var cancelledFirstLines = map[string]struct{}{
	"aflyst":      {},
	"aflyst!":     {},
	"cancelled":   {},
	"cancelled!":  {},
	"canceled":    {},
	"canceled!":   {},
	"annulleret":  {},
	"annulleret!": {},
}

// cancelledKeywords back up the class/banner checks as a last resort.
var cancelledKeywords = []string{"aflyst", "aflyses", "cancelled", "canceled", "annulleret"}

// Unit is one raw extraction unit: everything pulled from a schedule brick
// before any text parsing happens.
type Unit struct {
	// ID is the data-brikid attribute, empty when absent.
	ID string
	// Tooltip is the raw data-tooltip attribute.
	Tooltip string
	// Fallback is the visible inner content, used as a weaker raw blob
	// when the tooltip is missing.
	Fallback string
	// CellDate is the enclosing cell's data-date, zero when absent.
	CellDate time.Time
	// CSSClasses are the classes on the anchor itself.
	CSSClasses []string
}

// ScheduleOptions control schedule extraction.
type ScheduleOptions struct {
	// Location is the configured local zone; defaults to time.Local.
	Location *time.Location

	// Today anchors the date window; zero means the current date.
	Today time.Time

	// Window limits events to [Today-Past, Today+Future] when non-nil.
	Window *Window
}

// Window is an inclusive date window around "today".
type Window struct {
	Past   int
	Future int
}

// ScheduleStats summarizes one extraction run for diagnostics.
type ScheduleStats struct {
	Strategy           string
	Bricks             int
	SkippedEmpty       int
	SkippedMissingDate int
	ReplacedDuplicates int
	CancelledSeen      int
	Filtered           int
}

func (o ScheduleOptions) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o ScheduleOptions) today(loc *time.Location) time.Time {
	t := o.Today
	if t.IsZero() {
		t = time.Now().In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// scheduleStrategies locate the timetable: exact id first, then any table
// carrying both duck-type markers (a date-bearing cell and a brick anchor).
// Layout position is never consulted; timing comes from tooltips only.
var scheduleStrategies = []tableStrategy{
	{
		name: "id=" + scheduleTableID,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("table#" + scheduleTableID)
		},
	},
	{
		name: "table with td[data-date] and a." + brickClass,
		find: func(doc *goquery.Document) *goquery.Selection {
			var match *goquery.Selection
			doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
				if t.Find("td[data-date]").Length() == 0 {
					return true
				}
				if t.Find("a."+brickClass).Length() == 0 {
					return true
				}
				match = t
				return false
			})
			return match
		},
	},
}

// ScheduleUnits walks the timetable and returns one raw unit per entry
// anchor, in document order, plus the winning strategy name.
func ScheduleUnits(doc *goquery.Document, loc *time.Location) ([]Unit, string, error) {
	table, strategy, err := locateTable(doc, "schedule", scheduleStrategies)
	if err != nil {
		return nil, "", err
	}

	var units []Unit
	table.Find("a." + brickClass).Each(func(_ int, a *goquery.Selection) {
		u := Unit{
			ID:      a.AttrOr("data-brikid", ""),
			Tooltip: a.AttrOr("data-tooltip", ""),
		}

		if cls, ok := a.Attr("class"); ok {
			u.CSSClasses = strings.Fields(cls)
		}

		content := a.Find("div." + brickContentClass)
		if content.Length() > 0 {
			u.Fallback = nodeText(content)
		} else {
			u.Fallback = nodeText(a)
		}

		cell := a.Closest("td")
		if raw, ok := cell.Attr("data-date"); ok {
			if d, derr := parseDataDate(raw, loc); derr == nil {
				u.CellDate = d
			}
		}

		units = append(units, u)
	})

	return units, strategy, nil
}

// Schedule extracts timetable events: locate the table, parse each brick's
// tooltip, derive UIDs and apply the date window. Per-entry problems are
// skipped and counted; only a missing table is fatal.
func Schedule(doc *goquery.Document, opts ScheduleOptions) ([]model.Event, ScheduleStats, error) {
	loc := opts.location()

	units, strategy, err := ScheduleUnits(doc, loc)
	if err != nil {
		return nil, ScheduleStats{}, err
	}
	stats := ScheduleStats{Strategy: strategy}

	events := make([]model.Event, 0, len(units))
	indexByUID := make(map[string]int)

	for _, u := range units {
		stats.Bricks++

		normalizedTooltip := htmltext.Normalize(u.Tooltip)
		content := htmltext.Normalize(u.Fallback)
		if normalizedTooltip == "" && content == "" {
			stats.SkippedEmpty++
			continue
		}

		cancelled := isCancelled(normalizedTooltip, content, u.CSSClasses)
		if cancelled {
			stats.CancelledSeen++
		}

		fields := tooltip.Parse(normalizedTooltip, u.Fallback, loc)

		effectiveDate := fields.Date
		if !fields.HasDate {
			effectiveDate = u.CellDate
		}
		if effectiveDate.IsZero() {
			stats.SkippedMissingDate++
			continue
		}

		ev := model.Event{
			UID:         BuildUID(u.ID, normalizedTooltip, effectiveDate),
			Title:       fields.Title,
			Date:        effectiveDate,
			Location:    fields.Location,
			Classes:     fields.Classes,
			Teachers:    fields.Teachers,
			Description: fields.Description,
			Status:      model.StatusConfirmed,
		}
		if cancelled {
			ev.Status = model.StatusCancelled
		}

		if fields.HasDate && !fields.AllDay {
			ev.Start = fields.Start
			ev.End = fields.End
		} else {
			// No usable time range: emit as all-day rather than drop.
			ev.AllDay = true
		}

		// Duplicate markup: the later record in document order fully
		// replaces the earlier one.
		if i, dup := indexByUID[ev.UID]; dup {
			events[i] = ev
			stats.ReplacedDuplicates++
			continue
		}
		indexByUID[ev.UID] = len(events)
		events = append(events, ev)
	}

	if opts.Window != nil {
		today := opts.today(loc)
		windowStart := today.AddDate(0, 0, -opts.Window.Past)
		windowEnd := today.AddDate(0, 0, opts.Window.Future)
		before := len(events)
		events = lo.Filter(events, func(ev model.Event, _ int) bool {
			d := ev.Date
			return !d.Before(windowStart) && !d.After(windowEnd)
		})
		stats.Filtered = before - len(events)
	}

	model.SortEvents(events)

	appLog.Debug("schedule extraction done",
		"strategy", stats.Strategy,
		"bricks", stats.Bricks,
		"events", len(events),
		"skipped_empty", stats.SkippedEmpty,
		"skipped_missing_date", stats.SkippedMissingDate,
		"replaced_duplicates", stats.ReplacedDuplicates,
		"cancelled_seen", stats.CancelledSeen,
		"filtered", stats.Filtered,
	)

	return events, stats, nil
}

// isCancelled combines the three cancellation signals: anchor CSS class,
// tooltip banner line and keyword heuristic over the combined text.
func isCancelled(normalizedTooltip, content string, cssClasses []string) bool {
	for _, c := range cssClasses {
		if _, ok := cancelledClasses[strings.ToLower(strings.TrimSpace(c))]; ok {
			return true
		}
	}

	if first := htmltext.FirstLine(normalizedTooltip); first != "" {
		if _, ok := cancelledFirstLines[strings.ToLower(first)]; ok {
			return true
		}
	}

	combined := strings.ToLower(normalizedTooltip + "\n" + content)
	for _, kw := range cancelledKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}
