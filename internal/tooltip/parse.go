// Package tooltip parses the free-text tooltip attached to a schedule
// entry into structured fields. The grammar is line oriented and evaluated
// top to bottom over normalized text; every field except the title is
// optional and absence is never an error.
package tooltip

import (
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ktmouritzen-byte/Lectioskema/internal/htmltext"
)

// dateLineRE matches the two date/time line shapes Lectio emits:
//
//	10/9-2025 08:00 til 09:30   (timed; "til" or "to" separator)
//	10/9-2025 Hele dagen        (all-day; "Hele dagen" or "All day")
var dateLineRE = regexp.MustCompile(
	`(?i)(\d{1,2})/(\d{1,2})-(\d{4})\s+(?:(Hele\s+dagen|All\s+day)|(\d{2}:\d{2})\s+(?:til|to)\s+(\d{2}:\d{2}))`)

// skipMarkers are status banner lines Lectio puts above the real title.
var skipMarkers = map[string]struct{}{
	"ændret!":    {},
	"changed!":   {},
	"aflyst!":    {},
	"cancelled!": {},
	"canceled!":  {},
}

const untitled = "(Untitled)"

// Fields is the structured result of parsing one tooltip.
type Fields struct {
	Title string

	// HasDate reports whether a date/time line was found at all. When
	// false the record is untimed; Date, Start and End are zero.
	HasDate bool
	AllDay  bool

	// Date is the calendar date at midnight in the parse location.
	Date time.Time

	// Start and End are set only for timed entries. An end at or before
	// the start rolls over to the next day.
	Start time.Time
	End   time.Time

	Classes  []string
	Teachers []string
	Location string

	// Description holds every line after the room line (or after the
	// last recognized field line when no room is present), verbatim.
	Description string
}

// LooksLikeDateLine reports whether a line matches the date/time shape.
func LooksLikeDateLine(line string) bool {
	return dateLineRE.MatchString(strings.TrimSpace(line))
}

// Parse evaluates the micro-grammar over normalized tooltip text.
// fallbackTitle is the raw visible content of the entry, used when the
// tooltip has no usable title line; loc is the configured local zone.
func Parse(normalized, fallbackTitle string, loc *time.Location) Fields {
	var out Fields

	var lines []string
	if normalized != "" {
		lines = strings.Split(normalized, "\n")
	}

	titleIdx := -1
	skippedMarker := false
	for i, ln := range lines {
		s := strings.TrimSpace(ln)
		if s == "" {
			continue
		}
		if _, skip := skipMarkers[strings.ToLower(s)]; skip && !skippedMarker {
			// The banner line sits above the real title; skip it once.
			skippedMarker = true
			continue
		}
		titleIdx = i
		out.Title = s
		break
	}
	if out.Title == "" || LooksLikeDateLine(out.Title) {
		out.Title = htmltext.FirstLine(htmltext.Normalize(fallbackTitle))
		if out.Title == "" {
			out.Title = untitled
		}
	}

	dateIdx := -1
	for i, ln := range lines {
		m := dateLineRE.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		dateIdx = i
		day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		out.Date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		out.HasDate = true

		if m[4] != "" {
			out.AllDay = true
		} else {
			out.Start = withClock(out.Date, m[5])
			out.End = withClock(out.Date, m[6])
			if !out.End.After(out.Start) {
				// Activities spanning midnight list an earlier end time.
				out.End = out.End.AddDate(0, 0, 1)
			}
		}
		// Only the first date/time line is honored.
		break
	}

	classIdx := findLabel(lines, "hold:")
	if classIdx >= 0 {
		out.Classes = splitList(labelValue(lines[classIdx]))
	}
	teacherIdx := findLabel(lines, "lærer:", "lærere:")
	if teacherIdx >= 0 {
		out.Teachers = splitList(labelValue(lines[teacherIdx]))
	}
	roomIdx := findLabel(lines, "lokale:")
	if roomIdx >= 0 {
		out.Location = labelValue(lines[roomIdx])
	}

	descStart := len(lines)
	switch {
	case roomIdx >= 0:
		descStart = roomIdx + 1
	case teacherIdx >= 0:
		descStart = teacherIdx + 1
	case classIdx >= 0:
		descStart = classIdx + 1
	case dateIdx >= 0:
		descStart = dateIdx + 1
	case titleIdx >= 0:
		descStart = titleIdx + 1
	}
	if descStart < len(lines) {
		out.Description = strings.Join(lines[descStart:], "\n")
	}

	return out
}

// findLabel returns the index of the first line starting with one of the
// given label tokens (case-insensitive), or -1.
func findLabel(lines []string, labels ...string) int {
	for i, ln := range lines {
		low := strings.ToLower(strings.TrimSpace(ln))
		for _, label := range labels {
			if strings.HasPrefix(low, label) {
				return i
			}
		}
	}
	return -1
}

// labelValue returns the trimmed remainder after the first colon.
func labelValue(line string) string {
	_, rest, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(rest)
}

// splitList splits a comma-separated label remainder, preserving order.
func splitList(value string) []string {
	parts := lo.Map(strings.Split(value, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Filter(parts, func(p string, _ int) bool { return p != "" })
}

func withClock(day time.Time, hhmm string) time.Time {
	h, m, _ := strings.Cut(hhmm, ":")
	return time.Date(day.Year(), day.Month(), day.Day(), atoi(h), atoi(m), 0, 0, day.Location())
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
