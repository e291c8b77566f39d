// Package ical renders events as an RFC 5545 calendar document. The
// escaping and folding here are the compatibility-critical part of the
// whole feed; keep them byte-exact.
package ical

import (
	"strings"
	"time"

	"github.com/ktmouritzen-byte/Lectioskema/internal/model"
)

const (
	stampLayout = "20060102T150405Z"
	localLayout = "20060102T150405"
	dateLayout  = "20060102"

	defaultProdID = "-//Lectioskema//Lectioskema//EN"
)

// AllDayEndPolicy selects how the DTEND of an all-day event is written.
// The two feeds deliberately differ and the choice is always made by the
// caller, never inferred.
type AllDayEndPolicy int

const (
	// AllDayEndSameDay writes DTEND equal to DTSTART. The lesson
	// schedule uses this; it mirrors how the source table marks all-day
	// lessons even though it is not the canonical RFC 5545 form.
	AllDayEndSameDay AllDayEndPolicy = iota

	// AllDayEndNextDay writes an exclusive DTEND one day after the
	// date, the RFC 5545 form for a single all-day occurrence. The
	// assignment-deadline feed uses this.
	AllDayEndNextDay
)

// Options configure one rendered calendar document.
type Options struct {
	// Name, when set, is emitted as X-WR-CALNAME so subscribing clients
	// show a distinct display name per feed.
	Name string

	// ProdID overrides the product identifier; empty uses the default.
	ProdID string

	// AllDayEnd is the per-feed all-day DTEND policy.
	AllDayEnd AllDayEndPolicy

	// EmitCancelled keeps cancelled entries in the output with
	// STATUS:CANCELLED instead of dropping them.
	EmitCancelled bool
}

// Build renders the events as a complete calendar document. The stamp
// becomes every event's DTSTAMP; identical input and stamp yield
// byte-identical output. Build is total over well-formed events.
func Build(events []model.Event, stamp time.Time, opts Options) string {
	prodID := opts.ProdID
	if prodID == "" {
		prodID = defaultProdID
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
	}
	if opts.Name != "" {
		lines = append(lines, prop("X-WR-CALNAME", escapeText(opts.Name)))
	}

	dtstamp := stamp.UTC().Format(stampLayout)

	for _, ev := range events {
		if ev.Cancelled() && !opts.EmitCancelled {
			continue
		}
		lines = appendEvent(lines, ev, dtstamp, opts.AllDayEnd)
	}

	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\r\n") + "\r\n"
}

func appendEvent(lines []string, ev model.Event, dtstamp string, policy AllDayEndPolicy) []string {
	lines = append(lines,
		"BEGIN:VEVENT",
		prop("UID", singleLine(ev.UID)),
		prop("DTSTAMP", dtstamp),
		prop("SUMMARY", escapeText(singleLine(ev.Title))),
	)

	if ev.Cancelled() {
		lines = append(lines, prop("STATUS", "CANCELLED"))
	}

	switch {
	case ev.AllDay:
		start := ev.Date.Format(dateLayout)
		end := start
		if policy == AllDayEndNextDay {
			end = ev.Date.AddDate(0, 0, 1).Format(dateLayout)
		}
		lines = append(lines,
			propParam("DTSTART", "VALUE=DATE", start),
			propParam("DTEND", "VALUE=DATE", end),
		)
	case ev.Start.IsZero() || ev.End.IsZero():
		// Untimed without an all-day flag should not reach here; close
		// the block rather than emit a broken time range.
		return append(lines, "END:VEVENT")
	default:
		// Floating local time, no UTC suffix and no VTIMEZONE block.
		lines = append(lines,
			prop("DTSTART", ev.Start.Format(localLayout)),
			prop("DTEND", ev.End.Format(localLayout)),
		)
	}

	if loc := escapeText(singleLine(ev.Location)); loc != "" {
		lines = append(lines, prop("LOCATION", loc))
	}

	if len(ev.Classes) > 0 {
		escaped := make([]string, len(ev.Classes))
		for i, c := range ev.Classes {
			escaped[i] = escapeText(singleLine(c))
		}
		lines = append(lines, prop("CATEGORIES", strings.Join(escaped, ",")))
	}

	lines = append(lines, prop("DESCRIPTION", escapeText(strings.TrimSpace(ev.Description))))

	return append(lines, "END:VEVENT")
}

func prop(name, value string) string {
	return foldLine(name + ":" + value)
}

func propParam(name, param, value string) string {
	return foldLine(name + ";" + param + ":" + value)
}

// escapeText applies RFC 5545 TEXT escaping: backslash, semicolon and
// comma get a leading backslash, embedded newlines become the literal
// two-character sequence "\n". Colons stay as-is.
func escapeText(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, ";", "\\;")
	value = strings.ReplaceAll(value, ",", "\\,")
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}

// foldLine breaks a content line into physical lines of at most 75 octets,
// continuations prefixed with a single space (so 74 content octets each).
// Splits always land on rune boundaries.
func foldLine(line string) string {
	if len(line) <= 75 {
		return line
	}

	var folded []string
	var current []byte
	limit := 75
	for _, r := range line {
		b := []byte(string(r))
		if len(current)+len(b) > limit {
			folded = append(folded, string(current))
			current = current[:0]
			limit = 74
		}
		current = append(current, b...)
	}
	if len(current) > 0 {
		folded = append(folded, string(current))
	}

	return strings.Join(folded, "\r\n ")
}

// singleLine flattens any embedded line breaks into spaces; used for
// fields that must stay one logical line (UID, SUMMARY, LOCATION).
func singleLine(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(strings.Join(strings.Split(text, "\n"), " "))
}
