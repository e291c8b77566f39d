package ical

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktmouritzen-byte/Lectioskema/internal/model"
)

var stamp = time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)

func allDayEvent(uid string, date time.Time) model.Event {
	return model.Event{
		UID:    uid,
		Title:  "All Day Event",
		AllDay: true,
		Date:   date,
		Status: model.StatusConfirmed,
	}
}

func TestBuildTimedEventFloatingLocalTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	ev := model.Event{
		UID:      "12345@lectio.dk",
		Title:    "Math 2A",
		Date:     time.Date(2025, 9, 10, 0, 0, 0, 0, loc),
		Start:    time.Date(2025, 9, 10, 8, 0, 0, 0, loc),
		End:      time.Date(2025, 9, 10, 9, 30, 0, 0, loc),
		Location: "2.03",
		Status:   model.StatusConfirmed,
	}

	out := Build([]model.Event{ev}, stamp, Options{})
	assert.Contains(t, out, "DTSTART:20250910T080000\r\n")
	assert.Contains(t, out, "DTEND:20250910T093000\r\n")
	assert.Contains(t, out, "DTSTAMP:20260226T120000Z\r\n")
	assert.Contains(t, out, "LOCATION:2.03\r\n")
	assert.NotContains(t, out, "DTSTART:20250910T080000Z")
}

func TestBuildAllDaySameDayPolicy(t *testing.T) {
	ev := allDayEvent("lesson@lectio.dk", time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC))
	out := Build([]model.Event{ev}, stamp, Options{AllDayEnd: AllDayEndSameDay})
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260226\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260226\r\n")
}

func TestBuildAllDayNextDayPolicy(t *testing.T) {
	ev := allDayEvent("deadline@lectio.dk", time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC))
	out := Build([]model.Event{ev}, stamp, Options{AllDayEnd: AllDayEndNextDay})
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260226\r\n")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260227\r\n")
}

func TestBuildEscapesDescription(t *testing.T) {
	ev := allDayEvent("esc@lectio.dk", time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC))
	ev.Description = "Line 1, with comma; and semicolon\\ and newline\nnext"
	out := Build([]model.Event{ev}, stamp, Options{})
	assert.Contains(t, out, `DESCRIPTION:Line 1\, with comma\; and semicolon\\ and newline\nnext`)
}

func TestEscapeRoundTrip(t *testing.T) {
	unescape := func(s string) string {
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			if s[i] == '\\' && i+1 < len(s) {
				i++
				if s[i] == 'n' {
					b.WriteByte('\n')
				} else {
					b.WriteByte(s[i])
				}
				continue
			}
			b.WriteByte(s[i])
		}
		return b.String()
	}

	for _, original := range []string{
		"plain",
		"a,b;c\\d\ne",
		"tricky \\n literal",
		";;,,\\\\\n\n",
		"colon: stays",
	} {
		assert.Equal(t, strings.ReplaceAll(strings.ReplaceAll(original, "\r\n", "\n"), "\r", "\n"),
			unescape(escapeText(original)), "escape must be information-preserving for %q", original)
	}
}

func TestFoldingKeepsLinesWithin75Octets(t *testing.T) {
	ev := allDayEvent("fold@lectio.dk", time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC))
	ev.Description = strings.Repeat("æøåx", 60)
	out := Build([]model.Event{ev}, stamp, Options{})

	for _, line := range strings.Split(out, "\r\n") {
		assert.LessOrEqual(t, len(line), 75, "physical line too long: %q", line)
	}
	assert.Contains(t, out, "\r\n ", "long description must be folded")

	// Every continuation line starts with exactly one space.
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, " ") {
			assert.False(t, strings.HasPrefix(line, "  "), "continuation has more than one leading space: %q", line)
		}
	}
}

func TestFoldingNeverSplitsRunes(t *testing.T) {
	long := strings.Repeat("ø", 200)
	folded := foldLine("DESCRIPTION:" + long)
	for _, line := range strings.Split(folded, "\r\n ") {
		assert.True(t, strings.HasPrefix(strings.TrimPrefix(line, "DESCRIPTION:"), "ø") || line == "",
			"folded chunk must begin on a rune boundary: %q", line)
	}
	assert.Equal(t, "DESCRIPTION:"+long, strings.ReplaceAll(folded, "\r\n ", ""))
}

func TestBuildIdempotent(t *testing.T) {
	events := []model.Event{
		allDayEvent("a@lectio.dk", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		allDayEvent("b@lectio.dk", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
	}
	first := Build(events, stamp, Options{Name: "feed"})
	second := Build(events, stamp, Options{Name: "feed"})
	assert.Equal(t, first, second)
}

func TestBuildCancelledDroppedByDefault(t *testing.T) {
	ev := allDayEvent("gone@lectio.dk", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ev.Status = model.StatusCancelled

	out := Build([]model.Event{ev}, stamp, Options{})
	assert.NotContains(t, out, "gone@lectio.dk")

	out = Build([]model.Event{ev}, stamp, Options{EmitCancelled: true})
	assert.Contains(t, out, "gone@lectio.dk")
	assert.Contains(t, out, "STATUS:CANCELLED\r\n")
}

func TestBuildCalendarName(t *testing.T) {
	out := Build(nil, stamp, Options{Name: "lectio opgaver"})
	assert.Contains(t, out, "X-WR-CALNAME:lectio opgaver\r\n")

	out = Build(nil, stamp, Options{})
	assert.NotContains(t, out, "X-WR-CALNAME")
}

func TestBuildCategoriesFromClasses(t *testing.T) {
	ev := allDayEvent("cat@lectio.dk", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ev.Classes = []string{"2A", "2B"}
	out := Build([]model.Event{ev}, stamp, Options{})
	assert.Contains(t, out, "CATEGORIES:2A,2B\r\n")
}

func TestBuildOutputParsesAsCalendar(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	events := []model.Event{
		allDayEvent("p1@lectio.dk", time.Date(2026, 2, 26, 0, 0, 0, 0, loc)),
		{
			UID:         "p2@lectio.dk",
			Title:       "Kemi; med, specialtegn\\",
			Date:        time.Date(2026, 2, 27, 0, 0, 0, 0, loc),
			Start:       time.Date(2026, 2, 27, 8, 0, 0, 0, loc),
			End:         time.Date(2026, 2, 27, 9, 30, 0, 0, loc),
			Description: "Lektier:\nside 40-45\nmed en meget lang linje " + strings.Repeat("x", 120),
			Status:      model.StatusConfirmed,
		},
	}

	out := Build(events, stamp, Options{Name: "Lectio skema", AllDayEnd: AllDayEndSameDay})

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)

	byUID := map[string]*ics.VEvent{}
	for _, ve := range cal.Events() {
		byUID[ve.GetProperty(ics.ComponentPropertyUniqueId).Value] = ve
	}
	require.Contains(t, byUID, "p2@lectio.dk")
	summary := byUID["p2@lectio.dk"].GetProperty(ics.ComponentPropertySummary)
	require.NotNil(t, summary)
}
