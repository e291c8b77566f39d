package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assignmentsFixture = `<!DOCTYPE html>
<html><body>
<table id="s_m_Content_Content_ExerciseGV">
 <tr>
  <th>Hold</th><th>Opgavetitel</th><th>Frist</th><th>Elev tid</th><th>Status</th><th>Fravær</th><th>Afventer</th><th>Opgavenote</th>
 </tr>
 <tr>
  <td>L2a MA</td>
  <td><a href="/lectio/123/ElevAflevering.aspx?exerciseid=99990001">Gammel opgave</a></td>
  <td>10/9-2025 22:00</td>
  <td>0,50</td>
  <td>Afleveret</td>
  <td></td><td></td>
  <td></td>
 </tr>
 <tr>
  <td>L2a DA</td>
  <td><a href="/lectio/123/ElevAflevering.aspx?exerciseid=99990002">Dagens frist opgave</a></td>
  <td>26/2-2026 23:59</td>
  <td>1,00</td>
  <td>Mangler</td>
  <td></td><td></td>
  <td>Se vedhæftet fil.</td>
 </tr>
 <tr>
  <td>L2a EN</td>
  <td><a href="/lectio/123/ElevAflevering.aspx?exerciseid=99990003">Essay</a></td>
  <td>15/3-2026 22:00</td>
  <td>2,00</td>
  <td>Mangler</td>
  <td></td><td></td>
  <td>Skriv et essay.<br>Mind. 800 ord.</td>
 </tr>
</table>
</body></html>`

func assignmentOpts() AssignmentsOptions {
	return AssignmentsOptions{
		Location: cph,
		Today:    time.Date(2026, 2, 26, 0, 0, 0, 0, cph),
	}
}

func TestAssignmentsFilterAndShape(t *testing.T) {
	events, stats, err := Assignments(parseDoc(t, assignmentsFixture), assignmentOpts())
	require.NoError(t, err)

	assert.Equal(t, "id="+assignmentsTableID, stats.Strategy)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.FilteredOut, "row due 10/9-2025 lies before today")
	require.Len(t, events, 2)

	// Sorted by due date.
	assert.Equal(t, "99990002@lectio.dk", events[0].UID)
	assert.Equal(t, "99990003@lectio.dk", events[1].UID)

	first := events[0]
	assert.Equal(t, "Mangler • Dagens frist opgave • L2a DA • 1,00", first.Title)
	assert.True(t, first.AllDay)
	assert.Equal(t, time.Date(2026, 2, 26, 0, 0, 0, 0, cph), first.Date)
	assert.Equal(t, []string{"L2a DA"}, first.Classes)
	assert.Equal(t, "Se vedhæftet fil.", first.Description)
}

func TestAssignmentsDueTodayIsIncluded(t *testing.T) {
	// Due at 23:59 on "today" must survive the filter: the cutoff compares
	// calendar dates, not timestamps.
	events, _, err := Assignments(parseDoc(t, assignmentsFixture), assignmentOpts())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, time.Date(2026, 2, 26, 0, 0, 0, 0, cph), events[0].Date)
}

func TestAssignmentsMultiLineNote(t *testing.T) {
	events, _, err := Assignments(parseDoc(t, assignmentsFixture), assignmentOpts())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Skriv et essay.\nMind. 800 ord.", events[1].Description)
}

func TestAssignmentsMalformedDueRowSkipped(t *testing.T) {
	broken := strings.Replace(assignmentsFixture, "15/3-2026 22:00", "snarest muligt", 1)
	events, stats, err := Assignments(parseDoc(t, broken), assignmentOpts())
	require.NoError(t, err, "a bad row is skipped, never fatal")
	assert.Equal(t, 1, stats.SkippedRows)
	require.Len(t, events, 1)
	assert.Equal(t, "99990002@lectio.dk", events[0].UID)
}

func TestAssignmentsTableNotFound(t *testing.T) {
	_, _, err := Assignments(parseDoc(t, "<html><body><table><tr><td>andet</td></tr></table></body></html>"), assignmentOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Contains(t, err.Error(), "assignments")
}

func TestAssignmentsSuffixStrategy(t *testing.T) {
	renamed := strings.Replace(assignmentsFixture,
		`id="s_m_Content_Content_ExerciseGV"`,
		`id="ctl00_OtherPrefix_ExerciseGV"`, 1)
	events, stats, err := Assignments(parseDoc(t, renamed), assignmentOpts())
	require.NoError(t, err)
	assert.Equal(t, "id suffix "+assignmentsSuffix, stats.Strategy)
	assert.Len(t, events, 2)
}

func TestAssignmentsHeaderStrategy(t *testing.T) {
	// No usable id at all: the header row identifies the table, and header
	// positions override the default column layout.
	anonymous := strings.Replace(assignmentsFixture,
		` id="s_m_Content_Content_ExerciseGV"`, "", 1)
	events, stats, err := Assignments(parseDoc(t, anonymous), assignmentOpts())
	require.NoError(t, err)
	assert.Equal(t, "header row with Opgavetitel and Frist", stats.Strategy)
	assert.Len(t, events, 2)
}

func TestAssignmentsHashUIDWithoutExerciseID(t *testing.T) {
	plain := strings.Replace(assignmentsFixture,
		`<a href="/lectio/123/ElevAflevering.aspx?exerciseid=99990002">Dagens frist opgave</a>`,
		`Dagens frist opgave`, 1)
	events, _, err := Assignments(parseDoc(t, plain), assignmentOpts())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.True(t, strings.HasPrefix(events[0].UID, "lectio-"))
	assert.True(t, strings.HasSuffix(events[0].UID, "@lectio.dk"))

	// Same content hashes to the same UID on the next run.
	again, _, err := Assignments(parseDoc(t, plain), assignmentOpts())
	require.NoError(t, err)
	assert.Equal(t, events[0].UID, again[0].UID)
}

func TestAssignmentRowsRaw(t *testing.T) {
	rows, strategy, err := AssignmentRows(parseDoc(t, assignmentsFixture))
	require.NoError(t, err)
	assert.Equal(t, "id="+assignmentsTableID, strategy)
	require.Len(t, rows, 3)

	assert.Equal(t, AssignmentRow{
		ExerciseID: "99990002",
		Class:      "L2a DA",
		Title:      "Dagens frist opgave",
		DueRaw:     "26/2-2026 23:59",
		Hours:      "1,00",
		Status:     "Mangler",
		Note:       "Se vedhæftet fil.",
	}, rows[1])
}

func TestParseDue(t *testing.T) {
	got, err := parseDue("26/2-2026 23:59", cph)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 26, 23, 59, 0, 0, cph), got)

	// Single-digit hour is valid in the export.
	got, err = parseDue("5/11-2025 8:00", cph)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 5, 8, 0, 0, 0, cph), got)

	for _, raw := range []string{"", "i morgen", "26/2-2026", "26/2-2026 24:00", "32/1-2026 10:00"} {
		_, err := parseDue(raw, cph)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestExerciseIDFromHref(t *testing.T) {
	assert.Equal(t, "99990002", exerciseIDFromHref("/lectio/123/ElevAflevering.aspx?exerciseid=99990002&elevid=7"))
	assert.Empty(t, exerciseIDFromHref("/lectio/123/ElevAflevering.aspx"))
	assert.Empty(t, exerciseIDFromHref(""))
}
