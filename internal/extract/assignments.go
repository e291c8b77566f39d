package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/ktmouritzen-byte/Lectioskema/internal/htmltext"
	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
	"github.com/ktmouritzen-byte/Lectioskema/internal/model"
)

// dueRE matches the strict OpgaverElev due-date format: D/M-YYYY H:MM with
// 1-2 digit day, month and hour.
var dueRE = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})-(\d{4})\s+(\d{1,2}):(\d{2})$`)

// columnRole identifies what a table column holds, independent of its
// position in a particular export.
type columnRole int

const (
	colClass columnRole = iota
	colTitle
	colDue
	colHours
	colStatus
	colNote
)

// headerRoles maps normalized header cell text to a role.
var headerRoles = map[string]columnRole{
	"hold":        colClass,
	"opgavetitel": colTitle,
	"frist":       colDue,
	"elev tid":    colHours,
	"elevtid":     colHours,
	"status":      colStatus,
	"opgavenote":  colNote,
}

// defaultColumns is the observed OpgaverElev layout, used when the table
// has no recognizable header row.
var defaultColumns = map[columnRole]int{
	colClass:  0,
	colTitle:  1,
	colDue:    2,
	colHours:  3,
	colStatus: 4,
	colNote:   7,
}

// AssignmentRow is one raw data row before date parsing and filtering.
type AssignmentRow struct {
	// ExerciseID is the exerciseid query parameter of the title link,
	// empty when absent.
	ExerciseID string
	Class      string
	Title      string
	DueRaw     string
	Hours      string
	Status     string
	Note       string
}

// AssignmentsOptions control assignment extraction.
type AssignmentsOptions struct {
	// Location is the configured local zone; defaults to time.Local.
	Location *time.Location

	// Today is the filter reference date; zero means the current date.
	// Rows due before Today are dropped.
	Today time.Time
}

// AssignmentStats summarizes one extraction run.
type AssignmentStats struct {
	Strategy    string
	Rows        int
	SkippedRows int
	FilteredOut int
}

var assignmentStrategies = []tableStrategy{
	{
		name: "id=" + assignmentsTableID,
		find: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("table#" + assignmentsTableID)
		},
	},
	{
		name: "id suffix " + assignmentsSuffix,
		find: func(doc *goquery.Document) *goquery.Selection {
			var match *goquery.Selection
			doc.Find("table[id]").EachWithBreak(func(_ int, t *goquery.Selection) bool {
				if strings.HasSuffix(t.AttrOr("id", ""), assignmentsSuffix) {
					match = t
					return false
				}
				return true
			})
			return match
		},
	},
	{
		name: "header row with Opgavetitel and Frist",
		find: func(doc *goquery.Document) *goquery.Selection {
			var match *goquery.Selection
			doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
				roles := headerColumns(t)
				_, hasTitle := roles[colTitle]
				_, hasDue := roles[colDue]
				if hasTitle && hasDue {
					match = t
					return false
				}
				return true
			})
			return match
		},
	},
}

// headerColumns resolves column roles from the table's header row. The
// returned map is empty when no header cell is recognized.
func headerColumns(table *goquery.Selection) map[columnRole]int {
	roles := make(map[columnRole]int)
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(th.Text()))
		if role, ok := headerRoles[key]; ok {
			if _, seen := roles[role]; !seen {
				roles[role] = i
			}
		}
	})
	return roles
}

// AssignmentRows returns the raw data rows of the assignment table in
// document order, plus the winning location strategy.
func AssignmentRows(doc *goquery.Document) ([]AssignmentRow, string, error) {
	table, strategy, err := locateTable(doc, "assignments", assignmentStrategies)
	if err != nil {
		return nil, "", err
	}

	columns := headerColumns(table)
	if len(columns) == 0 {
		columns = defaultColumns
	}

	var rows []AssignmentRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("th").Length() > 0 {
			return // header row
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		cell := func(role columnRole) *goquery.Selection {
			idx, ok := columns[role]
			if !ok || idx >= cells.Length() {
				return nil
			}
			return cells.Eq(idx)
		}
		cellText := func(role columnRole) string {
			c := cell(role)
			if c == nil {
				return ""
			}
			// Flattens decorative spans around plain text.
			return strings.Join(strings.Fields(c.Text()), " ")
		}

		row := AssignmentRow{
			Class:  cellText(colClass),
			DueRaw: cellText(colDue),
			Hours:  cellText(colHours),
			Status: cellText(colStatus),
		}

		if c := cell(colTitle); c != nil {
			anchor := c.Find("a").First()
			if anchor.Length() > 0 {
				row.Title = strings.TrimSpace(anchor.Text())
				row.ExerciseID = exerciseIDFromHref(anchor.AttrOr("href", ""))
			} else {
				row.Title = strings.TrimSpace(c.Text())
			}
		}

		if c := cell(colNote); c != nil {
			row.Note = htmltext.Normalize(nodeText(c))
		}

		rows = append(rows, row)
	})

	return rows, strategy, nil
}

// Assignments extracts assignment deadlines as all-day events on their due
// date. Rows with an unparseable due date are skipped, never fatal; rows
// due before "today" are filtered out.
func Assignments(doc *goquery.Document, opts AssignmentsOptions) ([]model.Event, AssignmentStats, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	today := opts.Today
	if today.IsZero() {
		today = time.Now().In(loc)
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	rows, strategy, err := AssignmentRows(doc)
	if err != nil {
		return nil, AssignmentStats{}, err
	}
	stats := AssignmentStats{Strategy: strategy}

	events := make([]model.Event, 0, len(rows))
	indexByUID := make(map[string]int)

	for _, row := range rows {
		stats.Rows++

		due, derr := parseDue(row.DueRaw, loc)
		if derr != nil {
			stats.SkippedRows++
			appLog.Warn("skipping assignment row with bad due date", "due", row.DueRaw)
			continue
		}

		dueDate := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc)
		if dueDate.Before(today) {
			stats.FilteredOut++
			continue
		}

		ev := model.Event{
			UID:         BuildUID(row.ExerciseID, row.Title+"\n"+row.Note, dueDate),
			Title:       assignmentSummary(row),
			AllDay:      true,
			Date:        dueDate,
			Description: row.Note,
			Status:      model.StatusConfirmed,
		}
		if row.Class != "" {
			ev.Classes = []string{row.Class}
		}

		if i, dup := indexByUID[ev.UID]; dup {
			events[i] = ev
			continue
		}
		indexByUID[ev.UID] = len(events)
		events = append(events, ev)
	}

	model.SortEvents(events)

	appLog.Debug("assignment extraction done",
		"strategy", stats.Strategy,
		"rows", stats.Rows,
		"events", len(events),
		"skipped", stats.SkippedRows,
		"filtered", stats.FilteredOut,
	)

	return events, stats, nil
}

// assignmentSummary composes the feed title: "status • title • class • hours"
// with empty parts omitted.
func assignmentSummary(row AssignmentRow) string {
	parts := lo.Filter([]string{row.Status, row.Title, row.Class, row.Hours},
		func(p string, _ int) bool { return p != "" })
	if len(parts) == 0 {
		return "(Untitled)"
	}
	return strings.Join(parts, " • ")
}

func parseDue(raw string, loc *time.Location) (time.Time, error) {
	m := dueRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, fmt.Errorf("due date %q does not match D/M-YYYY H:MM", raw)
	}
	day, month, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	hour, minute := atoi(m[4]), atoi(m[5])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("due date %q is out of range", raw)
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), nil
}

func exerciseIDFromHref(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("exerciseid")
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
