// Package extract locates schedule and assignment records inside Lectio
// HTML exports and turns them into model.Event values. Table location is a
// chain of named strategies tried in priority order; which one matched is
// surfaced for diagnostics, and entry content never leaks into errors.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	scheduleTableID    = "m_Content_SkemaMedNavigation_skema_skematabel"
	assignmentsTableID = "s_m_Content_Content_ExerciseGV"
	assignmentsSuffix  = "ExerciseGV"

	// uidDomain suffixes every UID so calendar clients treat regenerated
	// feeds as updates of the same entries.
	uidDomain = "lectio.dk"
)

// ErrTableNotFound is the sentinel matched by errors.Is for any structural
// "wrong page" failure, distinct from a legitimately empty table.
var ErrTableNotFound = errors.New("table not found")

// TableNotFoundError reports that no location strategy matched. It names
// the mode and the strategies tried but never any cell content.
type TableNotFoundError struct {
	Mode  string
	Tried []string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("%s table not found: tried strategies [%s]", e.Mode, strings.Join(e.Tried, ", "))
}

func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

// tableStrategy is one named way of locating a table in the document.
type tableStrategy struct {
	name string
	find func(doc *goquery.Document) *goquery.Selection
}

// locateTable applies strategies in order and returns the first match
// together with the winning strategy name.
func locateTable(doc *goquery.Document, mode string, strategies []tableStrategy) (*goquery.Selection, string, error) {
	tried := make([]string, 0, len(strategies))
	for _, s := range strategies {
		tried = append(tried, s.name)
		if sel := s.find(doc); sel != nil && sel.Length() > 0 {
			return sel.First(), s.name, nil
		}
	}
	return nil, "", &TableNotFoundError{Mode: mode, Tried: tried}
}

// BuildUID derives the stable identity of an entry. A source-provided id
// wins; otherwise the UID is a deterministic hash of exactly
// normalizedText + "\n" + date in YYYY-MM-DD form, so independent runs and
// re-implementations agree bit for bit.
func BuildUID(sourceID, normalizedText string, date time.Time) string {
	if sourceID != "" {
		return sourceID + "@" + uidDomain
	}
	sum := sha256.Sum256([]byte(normalizedText + "\n" + date.Format("2006-01-02")))
	return "lectio-" + hex.EncodeToString(sum[:])[:24] + "@" + uidDomain
}

// nodeText collects the text nodes under a selection joined by newlines,
// so multi-line cell content keeps its line structure (goquery's Text()
// concatenates without separators).
func nodeText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// parseDataDate parses the YYYY-MM-DD value of a td[data-date] attribute.
func parseDataDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid data-date value: %w", err)
	}
	return t, nil
}
