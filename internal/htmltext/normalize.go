// Package htmltext cleans raw text fragments pulled out of Lectio HTML
// before any field parsing happens. Tooltips and cell contents arrive with
// mixed line endings, stray markup and decomposed unicode; everything
// downstream assumes the canonical form produced here.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var tagRE = regexp.MustCompile(`<[^>]+>`)

// Normalize is a total, deterministic cleanup of a raw text fragment:
//
//   - trims surrounding whitespace
//   - unifies CRLF/CR line endings to LF
//   - normalizes unicode to NFC (bullet glyphs survive untouched)
//   - strips embedded HTML tags (tooltips are sometimes pre-rendered)
//   - trims each line and removes a leading "- " list bullet
//   - collapses runs of blank lines to a single one
//   - drops leading and trailing blank lines
//
// Section header lines such as "Lektier:" pass through otherwise unchanged.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = norm.NFC.String(text)

	text = tagRE.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	previousBlank := false
	for _, ln := range lines {
		stripped := strings.TrimSpace(ln)
		stripped = strings.TrimPrefix(stripped, "- ")
		if stripped == "" {
			if previousBlank {
				continue
			}
			previousBlank = true
			cleaned = append(cleaned, "")
			continue
		}
		previousBlank = false
		cleaned = append(cleaned, stripped)
	}

	for len(cleaned) > 0 && cleaned[0] == "" {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	return strings.Join(cleaned, "\n")
}

// FirstLine returns the first non-empty line of already-normalized text,
// or "" when there is none.
func FirstLine(text string) string {
	for _, ln := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			return s
		}
	}
	return ""
}
