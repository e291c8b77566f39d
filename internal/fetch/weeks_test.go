package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeksForWindowCoversBoundaries(t *testing.T) {
	today := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	weeks := WeeksForWindow(today, 7, 21)

	require.NotEmpty(t, weeks)

	startYear, startWeek := today.AddDate(0, 0, -7).ISOWeek()
	endYear, endWeek := today.AddDate(0, 0, 21).ISOWeek()
	assert.Contains(t, weeks, Week{Week: startWeek, Year: startYear})
	assert.Contains(t, weeks, Week{Week: endWeek, Year: endYear})

	seen := map[Week]int{}
	for _, w := range weeks {
		seen[w]++
	}
	for w, n := range seen {
		assert.Equal(t, 1, n, "week %v duplicated", w)
	}
}

func TestWeeksForWindowShortWindowIncludesEndWeek(t *testing.T) {
	today := time.Date(2026, 2, 26, 0, 0, 0, 0, time.UTC)
	weeks := WeeksForWindow(today, 0, 3)

	endYear, endWeek := today.AddDate(0, 0, 3).ISOWeek()
	assert.Contains(t, weeks, Week{Week: endWeek, Year: endYear})
}

func TestWeeksForWindowYearBoundary(t *testing.T) {
	today := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	weeks := WeeksForWindow(today, 7, 14)

	years := map[int]bool{}
	for _, w := range weeks {
		years[w.Year] = true
	}
	assert.True(t, years[2025], "window start week belongs to ISO year 2025")
	assert.True(t, years[2026], "window end week belongs to ISO year 2026")
}

func TestWeekParamFormat(t *testing.T) {
	assert.Equal(t, "062026", Week{Week: 6, Year: 2026}.Param())
	assert.Equal(t, "522025", Week{Week: 52, Year: 2025}.Param())
}

func TestBuildWeekURLOverwritesWeekParam(t *testing.T) {
	out, err := BuildWeekURL("https://www.lectio.dk/lectio/681/SkemaAvanceret.aspx?elevid=123&week=012025", Week{Week: 6, Year: 2026})
	require.NoError(t, err)
	assert.Contains(t, out, "week=062026")
	assert.Contains(t, out, "elevid=123")
}
