// Package feed wires the pipeline together: source HTML in, .ics file
// out. Each run is a full regeneration; the sink overwrites the previous
// feed so moved or removed entries disappear on the next client refresh.
package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	ics "github.com/arran4/golang-ical"

	"github.com/ktmouritzen-byte/Lectioskema/internal/config"
	"github.com/ktmouritzen-byte/Lectioskema/internal/extract"
	"github.com/ktmouritzen-byte/Lectioskema/internal/fetch"
	"github.com/ktmouritzen-byte/Lectioskema/internal/ical"
	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
	"github.com/ktmouritzen-byte/Lectioskema/internal/model"
)

// Generator runs the feeds described by a Config.
type Generator struct {
	cfg    *config.Config
	client *fetch.Client

	// Now supplies the generation timestamp (DTSTAMP); injectable for
	// deterministic output in tests.
	Now func() time.Time

	// Today overrides the filter reference date; zero uses the current
	// date in the configured zone.
	Today time.Time
}

// New builds a Generator for the given configuration.
func New(cfg *config.Config) *Generator {
	return &Generator{
		cfg:    cfg,
		client: fetch.NewClient(cfg.Fetch.Timeout()),
		Now:    time.Now,
	}
}

// RunAll generates every enabled feed. Per-feed failures do not stop the
// other feeds; all errors are joined.
func (g *Generator) RunAll(ctx context.Context) error {
	ran := 0
	var errs []error

	if g.cfg.Schedule.Enabled() {
		ran++
		if err := g.RunSchedule(ctx); err != nil {
			errs = append(errs, fmt.Errorf("schedule feed: %w", err))
		}
	}
	if g.cfg.Assignments.Enabled() {
		ran++
		if err := g.RunAssignments(ctx); err != nil {
			errs = append(errs, fmt.Errorf("assignments feed: %w", err))
		}
	}

	if ran == 0 {
		return errors.New("no feeds configured: set schedule or assignments source")
	}
	return errors.Join(errs...)
}

// RunSchedule generates the lesson-schedule feed.
func (g *Generator) RunSchedule(ctx context.Context) error {
	loc, err := g.cfg.Location()
	if err != nil {
		return err
	}

	pages, err := g.schedulePages(ctx, loc)
	if err != nil {
		return err
	}

	opts := extract.ScheduleOptions{
		Location: loc,
		Today:    g.today(loc),
		Window:   &extract.Window{Past: g.cfg.DaysPast, Future: g.cfg.DaysFuture},
	}

	merged := make([]model.Event, 0)
	indexByUID := make(map[string]int)
	for _, page := range pages {
		doc, derr := goquery.NewDocumentFromReader(strings.NewReader(page))
		if derr != nil {
			return fmt.Errorf("parse html: %w", derr)
		}
		events, stats, xerr := extract.Schedule(doc, opts)
		if xerr != nil {
			return xerr
		}
		appLog.Info("schedule page extracted", "strategy", stats.Strategy, "events", len(events))
		for _, ev := range events {
			if i, dup := indexByUID[ev.UID]; dup {
				merged[i] = ev
				continue
			}
			indexByUID[ev.UID] = len(merged)
			merged = append(merged, ev)
		}
	}
	model.SortEvents(merged)

	return g.write(g.cfg.Schedule, merged)
}

// RunAssignments generates the assignment-deadline feed.
func (g *Generator) RunAssignments(ctx context.Context) error {
	loc, err := g.cfg.Location()
	if err != nil {
		return err
	}

	page, err := g.loadPage(ctx, g.cfg.Assignments)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	events, stats, err := extract.Assignments(doc, extract.AssignmentsOptions{
		Location: loc,
		Today:    g.today(loc),
	})
	if err != nil {
		return err
	}
	appLog.Info("assignments extracted",
		"strategy", stats.Strategy, "events", len(events), "skipped", stats.SkippedRows)

	return g.write(g.cfg.Assignments, events)
}

// schedulePages returns the HTML documents covering the configured date
// window: a single local export, or one fetched page per ISO week.
func (g *Generator) schedulePages(ctx context.Context, loc *time.Location) ([]string, error) {
	feed := g.cfg.Schedule
	if feed.HTMLPath != "" {
		page, err := readFilePage(feed.HTMLPath)
		if err != nil {
			return nil, err
		}
		return []string{page}, nil
	}

	weeks := fetch.WeeksForWindow(g.today(loc), g.cfg.DaysPast, g.cfg.DaysFuture)
	pages := make([]string, 0, len(weeks))
	for _, wk := range weeks {
		weekURL, err := fetch.BuildWeekURL(feed.URL, wk)
		if err != nil {
			return nil, err
		}
		res, err := g.fetchPage(ctx, weekURL)
		if err != nil {
			return nil, fmt.Errorf("week %s: %w", wk.Param(), err)
		}
		pages = append(pages, res.Body)
	}
	return pages, nil
}

func (g *Generator) loadPage(ctx context.Context, feed config.FeedConfig) (string, error) {
	if feed.HTMLPath != "" {
		return readFilePage(feed.HTMLPath)
	}
	res, err := g.fetchPage(ctx, feed.URL)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

func (g *Generator) fetchPage(ctx context.Context, pageURL string) (fetch.Result, error) {
	if g.cfg.Fetch.Browser {
		return fetch.FetchWithBrowser(ctx, fetch.BrowserOptions{
			URL:          pageURL,
			CookieHeader: g.cfg.Fetch.Cookie(),
			Timeout:      g.cfg.Fetch.Timeout(),
		})
	}
	return g.client.Fetch(ctx, pageURL, g.cfg.Fetch.Cookie())
}

// write serializes the events and overwrites the feed file. The rendered
// document is re-parsed as a self-check before anything touches disk.
func (g *Generator) write(feed config.FeedConfig, events []model.Event) error {
	text := ical.Build(events, g.Now().UTC(), ical.Options{
		Name:          feed.Name,
		AllDayEnd:     policyFor(feed),
		EmitCancelled: g.cfg.EmitCancelled,
	})

	cal, err := ics.ParseCalendar(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("rendered calendar failed self-check: %w", err)
	}

	if err := WriteFile(feed.Output, text); err != nil {
		return err
	}

	appLog.Info("feed written",
		"output", feed.Output, "name", feed.Name, "events", len(cal.Events()))
	return nil
}

func (g *Generator) today(loc *time.Location) time.Time {
	if !g.Today.IsZero() {
		return g.Today
	}
	return g.Now().In(loc)
}

func policyFor(feed config.FeedConfig) ical.AllDayEndPolicy {
	if feed.AllDayEnd == config.AllDayEndNextDay {
		return ical.AllDayEndNextDay
	}
	return ical.AllDayEndSameDay
}

func readFilePage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read html export: %w", err)
	}
	return string(data), nil
}
