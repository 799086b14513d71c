// Package monitor orchestrates a dropwatch run: build the date window,
// authenticate once, then for each tracked date load the page, extract a
// snapshot, diff it against the stored state, persist, and finally report.
//
// Execution is strictly sequential. One authenticated browser is shared by
// all dates; each date gets its own tab so rendered state never bleeds
// between checks. Per-date failures are recorded and skipped; only
// authentication failure aborts the run.
package monitor

import (
	"fmt"
	"strings"
	"time"
)

// TrackedPage is one date-scoped page under monitoring. Immutable once
// constructed; one per business day in the lookahead window.
type TrackedPage struct {
	URL  string    `json:"url"`
	Date time.Time `json:"date"`
}

// DateKey returns the ISO date used for state keys and artifact names.
func (p TrackedPage) DateKey() string { return p.Date.Format("2006-01-02") }

// URLFor derives the canonical page URL for a date.
func URLFor(base string, d time.Time) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), d.Format("2006-01-02"))
}

// Window enumerates the next lookahead calendar days starting tomorrow,
// keeping business days only. The target system never schedules anything
// on weekends, so checking them would just burn page loads.
func Window(today time.Time, lookahead int) []time.Time {
	var days []time.Time
	for i := 1; i <= lookahead; i++ {
		d := today.AddDate(0, 0, i)
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d)
	}
	return days
}

// Pages builds the tracked pages for a window.
func Pages(base string, today time.Time, lookahead int) []TrackedPage {
	days := Window(today, lookahead)
	pages := make([]TrackedPage, 0, len(days))
	for _, d := range days {
		pages = append(pages, TrackedPage{URL: URLFor(base, d), Date: d})
	}
	return pages
}
