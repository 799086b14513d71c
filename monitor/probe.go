package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/dropwatch/extract"
	"github.com/hazyhaar/dropwatch/notify"
)

// ProbeReport is the outcome of a single-date diagnostic probe.
type ProbeReport struct {
	Page     TrackedPage
	Snapshot extract.Snapshot
}

// Probe inspects one date without touching stored state. Unlike a normal
// run it captures artifacts unconditionally and sends a status ping, so a
// broken extraction can be diagnosed from the saved HTML and screenshot.
// offset counts calendar days from today; 1 is tomorrow.
func (r *Runner) Probe(ctx context.Context, base string, offset int) (*ProbeReport, error) {
	date := time.Now().AddDate(0, 0, offset)
	page := TrackedPage{URL: URLFor(base, date), Date: date}
	log := r.cfg.Logger

	if err := r.cfg.Session.Login(ctx); err != nil {
		r.notify(ctx, authFailureMessage(err))
		return nil, fmt.Errorf("monitor: %w", err)
	}

	log.Info("monitor: probing", "date", page.DateKey(), "url", page.URL)
	capture, err := r.cfg.Loader.Load(ctx, page.URL)
	if err != nil {
		return nil, err
	}

	snap := r.cfg.Extractor.Extract(capture.HTML)
	r.captureDiagnostics(ctx, page, capture)

	r.notify(ctx, probeMessage(page, snap))
	return &ProbeReport{Page: page, Snapshot: snap}, nil
}

func probeMessage(page TrackedPage, snap extract.Snapshot) notify.Message {
	state := "nothing orderable"
	if snap.Available {
		state = fmt.Sprintf("%d orderable", snap.Count)
	}
	text := fmt.Sprintf("Probe %s: %s (strategy %s)", page.DateKey(), state, snap.Strategy)
	blocks := []notify.Block{notify.Section(fmt.Sprintf("*Probe* %s", pageLine(page, snap.Count)))}
	if names := snap.ItemNames(); len(names) > 0 {
		blocks = append(blocks, notify.Section(strings.Join(names, ", ")))
	}
	return notify.Message{Text: text, Blocks: blocks}
}
