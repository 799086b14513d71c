package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/dropwatch/extract"
	"github.com/hazyhaar/dropwatch/notify"
	"github.com/hazyhaar/dropwatch/store"
)

// Capture is a rendered date page: its HTML plus a screenshot hook. The
// browser loader takes the screenshot while the tab is still open and the
// hook hands those bytes back; it is invoked only when a date turns out
// unavailable and diagnostics are wanted.
type Capture struct {
	HTML       []byte
	Screenshot func(ctx context.Context) ([]byte, error)
}

// Loader acquires a rendered page under the authenticated session. The
// browser-backed implementation lives in loader.go; tests substitute
// fixtures.
type Loader interface {
	Load(ctx context.Context, url string) (*Capture, error)
}

// Session establishes the authenticated session. Satisfied by
// auth.Authenticator.
type Session interface {
	Login(ctx context.Context) error
}

// ArtifactSink persists diagnostic captures. Satisfied by artifact.Store.
type ArtifactSink interface {
	Capture(key string, html, png []byte) error
}

// DateSummary is the summary-mode roll-up for one date.
type DateSummary struct {
	Page      TrackedPage
	Available bool
	Items     []string
	Count     int
}

// Result accumulates one run's outcome.
type Result struct {
	Checked   int
	Events    []ChangeEvent
	Summaries []DateSummary
	Errors    []string
}

// RunnerConfig wires a Runner. All collaborators are required except
// Artifacts and Logger.
type RunnerConfig struct {
	Pages     []TrackedPage
	Session   Session
	Loader    Loader
	Extractor *extract.Extractor
	Store     *store.Store
	Notifier  notify.Notifier
	Artifacts ArtifactSink

	// Summary skips diffing and reports every date's current state.
	Summary bool
	// Heartbeat reports "no changes" instead of staying silent.
	Heartbeat bool

	Logger *slog.Logger
}

// Runner executes one monitoring run.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg}
}

// Run walks the window. Authentication failure is the only fatal error; it
// still produces one notification before returning. An empty window means
// no checks and no notification at all.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := r.cfg.Logger
	res := &Result{}

	if len(r.cfg.Pages) == 0 {
		log.Info("monitor: empty window, nothing to check")
		return res, nil
	}

	if err := r.cfg.Session.Login(ctx); err != nil {
		log.Error("monitor: authentication failed", "error", err)
		r.notify(ctx, authFailureMessage(err))
		return res, fmt.Errorf("monitor: %w", err)
	}

	for _, page := range r.cfg.Pages {
		if err := r.checkDate(ctx, page, res); err != nil {
			// Recoverable: record, skip the date, keep going.
			log.Warn("monitor: date check failed", "date", page.DateKey(), "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", page.DateKey(), err))
		}
	}

	if msg, ok := r.report(res); ok {
		r.notify(ctx, msg)
	}
	return res, nil
}

func (r *Runner) checkDate(ctx context.Context, page TrackedPage, res *Result) error {
	log := r.cfg.Logger
	log.Info("monitor: checking", "date", page.DateKey(), "url", page.URL)

	capture, err := r.cfg.Loader.Load(ctx, page.URL)
	if err != nil {
		return err
	}

	snap := r.cfg.Extractor.Extract(capture.HTML)
	log.Debug("monitor: extracted",
		"date", page.DateKey(), "strategy", snap.Strategy,
		"available", snap.Available, "count", snap.Count)

	if !snap.Available {
		r.captureDiagnostics(ctx, page, capture)
	}

	if r.cfg.Summary {
		res.Summaries = append(res.Summaries, DateSummary{
			Page:      page,
			Available: snap.Available,
			Items:     snap.ItemNames(),
			Count:     snap.Count,
		})
		res.Checked++
		return nil
	}

	key := store.KeyForURL(page.URL)
	prev, err := r.cfg.Store.Load(ctx, key)
	if err != nil {
		return err
	}

	if ev, changed := Classify(page, prev, snap); changed {
		res.Events = append(res.Events, ev)
	}

	// Persisted unconditionally: the stored state always reflects the
	// latest successful check.
	err = r.cfg.Store.Save(ctx, key, store.State{
		URL:         page.URL,
		Available:   snap.Available,
		Fingerprint: snap.Fingerprint,
		Items:       snap.ItemNames(),
		CheckedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	res.Checked++
	return nil
}

// captureDiagnostics saves HTML and screenshot for an unavailable date.
// Best-effort only.
func (r *Runner) captureDiagnostics(ctx context.Context, page TrackedPage, capture *Capture) {
	if r.cfg.Artifacts == nil {
		return
	}
	var png []byte
	if capture.Screenshot != nil {
		var err error
		if png, err = capture.Screenshot(ctx); err != nil {
			r.cfg.Logger.Debug("monitor: screenshot failed", "date", page.DateKey(), "error", err)
		}
	}
	if err := r.cfg.Artifacts.Capture(page.DateKey(), capture.HTML, png); err != nil {
		r.cfg.Logger.Debug("monitor: artifact capture failed", "date", page.DateKey(), "error", err)
	}
}

// report decides whether this run warrants a notification and builds it.
func (r *Runner) report(res *Result) (notify.Message, bool) {
	if r.cfg.Summary {
		return summaryMessage(res), true
	}
	if len(res.Events) > 0 {
		return changeMessage(res), true
	}
	if r.cfg.Heartbeat {
		return heartbeatMessage(res), true
	}
	return notify.Message{}, false
}

// notify delivers the message. Failures are logged, never fatal: every
// check already persisted its state.
func (r *Runner) notify(ctx context.Context, msg notify.Message) {
	if err := r.cfg.Notifier.Notify(ctx, msg); err != nil {
		r.cfg.Logger.Error("monitor: notification failed", "error", err)
	}
}
