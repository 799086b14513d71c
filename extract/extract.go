// Package extract turns a rendered date page into a normalized availability
// snapshot. The target site re-renders the same content with unstable markup,
// so extraction runs a precedence-ordered chain of strategies:
//
//   - state:     parse the serialized application-state attribute. Reflects
//     server-computed state, authoritative when present.
//   - message:   look for the configured "nothing scheduled" phrase.
//   - selectors: count configured card selectors or call-to-action phrases.
//
// The first strategy that yields a defined result wins. Extraction never
// fails: a page that defeats every strategy degrades to "unavailable, no
// items" rather than an error.
package extract

import (
	"bytes"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Item is one orderable entry on a date page.
type Item struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// Snapshot is the extraction result for one page at one point in time.
// Fingerprint is a pure function of semantic content: unrelated re-renders
// of identical content produce the same value.
type Snapshot struct {
	Available   bool   `json:"available"`
	Items       []Item `json:"items,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Strategy    string `json:"strategy"`
	Count       int    `json:"count"`
}

// ItemNames returns the sorted item names.
func (s Snapshot) ItemNames() []string {
	names := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		names = append(names, it.Name)
	}
	sort.Strings(names)
	return names
}

// Config tunes the strategy chain. The zero value is usable; defaults
// match the target site.
type Config struct {
	// StateAttr is the attribute carrying the serialized app state.
	// Default: "data-page".
	StateAttr string

	// EmptyPhrase marks a date with nothing scheduled. Matched
	// case-insensitively against whitespace-normalized main content.
	// Empty disables the message strategy.
	EmptyPhrase string

	// CardSelectors are CSS-like selectors counting offer cards. When empty
	// the selector strategy falls back to counting ActionPhrases.
	CardSelectors []string

	// ActionPhrases are call-to-action texts that mark an offer card.
	// Default: "Show Menu", "View Menu".
	ActionPhrases []string

	// MinCount is the match threshold for availability. Default: 1.
	MinCount int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.StateAttr == "" {
		c.StateAttr = "data-page"
	}
	if len(c.ActionPhrases) == 0 {
		c.ActionPhrases = []string{"Show Menu", "View Menu"}
	}
	if c.MinCount <= 0 {
		c.MinCount = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// strategy is one member of the chain. ok=false means "no signal from this
// strategy, fall through" — never an error.
type strategy interface {
	name() string
	extract(doc *html.Node) (Snapshot, bool)
}

// Extractor runs the strategy chain over captured HTML.
type Extractor struct {
	cfg        Config
	strategies []strategy
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{
		cfg: cfg,
		strategies: []strategy{
			&statePayload{attr: cfg.StateAttr, logger: cfg.Logger},
			&explicitMessage{phrase: cfg.EmptyPhrase},
			&selectorHeuristic{cfg: cfg},
		},
	}
}

// Extract produces a Snapshot from raw rendered HTML. It never returns an
// error; undecodable input degrades to an unavailable snapshot whose
// fingerprint still covers the normalized input, so repeated garbage stays
// stable across runs.
func (e *Extractor) Extract(raw []byte) Snapshot {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil || doc == nil {
		e.cfg.Logger.Warn("extract: parse failed, degrading", "error", err)
		return Snapshot{
			Strategy:    "none",
			Fingerprint: fingerprint(false, normalizeText(string(raw))),
		}
	}

	for _, s := range e.strategies {
		snap, ok := s.extract(doc)
		if !ok {
			continue
		}
		snap.Strategy = s.name()
		if snap.Fingerprint == "" {
			snap.Fingerprint = snapshotFingerprint(snap, doc)
		}
		return snap
	}

	// No strategy yielded a signal: unavailable, no items.
	body := normalizeText(collectText(mainNode(doc)))
	return Snapshot{
		Strategy:    "none",
		Fingerprint: fingerprint(false, body),
	}
}

// snapshotFingerprint picks the fingerprint input per the information the
// strategy produced: item names when known, normalized page text otherwise.
func snapshotFingerprint(snap Snapshot, doc *html.Node) string {
	if len(snap.Items) > 0 {
		return fingerprint(snap.Available, strings.Join(snap.ItemNames(), "\n"))
	}
	return fingerprint(snap.Available, normalizeText(collectText(mainNode(doc))))
}
