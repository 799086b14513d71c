package extract

import (
	"strings"
	"testing"
)

const statePayloadPage = `<html><body>
<div id="app" data-page='{"props":{"deliveries":[
  {"restaurant":{"name":"Taco Cartel"},"url":"/app/2026-03-02/1","isOpen":true,"cancelledAt":null,"userCanOrder":true},
  {"restaurant":{"name":"Closed Kitchen"},"url":"/app/2026-03-02/2","isOpen":false,"cancelledAt":null,"userCanOrder":true},
  {"restaurant":{"name":"Cancelled Cafe"},"url":"/app/2026-03-02/3","isOpen":true,"cancelledAt":"2026-03-01T10:00:00Z","userCanOrder":true},
  {"restaurant":{"name":"Not Yours"},"url":"/app/2026-03-02/4","isOpen":true,"cancelledAt":null,"userCanOrder":false}
]}}'>
<div class="card"><h3>Bogus Heuristic Grill</h3><a href="/x">Show Menu</a></div>
</div></body></html>`

func TestStatePayloadPrecedence(t *testing.T) {
	e := New(Config{})
	snap := e.Extract([]byte(statePayloadPage))

	if snap.Strategy != "state" {
		t.Fatalf("expected state strategy, got %q", snap.Strategy)
	}
	if !snap.Available {
		t.Fatal("expected available")
	}
	// Only the open, not-cancelled, orderable record survives. The selector
	// strategy would have reported "Bogus Heuristic Grill"; the structured
	// payload must win.
	if len(snap.Items) != 1 || snap.Items[0].Name != "Taco Cartel" {
		t.Fatalf("unexpected items: %+v", snap.Items)
	}
	if snap.Items[0].Link != "/app/2026-03-02/1" {
		t.Fatalf("unexpected link: %q", snap.Items[0].Link)
	}
}

func TestStatePayloadEmptyDeliveries(t *testing.T) {
	page := `<html><body><div data-page='{"props":{"deliveries":[]}}'></div></body></html>`
	snap := New(Config{}).Extract([]byte(page))

	if snap.Strategy != "state" {
		t.Fatalf("expected state strategy, got %q", snap.Strategy)
	}
	if snap.Available {
		t.Fatal("empty deliveries must be unavailable")
	}
}

func TestStatePayloadAbsentFallsThrough(t *testing.T) {
	page := `<html><body><div data-page='{"props":{"other":1}}'></div>
	<main>Show Menu</main></body></html>`
	snap := New(Config{}).Extract([]byte(page))

	if snap.Strategy == "state" {
		t.Fatal("payload without deliveries key must give no signal")
	}
}

func TestExplicitMessage(t *testing.T) {
	e := New(Config{EmptyPhrase: "No deliveries scheduled yet"})

	empty := `<html><body><main>  no   DELIVERIES
	scheduled    yet </main></body></html>`
	snap := e.Extract([]byte(empty))
	if snap.Strategy != "message" || snap.Available {
		t.Fatalf("expected unavailable via message, got %+v", snap)
	}

	populated := `<html><body><main>Lunch is coming.</main></body></html>`
	snap = e.Extract([]byte(populated))
	if snap.Strategy != "message" || !snap.Available {
		t.Fatalf("expected available via message, got %+v", snap)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("message strategy must not invent items: %+v", snap.Items)
	}
}

const cardPage = `<html><body><main>
<div class="restaurant-card"><h3>Pho Real</h3><p>Vietnamese</p><a href="/app/d/1">Show Menu</a></div>
<div class="restaurant-card"><h3>Burger Burger</h3><p>Smash burgers</p><a href="/app/d/2">View Menu</a></div>
</main></body></html>`

func TestSelectorStrategyWithSelectors(t *testing.T) {
	e := New(Config{CardSelectors: []string{`div.restaurant-card:has-text("Menu")`}})
	snap := e.Extract([]byte(cardPage))

	if snap.Strategy != "selectors" {
		t.Fatalf("expected selectors strategy, got %q", snap.Strategy)
	}
	if !snap.Available || snap.Count != 2 {
		t.Fatalf("expected 2 cards available, got %+v", snap)
	}
	names := snap.ItemNames()
	if len(names) != 2 || names[0] != "Burger Burger" || names[1] != "Pho Real" {
		t.Fatalf("unexpected item names: %v", names)
	}
}

func TestSelectorStrategyActionPhrases(t *testing.T) {
	e := New(Config{})
	snap := e.Extract([]byte(cardPage))

	if snap.Strategy != "selectors" {
		t.Fatalf("expected selectors strategy, got %q", snap.Strategy)
	}
	if !snap.Available || snap.Count != 2 {
		t.Fatalf("expected 2 CTA hits, got %+v", snap)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("expected 2 inferred items, got %+v", snap.Items)
	}
	if snap.Items[0].Link != "/app/d/1" {
		t.Fatalf("expected card link carried over, got %+v", snap.Items[0])
	}
}

func TestSelectorStrategyBelowThreshold(t *testing.T) {
	e := New(Config{MinCount: 3})
	snap := e.Extract([]byte(cardPage))

	if snap.Available {
		t.Fatal("2 hits with MinCount=3 must be unavailable")
	}
}

func TestHeadingFallbackItems(t *testing.T) {
	// CTA text present in plain text (counted) but not inside any card
	// structure the walk recognises.
	page := `<html><body><main>
	Show Menu
	<h2>Ramen Shack</h2>
	<h2>` + strings.Repeat("Very Long Heading ", 10) + `</h2>
	</main></body></html>`
	e := New(Config{})
	snap := e.Extract([]byte(page))

	if !snap.Available {
		t.Fatalf("expected available, got %+v", snap)
	}
	if len(snap.Items) != 1 || snap.Items[0].Name != "Ramen Shack" {
		t.Fatalf("expected heading fallback item, got %+v", snap.Items)
	}
}

func TestExtractNeverFails(t *testing.T) {
	for _, raw := range []string{"", "<<<%%%", "\x00\x01\x02"} {
		snap := New(Config{}).Extract([]byte(raw))
		if snap.Available {
			t.Fatalf("garbage input %q must degrade to unavailable", raw)
		}
		if snap.Fingerprint == "" {
			t.Fatalf("degraded snapshot must still carry a fingerprint")
		}
	}
}
