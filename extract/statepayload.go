package extract

import (
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// statePayload parses the serialized application-state attribute the SPA
// embeds on its root element. This is the highest-precedence strategy: the
// payload is server-computed, so it is immune to render noise that defeats
// the text heuristics.
type statePayload struct {
	attr   string
	logger *slog.Logger
}

func (s *statePayload) name() string { return "state" }

// statePage mirrors the subset of the app-state payload we care about.
// Deliveries stays raw so "key absent" (no signal) can be told apart from
// "key present, empty array" (a real empty date).
type statePage struct {
	Props struct {
		Deliveries json.RawMessage `json:"deliveries"`
	} `json:"props"`
}

type stateDelivery struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Restaurant struct {
		Name string `json:"name"`
	} `json:"restaurant"`
	IsOpen       *bool   `json:"isOpen"`
	CancelledAt  *string `json:"cancelledAt"`
	UserCanOrder *bool   `json:"userCanOrder"`
}

// eligible reports whether a delivery is something the user could act on:
// open, not cancelled, and orderable. Absent fields count as permissive —
// the payload schema has drifted before and a missing flag must not hide
// real offers.
func (d stateDelivery) eligible() bool {
	if d.IsOpen != nil && !*d.IsOpen {
		return false
	}
	if d.CancelledAt != nil && *d.CancelledAt != "" {
		return false
	}
	if d.UserCanOrder != nil && !*d.UserCanOrder {
		return false
	}
	return true
}

func (d stateDelivery) itemName() string {
	if d.Restaurant.Name != "" {
		return d.Restaurant.Name
	}
	return d.Name
}

func (s *statePayload) extract(doc *html.Node) (Snapshot, bool) {
	raw := findStateAttr(doc, s.attr)
	if raw == "" {
		return Snapshot{}, false
	}

	var page statePage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		s.logger.Debug("extract: state payload undecodable", "error", err)
		return Snapshot{}, false
	}
	if len(page.Props.Deliveries) == 0 {
		// Payload present but carries no delivery state at all.
		return Snapshot{}, false
	}

	var deliveries []stateDelivery
	if err := json.Unmarshal(page.Props.Deliveries, &deliveries); err != nil {
		s.logger.Debug("extract: deliveries undecodable", "error", err)
		return Snapshot{}, false
	}

	var items []Item
	for _, d := range deliveries {
		if !d.eligible() {
			continue
		}
		name := strings.TrimSpace(d.itemName())
		if name == "" {
			continue
		}
		items = append(items, Item{Name: name, Link: d.URL})
	}

	return Snapshot{
		Available: len(items) > 0,
		Items:     items,
		Count:     len(items),
	}, true
}

// findStateAttr returns the first non-empty value of attr in the document.
func findStateAttr(doc *html.Node, attr string) string {
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			if v := getAttr(n, attr); v != "" {
				found = v
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}
