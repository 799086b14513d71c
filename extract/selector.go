package extract

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// selectorHeuristic is the last-resort strategy: count configured card
// selectors, or occurrences of the call-to-action phrases, and call the
// date available when the count clears the threshold. Item names are
// inferred by walking from each call-to-action control up to its enclosing
// card. Fuzzy on purpose — it only runs when the structured strategies
// gave no signal.
type selectorHeuristic struct {
	cfg Config
}

func (s *selectorHeuristic) name() string { return "selectors" }

func (s *selectorHeuristic) extract(doc *html.Node) (Snapshot, bool) {
	if len(s.cfg.CardSelectors) > 0 {
		return s.bySelectors(doc)
	}
	return s.byActionPhrases(doc)
}

// bySelectors counts nodes matching the configured selectors. The
// fingerprint covers the sorted, deduplicated card texts so card order and
// duplicated wrappers don't register as change.
func (s *selectorHeuristic) bySelectors(doc *html.Node) (Snapshot, bool) {
	var texts []string
	total := 0
	for _, sel := range s.cfg.CardSelectors {
		matches := querySelectorAll(doc, sel)
		total += len(matches)
		for _, n := range matches {
			if t := normalizeText(collectText(n)); t != "" {
				texts = append(texts, t)
			}
		}
	}

	snap := Snapshot{
		Available:   total >= s.cfg.MinCount,
		Count:       total,
		Fingerprint: fingerprint(total >= s.cfg.MinCount, joinSortedUnique(texts)),
	}
	if snap.Available {
		snap.Items = s.inferItems(doc)
	}
	return snap, true
}

// byActionPhrases counts standalone occurrences of the CTA phrases in the
// rendered text.
func (s *selectorHeuristic) byActionPhrases(doc *html.Node) (Snapshot, bool) {
	main := mainNode(doc)
	text := normalizeText(collectText(main))

	hits := 0
	for _, phrase := range s.cfg.ActionPhrases {
		hits += strings.Count(text, normalizeText(phrase))
	}

	snap := Snapshot{
		Available:   hits >= s.cfg.MinCount,
		Count:       hits,
		Fingerprint: fingerprint(hits >= s.cfg.MinCount, text),
	}
	if snap.Available {
		snap.Items = s.inferItems(doc)
	}
	return snap, true
}

// inferItems locates each call-to-action control and walks up to the
// nearest card-like container, preferring a heading's text, else the first
// text line that isn't the action itself. When that finds nothing, it
// falls back to scanning all headings for short, non-action texts.
func (s *selectorHeuristic) inferItems(doc *html.Node) []Item {
	var items []Item
	seen := make(map[string]bool)

	for _, ctl := range s.actionControls(doc) {
		card := enclosingCard(ctl)
		if card == nil {
			continue
		}
		name := cardName(card, s.cfg.ActionPhrases)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		items = append(items, Item{Name: name, Link: controlLink(ctl)})
	}

	if len(items) > 0 {
		return items
	}

	// Fallback: short headings that don't look like the action text.
	for _, h := range headings(mainNode(doc)) {
		name := strings.TrimSpace(strings.Join(strings.Fields(collectText(h)), " "))
		if name == "" || len(name) > 60 || isActionText(name, s.cfg.ActionPhrases) || seen[name] {
			continue
		}
		seen[name] = true
		items = append(items, Item{Name: name})
	}
	return items
}

// actionControls returns anchors and buttons whose own text matches one of
// the CTA phrases.
func (s *selectorHeuristic) actionControls(doc *html.Node) []*html.Node {
	var controls []*html.Node
	for _, tag := range []atom.Atom{atom.A, atom.Button} {
		for _, n := range findAllByTag(doc, tag) {
			if isActionText(collectText(n), s.cfg.ActionPhrases) {
				controls = append(controls, n)
			}
		}
	}
	return controls
}

func isActionText(text string, phrases []string) bool {
	t := normalizeText(text)
	for _, p := range phrases {
		if t == normalizeText(p) {
			return true
		}
	}
	return false
}

// enclosingCard walks up from a control to the nearest container that looks
// like an offer card: article, li, section, or a classed div.
func enclosingCard(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.DataAtom {
		case atom.Article, atom.Li, atom.Section:
			return p
		case atom.Div:
			if hasAttr(p, "class") {
				return p
			}
		case atom.Body, atom.Html:
			return nil
		}
	}
	return nil
}

// cardName prefers a heading inside the card, else the first text line
// that isn't the action text.
func cardName(card *html.Node, phrases []string) string {
	if hs := headings(card); len(hs) > 0 {
		if name := normalizeSpace(collectText(hs[0])); name != "" {
			return name
		}
	}
	for _, line := range strings.Split(collectText(card), "\n") {
		line = normalizeSpace(line)
		if line != "" && !isActionText(line, phrases) {
			return line
		}
	}
	return ""
}

// controlLink returns the href of an anchor control, if any.
func controlLink(n *html.Node) string {
	if n.DataAtom == atom.A {
		return getAttr(n, "href")
	}
	return ""
}

// normalizeSpace collapses whitespace without case-folding; item names keep
// their display casing.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinSortedUnique(texts []string) string {
	seen := make(map[string]bool, len(texts))
	var uniq []string
	for _, t := range texts {
		if !seen[t] {
			seen[t] = true
			uniq = append(uniq, t)
		}
	}
	// Sorted so card order never affects the fingerprint.
	sort.Strings(uniq)
	return strings.Join(uniq, "\n")
}
