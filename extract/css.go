package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// querySelectorAll returns all nodes matching a simple CSS selector.
// Supported subset:
//   - tag, .class, #id, tag.class, tag#id
//   - tag[attr], tag[attr=val]
//   - descendant combinator via spaces
//   - a trailing :has-text('...') pseudo, which filters matches to those
//     whose rendered text contains the given string (the selector dialect
//     the card configs were originally written in)
func querySelectorAll(doc *html.Node, selector string) []*html.Node {
	selector, hasText := splitHasText(selector)

	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(doc, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}

	if hasText == "" {
		return matches
	}
	want := normalizeText(hasText)
	var filtered []*html.Node
	for _, n := range matches {
		if strings.Contains(normalizeText(collectText(n)), want) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// splitHasText strips a trailing :has-text('...') or :has-text("...") pseudo
// and returns the bare selector plus the text argument.
func splitHasText(selector string) (string, string) {
	idx := strings.Index(selector, ":has-text(")
	if idx < 0 {
		return selector, ""
	}
	rest := selector[idx+len(":has-text("):]
	end := strings.LastIndexByte(rest, ')')
	if end < 0 {
		return selector[:idx], ""
	}
	return selector[:idx], strings.Trim(rest[:end], `"'`)
}

// matchSimple finds all nodes matching a single CSS selector part.
func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	// Attribute selector: tag[attr] or tag[attr=val].
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

// matchesSelector checks if a node matches a parsed simple selector.
func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}

	if s.class != "" {
		found := false
		for _, c := range strings.Fields(getAttr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		if s.attrVal != "" {
			if getAttr(n, s.attrKey) != s.attrVal {
				return false
			}
		} else if !hasAttr(n, s.attrKey) {
			return false
		}
	}

	return true
}
