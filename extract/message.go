package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// explicitMessage looks for the site's "nothing scheduled yet" banner. The
// site reliably shows this phrase on empty dates, so its presence means
// unavailable and its absence means something is on offer — just without a
// usable item list.
type explicitMessage struct {
	phrase string
}

func (m *explicitMessage) name() string { return "message" }

func (m *explicitMessage) extract(doc *html.Node) (Snapshot, bool) {
	if m.phrase == "" {
		return Snapshot{}, false
	}

	text := normalizeText(collectText(mainNode(doc)))
	if text == "" {
		// Nothing rendered: can't tell either way.
		return Snapshot{}, false
	}

	if strings.Contains(text, normalizeText(m.phrase)) {
		return Snapshot{Available: false}, true
	}
	return Snapshot{Available: true}, true
}
