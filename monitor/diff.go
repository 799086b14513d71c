package monitor

import (
	"github.com/hazyhaar/dropwatch/extract"
	"github.com/hazyhaar/dropwatch/store"
)

// ChangeEvent is the derived signal that a tracked page transitioned to
// available, or changed content while available. Never persisted — it is
// recomputed from (previous state, new snapshot) on every run.
type ChangeEvent struct {
	Page           TrackedPage `json:"page"`
	NewlyAvailable bool        `json:"newly_available"`
	ContentChanged bool        `json:"content_changed"`
	ItemsAdded     []string    `json:"items_added,omitempty"`
	Count          int         `json:"count"`
}

// Classify compares a fresh snapshot against the stored state. prev == nil
// means the page was never seen, which counts as previously unavailable.
// ok is false when nothing notification-worthy happened.
//
// A fingerprint change while the page stays available is always reported.
// The fingerprint ignores whitespace and case, which filters the usual
// re-render noise; remaining drift is assumed to be a real menu change.
func Classify(page TrackedPage, prev *store.State, snap extract.Snapshot) (ChangeEvent, bool) {
	ev := ChangeEvent{Page: page, Count: snap.Count}

	wasAvailable := prev != nil && prev.Available

	switch {
	case !wasAvailable && snap.Available:
		ev.NewlyAvailable = true
	case wasAvailable && snap.Available && prev.Fingerprint != snap.Fingerprint:
		ev.ContentChanged = true
	default:
		return ChangeEvent{}, false
	}

	ev.ItemsAdded = addedItems(prev, snap)
	return ev, true
}

// addedItems is the set difference of new item names vs the stored ones.
func addedItems(prev *store.State, snap extract.Snapshot) []string {
	seen := make(map[string]bool)
	if prev != nil {
		for _, name := range prev.Items {
			seen[name] = true
		}
	}
	var added []string
	for _, name := range snap.ItemNames() {
		if !seen[name] {
			added = append(added, name)
		}
	}
	return added
}
