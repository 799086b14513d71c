package monitor

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/dropwatch/notify"
)

func pageLine(p TrackedPage, count int) string {
	noun := "menus"
	if count == 1 {
		noun = "menu"
	}
	return fmt.Sprintf("• *%s* — <%s|view> (%d %s)", p.Date.Format("Mon Jan 2"), p.URL, count, noun)
}

// changeMessage builds the notification for a run that detected changes.
func changeMessage(res *Result) notify.Message {
	var newly, changed []ChangeEvent
	for _, ev := range res.Events {
		if ev.NewlyAvailable {
			newly = append(newly, ev)
		} else {
			changed = append(changed, ev)
		}
	}

	var blocks []notify.Block
	var fallback []string

	if len(newly) > 0 {
		blocks = append(blocks, notify.Section(":tada: *Lunch ordering just opened up!*"))
		for _, ev := range newly {
			blocks = append(blocks, notify.Section(pageLine(ev.Page, ev.Count)))
			fallback = append(fallback, fmt.Sprintf("New: %s (%d)", ev.Page.DateKey(), ev.Count))
		}
	}
	if len(changed) > 0 {
		if len(blocks) > 0 {
			blocks = append(blocks, notify.Divider())
		}
		blocks = append(blocks, notify.Section("*Menu changes on dates already open:*"))
		for _, ev := range changed {
			line := pageLine(ev.Page, ev.Count)
			if len(ev.ItemsAdded) > 0 {
				line += "\n        added: " + strings.Join(ev.ItemsAdded, ", ")
			}
			blocks = append(blocks, notify.Section(line))
			fallback = append(fallback, fmt.Sprintf("Changed: %s", ev.Page.DateKey()))
		}
	}
	if len(res.Errors) > 0 {
		blocks = append(blocks, notify.Divider(), notify.Section(errorFooter(res.Errors)))
	}

	return notify.Message{Text: strings.Join(fallback, "; "), Blocks: blocks}
}

// summaryMessage reports every checked date's current state regardless of
// change.
func summaryMessage(res *Result) notify.Message {
	blocks := []notify.Block{notify.Section("*Lunch window summary*")}
	for _, s := range res.Summaries {
		if s.Available {
			line := pageLine(s.Page, s.Count)
			if len(s.Items) > 0 {
				line += "\n        " + strings.Join(s.Items, ", ")
			}
			blocks = append(blocks, notify.Section(line))
		} else {
			blocks = append(blocks, notify.Section(fmt.Sprintf("• *%s* — nothing yet", s.Page.Date.Format("Mon Jan 2"))))
		}
	}
	if len(res.Errors) > 0 {
		blocks = append(blocks, notify.Divider(), notify.Section(errorFooter(res.Errors)))
	}
	return notify.Message{
		Text:   fmt.Sprintf("Lunch window summary: %d dates checked", res.Checked),
		Blocks: blocks,
	}
}

// heartbeatMessage confirms a completed run with nothing to report.
func heartbeatMessage(res *Result) notify.Message {
	text := fmt.Sprintf("Lunch check complete: %d dates, no changes", res.Checked)
	blocks := []notify.Block{notify.Section(text)}
	if len(res.Errors) > 0 {
		blocks = append(blocks, notify.Section(errorFooter(res.Errors)))
	}
	return notify.Message{Text: text, Blocks: blocks}
}

func authFailureMessage(err error) notify.Message {
	text := fmt.Sprintf(":rotating_light: Lunch monitor could not sign in: %v", err)
	return notify.Message{Text: text, Blocks: []notify.Block{notify.Section(text)}}
}

func errorFooter(errs []string) string {
	return fmt.Sprintf(":warning: %d date(s) could not be checked: %s", len(errs), strings.Join(errs, "; "))
}
