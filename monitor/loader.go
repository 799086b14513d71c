package monitor

import (
	"context"

	"github.com/hazyhaar/dropwatch/browser"
)

// BrowserLoader renders pages through the shared browser session. Each
// Load opens a fresh tab and closes it before returning, so rendered
// state never bleeds between dates while cookies stay shared.
type BrowserLoader struct {
	Manager *browser.Manager
}

// Load navigates a new tab to url and returns the rendered HTML. The
// screenshot is taken eagerly because the tab closes on return; the hook
// in Capture just hands the bytes back.
func (l *BrowserLoader) Load(ctx context.Context, url string) (*Capture, error) {
	tab, err := l.Manager.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, url); err != nil {
		return nil, err
	}
	// Idle timeouts are tolerated: long-polling apps never settle.
	_ = tab.WaitIdle(ctx)

	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}

	png, shotErr := tab.Screenshot(ctx)
	return &Capture{
		HTML: html,
		Screenshot: func(context.Context) ([]byte, error) {
			return png, shotErr
		},
	}, nil
}
