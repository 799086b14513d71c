package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with dropwatch-specific setup: stealth, resource
// blocking, and bounded element queries. Every wait is bounded by the
// manager's NavTimeout or the per-call timeout; failures come back as
// errors, never panics.
type Tab struct {
	Page    *rod.Page
	manager *Manager
}

// NewTab creates a stealth tab without navigating anywhere. Each tracked
// date gets its own tab so DOM state never bleeds between checks; cookies
// are shared browser-wide, so the authenticated session carries over.
func (m *Manager) NewTab(ctx context.Context) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return &Tab{Page: page, manager: m}, nil
}

// Navigate loads url and waits for the load event, bounded by NavTimeout.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.manager.cfg.NavTimeout)
	defer cancel()

	if err := t.Page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	if err := t.Page.Context(navCtx).WaitLoad(); err != nil {
		return fmt.Errorf("%w: %s: load: %v", ErrNavigation, url, err)
	}
	return nil
}

// WaitIdle waits for network quiescence, bounded by NavTimeout. A timeout
// here is not fatal: SPAs with long-polling never go fully idle, so the
// caller proceeds with whatever has rendered.
func (t *Tab) WaitIdle(ctx context.Context) error {
	idleCtx, cancel := context.WithTimeout(ctx, t.manager.cfg.NavTimeout)
	defer cancel()

	err := rod.Try(func() {
		wait := t.Page.Context(idleCtx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
		wait()
	})
	if err != nil {
		return fmt.Errorf("browser: wait idle: %w", err)
	}
	return nil
}

// HTML serialises the rendered document as outer HTML.
func (t *Tab) HTML(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Screenshot captures a full-page PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := t.Page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Has reports whether any element currently matches the selector. It does
// not wait: absence is an answer, not an error.
func (t *Tab) Has(selector string) bool {
	ok, _, err := t.Page.Has(selector)
	return err == nil && ok
}

// Fill types value into the first element matching selector.
func (t *Tab) Fill(selector, value string) error {
	el, err := t.Page.Element(selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (t *Tab) Click(selector string) error {
	el, err := t.Page.Element(selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %q: %w", selector, err)
	}
	return nil
}

// PressEnter sends the Enter key to the focused element. Default-key
// activation submits forms that expose no explicit button.
func (t *Tab) PressEnter() error {
	if err := t.Page.Keyboard.Press(input.Enter); err != nil {
		return fmt.Errorf("browser: press enter: %w", err)
	}
	return nil
}

// WaitVisible waits up to timeout for selector to appear and become
// visible. Returns false on timeout instead of an error: a control that
// never shows up is a normal outcome for probing selectors.
func (t *Tab) WaitVisible(selector string, timeout time.Duration) bool {
	err := rod.Try(func() {
		t.Page.Timeout(timeout).MustElement(selector).MustWaitVisible()
	})
	return err == nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
