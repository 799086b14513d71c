package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
)

// SaveSession serialises the browser's cookies to path. Called after a
// successful login so the next run can skip the sign-in flow.
func (m *Manager) SaveSession(ctx context.Context, path string) error {
	b := m.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}

	cookies, err := b.Context(ctx).GetCookies()
	if err != nil {
		return fmt.Errorf("browser: get cookies: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("browser: marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("browser: session dir: %w", err)
	}
	// 0600: the session blob is a credential equivalent.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("browser: write session: %w", err)
	}
	return nil
}

// RestoreSession loads cookies previously written by SaveSession. A missing
// file is not an error: the authenticator simply logs in from scratch.
// Returns true when cookies were applied.
func (m *Manager) RestoreSession(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("browser: read session: %w", err)
	}

	cookies, err := DecodeSession(data)
	if err != nil {
		return false, err
	}

	b := m.Browser()
	if b == nil {
		return false, fmt.Errorf("browser: no active browser")
	}
	if err := b.Context(ctx).SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return false, fmt.Errorf("browser: set cookies: %w", err)
	}
	return true, nil
}

// DecodeSession parses a serialized session blob. Split out so the format
// can be validated without a live browser.
func DecodeSession(data []byte) ([]*proto.NetworkCookie, error) {
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("browser: decode session: %w", err)
	}
	return cookies, nil
}
