// Package auth establishes the authenticated browsing session. The sign-in
// surface changes between one-step (username + password on one form) and
// two-step (username → continue → password) renderings, so the flow is a
// small state machine rather than two code paths: each step probes for the
// controls that are actually present and advances with a fallback chain.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/dropwatch/browser"
)

// ErrAuthentication means the session could not be established. It is the
// only run-fatal error in dropwatch: without a session no per-date check
// can proceed.
var ErrAuthentication = errors.New("auth: authentication failed")

// State names the authenticator's progress, for failure attribution.
type State int

const (
	StateInit State = iota
	StateAwaitingUsername
	StateAwaitingPassword
	StateSubmitted
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateAwaitingUsername:
		return "awaiting_username"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateSubmitted:
		return "submitted"
	case StateVerified:
		return "verified"
	default:
		return "init"
	}
}

// Selector probe lists, in priority order. The site's markup drifts, so
// each control is located by probing rather than a single selector.
var (
	usernameSelectors = []string{
		"input[type=email]",
		"input[name=email]",
		"input[name=username]",
	}
	passwordSelectors = []string{
		"input[type=password]",
		"input[name=password]",
	}
	continueSelectors = []string{
		"button[name=continue]",
		"button[data-action=continue]",
	}
	submitSelectors = []string{
		"button[type=submit]",
	}
)

// ArtifactSink captures diagnostics on failure. Satisfied by
// artifact.Store.
type ArtifactSink interface {
	Capture(key string, html, png []byte) error
}

// page is the subset of browser.Tab the authenticator drives. An interface
// so the state machine is testable against a fabricated sign-in surface.
type page interface {
	Navigate(ctx context.Context, url string) error
	WaitIdle(ctx context.Context) error
	Has(selector string) bool
	Fill(selector, value string) error
	Click(selector string) error
	PressEnter() error
	WaitVisible(selector string, timeout time.Duration) bool
	HTML(ctx context.Context) ([]byte, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Config configures the Authenticator.
type Config struct {
	SignInURL string // the sign-in surface
	HomeURL   string // post-login surface used for verification
	Username  string
	Password  string

	// SessionFile is where cookies are serialized after login. Empty
	// disables persistence.
	SessionFile string

	// PasswordWait bounds the wait for the password control to appear
	// after advancing a two-step form. Default: 5s.
	PasswordWait time.Duration

	Artifacts ArtifactSink
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.PasswordWait <= 0 {
		c.PasswordWait = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Authenticator drives the login flow on a browser manager.
type Authenticator struct {
	mgr   *browser.Manager
	cfg   Config
	state State
}

// New creates an Authenticator.
func New(mgr *browser.Manager, cfg Config) *Authenticator {
	cfg.defaults()
	return &Authenticator{mgr: mgr, cfg: cfg}
}

// State returns the last state the flow reached, for failure attribution.
func (a *Authenticator) State() State { return a.state }

// Login establishes the session. It restores a previously serialized
// session first; when the sign-in surface then shows no login controls the
// whole step is a no-op. On failure it captures diagnostics and returns
// ErrAuthentication.
func (a *Authenticator) Login(ctx context.Context) error {
	log := a.cfg.Logger
	a.state = StateInit

	if a.cfg.SessionFile != "" {
		restored, err := a.mgr.RestoreSession(ctx, a.cfg.SessionFile)
		if err != nil {
			log.Warn("auth: session restore failed, logging in fresh", "error", err)
		} else if restored {
			log.Debug("auth: restored serialized session")
		}
	}

	tab, err := a.mgr.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("%w: open tab: %v", ErrAuthentication, err)
	}
	defer tab.Close()

	if err := a.run(ctx, tab); err != nil {
		return err
	}

	if a.cfg.SessionFile != "" {
		if err := a.mgr.SaveSession(ctx, a.cfg.SessionFile); err != nil {
			log.Warn("auth: session save failed", "error", err)
		}
	}

	log.Info("auth: login verified")
	return nil
}

// run executes the sign-in state machine on an open page.
func (a *Authenticator) run(ctx context.Context, tab page) error {
	log := a.cfg.Logger

	if err := tab.Navigate(ctx, a.cfg.SignInURL); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if err := tab.WaitIdle(ctx); err != nil {
		log.Debug("auth: sign-in page never idle, proceeding", "error", err)
	}

	if !hasAny(tab, usernameSelectors) && !hasAny(tab, passwordSelectors) {
		// No login controls: the restored session is still valid.
		log.Info("auth: no login form, session assumed valid")
		a.state = StateVerified
		return nil
	}

	if err := a.fillCredentials(ctx, tab); err != nil {
		a.fail(ctx, tab)
		return err
	}

	if err := a.verify(ctx, tab); err != nil {
		a.fail(ctx, tab)
		return err
	}
	return nil
}

// fillCredentials runs AwaitingUsername → AwaitingPassword → Submitted.
func (a *Authenticator) fillCredentials(ctx context.Context, tab page) error {
	log := a.cfg.Logger

	a.state = StateAwaitingUsername
	if sel := firstPresent(tab, usernameSelectors); sel != "" {
		if err := tab.Fill(sel, a.cfg.Username); err != nil {
			return fmt.Errorf("%w: username: %v", ErrAuthentication, err)
		}
		// Advancing here covers both renderings: a one-step form ignores
		// the early submit or tolerates it, a two-step form reveals the
		// password field.
		a.advance(tab)
	}

	a.state = StateAwaitingPassword
	pwSel := firstPresent(tab, passwordSelectors)
	if pwSel == "" {
		// Two-step: wait briefly for the password control to appear.
		for _, sel := range passwordSelectors {
			if tab.WaitVisible(sel, a.cfg.PasswordWait) {
				pwSel = sel
				break
			}
		}
	}
	if pwSel == "" {
		return fmt.Errorf("%w: no password control at state %s", ErrAuthentication, a.state)
	}

	if err := tab.Fill(pwSel, a.cfg.Password); err != nil {
		return fmt.Errorf("%w: password: %v", ErrAuthentication, err)
	}
	a.advance(tab)
	a.state = StateSubmitted

	if err := tab.WaitIdle(ctx); err != nil {
		log.Debug("auth: post-submit idle wait expired", "error", err)
	}
	return nil
}

// verify navigates to the home surface and checks that no login control
// remains.
func (a *Authenticator) verify(ctx context.Context, tab page) error {
	if err := tab.Navigate(ctx, a.cfg.HomeURL); err != nil {
		return fmt.Errorf("%w: verify: %v", ErrAuthentication, err)
	}
	if err := tab.WaitIdle(ctx); err != nil {
		a.cfg.Logger.Debug("auth: home page never idle, proceeding", "error", err)
	}

	if hasAny(tab, passwordSelectors) || hasAny(tab, usernameSelectors) {
		return fmt.Errorf("%w: login form still present after submit (state %s)",
			ErrAuthentication, a.state)
	}
	a.state = StateVerified
	return nil
}

// advance tries, in order: a continue/next control, a generic submit
// control, default-key activation. The chain is deliberately tolerant —
// whichever rendering is live, one of these moves the flow forward.
func (a *Authenticator) advance(tab page) {
	for _, sel := range continueSelectors {
		if tab.Has(sel) {
			if err := tab.Click(sel); err == nil {
				return
			}
		}
	}
	for _, sel := range submitSelectors {
		if tab.Has(sel) {
			if err := tab.Click(sel); err == nil {
				return
			}
		}
	}
	if err := tab.PressEnter(); err != nil {
		a.cfg.Logger.Debug("auth: enter activation failed", "error", err)
	}
}

// fail captures diagnostics. Best-effort: capture failures are logged only.
func (a *Authenticator) fail(ctx context.Context, tab page) {
	if a.cfg.Artifacts == nil {
		return
	}
	log := a.cfg.Logger

	html, err := tab.HTML(ctx)
	if err != nil {
		log.Warn("auth: failure HTML capture failed", "error", err)
	}
	png, err := tab.Screenshot(ctx)
	if err != nil {
		log.Warn("auth: failure screenshot failed", "error", err)
	}
	if err := a.cfg.Artifacts.Capture("login", html, png); err != nil {
		log.Warn("auth: artifact write failed", "error", err)
	}
}

func hasAny(tab page, selectors []string) bool {
	return firstPresent(tab, selectors) != ""
}

func firstPresent(tab page, selectors []string) string {
	for _, sel := range selectors {
		if tab.Has(sel) {
			return sel
		}
	}
	return ""
}
