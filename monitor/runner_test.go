package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/dropwatch/extract"
	"github.com/hazyhaar/dropwatch/notify"
	"github.com/hazyhaar/dropwatch/store"
)

type fakeSession struct {
	err    error
	logins int
}

func (s *fakeSession) Login(context.Context) error {
	s.logins++
	return s.err
}

// fakeLoader serves canned HTML per URL and can fail selected URLs.
type fakeLoader struct {
	pages map[string][]byte
	fail  map[string]error
	loads int
}

func (l *fakeLoader) Load(_ context.Context, url string) (*Capture, error) {
	l.loads++
	if err, ok := l.fail[url]; ok {
		return nil, err
	}
	html, ok := l.pages[url]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", url)
	}
	return &Capture{
		HTML: html,
		Screenshot: func(context.Context) ([]byte, error) {
			return []byte("png"), nil
		},
	}, nil
}

type recordNotifier struct {
	messages []notify.Message
}

func (n *recordNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

type recordSink struct {
	keys []string
}

func (s *recordSink) Capture(key string, _, _ []byte) error {
	s.keys = append(s.keys, key)
	return nil
}

func availablePage(names ...string) []byte {
	var cards strings.Builder
	for _, n := range names {
		fmt.Fprintf(&cards, `<article><h3>%s</h3><a href="/app/d/1">Show Menu</a></article>`, n)
	}
	return []byte(fmt.Sprintf(`<html><body><main>%s</main></body></html>`, cards.String()))
}

func emptyPage() []byte {
	return []byte(`<html><body><main><p>No deliveries scheduled for this date.</p></main></body></html>`)
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testPages(n int) []TrackedPage {
	base := "https://city.example.com/app"
	// Monday onward so the dates read like a real window.
	start := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	pages := make([]TrackedPage, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i)
		pages = append(pages, TrackedPage{URL: URLFor(base, d), Date: d})
	}
	return pages
}

func testRunner(cfg RunnerConfig) *Runner {
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(extract.Config{
			EmptyPhrase: "No deliveries scheduled",
		})
	}
	return NewRunner(cfg)
}

func TestRunNewlyAvailableNotifies(t *testing.T) {
	pages := testPages(1)
	st := testStore(t)
	loader := &fakeLoader{pages: map[string][]byte{
		pages[0].URL: availablePage("Taco Cartel"),
	}}
	notifier := &recordNotifier{}
	session := &fakeSession{}

	r := testRunner(RunnerConfig{
		Pages:    pages,
		Session:  session,
		Loader:   loader,
		Store:    st,
		Notifier: notifier,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session.logins != 1 {
		t.Errorf("logins = %d, want 1", session.logins)
	}
	if res.Checked != 1 || len(res.Events) != 1 {
		t.Fatalf("checked=%d events=%d", res.Checked, len(res.Events))
	}
	if !res.Events[0].NewlyAvailable {
		t.Errorf("expected newly-available event, got %+v", res.Events[0])
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0].Text, "New: 2026-03-09") {
		t.Errorf("fallback text = %q", notifier.messages[0].Text)
	}

	// State was persisted: the same page again produces no event.
	prev, err := st.Load(context.Background(), store.KeyForURL(pages[0].URL))
	if err != nil || prev == nil {
		t.Fatalf("load persisted state: %v %v", prev, err)
	}
	if !prev.Available {
		t.Error("persisted state should be available")
	}

	res2, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res2.Events) != 0 {
		t.Errorf("second run should see no change, got %d events", len(res2.Events))
	}
}

func TestRunNoChangeStaysSilent(t *testing.T) {
	pages := testPages(1)
	st := testStore(t)
	loader := &fakeLoader{pages: map[string][]byte{pages[0].URL: emptyPage()}}
	notifier := &recordNotifier{}

	r := testRunner(RunnerConfig{
		Pages:    pages,
		Session:  &fakeSession{},
		Loader:   loader,
		Store:    st,
		Notifier: notifier,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("unexpected events: %+v", res.Events)
	}
	if len(notifier.messages) != 0 {
		t.Errorf("silent run should not notify, got %d messages", len(notifier.messages))
	}
}

func TestRunHeartbeat(t *testing.T) {
	pages := testPages(1)
	st := testStore(t)
	loader := &fakeLoader{pages: map[string][]byte{pages[0].URL: emptyPage()}}
	notifier := &recordNotifier{}

	r := testRunner(RunnerConfig{
		Pages:     pages,
		Session:   &fakeSession{},
		Loader:    loader,
		Store:     st,
		Notifier:  notifier,
		Heartbeat: true,
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("heartbeat run should notify once, got %d", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0].Text, "no changes") {
		t.Errorf("heartbeat text = %q", notifier.messages[0].Text)
	}
}

func TestRunAuthFailureIsFatal(t *testing.T) {
	pages := testPages(3)
	st := testStore(t)
	loader := &fakeLoader{}
	notifier := &recordNotifier{}

	r := testRunner(RunnerConfig{
		Pages:    pages,
		Session:  &fakeSession{err: errors.New("bad credentials")},
		Loader:   loader,
		Store:    st,
		Notifier: notifier,
	})

	_, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if loader.loads != 0 {
		t.Errorf("no page should load after auth failure, got %d loads", loader.loads)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("auth failure should notify once, got %d", len(notifier.messages))
	}
	if !strings.Contains(notifier.messages[0].Text, "could not sign in") {
		t.Errorf("failure text = %q", notifier.messages[0].Text)
	}
}

func TestRunDateFailureIsRecoverable(t *testing.T) {
	pages := testPages(5)
	st := testStore(t)
	loader := &fakeLoader{
		pages: map[string][]byte{},
		fail:  map[string]error{pages[2].URL: errors.New("navigation timeout")},
	}
	for i, p := range pages {
		if i != 2 {
			loader.pages[p.URL] = emptyPage()
		}
	}
	notifier := &recordNotifier{}

	r := testRunner(RunnerConfig{
		Pages:    pages,
		Session:  &fakeSession{},
		Loader:   loader,
		Store:    st,
		Notifier: notifier,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run should survive a single date failure: %v", err)
	}
	if res.Checked != 4 {
		t.Errorf("checked = %d, want 4", res.Checked)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], pages[2].DateKey()) {
		t.Errorf("errors = %v", res.Errors)
	}

	// The failed date must not have stale state written.
	if prev, _ := st.Load(context.Background(), store.KeyForURL(pages[2].URL)); prev != nil {
		t.Error("failed date should leave no persisted state")
	}
}

func TestRunEmptyWindow(t *testing.T) {
	notifier := &recordNotifier{}
	session := &fakeSession{}

	r := testRunner(RunnerConfig{
		Pages:    nil,
		Session:  session,
		Loader:   &fakeLoader{},
		Store:    testStore(t),
		Notifier: notifier,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Checked != 0 || session.logins != 0 || len(notifier.messages) != 0 {
		t.Errorf("empty window should do nothing: %+v logins=%d msgs=%d",
			res, session.logins, len(notifier.messages))
	}
}

func TestRunSummaryMode(t *testing.T) {
	pages := testPages(2)
	st := testStore(t)
	loader := &fakeLoader{pages: map[string][]byte{
		pages[0].URL: availablePage("Burger Burger"),
		pages[1].URL: emptyPage(),
	}}
	notifier := &recordNotifier{}

	r := testRunner(RunnerConfig{
		Pages:    pages,
		Session:  &fakeSession{},
		Loader:   loader,
		Store:    st,
		Notifier: notifier,
		Summary:  true,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(res.Summaries))
	}
	if !res.Summaries[0].Available || res.Summaries[1].Available {
		t.Errorf("summary availability wrong: %+v", res.Summaries)
	}
	if len(res.Events) != 0 {
		t.Errorf("summary mode must not diff, got %d events", len(res.Events))
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("summary run should always notify, got %d", len(notifier.messages))
	}

	// Summary mode must not touch stored state.
	if prev, _ := st.Load(context.Background(), store.KeyForURL(pages[0].URL)); prev != nil {
		t.Error("summary mode should not persist state")
	}
}

func TestRunUnavailableCapturesArtifacts(t *testing.T) {
	pages := testPages(1)
	sink := &recordSink{}
	loader := &fakeLoader{pages: map[string][]byte{pages[0].URL: emptyPage()}}

	r := testRunner(RunnerConfig{
		Pages:     pages,
		Session:   &fakeSession{},
		Loader:    loader,
		Store:     testStore(t),
		Notifier:  &recordNotifier{},
		Artifacts: sink,
	})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.keys) != 1 || sink.keys[0] != pages[0].DateKey() {
		t.Errorf("artifact keys = %v, want [%s]", sink.keys, pages[0].DateKey())
	}
}
