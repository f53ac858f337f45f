package window

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeWindow struct {
	mu     sync.Mutex
	urls   []string
	js     []string
	closed int
}

func (w *fakeWindow) SetURL(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = append(w.urls, url)
}

func (w *fakeWindow) ExecJS(js string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.js = append(w.js, js)
}

func (w *fakeWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
}

func (w *fakeWindow) lastURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.urls) == 0 {
		return ""
	}
	return w.urls[len(w.urls)-1]
}

func (w *fakeWindow) injections() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.js)
}

const origin = "wails://localhost"

func testConfig() Config {
	return Config{
		AssetOrigin: origin,
		FirstPaint:  20 * time.Millisecond,
		Retries:     []time.Duration{20 * time.Millisecond, 20 * time.Millisecond},
	}
}

func TestContent_String(t *testing.T) {
	tests := []struct {
		c    Content
		want string
	}{
		{Dashboard, "dashboard"},
		{Loading, "loading"},
		{LiveSession, "live"},
		{ErrorPage, "error"},
		{Closed, "closed"},
		{Content(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Content(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestController_Transitions(t *testing.T) {
	w := &fakeWindow{}
	c := New(w, testConfig(), Dashboard)

	c.ShowLoading("turbo")
	if c.Content() != Loading {
		t.Fatalf("content = %v, want loading", c.Content())
	}
	if got := w.lastURL(); got != origin+"/loading?mode=turbo" {
		t.Errorf("url = %q", got)
	}

	c.ShowLive("http://127.0.0.1:7860")
	if c.Content() != LiveSession {
		t.Fatalf("content = %v, want live", c.Content())
	}
	if got := w.lastURL(); got != "http://127.0.0.1:7860" {
		t.Errorf("url = %q", got)
	}

	c.ShowDashboard()
	if c.Content() != Dashboard {
		t.Fatalf("content = %v, want dashboard", c.Content())
	}
	if got := w.lastURL(); got != origin+"/" {
		t.Errorf("url = %q", got)
	}

	c.ShowError("standard", "boom")
	if c.Content() != ErrorPage {
		t.Fatalf("content = %v, want error", c.Content())
	}
	if got := w.lastURL(); !strings.HasPrefix(got, origin+"/error?") || !strings.Contains(got, "reason=boom") {
		t.Errorf("url = %q", got)
	}
}

func TestController_OverlaySchedule(t *testing.T) {
	w := &fakeWindow{}
	c := New(w, testConfig(), Loading)

	c.ShowLive("http://127.0.0.1:7860")

	// First paint plus two retries.
	deadline := time.Now().Add(2 * time.Second)
	for w.injections() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := w.injections(); got != 3 {
		t.Fatalf("injections = %d, want 3", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := w.injections(); got != 3 {
		t.Errorf("injections = %d after schedule finished, want 3", got)
	}
}

func TestController_StaleTimersDoNotInject(t *testing.T) {
	w := &fakeWindow{}
	cfg := testConfig()
	cfg.FirstPaint = 50 * time.Millisecond
	c := New(w, cfg, Loading)

	c.ShowLive("http://127.0.0.1:7860")
	c.ShowDashboard()

	time.Sleep(200 * time.Millisecond)
	if got := w.injections(); got != 0 {
		t.Errorf("injections = %d after leaving the session, want 0", got)
	}
}

func TestController_PageLoaded(t *testing.T) {
	w := &fakeWindow{}
	cfg := testConfig()
	cfg.FirstPaint = time.Hour
	c := New(w, cfg, Dashboard)

	c.PageLoaded()
	if got := w.injections(); got != 0 {
		t.Fatalf("injected on dashboard: %d", got)
	}

	c.ShowLive("http://127.0.0.1:7860")
	c.PageLoaded()
	if got := w.injections(); got != 1 {
		t.Errorf("injections = %d, want 1", got)
	}
}

func TestController_CloseIsTerminal(t *testing.T) {
	w := &fakeWindow{}
	c := New(w, testConfig(), Dashboard)

	var changes []Content
	c.OnChange(func(ct Content) { changes = append(changes, ct) })

	c.Close()
	c.Close()
	c.ShowLoading("turbo")
	c.ShowLive("http://127.0.0.1:7860")
	c.ShowDashboard()

	if c.Content() != Closed {
		t.Errorf("content = %v, want closed", c.Content())
	}
	if w.closed != 1 {
		t.Errorf("Close called %d times, want 1", w.closed)
	}
	if len(w.urls) != 0 {
		t.Errorf("navigated after close: %v", w.urls)
	}
	if len(changes) != 1 || changes[0] != Closed {
		t.Errorf("changes = %v, want [closed]", changes)
	}
}

func TestOverlayScript(t *testing.T) {
	js := overlayScript("http://wails.localhost/")

	for _, want := range []string{
		`"http://wails.localhost/action/home"`,
		`"http://wails.localhost/action/quit"`,
		`getElementById("chatterbox-overlay")`,
	} {
		if !strings.Contains(js, want) {
			t.Errorf("overlay script missing %s", want)
		}
	}
	if strings.Contains(js, "__") {
		t.Error("overlay script has unreplaced placeholders")
	}
}
