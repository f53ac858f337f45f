package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/chatterbox-tts/desktop/internal/types"
)

type fakeSession struct {
	mu      sync.Mutex
	running types.Mode
	starts  []types.Mode
	stops   int

	// start overrides the default instant success when set.
	start func(ctx context.Context, mode types.Mode) (string, error)
}

func (s *fakeSession) Start(ctx context.Context, mode types.Mode) (string, error) {
	s.Stop()

	s.mu.Lock()
	s.starts = append(s.starts, mode)
	start := s.start
	s.mu.Unlock()

	if start != nil {
		url, err := start(ctx, mode)
		if err != nil {
			return "", err
		}
		s.setRunning(mode)
		return url, nil
	}
	s.setRunning(mode)
	return "http://127.0.0.1:7860", nil
}

func (s *fakeSession) setRunning(mode types.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = mode
}

func (s *fakeSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = ""
	s.stops++
}

func (s *fakeSession) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == "" {
		return types.SessionStatus{State: types.SessionStopped}
	}
	return types.SessionStatus{Mode: s.running, State: types.SessionReady, URL: "http://127.0.0.1:7860"}
}

func (s *fakeSession) runningMode() types.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSession) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts)
}

func (s *fakeSession) lastStart() types.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.starts) == 0 {
		return ""
	}
	return s.starts[len(s.starts)-1]
}

type fakeWindow struct {
	mu    sync.Mutex
	calls []string
}

func (w *fakeWindow) record(call string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
}

func (w *fakeWindow) ShowDashboard()                { w.record("dashboard") }
func (w *fakeWindow) ShowLoading(mode string)       { w.record("loading:" + mode) }
func (w *fakeWindow) ShowLive(url string)           { w.record("live:" + url) }
func (w *fakeWindow) ShowError(mode, reason string) { w.record("error:" + mode) }
func (w *fakeWindow) Close()                        { w.record("close") }

func (w *fakeWindow) history() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.calls)
}

func (w *fakeWindow) last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.calls) == 0 {
		return ""
	}
	return w.calls[len(w.calls)-1]
}

type fakeSettings struct {
	mu      sync.Mutex
	st      types.Settings
	saveErr error
}

func (s *fakeSettings) Get() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *fakeSettings) Save(st types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.st = st
	return nil
}

type fakePicker struct {
	dir string
	err error
}

func (p fakePicker) ChooseFolder(title string) (string, error) {
	return p.dir, p.err
}

type emitted struct {
	name string
	data any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) emit(name string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{name, data})
}

func (e *fakeEmitter) named(name string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for _, ev := range e.events {
		if ev.name == name {
			out = append(out, ev.data)
		}
	}
	return out
}

type harness struct {
	bridge   *Bridge
	session  *fakeSession
	window   *fakeWindow
	settings *fakeSettings
	emitter  *fakeEmitter

	mu    sync.Mutex
	quits int
}

func (h *harness) quitCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quits
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()

	h := &harness{
		session:  &fakeSession{},
		window:   &fakeWindow{},
		settings: &fakeSettings{},
		emitter:  &fakeEmitter{},
	}
	opts := Options{
		Session:    h.session,
		Window:     h.window,
		Settings:   h.settings,
		Picker:     fakePicker{},
		Emit:       h.emitter.emit,
		AckTimeout: 50 * time.Millisecond,
		Quit: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.quits++
		},
	}
	if configure != nil {
		configure(&opts)
	}

	h.bridge = New(opts)
	t.Cleanup(h.bridge.Shutdown)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func fmtCalls(calls []string) string {
	return fmt.Sprintf("%q", calls)
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *fakeClipboard) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}
