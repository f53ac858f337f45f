// Package app provides the command bridge bound to the Wails webview.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/chatterbox-tts/desktop/internal/types"
	"github.com/chatterbox-tts/desktop/outputs"
	"github.com/chatterbox-tts/desktop/session"
	"github.com/google/uuid"
	"github.com/pkg/browser"
)

// SessionManager runs the background server.
type SessionManager interface {
	Start(ctx context.Context, mode types.Mode) (string, error)
	Stop()
	Status() types.SessionStatus
}

// WindowController navigates the main window.
type WindowController interface {
	ShowDashboard()
	ShowLoading(mode string)
	ShowLive(url string)
	ShowError(mode, reason string)
	Close()
}

// SettingsStore persists user settings.
type SettingsStore interface {
	Get() types.Settings
	Save(types.Settings) error
}

// FolderPicker opens a native folder dialog.
// A cancelled dialog returns "" and a nil error.
type FolderPicker interface {
	ChooseFolder(title string) (string, error)
}

// ClipboardWriter puts text on the system clipboard.
type ClipboardWriter interface {
	SetText(text string) error
}

// Options wires the bridge to its collaborators.
type Options struct {
	Session   SessionManager
	Window    WindowController
	Settings  SettingsStore
	Picker    FolderPicker
	Clipboard ClipboardWriter

	// Emit sends an event to the webview. May be nil.
	Emit func(name string, data any)
	// Quit ends the application after the window is closed. May be nil.
	Quit func()
	// OpenURL opens a URL in the system browser. Defaults to browser.OpenURL.
	OpenURL func(url string) error

	// AckTimeout bounds how long a command waits for the page to acknowledge it.
	AckTimeout time.Duration
	// RecentLimit caps RecentOutputs. Zero means 20.
	RecentLimit int
}

// DefaultAckTimeout is used when Options.AckTimeout is zero.
const DefaultAckTimeout = 750 * time.Millisecond

// Bridge is the command API exposed to the dashboard page.
// Commands run one at a time on a worker goroutine. Each new command
// cancels the earlier unfinished ones, except quit.
type Bridge struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	queue   []*command
	active  []*command
	pending map[string]*command // by ack token
	closed  bool
	watcher *outputs.Watcher

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	shutdown sync.Once
}

// New creates a Bridge and starts its worker.
func New(opts Options) *Bridge {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 20
	}
	if opts.OpenURL == nil {
		opts.OpenURL = browser.OpenURL
	}

	b := &Bridge{
		opts:    opts,
		log:     slog.With("component", "bridge"),
		pending: make(map[string]*command),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if opts.Settings != nil {
		b.watchOutputs(opts.Settings.Get().OutputDir)
	}

	go b.run()
	return b
}

// BindingName returns the fully qualified name the webview uses to call method.
func BindingName(method string) string {
	t := reflect.TypeFor[Bridge]()
	return t.PkgPath() + "." + t.Name() + "." + method
}

func (b *Bridge) emit(name string, data any) {
	if b.opts.Emit != nil {
		b.opts.Emit(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// LaunchMode switches the server to mode and returns an acknowledgment token.
func (b *Bridge) LaunchMode(mode string) string {
	m, ok := types.ParseMode(mode)
	if !ok {
		b.log.Warn("unknown mode, using default", "mode", mode, "default", types.DefaultMode)
		m = types.DefaultMode
	}
	return b.enqueue(cmdLaunch, m, false)
}

// GoHome stops the server and returns to the dashboard.
func (b *Bridge) GoHome() string {
	return b.enqueue(cmdHome, "", false)
}

// QuitApp stops the server, closes the window and quits.
func (b *Bridge) QuitApp() string {
	return b.enqueue(cmdQuit, "", false)
}

// Acknowledge tells the worker the page received token.
// Unknown or repeated tokens are ignored.
func (b *Bridge) Acknowledge(token string) {
	b.mu.Lock()
	cmd := b.pending[token]
	delete(b.pending, token)
	b.mu.Unlock()

	if cmd != nil {
		cmd.acknowledge()
	}
}

// LaunchNow, HomeNow and QuitNow enqueue commands without waiting for an
// acknowledgment. Navigation routes, the tray menu and the window close
// button use them. They report false once the bridge is closed.
func (b *Bridge) LaunchNow(mode types.Mode) bool { return b.enqueue(cmdLaunch, mode, true) != "" }
func (b *Bridge) HomeNow() bool                  { return b.enqueue(cmdHome, "", true) != "" }
func (b *Bridge) QuitNow() bool                  { return b.enqueue(cmdQuit, "", true) != "" }

func (b *Bridge) enqueue(kind commandKind, mode types.Mode, acked bool) string {
	cmd := newCommand(kind, mode)
	if acked {
		cmd.acknowledge()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Debug("bridge closed, dropping command", "command", kind)
		cmd.cancel()
		return ""
	}
	for _, prev := range b.active {
		if prev.kind != cmdQuit {
			prev.cancel()
		}
	}
	if kind == cmdQuit {
		b.closed = true
	}
	b.queue = append(b.queue, cmd)
	b.active = append(b.active, cmd)
	if !acked {
		b.pending[cmd.token] = cmd
	}
	b.mu.Unlock()

	b.log.Debug("command queued", "command", kind, "mode", mode, "token", cmd.token)

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return cmd.token
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		cmd, ok := b.next()
		if !ok {
			return
		}
		b.execute(cmd)
		b.finish(cmd)
	}
}

func (b *Bridge) next() (*command, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			cmd := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return cmd, true
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
		case <-b.stop:
			return nil, false
		}
	}
}

func (b *Bridge) finish(cmd *command) {
	cmd.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, cmd.token)
	for i, c := range b.active {
		if c == cmd {
			b.active = append(b.active[:i], b.active[i+1:]...)
			break
		}
	}
}

func (b *Bridge) execute(cmd *command) {
	log := b.log.With("command", cmd.kind, "token", cmd.token)
	if !b.waitAck(cmd) {
		log.Debug("command superseded before it ran")
		return
	}

	switch cmd.kind {
	case cmdLaunch:
		b.runLaunch(cmd, log.With("mode", cmd.mode))
	case cmdHome:
		b.opts.Session.Stop()
		b.opts.Window.ShowDashboard()
	case cmdQuit:
		b.opts.Session.Stop()
		b.opts.Window.Close()
		b.stopWatcher()
		if b.opts.Quit != nil {
			// Quit runs the application shutdown, which waits for this worker.
			go b.opts.Quit()
		}
	}
}

func (b *Bridge) runLaunch(cmd *command, log *slog.Logger) {
	b.opts.Window.ShowLoading(string(cmd.mode))
	b.opts.Session.Stop()

	url, err := b.opts.Session.Start(cmd.ctx, cmd.mode)
	if cmd.ctx.Err() != nil || errors.Is(err, session.ErrStopped) {
		// A later command owns the window now.
		log.Info("launch superseded")
		return
	}
	if err != nil {
		log.Error("launch mode", "error", err)
		b.opts.Window.ShowError(string(cmd.mode), err.Error())
		return
	}

	log.Info("session live", "url", url)
	b.opts.Window.ShowLive(url)
}

// waitAck blocks until the page acknowledged cmd or AckTimeout elapsed.
// It reports false if cmd was superseded meanwhile.
func (b *Bridge) waitAck(cmd *command) bool {
	timer := time.NewTimer(b.opts.AckTimeout)
	defer timer.Stop()

	select {
	case <-cmd.acked:
	case <-timer.C:
		b.log.Debug("no acknowledgment, proceeding", "token", cmd.token, "timeout", b.opts.AckTimeout)
	case <-cmd.ctx.Done():
		return false
	}
	return cmd.ctx.Err() == nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings & Status
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the stored settings, or defaults.
func (b *Bridge) GetSettings() types.Settings {
	if b.opts.Settings == nil {
		return types.DefaultSettings()
	}
	return b.opts.Settings.Get()
}

// SaveSettings persists st. New sessions pick up the change; a running
// server keeps the settings it was started with.
func (b *Bridge) SaveSettings(st types.Settings) error {
	if b.opts.Settings == nil {
		return errors.New("settings store not configured")
	}
	if err := b.opts.Settings.Save(st); err != nil {
		b.log.Error("save settings", "error", err)
		return err
	}
	b.watchOutputs(b.opts.Settings.Get().OutputDir)
	return nil
}

// ChooseFolder opens a folder dialog and returns the selected path,
// or "" if the dialog was cancelled or failed.
func (b *Bridge) ChooseFolder() string {
	if b.opts.Picker == nil {
		return ""
	}
	dir, err := b.opts.Picker.ChooseFolder("Select Output Folder")
	if err != nil {
		b.log.Warn("choose folder", "error", err)
		return ""
	}
	return dir
}

// Status returns the current session status.
func (b *Bridge) Status() types.SessionStatus {
	return b.opts.Session.Status()
}

// Modes returns the modes the dashboard offers.
func (b *Bridge) Modes() []types.ModeInfo {
	return types.Modes()
}

// RecentOutputs lists the newest clips in the output directory.
func (b *Bridge) RecentOutputs() []types.OutputClip {
	clips, err := outputs.List(b.GetSettings().OutputDir, b.opts.RecentLimit)
	if err != nil {
		b.log.Warn("list outputs", "error", err)
		return nil
	}
	return clips
}

// OpenInBrowser opens the running session in the system browser.
func (b *Bridge) OpenInBrowser() error {
	st := b.opts.Session.Status()
	if st.State != types.SessionReady || st.URL == "" {
		return errors.New("no session is running")
	}
	if err := b.opts.OpenURL(st.URL); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// CopyURL puts the running session's URL on the clipboard.
func (b *Bridge) CopyURL() error {
	st := b.opts.Session.Status()
	if st.State != types.SessionReady || st.URL == "" {
		return errors.New("no session is running")
	}
	if b.opts.Clipboard == nil {
		return errors.New("clipboard not available")
	}
	if err := b.opts.Clipboard.SetText(st.URL); err != nil {
		return fmt.Errorf("copy url: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output watcher
// ─────────────────────────────────────────────────────────────────────────────

func (b *Bridge) watchOutputs(dir string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.watcher != nil {
		if b.watcher.Dir() == dir {
			return
		}
		if err := b.watcher.Close(); err != nil {
			b.log.Warn("close output watcher", "error", err)
		}
		b.watcher = nil
	}
	if dir == "" || b.closed {
		return
	}

	w, err := outputs.Watch(dir, func(clip types.OutputClip) {
		b.emit(EventOutputSaved, clip)
	})
	if err != nil {
		b.log.Warn("watch outputs", "dir", dir, "error", err)
		return
	}
	b.watcher = w
}

func (b *Bridge) stopWatcher() {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			b.log.Warn("close output watcher", "error", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Shutdown
// ─────────────────────────────────────────────────────────────────────────────

// Shutdown cancels queued commands, stops the worker and the server.
// It is safe to call more than once.
func (b *Bridge) Shutdown() {
	b.shutdown.Do(func() {
		b.mu.Lock()
		b.closed = true
		for _, cmd := range b.active {
			cmd.cancel()
		}
		b.queue = nil
		b.mu.Unlock()

		close(b.stop)
		<-b.done

		b.opts.Session.Stop()
		b.stopWatcher()
		b.log.Info("bridge shut down")
	})
}

// ServiceShutdown is called by Wails when the application exits.
func (b *Bridge) ServiceShutdown() error {
	b.Shutdown()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// command
// ─────────────────────────────────────────────────────────────────────────────

type commandKind int

const (
	cmdLaunch commandKind = iota
	cmdHome
	cmdQuit
)

func (k commandKind) String() string {
	switch k {
	case cmdLaunch:
		return "launch"
	case cmdHome:
		return "home"
	case cmdQuit:
		return "quit"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	mode  types.Mode
	token string

	ctx    context.Context
	cancel context.CancelFunc

	acked   chan struct{}
	ackOnce sync.Once
}

func newCommand(kind commandKind, mode types.Mode) *command {
	ctx, cancel := context.WithCancel(context.Background())
	return &command{
		kind:   kind,
		mode:   mode,
		token:  uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		acked:  make(chan struct{}),
	}
}

func (c *command) acknowledge() {
	c.ackOnce.Do(func() { close(c.acked) })
}
