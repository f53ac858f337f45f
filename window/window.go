// Package window drives the content of the main webview window.
package window

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Content is what the window currently displays.
type Content int

const (
	Dashboard Content = iota
	Loading
	LiveSession
	ErrorPage
	Closed
)

func (c Content) String() string {
	switch c {
	case Dashboard:
		return "dashboard"
	case Loading:
		return "loading"
	case LiveSession:
		return "live"
	case ErrorPage:
		return "error"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Window is the native window the controller drives.
type Window interface {
	SetURL(url string)
	ExecJS(js string)
	Close()
}

// Page paths served by the application asset handler.
const (
	PathDashboard = "/"
	PathLoading   = "/loading"
	PathError     = "/error"
	PathHome      = "/action/home"
	PathQuit      = "/action/quit"
)

// Config controls navigation and overlay injection.
type Config struct {
	// AssetOrigin is the origin the webview serves application pages from.
	AssetOrigin string
	// FirstPaint is the delay between navigating to a session and the first overlay injection.
	FirstPaint time.Duration
	// Retries are further injection delays, each measured from the previous injection.
	Retries []time.Duration
}

// Controller owns the window content. Exactly one Content is displayed at
// a time and Closed is terminal.
type Controller struct {
	win     Window
	cfg     Config
	overlay string

	mu      sync.Mutex
	content Content
	url     string
	gen     uint64
	timer   *time.Timer

	onChange func(Content)
}

// New returns a controller for win, which already displays initial.
func New(win Window, cfg Config, initial Content) *Controller {
	return &Controller{
		win:     win,
		cfg:     cfg,
		overlay: overlayScript(cfg.AssetOrigin),
		content: initial,
	}
}

// OnChange registers a callback for content changes.
func (c *Controller) OnChange(fn func(Content)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Content returns the displayed content.
func (c *Controller) Content() Content {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// URL returns the last URL the window was navigated to.
func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// PageURL returns the absolute URL of an application page.
func (c *Controller) PageURL(path string, query url.Values) string {
	u := strings.TrimRight(c.cfg.AssetOrigin, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// ShowDashboard displays the mode picker.
func (c *Controller) ShowDashboard() {
	c.navigate(Dashboard, c.PageURL(PathDashboard, nil))
}

// ShowLoading displays the loading page for mode.
func (c *Controller) ShowLoading(mode string) {
	c.navigate(Loading, c.PageURL(PathLoading, url.Values{"mode": {mode}}))
}

// ShowError displays the generic failure page.
func (c *Controller) ShowError(mode, reason string) {
	c.navigate(ErrorPage, c.PageURL(PathError, url.Values{"mode": {mode}, "reason": {reason}}))
}

// ShowLive navigates to a running session and schedules overlay injection.
func (c *Controller) ShowLive(sessionURL string) {
	gen, ok := c.transition(LiveSession, sessionURL)
	if !ok {
		return
	}
	c.win.SetURL(sessionURL)
	c.schedule(gen, c.cfg.FirstPaint, 0)
}

// PageLoaded re-injects the overlay after the session page (re)loads.
func (c *Controller) PageLoaded() {
	c.mu.Lock()
	live := c.content == LiveSession
	c.mu.Unlock()
	if live {
		c.InjectOverlay()
	}
}

// InjectOverlay adds the home and quit controls to the session page.
// The script is a no-op when the overlay is already present.
func (c *Controller) InjectOverlay() {
	c.mu.Lock()
	live := c.content == LiveSession
	c.mu.Unlock()
	if !live {
		return
	}
	c.win.ExecJS(c.overlay)
}

// Close closes the window. Every later call is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.content == Closed {
		c.mu.Unlock()
		return
	}
	c.content = Closed
	c.gen++
	c.stopTimerLocked()
	fn := c.onChange
	c.mu.Unlock()

	slog.Info("close window")
	c.win.Close()
	if fn != nil {
		fn(Closed)
	}
}

func (c *Controller) navigate(to Content, target string) {
	if _, ok := c.transition(to, target); !ok {
		return
	}
	c.win.SetURL(target)
}

// transition records the new content and returns its generation.
// Window calls happen outside the lock.
func (c *Controller) transition(to Content, target string) (uint64, bool) {
	c.mu.Lock()
	if c.content == Closed {
		c.mu.Unlock()
		return 0, false
	}
	from := c.content
	c.content = to
	c.url = target
	c.gen++
	gen := c.gen
	c.stopTimerLocked()
	fn := c.onChange
	c.mu.Unlock()

	slog.Debug("window content", "from", from, "to", to, "url", target)
	if fn != nil && from != to {
		fn(to)
	}
	return gen, true
}

// schedule injects the overlay after delay, then walks the retry list.
func (c *Controller) schedule(gen uint64, delay time.Duration, next int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		current := c.gen == gen && c.content == LiveSession
		c.mu.Unlock()
		if !current {
			return
		}

		c.win.ExecJS(c.overlay)

		if next < len(c.cfg.Retries) {
			c.schedule(gen, c.cfg.Retries[next], next+1)
		}
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
