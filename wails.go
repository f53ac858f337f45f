package main

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
)

// navigationEvents fire when the webview finished loading a page.
// Each platform only emits its own.
var navigationEvents = []events.WindowEventType{
	events.Mac.WebViewDidFinishNavigation,
	events.Windows.WebViewNavigationCompleted,
	events.Linux.WindowLoadChanged,
}

// assetOrigin is the origin Wails serves the asset handler from.
func assetOrigin() string {
	if runtime.GOOS == "windows" {
		return "http://wails.localhost"
	}
	return "wails://localhost"
}

// wailsWindow adapts a Wails window to window.Window.
// Calls before attach are dropped.
type wailsWindow struct {
	mu  sync.Mutex
	win *application.WebviewWindow
}

func (w *wailsWindow) attach(win *application.WebviewWindow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.win = win
}

func (w *wailsWindow) get() *application.WebviewWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.win
}

func (w *wailsWindow) SetURL(url string) {
	if win := w.get(); win != nil {
		win.SetURL(url)
	}
}

func (w *wailsWindow) ExecJS(js string) {
	if win := w.get(); win != nil {
		win.ExecJS(js)
	}
}

func (w *wailsWindow) Close() {
	if win := w.get(); win != nil {
		win.Close()
	}
}

// shell gives the bridge the application-level services: events,
// dialogs and quitting. It is usable once attached.
type shell struct {
	app atomic.Pointer[application.App]
}

func (s *shell) attach(app *application.App) {
	s.app.Store(app)
}

func (s *shell) emit(name string, data any) {
	if app := s.app.Load(); app != nil {
		app.Event.Emit(name, data)
	}
}

func (s *shell) quit() {
	if app := s.app.Load(); app != nil {
		app.Quit()
	}
}

// ChooseFolder implements app.FolderPicker.
func (s *shell) ChooseFolder(title string) (string, error) {
	app := s.app.Load()
	if app == nil {
		return "", nil
	}
	return app.Dialog.OpenFile().
		CanChooseDirectories(true).
		CanChooseFiles(false).
		CanCreateDirectories(true).
		SetTitle(title).
		PromptForSingleSelection()
}
