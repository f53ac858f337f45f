// Package clipboard writes text to the system clipboard.
package clipboard

import (
	"errors"
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// Writer sets clipboard text through the Wails application.
// It is usable once Attach has been called.
type Writer struct {
	mu  sync.Mutex
	app *application.App
}

// Attach sets the application whose clipboard is written.
func (w *Writer) Attach(app *application.App) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.app = app
}

// SetText replaces the clipboard contents with text.
func (w *Writer) SetText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.app == nil {
		return errors.New("clipboard: not attached")
	}
	if !w.app.Clipboard.SetText(text) {
		return errors.New("clipboard: set text failed")
	}
	return nil
}
