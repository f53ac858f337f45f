// Package outputs finds the audio clips the server saves into the output directory.
//
// Clips are named Chatterbox_<label>_<YYYYMMDD_HHMMSS>.wav.
package outputs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chatterbox-tts/desktop/internal/types"
)

const (
	// Prefix starts every clip name.
	Prefix = "Chatterbox_"
	// Ext is the clip file extension.
	Ext = ".wav"

	timestampLayout = "20060102_150405"
)

// Parse recognises a clip by its file name. CreatedAt comes from the name,
// in local time.
func Parse(path string) (types.OutputClip, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, Prefix) || !strings.EqualFold(filepath.Ext(name), Ext) {
		return types.OutputClip{}, false
	}

	stem := strings.TrimPrefix(name[:len(name)-len(Ext)], Prefix)
	if len(stem) < len(timestampLayout)+2 {
		return types.OutputClip{}, false
	}

	cut := len(stem) - len(timestampLayout)
	if stem[cut-1] != '_' {
		return types.OutputClip{}, false
	}
	created, err := time.ParseInLocation(timestampLayout, stem[cut:], time.Local)
	if err != nil {
		return types.OutputClip{}, false
	}

	return types.OutputClip{
		Name:      name,
		Path:      path,
		Label:     stem[:cut-1],
		CreatedAt: created,
	}, true
}

// List returns up to limit clips in dir, newest first. limit <= 0 means all.
// A missing dir yields no clips.
func List(dir string, limit int) ([]types.OutputClip, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var clips []types.OutputClip
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		clip, ok := Parse(filepath.Join(dir, e.Name()))
		if !ok {
			continue
		}
		if info, err := e.Info(); err == nil {
			clip.Size = info.Size()
		}
		clips = append(clips, clip)
	}

	slices.SortFunc(clips, func(a, b types.OutputClip) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})

	if limit > 0 && len(clips) > limit {
		clips = clips[:limit]
	}
	return clips, nil
}
