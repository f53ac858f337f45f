package session

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/chatterbox-tts/desktop/internal/types"
)

// lookup returns the last value for key, the one exec.Cmd uses.
func lookup(env []string, key string) (string, bool) {
	val, found := "", false
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			val, found = v, true
		}
	}
	return val, found
}

func TestBuildEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "PYTHONIOENCODING=latin-1", "HF_HOME=/base"}
	cfg := Config{Host: "127.0.0.1", Port: 7860, Env: map[string]string{"HF_HOME": "/models", "HF_TOKEN": "t"}}

	tests := []struct {
		name      string
		settings  types.Settings
		wantOut   string
		wantOutOK bool
	}{
		{"with output dir", types.Settings{OutputDir: "/tmp/x"}, "/tmp/x", true},
		{"without output dir", types.Settings{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := buildEnv(base, cfg, tt.settings)

			checks := map[string]string{
				"PATH":        "/usr/bin",
				EnvIOEncoding: "utf-8",
				EnvUTF8Mode:   "1",
				EnvGradioHost: "127.0.0.1",
				EnvGradioPort: "7860",
				"HF_HOME":     "/models",
				"HF_TOKEN":    "t",
			}
			for k, want := range checks {
				if got, _ := lookup(env, k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}

			got, ok := lookup(env, EnvOutputDir)
			if ok != tt.wantOutOK || got != tt.wantOut {
				t.Errorf("%s = %q (set %v), want %q (set %v)", EnvOutputDir, got, ok, tt.wantOut, tt.wantOutOK)
			}
		})
	}

	// The caller's slice must not be modified.
	if len(base) != 3 || base[1] != "PYTHONIOENCODING=latin-1" {
		t.Errorf("base modified: %v", base)
	}
}

func TestFindPython_Venv(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join(".venv", "bin", "python3")
	if runtime.GOOS == "windows" {
		rel = filepath.Join(".venv", "Scripts", "python.exe")
	}
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0755); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := findPython(Config{InstallDir: dir})
	if err != nil {
		t.Fatalf("findPython: %v", err)
	}
	if got != path {
		t.Errorf("findPython() = %q, want %q", got, path)
	}
}

func TestFindPython_Configured(t *testing.T) {
	if _, err := findPython(Config{Python: "definitely-not-a-python-binary"}); err == nil {
		t.Error("expected error for unknown interpreter name")
	}
	if _, err := findPython(Config{Python: filepath.Join(t.TempDir(), "python")}); err == nil {
		t.Error("expected error for missing interpreter path")
	}
}

func TestScanLines(t *testing.T) {
	input := "loading\r10%\r100%\nready\n\npartial"
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Split(scanLines)

	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	want := []string{"loading", "10%", "100%", "ready", "", "partial"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScriptPath(t *testing.T) {
	dir := helperInstall(t, map[types.Mode]string{types.ModeTurbo: "serve"})
	m := New(Config{InstallDir: dir}, nil)

	got, err := m.scriptPath(types.ModeTurbo)
	if err != nil {
		t.Fatalf("scriptPath: %v", err)
	}
	if want := filepath.Join(dir, "gradio_tts_turbo_app.py"); got != want {
		t.Errorf("scriptPath = %q, want %q", got, want)
	}

	if _, err := m.scriptPath(types.ModeMultilingual); err == nil {
		t.Error("expected error for missing script")
	}
}
