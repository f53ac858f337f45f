package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLauncher_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadLauncher(dir, "")
	if err != nil {
		t.Fatalf("LoadLauncher: %v", err)
	}
	if cfg.InstallDir != dir {
		t.Errorf("InstallDir = %q, want %q", cfg.InstallDir, dir)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.ReadyTimeout.Duration != 2*time.Minute {
		t.Errorf("ReadyTimeout = %v, want 2m", cfg.ReadyTimeout)
	}
	if cfg.StopTimeout.Duration != 3*time.Second {
		t.Errorf("StopTimeout = %v, want 3s", cfg.StopTimeout)
	}
	if len(cfg.OverlaySchedule()) == 0 {
		t.Error("expected default overlay schedule")
	}
	if cfg.Env != nil {
		t.Errorf("Env = %v, want nil", cfg.Env)
	}
}

func TestLoadLauncher_File(t *testing.T) {
	dir := t.TempDir()
	data := `
python = "/opt/py/bin/python"
python_args = ["-X", "utf8"]
port = 7861
ready_timeout = "30s"
overlay_retries = ["500ms", "1s"]

[window]
width = 900
height = 700
`
	if err := os.WriteFile(filepath.Join(dir, LauncherFileName), []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, EnvFileName), []byte("HF_TOKEN=abc\n"), 0644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := LoadLauncher(dir, "")
	if err != nil {
		t.Fatalf("LoadLauncher: %v", err)
	}

	if cfg.Python != "/opt/py/bin/python" {
		t.Errorf("Python = %q", cfg.Python)
	}
	if len(cfg.PythonArgs) != 2 || cfg.PythonArgs[1] != "utf8" {
		t.Errorf("PythonArgs = %v", cfg.PythonArgs)
	}
	if cfg.Port != 7861 {
		t.Errorf("Port = %d, want 7861", cfg.Port)
	}
	if cfg.ReadyTimeout.Duration != 30*time.Second {
		t.Errorf("ReadyTimeout = %v, want 30s", cfg.ReadyTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.StopTimeout.Duration != 3*time.Second {
		t.Errorf("StopTimeout = %v, want 3s", cfg.StopTimeout)
	}
	if got := cfg.OverlaySchedule(); len(got) != 2 || got[0] != 500*time.Millisecond {
		t.Errorf("OverlaySchedule = %v", got)
	}
	if cfg.Window.Width != 900 || cfg.Window.MinWidth != 800 {
		t.Errorf("Window = %+v", cfg.Window)
	}
	if cfg.Env["HF_TOKEN"] != "abc" {
		t.Errorf("Env = %v", cfg.Env)
	}
}

func TestLoadLauncher_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad port", "port = 70000"},
		{"bad duration", `ready_timeout = "soon"`},
		{"not toml", "port = = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, LauncherFileName), []byte(tt.data), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := LoadLauncher(dir, "")
			if err == nil {
				t.Fatal("expected error")
			}
			if cfg.Port != DefaultPort {
				t.Errorf("Port = %d, want defaults on error", cfg.Port)
			}
		})
	}
}

func TestLoadLauncher_ExplicitMissingPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLauncher(dir, filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("expected error for explicit missing config")
	}
}
