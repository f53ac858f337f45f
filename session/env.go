package session

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"

	"github.com/chatterbox-tts/desktop/internal/types"
)

// Environment variables set for the server process.
const (
	EnvOutputDir      = "CHATTERBOX_OUTPUT_DIR"
	EnvIOEncoding     = "PYTHONIOENCODING"
	EnvUTF8Mode       = "PYTHONUTF8"
	EnvGradioHost     = "GRADIO_SERVER_NAME"
	EnvGradioPort     = "GRADIO_SERVER_PORT"
	EnvGradioAnalytic = "GRADIO_ANALYTICS_ENABLED"
)

// DefaultScripts maps each mode to its Gradio app, relative to the install dir.
func DefaultScripts() map[types.Mode]string {
	return map[types.Mode]string{
		types.ModeTurbo:           "gradio_tts_turbo_app.py",
		types.ModeStandard:        "gradio_tts_app.py",
		types.ModeMultilingual:    "multilingual_app.py",
		types.ModeVoiceConversion: "gradio_vc_app.py",
	}
}

func (m *Manager) scriptPath(mode types.Mode) (string, error) {
	name, ok := m.cfg.Scripts[mode]
	if !ok {
		name, ok = m.cfg.Scripts[types.DefaultMode]
	}
	if !ok {
		return "", fmt.Errorf("no script for mode %s", mode)
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cfg.InstallDir, name)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("script %s: %w", name, err)
	}
	return path, nil
}

// buildEnv returns base plus the launcher variables. Later entries win,
// which exec.Cmd honours for duplicate keys.
func buildEnv(base []string, cfg Config, st types.Settings) []string {
	env := slices.Clone(base)

	for _, k := range slices.Sorted(maps.Keys(cfg.Env)) {
		env = append(env, k+"="+cfg.Env[k])
	}

	env = append(env,
		EnvIOEncoding+"=utf-8",
		EnvUTF8Mode+"=1",
		EnvGradioHost+"="+cfg.Host,
		EnvGradioPort+"="+strconv.Itoa(cfg.Port),
		EnvGradioAnalytic+"=False",
	)

	if st.OutputDir != "" {
		env = append(env, EnvOutputDir+"="+st.OutputDir)
	}
	return env
}

// findPython resolves the interpreter: the configured one, then the
// install dir's virtualenv, then python3/python on PATH.
func findPython(cfg Config) (string, error) {
	if cfg.Python != "" {
		if filepath.Base(cfg.Python) == cfg.Python {
			path, err := exec.LookPath(cfg.Python)
			if err != nil {
				return "", fmt.Errorf("find python %s: %w", cfg.Python, err)
			}
			return path, nil
		}
		if _, err := os.Stat(cfg.Python); err != nil {
			return "", fmt.Errorf("find python: %w", err)
		}
		return cfg.Python, nil
	}

	var venv []string
	if runtime.GOOS == "windows" {
		venv = []string{filepath.Join(".venv", "Scripts", "python.exe")}
	} else {
		venv = []string{
			filepath.Join(".venv", "bin", "python3"),
			filepath.Join(".venv", "bin", "python"),
		}
	}
	for _, rel := range venv {
		path := filepath.Join(cfg.InstallDir, rel)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("python interpreter not found")
}
