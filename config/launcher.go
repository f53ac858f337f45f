package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// LauncherFileName is the optional launcher config in the install directory.
	LauncherFileName = "chatterbox.toml"
	// EnvFileName holds extra environment variables for the server process.
	EnvFileName = ".env"

	// DefaultPort is the fixed port every Chatterbox app binds.
	DefaultPort = 7860
)

// Duration is a time.Duration decoded from strings like "2m" or "750ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// WindowSize is the initial and minimum size of the main window.
type WindowSize struct {
	Width     int `toml:"width"`
	Height    int `toml:"height"`
	MinWidth  int `toml:"min_width"`
	MinHeight int `toml:"min_height"`
}

// Launcher holds deployment settings that users don't edit from the UI.
type Launcher struct {
	InstallDir string `toml:"-"`

	Python     string   `toml:"python"`
	PythonArgs []string `toml:"python_args"`
	Port       int      `toml:"port"`

	ReadyTimeout   Duration   `toml:"ready_timeout"`
	StopTimeout    Duration   `toml:"stop_timeout"`
	AckTimeout     Duration   `toml:"ack_timeout"`
	FirstPaint     Duration   `toml:"first_paint"`
	OverlayRetries []Duration `toml:"overlay_retries"`

	Window WindowSize `toml:"window"`

	// Env is read from the .env file next to the scripts.
	Env map[string]string `toml:"-"`
}

// DefaultLauncher returns the launcher config used when no file is present.
func DefaultLauncher(installDir string) Launcher {
	return Launcher{
		InstallDir:   installDir,
		PythonArgs:   []string{"-u"},
		Port:         DefaultPort,
		ReadyTimeout: Duration{2 * time.Minute},
		StopTimeout:  Duration{3 * time.Second},
		AckTimeout:   Duration{750 * time.Millisecond},
		FirstPaint:   Duration{2 * time.Second},
		OverlayRetries: []Duration{
			{1 * time.Second},
			{2 * time.Second},
			{4 * time.Second},
			{8 * time.Second},
		},
		Window: WindowSize{Width: 1200, Height: 800, MinWidth: 800, MinHeight: 600},
	}
}

// LoadLauncher reads the launcher config for installDir.
// An empty path means installDir/chatterbox.toml. A missing file yields defaults.
func LoadLauncher(installDir, path string) (Launcher, error) {
	cfg := DefaultLauncher(installDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(installDir, LauncherFileName)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg.Env = loadEnv(installDir)
			return cfg, nil
		}
		return DefaultLauncher(installDir), fmt.Errorf("decode launcher config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return DefaultLauncher(installDir), err
	}

	cfg.Env = loadEnv(installDir)
	return cfg, nil
}

// OverlaySchedule returns the overlay retry delays as plain durations.
func (l Launcher) OverlaySchedule() []time.Duration {
	out := make([]time.Duration, len(l.OverlayRetries))
	for i, d := range l.OverlayRetries {
		out[i] = d.Duration
	}
	return out
}

func (l Launcher) validate() error {
	if l.Port <= 0 || l.Port > 65535 {
		return fmt.Errorf("invalid port: %d", l.Port)
	}
	if l.ReadyTimeout.Duration <= 0 {
		return fmt.Errorf("ready_timeout must be positive")
	}
	if l.StopTimeout.Duration <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}
	return nil
}

// loadEnv reads installDir/.env. Missing or unreadable files yield nil.
func loadEnv(installDir string) map[string]string {
	path := filepath.Join(installDir, EnvFileName)
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("read env file", "path", path, "error", err)
		}
		return nil
	}
	return env
}
