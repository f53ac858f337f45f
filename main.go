package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/chatterbox-tts/desktop/clipboard"
	"github.com/chatterbox-tts/desktop/config"
	"github.com/chatterbox-tts/desktop/internal/app"
	"github.com/chatterbox-tts/desktop/internal/types"
	"github.com/chatterbox-tts/desktop/session"
	"github.com/chatterbox-tts/desktop/window"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	installDir string
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "chatterbox [mode]",
		Short: "Chatterbox TTS desktop launcher",
		Long: `Chatterbox runs the Chatterbox Gradio apps in a native window.

Modes:
  turbo             Fast English speech (default)
  standard          English speech with exaggeration and CFG controls
  multilingual      Speech in 23 languages
  voice_conversion  Convert a recording to a target voice

Without a mode the dashboard opens.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(opts.verbose)

			var mode string
			if len(args) == 1 {
				mode = args[0]
			}
			return run(cmd.Context(), opts, mode)
		},
	}

	cmd.Flags().StringVar(&opts.installDir, "install-dir", "", "directory containing the Chatterbox scripts (default: executable directory)")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "launcher config file (default: <install-dir>/chatterbox.toml)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	return cmd
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

func run(ctx context.Context, opts options, mode string) error {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	installDir, err := resolveInstallDir(opts.installDir)
	if err != nil {
		return err
	}

	launcher, err := config.LoadLauncher(installDir, opts.configFile)
	if err != nil {
		if opts.configFile != "" {
			return err
		}
		slog.Error("load launcher config, using defaults", "error", err)
	}

	store := config.NewStore(settingsPath(installDir))
	slog.Info("settings", "path", store.Path())

	sh := &shell{}
	clip := &clipboard.Writer{}

	mgr := session.New(session.Config{
		InstallDir:   installDir,
		Python:       launcher.Python,
		PythonArgs:   launcher.PythonArgs,
		Port:         launcher.Port,
		ReadyTimeout: launcher.ReadyTimeout.Duration,
		StopTimeout:  launcher.StopTimeout.Duration,
		Env:          launcher.Env,
	}, store)
	mgr.OnOutput(func(line string) { sh.emit(app.EventServerOutput, line) })
	mgr.OnStateChange(func(st types.SessionStatus) { sh.emit(app.EventSessionState, st) })

	win := &wailsWindow{}
	ctrl := window.New(win, window.Config{
		AssetOrigin: assetOrigin(),
		FirstPaint:  launcher.FirstPaint.Duration,
		Retries:     launcher.OverlaySchedule(),
	}, window.Dashboard)

	var shutdownOnce sync.Once
	var bridge *app.Bridge
	shutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down")
			bridge.Shutdown()
		})
	}

	bridge = app.New(app.Options{
		Session:    mgr,
		Window:     ctrl,
		Settings:   store,
		Picker:     sh,
		Clipboard:  clip,
		Emit:       sh.emit,
		Quit:       func() { shutdown(); sh.quit() },
		AckTimeout: launcher.AckTimeout.Duration,
	})
	defer shutdown()

	pages, err := app.NewPages(bridge)
	if err != nil {
		return err
	}

	wapp := application.New(application.Options{
		Name:        "Chatterbox TTS",
		Description: "Chatterbox text-to-speech desktop launcher",
		Services: []application.Service{
			application.NewService(bridge),
		},
		Assets: application.AssetOptions{
			Handler: pages,
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
		OnShutdown: shutdown,
	})
	sh.attach(wapp)
	clip.Attach(wapp)

	mainWindow := wapp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:     "Chatterbox TTS",
		Width:     launcher.Window.Width,
		Height:    launcher.Window.Height,
		MinWidth:  launcher.Window.MinWidth,
		MinHeight: launcher.Window.MinHeight,
		URL:       startURL(mode),
	})
	win.attach(mainWindow)

	// The close button quits through the bridge so the server is stopped first.
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		if ctrl.Content() == window.Closed || !bridge.QuitNow() {
			return
		}
		e.Cancel()
	})
	for _, ev := range navigationEvents {
		mainWindow.OnWindowEvent(ev, func(*application.WindowEvent) {
			go ctrl.PageLoaded()
		})
	}

	setupTray(wapp, bridge)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			slog.Info("interrupted, quitting")
			shutdown()
			wapp.Quit()
		case <-done:
		}
	}()

	if err := wapp.Run(); err != nil {
		slog.Error("run app", "error", err)
		return err
	}
	return nil
}

func setupTray(wapp *application.App, bridge *app.Bridge) {
	tray := wapp.SystemTray.New()
	tray.SetLabel("Chatterbox")

	menu := wapp.NewMenu()
	menu.Add("Dashboard").OnClick(func(*application.Context) {
		bridge.HomeNow()
	})
	menu.Add("Open in Browser").OnClick(func(*application.Context) {
		if err := bridge.OpenInBrowser(); err != nil {
			slog.Warn("open in browser", "error", err)
		}
	})
	menu.Add("Copy URL").OnClick(func(*application.Context) {
		if err := bridge.CopyURL(); err != nil {
			slog.Warn("copy url", "error", err)
		}
	})
	menu.AddSeparator()
	menu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			bridge.QuitNow()
		})

	tray.SetMenu(menu)
}

// startURL opens straight into mode when it names one, else the dashboard.
func startURL(mode string) string {
	if mode == "" {
		return window.PathDashboard
	}
	m, ok := types.ParseMode(mode)
	if !ok {
		slog.Warn("unknown mode, opening dashboard", "mode", mode)
		return window.PathDashboard
	}
	return app.PathLaunch + "?mode=" + string(m)
}

func resolveInstallDir(dir string) (string, error) {
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dir = filepath.Dir(exe)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve install dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("install dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("install dir %s is not a directory", abs)
	}
	return abs, nil
}

func settingsPath(installDir string) string {
	path, err := config.DefaultPath()
	if err != nil {
		fallback := filepath.Join(installDir, "settings.json")
		slog.Warn("no user config dir, keeping settings next to the scripts", "path", fallback, "error", err)
		return fallback
	}
	return path
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("chatterbox", "error", err)
		os.Exit(1)
	}
}
