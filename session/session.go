// Package session owns the single background Chatterbox server process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/chatterbox-tts/desktop/internal/types"
	"github.com/chatterbox-tts/desktop/portwait"
	"github.com/google/uuid"
)

var (
	// ErrSpawn is returned when the server process could not be started.
	ErrSpawn = errors.New("spawn server")
	// ErrPortTimeout is returned when the server never opened its port.
	ErrPortTimeout = errors.New("timed out waiting for server port")
	// ErrProcessExited is returned when the server exited before opening its port.
	ErrProcessExited = errors.New("server exited before it was ready")
	// ErrPortInUse is returned when another process holds the server port.
	ErrPortInUse = errors.New("server port already in use")
	// ErrStopped is returned by Start when Stop ran while it was waiting.
	ErrStopped = errors.New("session stopped")
)

// SettingsSource supplies the settings injected into every new server.
type SettingsSource interface {
	Get() types.Settings
}

// Config describes how to launch the server scripts.
type Config struct {
	InstallDir string
	Python     string   // Interpreter; empty means autodetect
	PythonArgs []string // Placed before the script path
	Scripts    map[types.Mode]string

	Host string
	Port int

	ReadyTimeout time.Duration
	StopTimeout  time.Duration
	PollInterval time.Duration

	// Env is added to the inherited environment before the fixed variables.
	Env map[string]string
}

// URL returns the address the server is reachable at once ready.
func (c Config) URL() string {
	return "http://" + portwait.Addr(c.Host, c.Port)
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 2 * time.Minute
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 3 * time.Second
	}
	if c.Scripts == nil {
		c.Scripts = DefaultScripts()
	}
}

// DefaultPort is the port the Gradio apps bind.
const DefaultPort = 7860

// killWait bounds how long Stop waits for a force-killed process to be reaped.
const killWait = 2 * time.Second

type process struct {
	id        string
	mode      types.Mode
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	exitErr   error
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Manager runs at most one server process at a time.
// Start always stops the previous process first.
type Manager struct {
	cfg      Config
	settings SettingsSource
	waiter   portwait.Waiter
	log      *slog.Logger

	stopMu sync.Mutex // serializes Stop so callers return only after the process is gone

	mu      sync.Mutex
	proc    *process
	state   types.SessionState
	mode    types.Mode
	url     string
	lastErr error

	onOutput func(line string)
	onChange func(types.SessionStatus)
}

// New creates a Manager. settings may be nil.
func New(cfg Config, settings SettingsSource) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:      cfg,
		settings: settings,
		waiter:   portwait.Waiter{Interval: cfg.PollInterval},
		log:      slog.With("component", "session"),
	}
}

// OnOutput registers a callback receiving each line the server prints.
// Must be called before Start.
func (m *Manager) OnOutput(fn func(line string)) {
	m.onOutput = fn
}

// OnStateChange registers a callback receiving every status change.
// Must be called before Start.
func (m *Manager) OnStateChange(fn func(types.SessionStatus)) {
	m.onChange = fn
}

// Status returns a snapshot of the session slot.
func (m *Manager) Status() types.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() types.SessionStatus {
	st := types.SessionStatus{
		Mode:  m.mode,
		State: m.state,
		URL:   m.url,
	}
	if m.proc != nil {
		st.ID = m.proc.id
		st.StartedAt = m.proc.startedAt
		if m.proc.cmd.Process != nil {
			st.PID = m.proc.cmd.Process.Pid
		}
	}
	if m.lastErr != nil {
		st.Error = m.lastErr.Error()
	}
	return st
}

func (m *Manager) notify(st types.SessionStatus) {
	if m.onChange != nil {
		m.onChange(st)
	}
}

// Start stops any running server and launches the one for mode.
// It blocks until the server port accepts connections, the ready timeout
// elapses, the process exits, or ctx is done. On ErrPortTimeout or a
// cancelled ctx the process keeps running until the next Stop.
func (m *Manager) Start(ctx context.Context, mode types.Mode) (string, error) {
	m.Stop()

	if _, ok := types.ParseMode(string(mode)); !ok {
		m.log.Warn("unknown mode, using default", "mode", mode, "default", types.DefaultMode)
		mode = types.DefaultMode
	}

	script, err := m.scriptPath(mode)
	if err != nil {
		return m.fail(mode, fmt.Errorf("%w: %w", ErrSpawn, err))
	}

	python, err := findPython(m.cfg)
	if err != nil {
		return m.fail(mode, fmt.Errorf("%w: %w", ErrSpawn, err))
	}

	if portwait.IsOpen(m.cfg.Host, m.cfg.Port) {
		m.log.Warn("server port busy, waiting for it to close", "port", m.cfg.Port)
		if !m.waiter.WaitForClose(ctx, m.cfg.Host, m.cfg.Port, m.cfg.StopTimeout) {
			return m.fail(mode, fmt.Errorf("%w: %d", ErrPortInUse, m.cfg.Port))
		}
	}

	var settings types.Settings
	if m.settings != nil {
		settings = m.settings.Get()
	}

	args := append(slices.Clone(m.cfg.PythonArgs), script)
	cmd := exec.Command(python, args...)
	cmd.Dir = m.cfg.InstallDir
	cmd.Env = buildEnv(os.Environ(), m.cfg, settings)
	cmd.SysProcAttr = sysProcAttr()

	// Merge stdout and stderr into one pipe.
	pr, pw, err := os.Pipe()
	if err != nil {
		return m.fail(mode, fmt.Errorf("%w: create pipe: %w", ErrSpawn, err))
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	m.log.Info("starting server", "mode", mode, "python", python, "script", script)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return m.fail(mode, fmt.Errorf("%w: %w", ErrSpawn, err))
	}
	pw.Close()

	p := &process{
		id:        uuid.NewString(),
		mode:      mode,
		cmd:       cmd,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.proc = p
	m.mode = mode
	m.state = types.SessionStarting
	m.url = ""
	m.lastErr = nil
	st := m.statusLocked()
	m.mu.Unlock()
	m.notify(st)

	log := m.log.With("session", p.id, "pid", cmd.Process.Pid)
	go m.forward(p, pr, slog.With("component", "server", "session", p.id))
	go m.monitor(p, log)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	log.Info("waiting for server", "port", m.cfg.Port, "timeout", m.cfg.ReadyTimeout)
	ready := m.waiter.WaitForPort(waitCtx, m.cfg.Host, m.cfg.Port, m.cfg.ReadyTimeout)

	m.mu.Lock()
	if m.proc != p {
		m.mu.Unlock()
		return "", ErrStopped
	}

	var url string
	switch {
	case p.exited():
		err = fmt.Errorf("%w: %v", ErrProcessExited, p.exitErr)
	case ready:
		url = m.cfg.URL()
		m.state = types.SessionReady
		m.url = url
	case ctx.Err() != nil:
		err = fmt.Errorf("wait for server: %w", ctx.Err())
	default:
		err = fmt.Errorf("%w: %s after %v", ErrPortTimeout, portwait.Addr(m.cfg.Host, m.cfg.Port), m.cfg.ReadyTimeout)
	}
	if err != nil {
		m.state = types.SessionFailed
		m.lastErr = err
	}
	st = m.statusLocked()
	m.mu.Unlock()
	m.notify(st)

	if err != nil {
		log.Error("start server", "mode", mode, "error", err)
		return "", err
	}
	log.Info("server ready", "url", url)
	return url, nil
}

// fail records a start failure that left no process behind.
func (m *Manager) fail(mode types.Mode, err error) (string, error) {
	m.log.Error("start server", "mode", mode, "error", err)

	m.mu.Lock()
	m.proc = nil
	m.mode = mode
	m.state = types.SessionFailed
	m.url = ""
	m.lastErr = err
	st := m.statusLocked()
	m.mu.Unlock()
	m.notify(st)

	return "", err
}

// Stop terminates the server, if any, and clears the slot.
// Termination errors are logged, never returned.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	defer m.stopMu.Unlock()

	m.mu.Lock()
	p := m.proc
	changed := p != nil || m.state != types.SessionStopped
	m.proc = nil
	m.mode = ""
	m.state = types.SessionStopped
	m.url = ""
	m.lastErr = nil
	st := m.statusLocked()
	m.mu.Unlock()

	if changed {
		m.notify(st)
	}
	if p == nil {
		return
	}
	m.terminate(p)
}

func (m *Manager) terminate(p *process) {
	if p.exited() {
		return
	}

	log := m.log.With("session", p.id, "pid", p.cmd.Process.Pid)
	log.Info("stopping server")

	if err := interrupt(p.cmd.Process); err != nil {
		log.Warn("interrupt server", "error", err)
	}

	select {
	case <-p.done:
		log.Info("server stopped")
		return
	case <-time.After(m.cfg.StopTimeout):
	}

	log.Warn("server ignored interrupt, killing", "timeout", m.cfg.StopTimeout)
	if err := kill(p.cmd.Process); err != nil {
		log.Error("kill server", "error", err)
	}

	select {
	case <-p.done:
		log.Info("server killed")
	case <-time.After(killWait):
		log.Error("server did not exit after kill")
	}
}

// monitor reaps the process and records an unexpected exit.
func (m *Manager) monitor(p *process, log *slog.Logger) {
	err := p.cmd.Wait()
	p.exitErr = err
	close(p.done)

	if err != nil {
		log.Info("server exited", "error", err)
	} else {
		log.Info("server exited")
	}

	m.mu.Lock()
	if m.proc != p || m.state != types.SessionReady {
		// Stopped on purpose, or Start reports the exit itself.
		m.mu.Unlock()
		return
	}
	m.proc = nil
	m.state = types.SessionFailed
	m.url = ""
	m.lastErr = fmt.Errorf("server exited unexpectedly: %v", err)
	st := m.statusLocked()
	m.mu.Unlock()
	m.notify(st)
}
