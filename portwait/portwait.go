// Package portwait polls TCP ports until they accept or refuse connections.
package portwait

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultInterval is the pause between connection attempts.
	DefaultInterval = time.Second
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = time.Second
)

// Waiter polls a port at a fixed interval.
// The zero value uses DefaultInterval and DefaultDialTimeout.
type Waiter struct {
	Interval    time.Duration
	DialTimeout time.Duration
}

// WaitForPort reports whether host:port accepted a connection before timeout.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return Waiter{}.WaitForPort(ctx, host, port, timeout)
}

// WaitForClose reports whether host:port stopped accepting connections before timeout.
func WaitForClose(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return Waiter{}.WaitForClose(ctx, host, port, timeout)
}

// IsOpen makes a single connection attempt to host:port.
func IsOpen(host string, port int) bool {
	return Waiter{}.probe(Addr(host, port))
}

// Addr joins host and port.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WaitForPort polls until host:port is connectable. Every dial error counts as
// "not ready yet". Returns false once timeout has elapsed or ctx is done.
func (w Waiter) WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return w.poll(ctx, Addr(host, port), timeout, true)
}

// WaitForClose polls until host:port refuses connections.
func (w Waiter) WaitForClose(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return w.poll(ctx, Addr(host, port), timeout, false)
}

func (w Waiter) poll(ctx context.Context, addr string, timeout time.Duration, wantOpen bool) bool {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	for attempt := 1; ; attempt++ {
		if w.probe(addr) == wantOpen {
			return true
		}

		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			slog.Debug("port wait timed out", "addr", addr, "open", wantOpen, "attempts", attempt)
			return false
		}

		t := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (w Waiter) probe(addr string) bool {
	dt := w.DialTimeout
	if dt <= 0 {
		dt = DefaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, dt)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
