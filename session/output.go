package session

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxLine = 1024 * 1024

// forward logs every line the server prints until the pipe closes.
func (m *Manager) forward(p *process, r io.ReadCloser, log *slog.Logger) {
	defer r.Close()

	sc := bufio.NewScanner(transform.NewReader(r, unicode.UTF8.NewDecoder()))
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(scanLines)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		log.Info("server output", "mode", p.mode, "line", line)
		if m.onOutput != nil {
			m.onOutput(line)
		}
	}

	if err := sc.Err(); err != nil {
		log.Warn("read server output", "error", err)
		// Keep draining so the server never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

// scanLines splits on \n and on the bare \r progress bars use.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
