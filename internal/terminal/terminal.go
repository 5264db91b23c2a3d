// Package terminal implements PTY-backed remote terminal sessions forwarded
// over the relay WebSocket connection.
package terminal

import (
	"encoding/base64"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
)

// Sender pushes an outbound relay message. It matches the Send method of
// the unbounded queue internal/relay uses for outgoing messages.
type Sender interface {
	Send(v interface{})
}

// Session is an active terminal session backed by a PTY-spawned shell.
// Its output is streamed to the relay as base64-encoded terminal_output
// messages from a dedicated read-loop goroutine.
type Session struct {
	id  string
	ptm *os.File

	writeMu sync.Mutex
}

func shellPath() string {
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// New spawns a shell inside a PTY of the given size and starts forwarding
// its output through sender. It returns immediately; the read loop runs in
// its own goroutine for the lifetime of the session.
func New(sessionID string, cols, rows uint16, sender Sender) (*Session, error) {
	cmd := exec.Command(shellPath())
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, agenterr.New(agenterr.KindHardware, "openpty failed", err)
	}

	s := &Session{id: sessionID, ptm: ptm}
	go s.readLoop(sender)
	return s, nil
}

// WriteInput writes keystrokes into the PTY's master side.
func (s *Session) WriteInput(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.ptm.Write(data); err != nil {
		return agenterr.New(agenterr.KindIO, "write terminal input", err)
	}
	return nil
}

// Close terminates the session's PTY, ending its shell process.
func (s *Session) Close() error {
	return s.ptm.Close()
}

func (s *Session) readLoop(sender Sender) {
	log := alog.WithSessionID(s.id)
	log.Info().Msg("terminal read loop started")

	buf := make([]byte, 4096)
	for {
		n, err := s.ptm.Read(buf)
		if n > 0 {
			sender.Send(map[string]string{
				"type":       "terminal_output",
				"session_id": s.id,
				"data":       base64.StdEncoding.EncodeToString(buf[:n]),
			})
		}
		if err != nil {
			if err != io.EOF {
				log.Warn().Err(err).Msg("terminal read error")
			}
			break
		}
	}

	sender.Send(map[string]string{
		"type":       "terminal_closed",
		"session_id": s.id,
	})
	log.Info().Msg("terminal read loop ended")
}
