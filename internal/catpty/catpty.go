// Package catpty exposes the FTX-1's CAT command stream through a pseudo
// terminal, for legacy logging/rig-control software that expects a
// serial device rather than rigctld's TCP protocol. It opens a pty with
// creack/pty and symlinks it to a fixed path for client applications to
// open, the way direwolf's KISS pty does for packet client software.
package catpty

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"

	"github.com/w1cat/ftx1bridge/internal/aibus"
	"github.com/w1cat/ftx1bridge/internal/catlink"
)

// Bridge tees raw CAT traffic between the FTX-1's link and a pty, so a
// legacy client can send/receive ASCII CAT commands exactly as it would
// over a direct serial connection.
type Bridge struct {
	link   *catlink.Link
	ai     *aibus.Broadcaster
	logger *log.Logger

	master  *os.File
	slave   *os.File
	symlink string
}

// Open creates a pty and, if symlinkPath is non-empty, symlinks the
// slave's name there so clients can open a stable path.
func Open(link *catlink.Link, ai *aibus.Broadcaster, symlinkPath string, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.Default()
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("catpty: open pty: %w", err)
	}

	b := &Bridge{link: link, ai: ai, logger: logger, master: master, slave: slave, symlink: symlinkPath}

	if symlinkPath != "" {
		os.Remove(symlinkPath)
		if err := os.Symlink(slave.Name(), symlinkPath); err != nil {
			master.Close()
			slave.Close()
			return nil, fmt.Errorf("catpty: symlink %s: %w", symlinkPath, err)
		}
	}

	logger.Info("cat pty ready", "slave", slave.Name(), "symlink", symlinkPath)
	return b, nil
}

// SlaveName returns the pty's slave-side device path.
func (b *Bridge) SlaveName() string {
	return b.slave.Name()
}

// DeliverAI implements aibus.Listener, writing unsolicited AI pushes
// straight through to the pty master so legacy clients see them exactly
// as they would on a direct serial connection.
func (b *Bridge) DeliverAI(line string) {
	frame := strings.TrimSuffix(strings.TrimPrefix(line, "AI:"), "\n")
	if _, err := io.WriteString(b.master, frame); err != nil {
		b.logger.Warn("catpty: AI write failed", "err", err)
	}
}

// Run reads semicolon-terminated CAT commands from the pty master and
// forwards them to the link, writing replies back to the pty. It blocks
// until the pty is closed or an unrecoverable read error occurs.
func (b *Bridge) Run() error {
	if b.ai != nil {
		unsubscribe := b.ai.Subscribe(b)
		defer unsubscribe()
	}

	scanner := bufio.NewScanner(b.master)
	scanner.Split(scanSemicolon)

	for scanner.Scan() {
		cmd := scanner.Text()
		if cmd == "" {
			continue
		}
		reply, err := b.link.SendRaw(cmd)
		if err != nil {
			b.logger.Warn("catpty: command failed", "cmd", cmd, "err", err)
			continue
		}
		if reply != "" {
			io.WriteString(b.master, reply)
		}
	}
	return scanner.Err()
}

// Close releases the pty and removes any symlink created in Open.
func (b *Bridge) Close() error {
	if b.symlink != "" {
		os.Remove(b.symlink)
	}
	b.slave.Close()
	return b.master.Close()
}

// scanSemicolon is a bufio.SplitFunc that splits on CAT's ';' terminator,
// the pty-side analogue of catlink's byteScanner for serial framing.
func scanSemicolon(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, c := range data {
		if c == ';' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
