package catlink

import (
	"bufio"
	"fmt"

	"github.com/pkg/term"
)

// serialPort adapts a raw-mode *term.Term to the Port interface via a
// buffered reader, matching the direwolf-style serial_port_open /
// serial_port_get1 shape but exposing the byte-at-a-time contract
// byteScanner wants.
type serialPort struct {
	t  *term.Term
	br *bufio.Reader
}

// supportedBauds lists the baud rates this transport accepts.
var supportedBauds = map[int]bool{
	4800: true, 9600: true, 19200: true, 38400: true, 57600: true, 115200: true,
}

// Open opens devicePath in raw mode at baud and returns a Port ready for
// New(). baud must be one of supportedBauds; 38400 is the
// system default.
func Open(devicePath string, baud int) (Port, error) {
	if baud != 0 && !supportedBauds[baud] {
		return nil, fmt.Errorf("catlink: unsupported baud rate %d", baud)
	}

	t, err := term.Open(devicePath, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("catlink: open %s: %w", devicePath, err)
	}
	if baud != 0 {
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, fmt.Errorf("catlink: set speed %d on %s: %w", baud, devicePath, err)
		}
	}
	return &serialPort{t: t, br: bufio.NewReader(t)}, nil
}

func (s *serialPort) ReadByte() (byte, error) { return s.br.ReadByte() }
func (s *serialPort) Write(p []byte) (int, error) { return s.t.Write(p) }
func (s *serialPort) Close() error { return s.t.Close() }
