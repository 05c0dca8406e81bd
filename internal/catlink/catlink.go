// Package catlink implements the framed serial transport to the radio:
// ';'-terminated ASCII CAT commands, one request in flight at a time,
// and a background reader that demultiplexes solicited replies from
// unsolicited auto-information (AI) pushes.
package catlink

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Port is the minimal byte-stream contract CatLink needs from the
// underlying transport. The real implementation is a raw-mode serial
// handle (see Open); tests supply an in-memory fake.
type Port interface {
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	Close() error
}

// Frame is one ';'-terminated CAT frame, split into its two-character
// command code and payload.
type Frame struct {
	Code    string
	Payload string
	Raw     string // full frame text, without the trailing ';'
}

func parseFrame(raw string) Frame {
	f := Frame{Raw: raw}
	if len(raw) >= 2 {
		f.Code = raw[:2]
		f.Payload = raw[2:]
	} else {
		f.Code = raw
	}
	return f
}

// AIHandler receives every unsolicited frame delivered while no request
// is pending.
type AIHandler func(Frame)

// voidCommands never produce a reply frame from the radio; send_command
// must not wait for one.
var voidCommands = map[string]bool{
	"TX": true, // PTT on/off
}

const (
	defaultResponseTimeout = 500 * time.Millisecond
	maxFrameBytes          = 64
)

// Link is the CatLink transport: one owner, many concurrent callers
// serialized by reqMu so that exactly one command-response round trip
// is in flight at a time, per the system's concurrency contract.
type Link struct {
	port   Port
	logger *log.Logger

	responseTimeout time.Duration

	reqMu   sync.Mutex // serializes send_command callers
	pending struct {
		mu   sync.Mutex // guards the single-slot rendezvous register
		code string
		ch   chan Frame
	}

	aiMu      sync.RWMutex
	aiHandler AIHandler

	onCommand func(code string)
	onError   func(kind string)

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// New wraps an already-open Port. The caller must call Run (typically in
// its own goroutine) to start the background reader before issuing any
// commands.
func New(port Port, logger *log.Logger) *Link {
	if logger == nil {
		logger = log.Default()
	}
	l := &Link{
		port:            port,
		logger:          logger,
		responseTimeout: defaultResponseTimeout,
		closed:          make(chan struct{}),
	}
	return l
}

// SetResponseTimeout overrides the default 500ms send_command window.
func (l *Link) SetResponseTimeout(d time.Duration) {
	l.responseTimeout = d
}

// SubscribeAI registers the callback invoked for every unsolicited
// frame. Only one handler is supported at this layer; AiBroadcaster
// fans a single handler out to many listeners.
func (l *Link) SubscribeAI(h AIHandler) {
	l.aiMu.Lock()
	defer l.aiMu.Unlock()
	l.aiHandler = h
}

// SetCommandHook registers a callback invoked once per SendCommand call
// with the command code, for callers that want to count CAT traffic
// (e.g. Prometheus metrics) without CatLink importing a metrics package.
func (l *Link) SetCommandHook(fn func(code string)) {
	l.onCommand = fn
}

// SetErrorHook registers a callback invoked with the Kind string whenever
// SendCommand fails.
func (l *Link) SetErrorHook(fn func(kind string)) {
	l.onError = fn
}

// Run drives the background reader until the port closes or ctx is
// canceled. It must run concurrently with SendCommand/SendRaw callers.
func (l *Link) Run(ctx context.Context) error {
	defer close(l.closed)
	br := newByteScanner(l.port)
	for {
		select {
		case <-ctx.Done():
			l.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		raw, err := br.nextFrame()
		if err != nil {
			l.fail(err)
			return err
		}
		if raw == "" {
			continue
		}
		frame := parseFrame(raw)
		l.logger.Debug("> received", "raw", raw)
		l.deliver(frame)
	}
}

// deliver attributes an incoming frame to the pending request if the
// codes match, otherwise treats it as an AI push. A bare "?" code is the
// radio's universal rejection of whatever command is currently in
// flight, so it is routed to the pending request regardless of its
// code. This is the reader's entire demultiplexing job and it must
// never block on a listener.
func (l *Link) deliver(f Frame) {
	l.pending.mu.Lock()
	if l.pending.ch != nil && (l.pending.code == f.Code || f.Code == "?") {
		ch := l.pending.ch
		l.pending.ch = nil
		l.pending.code = ""
		l.pending.mu.Unlock()
		ch <- f
		return
	}
	l.pending.mu.Unlock()

	l.aiMu.RLock()
	h := l.aiHandler
	l.aiMu.RUnlock()
	if h != nil {
		h(f)
	}
}

func (l *Link) fail(err error) {
	l.closeOnce.Do(func() {
		l.closeErr = err
		l.pending.mu.Lock()
		if l.pending.ch != nil {
			close(l.pending.ch)
			l.pending.ch = nil
		}
		l.pending.mu.Unlock()
	})
}

// SendCommand writes code+payload+';' and waits for a matching reply.
// It returns (nil, nil) for commands classified as void (no reply
// expected), Err wrapping ErrProtocol if the radio answers "?;", and Err
// wrapping ErrTimeout if no reply arrives within the response window.
func (l *Link) SendCommand(code, payload string) (frame *Frame, err error) {
	l.reqMu.Lock()
	defer l.reqMu.Unlock()

	if l.onCommand != nil {
		l.onCommand(code)
	}
	defer func() {
		if err != nil && l.onError != nil {
			if kind, ok := KindOf(err); ok {
				l.onError(kind.String())
			}
		}
	}()

	wire := code + payload + ";"

	ch := make(chan Frame, 1)
	void := voidCommands[code]
	if !void {
		l.pending.mu.Lock()
		l.pending.code = code
		l.pending.ch = ch
		l.pending.mu.Unlock()
	}

	l.logger.Debug("< sent", "raw", wire)
	if _, err := l.port.Write([]byte(wire)); err != nil {
		l.pending.mu.Lock()
		l.pending.ch = nil
		l.pending.mu.Unlock()
		return nil, newError(KindLinkClosed, code)
	}

	if void {
		return nil, nil
	}

	select {
	case frame, ok := <-ch:
		if !ok {
			return nil, ErrLinkClosed
		}
		if strings.HasPrefix(frame.Raw, "?") {
			return nil, newError(KindProtocol, code)
		}
		return &frame, nil
	case <-time.After(l.responseTimeout):
		l.pending.mu.Lock()
		if l.pending.code == code {
			l.pending.ch = nil
			l.pending.code = ""
		}
		l.pending.mu.Unlock()
		return nil, newError(KindTimeout, code)
	case <-l.closed:
		return nil, ErrLinkClosed
	}
}

// SendRaw forwards caller-supplied CAT text verbatim (appending ';' if
// missing) and returns the radio's full reply text. Used by the `w` /
// `send_cmd` rigctl verb.
func (l *Link) SendRaw(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, ";")
	code := text
	payload := ""
	if len(text) >= 2 {
		code = text[:2]
		payload = text[2:]
	}
	frame, err := l.SendCommand(code, payload)
	if err != nil {
		return "", err
	}
	if frame == nil {
		return code + payload + ";", nil
	}
	return frame.Raw + ";", nil
}

// EnableAutoInfo sends AI1; the radio begins pushing unsolicited frames.
func (l *Link) EnableAutoInfo() error {
	_, err := l.SendCommand("AI", "1")
	return err
}

// DisableAutoInfo sends AI0;.
func (l *Link) DisableAutoInfo() error {
	_, err := l.SendCommand("AI", "0")
	return err
}

// Close closes the underlying port. Any in-flight SendCommand observes
// ErrLinkClosed.
func (l *Link) Close() error {
	return l.port.Close()
}

// byteScanner accumulates bytes into ';'-terminated frames, discarding
// any run that exceeds maxFrameBytes without a terminator.
type byteScanner struct {
	port Port
	buf  []byte
}

func newByteScanner(p Port) *byteScanner {
	return &byteScanner{port: p, buf: make([]byte, 0, maxFrameBytes)}
}

func (s *byteScanner) nextFrame() (string, error) {
	for {
		b, err := s.port.ReadByte()
		if err != nil {
			return "", err
		}
		if b == ';' {
			out := string(s.buf)
			s.buf = s.buf[:0]
			return out, nil
		}
		s.buf = append(s.buf, b)
		if len(s.buf) > maxFrameBytes {
			s.buf = s.buf[:0]
			for b != ';' {
				if b, err = s.port.ReadByte(); err != nil {
					return "", err
				}
			}
			return "", nil
		}
	}
}
