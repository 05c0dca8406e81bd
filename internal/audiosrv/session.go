package audiosrv

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/w1cat/ftx1bridge/internal/audioproto"
	"github.com/w1cat/ftx1bridge/internal/ringbuffer"
)

// SessionState is one state in the AudioSession lifecycle.
type SessionState int

const (
	StateInit SessionState = iota
	StateAwaitHandshake
	StateStreaming
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAwaitHandshake:
		return "AWAIT_HANDSHAKE"
	case StateStreaming:
		return "STREAMING"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

const (
	handshakeTimeout  = 10 * time.Second
	heartbeatInterval = 5 * time.Second
	heartbeatTimeout  = 15 * time.Second

	targetLatencyMs = 100
	ringCapacityMs  = 500
)

// Stats mirrors the tx ring buffer's counters plus session-level
// framing counters, published to the metrics/status surfaces. Capture
// frames go straight to the wire with no buffering, so only the
// playback path has a ring buffer to report on.
type Stats struct {
	TX                ringbuffer.Stats
	CRCErrors         uint64
	MeasuredLatencyMs int64
	State             string
}

// Session drives one AudioSession's state machine over a single TCP
// connection, borrowing the process-wide capture/playback devices.
type Session struct {
	conn    net.Conn
	devices *Devices
	logger  *log.Logger

	writeMu sync.Mutex

	tx *ringbuffer.Buffer

	mu                sync.Mutex
	state             SessionState
	crcErrors         uint64
	measuredLatencyMs int64
}

func newSession(conn net.Conn, devices *Devices, logger *log.Logger) *Session {
	s := &Session{
		conn:    conn,
		devices: devices,
		logger:  logger,
		tx:      ringbuffer.New(SampleRateHz*2*ringCapacityMs/1000, SampleRateHz*2*targetLatencyMs/1000),
		state:   StateInit,
	}
	return s
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run drives the session to completion: handshake, then streaming
// until DISCONNECT, a fatal I/O error, or ctx cancellation.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()
	defer s.tx.Close()

	if !s.devices.Configured() {
		s.sendControl(audioproto.ControlMessage{Kind: audioproto.ConnectReject, Reason: audioproto.RejectRejected})
		return
	}

	s.setState(StateAwaitHandshake)
	if !s.awaitHandshake() {
		return
	}

	s.setState(StateStreaming)
	if err := s.devices.Start(); err != nil {
		s.logger.Error("audio device start failed", "err", err)
		return
	}
	defer s.devices.Stop()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	lastFrame := make(chan struct{}, 1)
	wg.Add(3)
	go func() { defer wg.Done(); s.captureTask(sessionCtx) }()
	go func() { defer wg.Done(); s.playbackTask(sessionCtx) }()
	go func() { defer wg.Done(); s.receiveTask(sessionCtx, cancel, lastFrame) }()

	s.heartbeatTask(sessionCtx, cancel, lastFrame)

	s.setState(StateClosing)
	wg.Wait()
}

func (s *Session) awaitHandshake() bool {
	s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	frame, err := audioproto.ReadFrame(s.conn)
	if err != nil || frame.Type != audioproto.FrameControl {
		return false
	}
	msg, err := audioproto.DecodeControl(frame.Payload)
	if err != nil || msg.Kind != audioproto.ConnectRequest {
		return false
	}

	s.conn.SetReadDeadline(time.Time{})
	s.sendControl(audioproto.ControlMessage{
		Kind: audioproto.AudioConfig, SampleRateHz: SampleRateHz,
		BitsPerSamp: BitsPerSample, Channels: Channels, FrameMs: FrameMs,
	})
	s.sendControl(audioproto.ControlMessage{Kind: audioproto.ConnectAccept})
	return true
}

func (s *Session) sendControl(m audioproto.ControlMessage) {
	s.writeFrame(audioproto.Frame{Type: audioproto.FrameControl, Payload: audioproto.EncodeControl(m)})
}

func (s *Session) writeFrame(f audioproto.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return audioproto.WriteFrame(s.conn, f)
}

// captureTask reads one frame from the capture device and forwards it
// as AUDIO_RX; it never blocks on the receive task.
func (s *Session) captureTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pcm, err := s.devices.ReadFrame()
		if err != nil {
			s.logger.Warn("capture read failed", "err", err)
			return
		}
		if err := s.writeFrame(audioproto.Frame{Type: audioproto.FrameAudioRX, Payload: pcm}); err != nil {
			return
		}
	}
}

// playbackTask plays silence until the tx ring buffer first reaches its
// target fill, then drains it one frame at a time, inserting silence on
// underrun.
func (s *Session) playbackTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		frame := make([]byte, FrameBytes)
		if s.tx.Snapshot().HasReachedTarget {
			s.tx.Read(frame, FrameBytes, 100*time.Millisecond)
		}
		if err := s.devices.WriteFrame(frame); err != nil {
			s.logger.Warn("playback write failed", "err", err)
			return
		}
	}
}

// receiveTask reads frames off the TCP connection: AUDIO_TX feeds the
// tx ring buffer, CONTROL frames drive disconnect/latency-probe
// handling, HEARTBEAT is answered and also pings lastFrame.
func (s *Session) receiveTask(ctx context.Context, cancel context.CancelFunc, lastFrame chan<- struct{}) {
	defer cancel()
	for {
		s.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		frame, err := audioproto.ReadFrame(s.conn)
		if err != nil {
			if err == audioproto.ErrCRCMismatch {
				s.mu.Lock()
				s.crcErrors++
				s.mu.Unlock()
				continue
			}
			return
		}

		select {
		case lastFrame <- struct{}{}:
		default:
		}

		switch frame.Type {
		case audioproto.FrameAudioTX:
			s.tx.Write(frame.Payload)
		case audioproto.FrameHeartbeat:
			s.writeFrame(audioproto.Frame{Type: audioproto.FrameHeartbeatAck})
		case audioproto.FrameControl:
			msg, err := audioproto.DecodeControl(frame.Payload)
			if err != nil {
				continue
			}
			switch msg.Kind {
			case audioproto.Disconnect:
				return
			case audioproto.LatencyProbe:
				s.handleLatencyProbe(msg)
			case audioproto.LatencyResponse:
				s.recordLatency(msg)
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Session) handleLatencyProbe(msg audioproto.ControlMessage) {
	s.sendControl(audioproto.ControlMessage{
		Kind: audioproto.LatencyResponse, ProbeID: msg.ProbeID, SentAtMs: msg.SentAtMs,
	})
}

func (s *Session) recordLatency(msg audioproto.ControlMessage) {
	s.mu.Lock()
	s.measuredLatencyMs = time.Now().UnixMilli() - int64(msg.SentAtMs)
	s.mu.Unlock()
}

// heartbeatTask sends a periodic HEARTBEAT and cancels the session if
// no frame has been received within the timeout window.
func (s *Session) heartbeatTask(ctx context.Context, cancel context.CancelFunc, lastFrame <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	idle := time.NewTimer(heartbeatTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeFrame(audioproto.Frame{Type: audioproto.FrameHeartbeat}); err != nil {
				cancel()
				return
			}
		case <-lastFrame:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(heartbeatTimeout)
		case <-idle.C:
			s.logger.Warn("audio session heartbeat timeout")
			cancel()
			return
		}
	}
}

// Snapshot returns the session's current counters and state.
func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TX:                s.tx.Snapshot(),
		CRCErrors:         s.crcErrors,
		MeasuredLatencyMs: s.measuredLatencyMs,
		State:             s.state.String(),
	}
}
