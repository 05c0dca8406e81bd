package audiosrv

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/w1cat/ftx1bridge/internal/audioproto"
)

// Server is the audio TCP acceptor: at most one AudioSession at a time,
// rejecting any additional connection attempt with CONNECT_REJECT(BUSY).
type Server struct {
	addr    string
	devices *Devices
	logger  *log.Logger

	mu      sync.Mutex
	current *Session
}

// New returns a Server listening on addr (e.g. ":4533"), streaming
// through devices.
func New(addr string, devices *Devices, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, devices: devices, logger: logger}
}

// Run listens and accepts audio clients until ctx is canceled.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		return fmt.Errorf("audiosrv: listen %s: %w", srv.addr, err)
	}
	srv.logger.Info("audio server listening", "addr", srv.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				srv.logger.Warn("audiosrv accept error", "err", err)
				continue
			}
		}
		go srv.handleConn(ctx, conn)
	}
}

func (srv *Server) handleConn(ctx context.Context, conn net.Conn) {
	srv.mu.Lock()
	if srv.current != nil {
		srv.mu.Unlock()
		audioproto.WriteFrame(conn, audioproto.Frame{
			Type:    audioproto.FrameControl,
			Payload: audioproto.EncodeControl(audioproto.ControlMessage{Kind: audioproto.ConnectReject, Reason: audioproto.RejectBusy}),
		})
		conn.Close()
		return
	}

	sess := newSession(conn, srv.devices, srv.logger)
	srv.current = sess
	srv.mu.Unlock()

	sess.Run(ctx)

	srv.mu.Lock()
	if srv.current == sess {
		srv.current = nil
	}
	srv.mu.Unlock()
}

// Snapshot returns the active session's stats, or the zero value if no
// session is connected.
func (srv *Server) Snapshot() (Stats, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.current == nil {
		return Stats{}, false
	}
	return srv.current.Snapshot(), true
}
