// Package rigctld is the TCP line server that speaks the rigctl wire
// protocol: one goroutine per client, each line handed to a
// Translator and the reply written back, with every session also
// registered to receive AI fan-out pushes.
package rigctld

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/w1cat/ftx1bridge/internal/aibus"
)

// Translator is the subset of hamlib.Translator this server depends on.
type Translator interface {
	Handle(line string) string
}

// Server accepts rigctl clients on one TCP port and serializes all
// radio access through the shared Translator.
type Server struct {
	addr       string
	translator Translator
	ai         *aibus.Broadcaster
	logger     *log.Logger

	mu       sync.Mutex
	sessions map[*session]struct{}
	nextID   int
}

// New returns a Server listening on addr (e.g. ":4532").
func New(addr string, translator Translator, ai *aibus.Broadcaster, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		addr:       addr,
		translator: translator,
		ai:         ai,
		logger:     logger,
		sessions:   make(map[*session]struct{}),
	}
}

// session is one connected rigctl client: its own line reader/writer,
// registered with the AI broadcaster for the lifetime of the connection.
type session struct {
	id     int
	conn   net.Conn
	writeMu sync.Mutex
	closed  chan struct{}
}

func (s *session) DeliverAI(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return
	default:
	}
	s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := s.conn.Write([]byte(line)); err != nil {
		s.conn.Close()
	}
}

// Run listens and serves until ctx is canceled, then closes the
// listener to unblock Accept, cancels in-flight sessions, and waits up
// to 5 seconds for them to drain.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		return fmt.Errorf("rigctld: listen %s: %w", srv.addr, err)
	}
	srv.logger.Info("rigctld listening", "addr", srv.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				drained := make(chan struct{})
				go func() { wg.Wait(); close(drained) }()
				select {
				case <-drained:
				case <-time.After(5 * time.Second):
					srv.logger.Warn("rigctld sessions did not drain within 5s")
				}
				return nil
			default:
				srv.logger.Warn("rigctld accept error", "err", err)
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.serve(ctx, conn)
		}()
	}
}

func (srv *Server) serve(ctx context.Context, conn net.Conn) {
	sess := &session{conn: conn, closed: make(chan struct{})}

	srv.mu.Lock()
	srv.nextID++
	sess.id = srv.nextID
	srv.sessions[sess] = struct{}{}
	srv.mu.Unlock()

	unsubscribe := srv.ai.Subscribe(sess)

	defer func() {
		unsubscribe()
		srv.mu.Lock()
		delete(srv.sessions, sess)
		srv.mu.Unlock()
		close(sess.closed)
		conn.Close()
		srv.logger.Debug("rigctl session closed", "id", sess.id, "peer", conn.RemoteAddr())
	}()

	srv.logger.Debug("rigctl session opened", "id", sess.id, "peer", conn.RemoteAddr())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		reply := srv.translator.Handle(line)

		sess.writeMu.Lock()
		_, err := conn.Write([]byte(reply))
		sess.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// SessionCount reports the number of currently connected rigctl clients,
// used by the status/metrics surfaces.
func (srv *Server) SessionCount() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.sessions)
}
