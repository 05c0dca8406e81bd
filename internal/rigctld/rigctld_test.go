package rigctld

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1cat/ftx1bridge/internal/aibus"
	"github.com/w1cat/ftx1bridge/internal/catlink"
)

type echoTranslator struct{}

func (echoTranslator) Handle(line string) string {
	if line == "f" {
		return "14074000\n"
	}
	return "RPRT 0\n"
}

func startServer(t *testing.T) (addr string, ai *aibus.Broadcaster) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	ai = aibus.New()
	srv := New(addr, echoTranslator{}, ai, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	return addr, ai
}

func TestSessionHandlesLines(t *testing.T) {
	addr, _ := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("f\n"))
	require.NoError(t, err)
	assert.Equal(t, "14074000", readLine(t, conn))
}

func TestAIFanOutToAllSessions(t *testing.T) {
	addr, ai := startServer(t)
	c1, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c2.Close()
	time.Sleep(20 * time.Millisecond)

	ai.HandleFrame(catlink.Frame{Raw: "FA014074050"})

	assert.Equal(t, "AI:FA014074050;", readLine(t, c1))
	assert.Equal(t, "AI:FA014074050;", readLine(t, c2))
}

func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}
