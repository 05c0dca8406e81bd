package audiosrv

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1cat/ftx1bridge/internal/audioproto"
)

func startAudioServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := New(addr, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	return addr
}

func TestUnconfiguredDevicesRejectsWithReason(t *testing.T) {
	addr := startAudioServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := audioproto.ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, audioproto.FrameControl, frame.Type)

	msg, err := audioproto.DecodeControl(frame.Payload)
	require.NoError(t, err)
	assert.Equal(t, audioproto.ConnectReject, msg.Kind)
	assert.Equal(t, audioproto.RejectRejected, msg.Reason)
}
