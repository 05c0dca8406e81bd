package catlink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory Port: writes are recorded, and test code
// injects reply bytes via Feed. This is the "mock CatLink" substitute
// of a serial Port, for deterministic tests.
type fakePort struct {
	mu      sync.Mutex
	writes  []string
	inbox   chan byte
	closed  bool
}

func newFakePort() *fakePort {
	return &fakePort{inbox: make(chan byte, 4096)}
}

func (p *fakePort) ReadByte() (byte, error) {
	b, ok := <-p.inbox
	if !ok {
		return 0, errClosed
	}
	return b, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.writes = append(p.writes, string(b))
	p.mu.Unlock()
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	return nil
}

func (p *fakePort) Feed(s string) {
	for _, b := range []byte(s) {
		p.inbox <- b
	}
}

func (p *fakePort) lastWrite() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return ""
	}
	return p.writes[len(p.writes)-1]
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

var errClosed = staticErr("fake port closed")

func startLink(t *testing.T, port *fakePort) *Link {
	t.Helper()
	l := New(port, nil)
	l.SetResponseTimeout(100 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go l.Run(ctx)
	return l
}

func TestSendCommandMatchesReply(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	done := make(chan struct{})
	var frame *Frame
	var err error
	go func() {
		frame, err = l.SendCommand("FA", "")
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "FA;", port.lastWrite())
	port.Feed("FA014074000;")
	<-done

	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "FA", frame.Code)
	assert.Equal(t, "014074000", frame.Payload)
}

func TestSendCommandTimeout(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	_, err := l.SendCommand("FA", "")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestSendCommandRejected(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = l.SendCommand("RT", "")
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	port.Feed("?;")
	<-done

	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindProtocol, kind)
}

func TestHooksReportCommandsAndErrors(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	var mu sync.Mutex
	var commands []string
	var errors []string
	l.SetCommandHook(func(code string) {
		mu.Lock()
		defer mu.Unlock()
		commands = append(commands, code)
	})
	l.SetErrorHook(func(kind string) {
		mu.Lock()
		defer mu.Unlock()
		errors = append(errors, kind)
	})

	done := make(chan struct{})
	go func() {
		l.SendCommand("RT", "")
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	port.Feed("?;")
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"RT"}, commands)
	assert.Equal(t, []string{"protocol"}, errors)
}

func TestVoidCommandDoesNotWait(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	start := time.Now()
	frame, err := l.SendCommand("TX", "1")
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAIFrameRoutedToSubscriber(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	got := make(chan Frame, 1)
	l.SubscribeAI(func(f Frame) { got <- f })

	port.Feed("FA014074050;")

	select {
	case f := <-got:
		assert.Equal(t, "FA", f.Code)
		assert.Equal(t, "014074050", f.Payload)
	case <-time.After(time.Second):
		t.Fatal("AI frame not delivered")
	}
}

func TestMalformedFrameDiscarded(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	got := make(chan Frame, 1)
	l.SubscribeAI(func(f Frame) { got <- f })

	overlong := make([]byte, maxFrameBytes+10)
	for i := range overlong {
		overlong[i] = 'A'
	}
	port.Feed(string(overlong))
	port.Feed(";")
	port.Feed("FA014074000;")

	select {
	case f := <-got:
		assert.Equal(t, "FA", f.Code)
	case <-time.After(time.Second):
		t.Fatal("expected the well-formed frame after the discarded overlong run")
	}
}

func TestSendRawAppendsSemicolon(t *testing.T) {
	port := newFakePort()
	l := startLink(t, port)

	done := make(chan struct{})
	var reply string
	var err error
	go func() {
		reply, err = l.SendRaw("FA014074000")
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "FA014074000;", port.lastWrite())
	port.Feed("FA014074000;")
	<-done

	require.NoError(t, err)
	assert.Equal(t, "FA014074000;", reply)
}
