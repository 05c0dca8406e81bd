package hamlib

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1cat/ftx1bridge/internal/catlink"
	"github.com/w1cat/ftx1bridge/internal/radio"
)

// scriptedPort is a minimal CAT emulator shared by translator tests; it
// answers FA/MD/TX/PC/ID deterministically and echoes set commands, the
// way the real radio does.
type scriptedPort struct {
	mu    sync.Mutex
	inbox chan byte
	freq  map[string]uint64 // "0"=VFOA "1"=VFOB
	mode  map[string]radio.CatModeChar
}

func newScriptedPort() *scriptedPort {
	return &scriptedPort{
		inbox: make(chan byte, 8192),
		freq:  map[string]uint64{"0": 14074000, "1": 7074000},
		mode:  map[string]radio.CatModeChar{"0": "2", "1": "2"},
	}
}

func (p *scriptedPort) ReadByte() (byte, error) {
	b, ok := <-p.inbox
	if !ok {
		return 0, errScriptedClosed{}
	}
	return b, nil
}

type errScriptedClosed struct{}

func (errScriptedClosed) Error() string { return "scripted port closed" }

func (p *scriptedPort) Write(raw []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := strings.TrimSuffix(string(raw), ";")
	code, payload := text, ""
	if len(text) >= 2 {
		code, payload = text[:2], text[2:]
	}

	var reply string
	switch code {
	case "ID":
		reply = "ID0840"
	case "PC":
		if payload == "" {
			reply = "PC1100.0"
		} else {
			reply = "PC" + payload
		}
	case "FA", "FB":
		sel := "0"
		if code == "FB" {
			sel = "1"
		}
		if payload != "" {
			var v uint64
			for _, c := range payload {
				v = v*10 + uint64(c-'0')
			}
			p.freq[sel] = v
		}
		reply = code + fmt9(p.freq[sel])
	case "MD":
		if len(payload) >= 1 {
			sel := payload[:1]
			if len(payload) == 2 {
				p.mode[sel] = radio.CatModeChar(payload[1:])
				reply = "MD" + payload
			} else {
				reply = "MD" + sel + string(p.mode[sel])
			}
		}
	case "TX":
		return len(raw), nil // void command, no reply
	default:
		reply = code + payload // generic ack for commands this emulator doesn't special-case
	}

	go p.feed(reply)
	return len(raw), nil
}

func (p *scriptedPort) feed(reply string) {
	for _, b := range []byte(reply + ";") {
		p.inbox <- b
	}
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.inbox)
	return nil
}

func fmt9(v uint64) string {
	s := make([]byte, 9)
	for i := 8; i >= 0; i-- {
		s[i] = byte('0' + v%10)
		v /= 10
	}
	return string(s)
}

func startTranslator(t *testing.T) *Translator {
	t.Helper()
	port := newScriptedPort()
	link := catlink.New(port, nil)
	link.SetResponseTimeout(200 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go link.Run(ctx)
	m := radio.New(link, nil)
	require.NoError(t, m.Detect())
	return New(m)
}

func TestGetSetFreqRoundTrip(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT 0\n", tr.Handle("set_freq 28074055"))
	assert.Equal(t, "28074055\n", tr.Handle("get_freq"))
}

func TestGetSetModeReturnsPassband(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT 0\n", tr.Handle("set_mode USB 0"))
	assert.Equal(t, "USB\n0\n", tr.Handle("get_mode"))
}

func TestUnknownVerbIsInvalid(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT -1\n", tr.Handle("bogus_verb"))
}

func TestEmptyLineIsInvalid(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT -1\n", tr.Handle(""))
	assert.Equal(t, "RPRT -1\n", tr.Handle("   "))
}

func TestSetFreqAcceptsFloatInput(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT 0\n", tr.Handle("set_freq 28074055.000000"))
	assert.Equal(t, "28074055\n", tr.Handle("get_freq"))
}

func TestSetFreqRejectsGarbage(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT -1\n", tr.Handle("set_freq not-a-number"))
}

func TestShortAndLongFormsAgree(t *testing.T) {
	tr := startTranslator(t)
	require.Equal(t, "RPRT 0\n", tr.Handle("F 14250000"))
	assert.Equal(t, tr.Handle("f"), tr.Handle("get_freq"))
}

func TestTrailingSemicolonStrippedFromSendCmd(t *testing.T) {
	tr := startTranslator(t)
	resp := tr.Handle("w FA014074000;")
	assert.Equal(t, "FA014074000;\n", resp)
}

func TestDumpStateHasExpectedShape(t *testing.T) {
	tr := startTranslator(t)
	out := tr.Handle(`\dump_state`)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "0", lines[0])
	assert.Equal(t, "1051", lines[1])
	assert.Equal(t, "0", lines[2])
	assert.Contains(t, out, "9999\n9999\n0\n")
}

func TestSplitVfoRoundTrip(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT 0\n", tr.Handle("set_split_vfo 1 VFOB"))
	assert.Equal(t, "1\nVFOB\n", tr.Handle("get_split_vfo"))
}

func TestPttRoundTrip(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "0\n", tr.Handle("get_ptt"))
	assert.Equal(t, "RPRT 0\n", tr.Handle("set_ptt 1"))
	assert.Equal(t, "1\n", tr.Handle("get_ptt"))
}

func TestTunerFuncIsNotAvailable(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT -11\n", tr.Handle("get_func TUNER"))
	assert.Equal(t, "RPRT -11\n", tr.Handle("set_func TUNER 1"))
}

func TestUnknownFuncIsInvalid(t *testing.T) {
	tr := startTranslator(t)
	assert.Equal(t, "RPRT -1\n", tr.Handle("get_func BOGUS"))
}
