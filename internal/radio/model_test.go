package radio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w1cat/ftx1bridge/internal/catlink"
)

// scriptedRadio is a tiny in-memory radio emulator: it answers CAT
// commands according to a caller-supplied function, standing in for
// a scripted mock CatLink for deterministic RadioModel tests.
type scriptedRadio struct {
	mu      sync.Mutex
	inbox   chan byte
	respond func(code, payload string) (reply string, noReply bool)
}

func newScriptedRadio(respond func(code, payload string) (string, bool)) *scriptedRadio {
	return &scriptedRadio{inbox: make(chan byte, 4096), respond: respond}
}

type radioClosedErr struct{}

func (radioClosedErr) Error() string { return "scripted radio closed" }

var errPortClosed = radioClosedErr{}

func (r *scriptedRadio) ReadByte() (byte, error) {
	b, ok := <-r.inbox
	if !ok {
		return 0, errPortClosed
	}
	return b, nil
}

func (r *scriptedRadio) Write(p []byte) (int, error) {
	text := strings.TrimSuffix(string(p), ";")
	code, payload := text, ""
	if len(text) >= 2 {
		code, payload = text[:2], text[2:]
	}
	reply, noReply := r.respond(code, payload)
	if !noReply {
		go func(reply string) {
			for _, b := range []byte(reply + ";") {
				r.inbox <- b
			}
		}(reply)
	}
	return len(p), nil
}

func (r *scriptedRadio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.inbox)
	return nil
}

func startModel(t *testing.T, respond func(code, payload string) (string, bool)) *Model {
	t.Helper()
	port := newScriptedRadio(respond)
	link := catlink.New(port, nil)
	link.SetResponseTimeout(200 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go link.Run(ctx)
	return New(link, nil)
}

func TestDetectFieldBattery(t *testing.T) {
	power := "005.0"
	m := startModel(t, func(code, payload string) (string, bool) {
		switch code {
		case "ID":
			return "ID" + radioIDResponse, false
		case "PC":
			if payload == "" {
				return "PC1" + power, false
			}
			if payload == "10.8" {
				return "?", false // rejected: battery can't do 8W
			}
			power = payload
			return "PC" + payload, false
		}
		return "", true
	})

	require.NoError(t, m.Detect())
	assert.Equal(t, HeadFieldBattery, m.Head)
}

func TestDetectField12V(t *testing.T) {
	power := "005.0"
	m := startModel(t, func(code, payload string) (string, bool) {
		switch code {
		case "ID":
			return "ID" + radioIDResponse, false
		case "PC":
			if payload == "" {
				return "PC1" + power, false
			}
			power = payload
			return "PC" + payload, false
		}
		return "", true
	})

	require.NoError(t, m.Detect())
	assert.Equal(t, HeadField12V, m.Head)
}

func TestDetectOptima(t *testing.T) {
	m := startModel(t, func(code, payload string) (string, bool) {
		switch code {
		case "ID":
			return "ID" + radioIDResponse, false
		case "PC":
			return "PC2050", false
		}
		return "", true
	})

	require.NoError(t, m.Detect())
	assert.Equal(t, HeadOptima, m.Head)
}

func TestSetGetFreqRoundTrip(t *testing.T) {
	var stored uint64 = 14074000
	m := startModel(t, func(code, payload string) (string, bool) {
		if code == "FA" {
			if payload != "" {
				var err error
				stored, err = parseUint9(payload)
				require.NoError(t, err)
			}
			return "FA" + fmt9(stored), false // set commands are echoed back unmodified
		}
		return "", true
	})

	require.NoError(t, m.SetFreq(VFOA, 28074055))
	got, err := m.GetFreq(VFOA)
	require.NoError(t, err)
	assert.Equal(t, uint64(28074055), got)
}

func TestSetGetModeRoundTrip(t *testing.T) {
	var stored CatModeChar = "2"
	m := startModel(t, func(code, payload string) (string, bool) {
		if code == "MD" {
			if len(payload) == 1 {
				return "MD0" + string(stored), false
			}
			stored = CatModeChar(payload[len(payload)-1:])
			return "MD" + payload, false // set commands are echoed back
		}
		return "", true
	})

	require.NoError(t, m.SetMode(VFOA, HamlibUSB, 0))
	mode, pb, err := m.GetMode(VFOA)
	require.NoError(t, err)
	assert.Equal(t, HamlibUSB, mode)
	assert.Equal(t, 0, pb)
}

func TestModeTableIsBijective(t *testing.T) {
	seen := map[HamlibMode]CatModeChar{}
	for c, mode := range modeToHamlib {
		if prev, ok := seen[mode]; ok {
			t.Fatalf("mode %s mapped from both %s and %s", mode, prev, c)
		}
		seen[mode] = c
		back, ok := CatCharForMode(mode)
		require.True(t, ok)
		assert.Equal(t, c, back)
	}
}

func fmt9(v uint64) string {
	return fmt.Sprintf("%09d", v)
}

func parseUint9(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}
