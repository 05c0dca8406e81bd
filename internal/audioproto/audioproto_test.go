package audioproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Type: FrameAudioRX, Payload: bytes.Repeat([]byte{0x42}, 1920)}
	wire := Encode(f)

	got, err := ReadFrame(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestReadFrameDetectsCRCMismatch(t *testing.T) {
	f := Frame{Type: FrameHeartbeat, Payload: nil}
	wire := Encode(f)
	wire[len(wire)-1] ^= 0xFF // corrupt CRC

	_, err := ReadFrame(bytes.NewReader(wire))
	assert.ErrorIs(t, err, ErrCRCMismatch)
}

func TestControlMessageRoundTrip(t *testing.T) {
	cases := []ControlMessage{
		{Kind: ConnectRequest},
		{Kind: ConnectAccept},
		{Kind: ConnectReject, Reason: RejectBusy},
		{Kind: AudioConfig, SampleRateHz: 48000, BitsPerSamp: 16, Channels: 1, FrameMs: 20},
		{Kind: Disconnect},
		{Kind: LatencyProbe, ProbeID: 7, SentAtMs: 123456789},
		{Kind: LatencyResponse, ProbeID: 7, SentAtMs: 123456789},
		{Kind: ControlError, ErrorText: "devices unconfigured"},
	}
	for _, c := range cases {
		encoded := EncodeControl(c)
		decoded, err := DecodeControl(encoded)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeControlRejectsEmptyPayload(t *testing.T) {
	_, err := DecodeControl(nil)
	assert.Error(t, err)
}
