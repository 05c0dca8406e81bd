package audioproto

import (
	"encoding/binary"
	"fmt"
)

// ControlKind tags a ControlMessage's sub-type, carried inside a
// FrameControl frame's payload.
type ControlKind byte

const (
	ConnectRequest ControlKind = iota + 1
	ConnectAccept
	ConnectReject
	AudioConfig
	Disconnect
	LatencyProbe
	LatencyResponse
	ControlError
)

// RejectReason qualifies a ConnectReject message.
type RejectReason byte

const (
	RejectBusy RejectReason = iota + 1
	RejectRejected
)

func (r RejectReason) String() string {
	if r == RejectBusy {
		return "BUSY"
	}
	return "REJECTED"
}

// ControlMessage is the decoded payload of a FrameControl frame.
type ControlMessage struct {
	Kind ControlKind

	Reason RejectReason // ConnectReject

	SampleRateHz int // AudioConfig
	BitsPerSamp  int // AudioConfig
	Channels     int // AudioConfig
	FrameMs      int // AudioConfig

	ProbeID   uint32 // LatencyProbe / LatencyResponse
	SentAtMs  uint64 // LatencyProbe / LatencyResponse

	ErrorText string // ControlError
}

// EncodeControl serializes a ControlMessage to bytes suitable as a
// FrameControl payload.
func EncodeControl(m ControlMessage) []byte {
	switch m.Kind {
	case ConnectRequest, Disconnect:
		return []byte{byte(m.Kind)}
	case ConnectAccept:
		return []byte{byte(m.Kind)}
	case ConnectReject:
		return []byte{byte(m.Kind), byte(m.Reason)}
	case AudioConfig:
		buf := make([]byte, 1+4*4)
		buf[0] = byte(m.Kind)
		binary.BigEndian.PutUint32(buf[1:5], uint32(m.SampleRateHz))
		binary.BigEndian.PutUint32(buf[5:9], uint32(m.BitsPerSamp))
		binary.BigEndian.PutUint32(buf[9:13], uint32(m.Channels))
		binary.BigEndian.PutUint32(buf[13:17], uint32(m.FrameMs))
		return buf
	case LatencyProbe, LatencyResponse:
		buf := make([]byte, 1+4+8)
		buf[0] = byte(m.Kind)
		binary.BigEndian.PutUint32(buf[1:5], m.ProbeID)
		binary.BigEndian.PutUint64(buf[5:13], m.SentAtMs)
		return buf
	case ControlError:
		return append([]byte{byte(m.Kind)}, []byte(m.ErrorText)...)
	default:
		return []byte{byte(m.Kind)}
	}
}

// DecodeControl parses a FrameControl payload.
func DecodeControl(payload []byte) (ControlMessage, error) {
	if len(payload) < 1 {
		return ControlMessage{}, fmt.Errorf("audioproto: empty control payload")
	}
	kind := ControlKind(payload[0])
	m := ControlMessage{Kind: kind}

	switch kind {
	case ConnectRequest, ConnectAccept, Disconnect:
		// no body
	case ConnectReject:
		if len(payload) < 2 {
			return ControlMessage{}, fmt.Errorf("audioproto: short CONNECT_REJECT")
		}
		m.Reason = RejectReason(payload[1])
	case AudioConfig:
		if len(payload) < 17 {
			return ControlMessage{}, fmt.Errorf("audioproto: short AUDIO_CONFIG")
		}
		m.SampleRateHz = int(binary.BigEndian.Uint32(payload[1:5]))
		m.BitsPerSamp = int(binary.BigEndian.Uint32(payload[5:9]))
		m.Channels = int(binary.BigEndian.Uint32(payload[9:13]))
		m.FrameMs = int(binary.BigEndian.Uint32(payload[13:17]))
	case LatencyProbe, LatencyResponse:
		if len(payload) < 13 {
			return ControlMessage{}, fmt.Errorf("audioproto: short latency message")
		}
		m.ProbeID = binary.BigEndian.Uint32(payload[1:5])
		m.SentAtMs = binary.BigEndian.Uint64(payload[5:13])
	case ControlError:
		m.ErrorText = string(payload[1:])
	default:
		return ControlMessage{}, fmt.Errorf("audioproto: unknown control kind %d", kind)
	}
	return m, nil
}
