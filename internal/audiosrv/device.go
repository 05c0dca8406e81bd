// Package audiosrv is the streaming audio bridge between the radio's
// capture/playback hardware and one remote TCP client: the framed
// session state machine, heartbeat/timeout handling, and the capture,
// receive, playback, and stats tasks that drive it.
package audiosrv

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRateHz  = 48000
	BitsPerSample = 16
	Channels      = 1
	FrameMs       = 20
	FrameSamples  = SampleRateHz * FrameMs / 1000 // 960
	FrameBytes    = FrameSamples * 2               // 1920, 16-bit mono
)

// Devices owns the capture (radio RX → client) and playback (client →
// radio TX) PortAudio streams for the process lifetime of one running
// bridge; AudioSession borrows them for the duration of a session.
type Devices struct {
	captureDeviceIdx  int
	playbackDeviceIdx int

	capture  *portaudio.Stream
	captureBuf [FrameSamples]int16

	playback  *portaudio.Stream
	playbackBuf [FrameSamples]int16

	configured bool
}

// OpenDevices initializes PortAudio and opens the capture/playback
// streams named by captureDevice/playbackDevice (empty string = system
// default). Call Close on shutdown.
func OpenDevices(captureDevice, playbackDevice string) (*Devices, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiosrv: portaudio init: %w", err)
	}

	d := &Devices{}

	capDev, err := resolveDevice(captureDevice, true)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	playDev, err := resolveDevice(playbackDevice, false)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	capParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   capDev,
			Channels: Channels,
			Latency:  capDev.DefaultLowInputLatency,
		},
		SampleRate:      SampleRateHz,
		FramesPerBuffer: FrameSamples,
	}
	d.capture, err = portaudio.OpenStream(capParams, &d.captureBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiosrv: open capture stream: %w", err)
	}

	playParams := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   playDev,
			Channels: Channels,
			Latency:  playDev.DefaultLowOutputLatency,
		},
		SampleRate:      SampleRateHz,
		FramesPerBuffer: FrameSamples,
	}
	d.playback, err = portaudio.OpenStream(playParams, &d.playbackBuf)
	if err != nil {
		d.capture.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audiosrv: open playback stream: %w", err)
	}

	d.configured = true
	return d, nil
}

func resolveDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audiosrv: enumerate devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audiosrv: device %q not found", name)
}

// Configured reports whether both devices were opened successfully.
// The session state machine checks this before leaving INIT.
func (d *Devices) Configured() bool { return d != nil && d.configured }

// Start begins streaming on both devices.
func (d *Devices) Start() error {
	if err := d.capture.Start(); err != nil {
		return fmt.Errorf("audiosrv: start capture: %w", err)
	}
	if err := d.playback.Start(); err != nil {
		d.capture.Stop()
		return fmt.Errorf("audiosrv: start playback: %w", err)
	}
	return nil
}

// Stop halts both streams without closing them, so the next session
// can reuse the device handles.
func (d *Devices) Stop() {
	d.capture.Stop()
	d.playback.Stop()
}

// ReadFrame blocks for one 20ms frame of captured audio and returns it
// as little-endian PCM16 bytes.
func (d *Devices) ReadFrame() ([]byte, error) {
	if err := d.capture.Read(); err != nil {
		return nil, err
	}
	return int16ToLE(d.captureBuf[:]), nil
}

// WriteFrame plays one 20ms frame of little-endian PCM16 bytes.
func (d *Devices) WriteFrame(pcm []byte) error {
	leToInt16(pcm, d.playbackBuf[:])
	return d.playback.Write()
}

// Close stops and releases both streams and terminates PortAudio.
func (d *Devices) Close() error {
	if d == nil {
		return nil
	}
	if d.capture != nil {
		d.capture.Close()
	}
	if d.playback != nil {
		d.playback.Close()
	}
	return portaudio.Terminate()
}

func int16ToLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

func leToInt16(pcm []byte, out []int16) {
	n := len(pcm) / 2
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}
