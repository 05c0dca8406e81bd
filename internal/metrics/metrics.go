// Package metrics exposes rig and audio-session counters as Prometheus
// gauges/counters, for operators who want this bridge in an existing
// monitoring stack rather than the status websocket.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every metric this bridge publishes, collected lazily by
// Set/Inc calls from the components that produce them.
type Registry struct {
	reg *prometheus.Registry

	RigctlSessions   prometheus.Gauge
	PTTActive        prometheus.Gauge
	FrequencyHz      *prometheus.GaugeVec
	AudioConnected   prometheus.Gauge
	AudioLatencyMs   prometheus.Gauge
	AudioUnderruns   prometheus.Counter
	AudioOverruns    prometheus.Counter
	AudioCRCErrors   prometheus.Counter
	CatCommandsTotal *prometheus.CounterVec
	CatErrorsTotal   *prometheus.CounterVec
}

// New builds and registers every metric under the given namespace.
func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		RigctlSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rigctl_sessions", Help: "Currently connected rigctl clients.",
		}),
		PTTActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ptt_active", Help: "1 if the transmitter is keyed.",
		}),
		FrequencyHz: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "frequency_hz", Help: "Current VFO frequency in Hz.",
		}, []string{"vfo"}),
		AudioConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "audio_connected", Help: "1 if an audio client is connected.",
		}),
		AudioLatencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "audio_latency_ms", Help: "Last measured round-trip audio latency.",
		}),
		AudioUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_underruns_total", Help: "Playback ring buffer underrun events.",
		}),
		AudioOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_overruns_total", Help: "Playback ring buffer overrun events.",
		}),
		AudioCRCErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audio_crc_errors_total", Help: "Audio frames dropped for CRC mismatch.",
		}),
		CatCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cat_commands_total", Help: "CAT commands sent, by command code.",
		}, []string{"code"}),
		CatErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cat_errors_total", Help: "CAT command errors, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		r.RigctlSessions, r.PTTActive, r.FrequencyHz, r.AudioConnected,
		r.AudioLatencyMs, r.AudioUnderruns, r.AudioOverruns, r.AudioCRCErrors,
		r.CatCommandsTotal, r.CatErrorsTotal,
	)
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
