// Command ftx1bridged exposes a Yaesu FTX-1 transceiver as a
// Hamlib-compatible rigctld TCP service plus a bidirectional audio
// bridge, bridging a serial CAT connection to network clients the way
// direwolf bridges a sound card to AGW/KISS network clients.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/w1cat/ftx1bridge/internal/aibus"
	"github.com/w1cat/ftx1bridge/internal/audiosrv"
	"github.com/w1cat/ftx1bridge/internal/catlink"
	"github.com/w1cat/ftx1bridge/internal/catpty"
	"github.com/w1cat/ftx1bridge/internal/config"
	"github.com/w1cat/ftx1bridge/internal/gpioptt"
	"github.com/w1cat/ftx1bridge/internal/hamlib"
	"github.com/w1cat/ftx1bridge/internal/mdns"
	"github.com/w1cat/ftx1bridge/internal/metrics"
	"github.com/w1cat/ftx1bridge/internal/radio"
	"github.com/w1cat/ftx1bridge/internal/rigctld"
	"github.com/w1cat/ftx1bridge/internal/statusws"
)

func main() {
	var (
		configFile    = pflag.StringP("config", "c", "", "YAML configuration file.")
		serialDevice  = pflag.StringP("serial", "s", "", "Serial device for the FTX-1 CAT connection.")
		baud          = pflag.IntP("baud", "b", 0, "CAT serial baud rate (4800-115200).")
		rigctlAddr    = pflag.String("rigctl-addr", "", "rigctld TCP listen address.")
		audioAddr     = pflag.String("audio-addr", "", "Audio bridge TCP listen address.")
		metricsAddr   = pflag.String("metrics-addr", "", "Prometheus /metrics listen address. Empty disables it.")
		statusWSAddr  = pflag.String("status-ws-addr", "", "Status websocket listen address. Empty disables it.")
		mdnsEnabled   = pflag.Bool("mdns", false, "Announce rigctld/audio services via mDNS/DNS-SD.")
		catPTYPath    = pflag.String("cat-pty", "", "Symlink path for a legacy CAT passthrough pseudo terminal. Empty disables it.")
		gpioChip      = pflag.String("gpio-chip", "", "GPIO chip (e.g. gpiochip0) for a PTT mirror line. Empty disables it.")
		gpioLine      = pflag.Int("gpio-line", -1, "GPIO line offset for the PTT mirror.")
		gpioActiveLow = pflag.Bool("gpio-active-low", false, "Drive the PTT mirror line active-low.")
		captureDevice = pflag.String("capture-device", "", "PortAudio capture device name. Empty uses the system default.")
		playbackDevice = pflag.String("playback-device", "", "PortAudio playback device name. Empty uses the system default.")
		verbose       = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
		help          = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Hamlib rigctld bridge and audio-over-TCP gateway for the Yaesu FTX-1\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nUsage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}
	applyFlagOverrides(&cfg, serialDevice, baud, rigctlAddr, audioAddr, metricsAddr, statusWSAddr,
		mdnsEnabled, catPTYPath, gpioChip, gpioLine, captureDevice, playbackDevice)
	if *verbose {
		cfg.Verbose = true
	}
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if cfg.BaudRate != 0 && !config.ValidBaud(cfg.BaudRate) {
		logger.Fatal("unsupported baud rate", "baud", cfg.BaudRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, err := catlink.Open(cfg.SerialDevice, cfg.BaudRate)
	if err != nil {
		logger.Fatal("opening serial port", "device", cfg.SerialDevice, "err", err)
	}

	reg := metrics.New("ftx1bridge")

	link := catlink.New(port, logger.With("component", "catlink"))
	link.SetCommandHook(func(code string) { reg.CatCommandsTotal.WithLabelValues(code).Inc() })
	link.SetErrorHook(func(kind string) { reg.CatErrorsTotal.WithLabelValues(kind).Inc() })
	ai := aibus.New()
	link.SubscribeAI(ai.HandleFrame)

	linkErrCh := make(chan error, 1)
	go func() { linkErrCh <- link.Run(ctx) }()

	model := radio.New(link, logger.With("component", "radio"))
	model.Mu.Lock()
	err = model.Detect()
	model.Mu.Unlock()
	if err != nil {
		logger.Fatal("detecting radio head type", "err", err)
	}
	logger.Info("radio detected", "head", model.Head.String())

	status := statusws.New(logger.With("component", "statusws"))

	var gpioMirror *gpioptt.Mirror
	if cfg.GPIOChip != "" && cfg.GPIOLine >= 0 {
		gpioMirror, err = gpioptt.Open(cfg.GPIOChip, cfg.GPIOLine, *gpioActiveLow, logger.With("component", "gpioptt"))
		if err != nil {
			logger.Error("opening gpio ptt mirror", "err", err)
		} else {
			defer gpioMirror.Close()
		}
	}
	model.OnPTTChange(func(active bool) {
		reg.PTTActive.Set(boolToFloat(active))
		if gpioMirror != nil {
			if err := gpioMirror.Set(active); err != nil {
				logger.Warn("gpio ptt mirror", "err", err)
			}
		}
	})

	translator := hamlib.New(model)
	rigSrv := rigctld.New(cfg.RigctlAddr, translator, ai, logger.With("component", "rigctld"))

	devices, err := audiosrv.OpenDevices(cfg.CaptureDevice, cfg.PlaybackDevice)
	if err != nil {
		logger.Error("opening audio devices, audio bridge will reject clients", "err", err)
		devices = nil
	} else {
		defer devices.Close()
	}
	audioSrv := audiosrv.New(cfg.AudioAddr, devices, logger.With("component", "audiosrv"))

	var announcer *mdns.Announcer
	if cfg.MDNSEnabled {
		announcer, err = mdns.New(logger.With("component", "mdns"))
		if err != nil {
			logger.Error("starting mdns responder", "err", err)
		}
	}

	var ptyBridge *catpty.Bridge
	if cfg.CatPTYPath != "" {
		ptyBridge, err = catpty.Open(link, ai, cfg.CatPTYPath, logger.With("component", "catpty"))
		if err != nil {
			logger.Error("opening cat pty", "err", err)
		} else {
			defer ptyBridge.Close()
			go func() {
				if err := ptyBridge.Run(); err != nil {
					logger.Warn("cat pty stopped", "err", err)
				}
			}()
		}
	}

	go func() {
		if err := rigSrv.Run(ctx); err != nil {
			logger.Error("rigctld server stopped", "err", err)
		}
	}()
	go func() {
		if err := audioSrv.Run(ctx); err != nil {
			logger.Error("audio server stopped", "err", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		go func() { <-ctx.Done(); srv.Close() }()
	}

	if cfg.StatusWSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/status", status)
		srv := &http.Server{Addr: cfg.StatusWSAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status websocket server stopped", "err", err)
			}
		}()
		go func() { <-ctx.Done(); srv.Close() }()
	}

	if announcer != nil {
		if cfg.RigctlAddr != "" {
			announceErr := announcer.AnnounceRigctl("FTX-1 Bridge", portFromAddr(cfg.RigctlAddr))
			if announceErr != nil {
				logger.Error("mdns announce rigctl", "err", announceErr)
			}
		}
		if cfg.AudioAddr != "" {
			announceErr := announcer.AnnounceAudio("FTX-1 Bridge Audio", portFromAddr(cfg.AudioAddr))
			if announceErr != nil {
				logger.Error("mdns announce audio", "err", announceErr)
			}
		}
		go func() {
			if err := announcer.Run(ctx); err != nil {
				logger.Error("mdns responder stopped", "err", err)
			}
		}()
	}

	go publishStatusLoop(ctx, status, model, rigSrv, audioSrv, reg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutting down")
	case err := <-linkErrCh:
		logger.Error("cat link terminated", "err", err)
	}
	cancel()
	link.Close()
	time.Sleep(200 * time.Millisecond)
}

func applyFlagOverrides(
	cfg *config.Config,
	serialDevice *string, baud *int, rigctlAddr, audioAddr, metricsAddr, statusWSAddr *string,
	mdnsEnabled *bool, catPTYPath, gpioChip *string, gpioLine *int,
	captureDevice, playbackDevice *string,
) {
	if *serialDevice != "" {
		cfg.SerialDevice = *serialDevice
	}
	if *baud != 0 {
		cfg.BaudRate = *baud
	}
	if *rigctlAddr != "" {
		cfg.RigctlAddr = *rigctlAddr
	}
	if *audioAddr != "" {
		cfg.AudioAddr = *audioAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *statusWSAddr != "" {
		cfg.StatusWSAddr = *statusWSAddr
	}
	if *mdnsEnabled {
		cfg.MDNSEnabled = true
	}
	if *catPTYPath != "" {
		cfg.CatPTYPath = *catPTYPath
	}
	if *gpioChip != "" {
		cfg.GPIOChip = *gpioChip
	}
	if *gpioLine >= 0 {
		cfg.GPIOLine = *gpioLine
	}
	if *captureDevice != "" {
		cfg.CaptureDevice = *captureDevice
	}
	if *playbackDevice != "" {
		cfg.PlaybackDevice = *playbackDevice
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// portFromAddr extracts the numeric port from a ":NNNN" or "host:NNNN"
// listen address, for mDNS service registration.
func portFromAddr(addr string) int {
	var port int
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			fmt.Sscanf(addr[i+1:], "%d", &port)
			break
		}
	}
	return port
}

func publishStatusLoop(ctx context.Context, status *statusws.Hub, model *radio.Model, rigSrv *rigctld.Server, audioSrv *audiosrv.Server, reg *metrics.Registry) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			model.Mu.Lock()
			vfoA, _ := model.GetFreq(radio.VFOA)
			vfoB, _ := model.GetFreq(radio.VFOB)
			mode, _, _ := model.GetMode(model.ActiveVFO())
			ptt := model.PTT()
			split, _ := model.Split()
			head := model.Head.String()
			model.Mu.Unlock()

			audioStats, audioConnected := audioSrv.Snapshot()
			var latencyMs int64
			if audioConnected {
				latencyMs = audioStats.MeasuredLatencyMs
			}

			reg.FrequencyHz.WithLabelValues("A").Set(float64(vfoA))
			reg.FrequencyHz.WithLabelValues("B").Set(float64(vfoB))
			reg.RigctlSessions.Set(float64(rigSrv.SessionCount()))
			reg.AudioConnected.Set(boolToFloat(audioConnected))
			reg.AudioLatencyMs.Set(float64(latencyMs))

			status.Publish(statusws.Status{
				Head:           head,
				VFOA:           vfoA,
				VFOB:           vfoB,
				Mode:           string(mode),
				PTT:            ptt,
				Split:          split,
				RigctlSessions: rigSrv.SessionCount(),
				AudioConnected: audioConnected,
				AudioLatencyMs: latencyMs,
			})
		}
	}
}
