// Package config loads the bridge's YAML configuration file and layers
// CLI flag overrides on top of it, the way deviceid.go reads its YAML
// vendor table and appserver.go reads pflag-defined CLI flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is every externally tunable setting this bridge accepts.
// Zero values mean "not set in the file"; CLI flags override
// non-default values after loading.
type Config struct {
	SerialDevice   string `yaml:"serial_device"`
	BaudRate       int    `yaml:"baud_rate"`
	RigctlAddr     string `yaml:"rigctl_addr"`
	AudioAddr      string `yaml:"audio_addr"`
	MetricsAddr    string `yaml:"metrics_addr"`
	StatusWSAddr   string `yaml:"status_ws_addr"`
	MDNSEnabled    bool   `yaml:"mdns_enabled"`
	CatPTYPath     string `yaml:"cat_pty_path"`
	GPIOChip       string `yaml:"gpio_chip"`
	GPIOLine       int    `yaml:"gpio_line"`
	CaptureDevice  string `yaml:"capture_device"`
	PlaybackDevice string `yaml:"playback_device"`
	Verbose        bool   `yaml:"verbose"`
}

// Default returns the built-in defaults, matching the CLI surface's
// documented defaults.
func Default() Config {
	return Config{
		SerialDevice: "/dev/ttyUSB0",
		BaudRate:     38400,
		RigctlAddr:   ":4532",
		AudioAddr:    ":4533",
		MetricsAddr:  "",
		StatusWSAddr: "",
	}
}

// Load reads and parses a YAML config file, starting from Default()
// so any field the file omits keeps its built-in value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SupportedBauds are the baud rates this bridge's serial transport accepts.
var SupportedBauds = []int{4800, 9600, 19200, 38400, 57600, 115200}

// ValidBaud reports whether baud is one of SupportedBauds.
func ValidBaud(baud int) bool {
	for _, b := range SupportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}
