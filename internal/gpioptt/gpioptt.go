// Package gpioptt mirrors the FTX-1's CAT-reported PTT state onto a GPIO
// line, for external amplifiers or sequencers that key off a hardware
// signal rather than CAT, using the modern character-device GPIO
// interface (warthog618/go-gpiocdev) instead of the legacy sysfs
// interface direwolf's own PTT driver bit-bangs by hand.
package gpioptt

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// Mirror drives one GPIO output line high while PTT is active and low
// otherwise.
type Mirror struct {
	logger   *log.Logger
	line     *gpiocdev.Line
	activeLo bool
}

// Open requests line offset on chip (e.g. "gpiochip0") as an output,
// initially deasserted. activeLow inverts the drive sense, for
// sequencers that expect PTT-asserted as a logic low.
func Open(chip string, offset int, activeLow bool, logger *log.Logger) (*Mirror, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("gpioptt: request %s:%d: %w", chip, offset, err)
	}

	logger.Info("gpio ptt mirror ready", "chip", chip, "line", offset, "active_low", activeLow)
	return &Mirror{logger: logger, line: line, activeLo: activeLow}, nil
}

// Set drives the line to reflect the given PTT state.
func (m *Mirror) Set(active bool) error {
	val := 0
	if active {
		val = 1
	}
	if err := m.line.SetValue(val); err != nil {
		return fmt.Errorf("gpioptt: set value: %w", err)
	}
	return nil
}

// Close releases the GPIO line, deasserting it first.
func (m *Mirror) Close() error {
	m.line.SetValue(0)
	return m.line.Close()
}
