package hamlib

import (
	"fmt"
	"strconv"

	"github.com/w1cat/ftx1bridge/internal/radio"
)

// readLevel and writeLevel bridge the rigctl level taxonomy (radio
// package's LevelKind) onto the concrete RadioModel calls that back
// each one, returning ErrNotAvailable for levels this CAT dialect has
// no read or write path for.
func readLevel(t *Translator, kind radio.LevelKind) (string, error) {
	m := t.model
	switch kind {
	case radio.LevelRFPower:
		w, err := m.PowerWatts()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.3f", normalizePower(m.Head, w)), nil
	case radio.LevelStrength:
		n, err := m.SMeter(currentVFO(t))
		if err != nil {
			return "", err
		}
		return strconv.Itoa(s2DB(n)), nil
	case radio.LevelSWR:
		n, err := m.ReadMeter(radio.MeterSWR)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.1f", float64(n)/10), nil
	case radio.LevelALC:
		n, err := m.ReadMeter(radio.MeterALC)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.2f", float64(n)/100), nil
	case radio.LevelComp:
		n, err := m.ReadMeter(radio.MeterComp)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.1f", float64(n)/10), nil
	case radio.LevelAGC:
		n, err := m.GetAGC(currentVFO(t))
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	default:
		return "", ErrNotAvailable
	}
}

func writeLevel(t *Translator, kind radio.LevelKind, raw string) error {
	m := t.model
	switch kind {
	case radio.LevelRFPower:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ErrInvalidArgument
		}
		return m.SetPowerWatts(denormalizePower(m.Head, f))
	case radio.LevelAGC:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return ErrInvalidArgument
		}
		return m.SetAGC(currentVFO(t), n)
	default:
		return ErrNotAvailable
	}
}

// normalizePower/denormalizePower map between the rigctl [0.0,1.0]
// RFPOWER convention and the head's actual watt range.
func normalizePower(head radio.HeadType, w float64) float64 {
	lo, hi := head.MinPowerWatts(), head.MaxPowerWatts()
	if hi <= lo {
		return 0
	}
	v := (w - lo) / (hi - lo)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

func denormalizePower(head radio.HeadType, v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	lo, hi := head.MinPowerWatts(), head.MaxPowerWatts()
	return lo + v*(hi-lo)
}

// s2DB converts a raw 0-255 S-meter reading to the dB-over-S9 value
// rigctl's STRENGTH level expects, using the S0=-54dB/6dB-per-S-unit
// convention; values above S9 are reported over S9.
func s2DB(raw int) int {
	const fullScale = 255
	const s9 = 174 // roughly S9 on the FTX-1's raw meter scale
	if raw <= 0 {
		return -54
	}
	if raw >= fullScale {
		raw = fullScale
	}
	db := (raw - s9) / 3
	if db < -54 {
		db = -54
	}
	return db
}
