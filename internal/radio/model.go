// Package radio is the typed facade over CatLink: frequency/mode/PTT/
// split/level/function/RIT-XIT/CTCSS-DCS/memory/meter operations, plus
// the once-at-connect head-type and power-source detection the FTX-1
// needs before levels can be scaled correctly.
package radio

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/w1cat/ftx1bridge/internal/catlink"
)

// VFO identifies one of the radio's two variable frequency oscillators.
type VFO int

const (
	VFOA VFO = iota
	VFOB
)

func (v VFO) String() string {
	if v == VFOB {
		return "VFOB"
	}
	return "VFOA"
}

// HeadType is the physical FTX-1 head configuration, detected once at
// connect.
type HeadType int

const (
	HeadUnknown HeadType = iota
	HeadFieldBattery
	HeadField12V
	HeadOptima
)

func (h HeadType) String() string {
	switch h {
	case HeadFieldBattery:
		return "Field/battery"
	case HeadField12V:
		return "Field/12V"
	case HeadOptima:
		return "Optima/SPA-1"
	default:
		return "unknown"
	}
}

// MaxPowerWatts is the transmit power ceiling for each detected head
// type, per the probe outcome.
func (h HeadType) MaxPowerWatts() float64 {
	switch h {
	case HeadFieldBattery:
		return 6
	case HeadField12V:
		return 10
	case HeadOptima:
		return 100
	default:
		return 100
	}
}

// MinPowerWatts is the floor of the supported power range.
func (h HeadType) MinPowerWatts() float64 {
	if h == HeadOptima {
		return 5
	}
	return 0.5
}

const radioIDResponse = "0840"

// AGC levels, in the order the radio documents them: auto/fast/mid/slow/off.
const (
	AGCAuto = iota
	AGCFast
	AGCMid
	AGCSlow
	AGCOff
)

// RIT/XIT and IF-shift limits, echoed into dump_state.
const (
	RITXITLimitHz = 9999
	IFShiftLimit  = 0
)

// Model is the owner of one radio session: it caches the rig's observed
// state and serializes all mutation through Mu, since the CAT link only
// tolerates one in-flight command at a time. Hamlib verb handlers
// acquire Mu for the duration of their radio calls.
type Model struct {
	Mu sync.Mutex

	link   *catlink.Link
	logger *log.Logger

	Head         HeadType
	FirmwareRev  string
	activeVFO    VFO
	freq         map[VFO]uint64
	mode         map[VFO]HamlibMode
	passband     map[VFO]int
	pttOn        bool
	splitOn      bool
	ritHz        int
	xitHz        int
	lastPowerW   float64
	memChannel   int

	onPTTChange func(active bool)
}

// OnPTTChange registers a callback invoked after every successful PTT
// transition, for mirroring CAT-reported PTT onto an external signal
// (e.g. a GPIO line for a sequencer or amplifier).
func (m *Model) OnPTTChange(fn func(active bool)) {
	m.onPTTChange = fn
}

// New wraps an already-running CatLink. Detect must be called once
// before the model is used for anything beyond raw passthrough.
func New(link *catlink.Link, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.Default()
	}
	return &Model{
		link:     link,
		logger:   logger,
		freq:     map[VFO]uint64{},
		mode:     map[VFO]HamlibMode{},
		passband: map[VFO]int{},
	}
}

// Detect probes the attached head type and power source by reading the
// radio's ID and PC responses. It must be called once, holding Mu,
// before other operations.
func (m *Model) Detect() error {
	idFrame, err := m.link.SendCommand("ID", "")
	if err != nil {
		return fmt.Errorf("radio: ID probe: %w", err)
	}
	if idFrame != nil && idFrame.Payload != radioIDResponse {
		m.logger.Warn("unexpected radio id", "id", idFrame.Payload)
	}

	pcFrame, err := m.link.SendCommand("PC", "")
	if err != nil {
		return fmt.Errorf("radio: PC probe: %w", err)
	}
	if pcFrame == nil || len(pcFrame.Payload) == 0 {
		return fmt.Errorf("radio: PC probe returned no payload")
	}

	// The PC query response's leading digit is the head-type marker;
	// the remaining characters are the currently configured power level.
	switch pcFrame.Payload[0] {
	case '2':
		m.Head = HeadOptima
		return nil
	case '1':
		// Field head: probe power source (battery vs. 12V external).
	default:
		m.logger.Warn("unrecognized head digit", "digit", string(pcFrame.Payload[0]))
		m.Head = HeadOptima
		return nil
	}

	origWatts, err := parsePowerPayload(pcFrame.Payload[1:])
	if err != nil {
		return fmt.Errorf("radio: parse PC payload %q: %w", pcFrame.Payload, err)
	}

	_, probeErr := m.link.SendCommand("PC", "10.8")
	// Restore original power regardless of the probe's outcome.
	defer func() {
		if _, err := m.link.SendCommand("PC", formatFieldWatts(origWatts)); err != nil {
			m.logger.Warn("failed to restore power after head probe", "err", err)
		}
	}()

	if kind, isErr := catlink.KindOf(probeErr); isErr && kind == catlink.KindProtocol {
		m.Head = HeadFieldBattery
	} else if probeErr != nil {
		return fmt.Errorf("radio: power probe: %w", probeErr)
	} else {
		m.Head = HeadField12V
	}
	return nil
}

func parsePowerPayload(payload string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(payload), 64)
}

func formatFieldWatts(w float64) string {
	return strconv.FormatFloat(w, 'f', 1, 64)
}

// --- Frequency ---------------------------------------------------------

func vfoFreqCode(v VFO) string {
	if v == VFOB {
		return "FB"
	}
	return "FA"
}

// GetFreq returns the cached-then-confirmed frequency in Hz for vfo.
func (m *Model) GetFreq(v VFO) (uint64, error) {
	frame, err := m.link.SendCommand(vfoFreqCode(v), "")
	if err != nil {
		return 0, err
	}
	hz, err := strconv.ParseUint(strings.TrimSpace(frame.Payload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("radio: parse frequency %q: %w", frame.Payload, err)
	}
	m.freq[v] = hz
	return hz, nil
}

// SetFreq sets vfo to hz, formatted as the CAT protocol's 9-digit wire value.
func (m *Model) SetFreq(v VFO, hz uint64) error {
	_, err := m.link.SendCommand(vfoFreqCode(v), fmt.Sprintf("%09d", hz))
	if err != nil {
		return err
	}
	m.freq[v] = hz
	return nil
}

// --- Mode ---------------------------------------------------------------

func vfoModeSelector(v VFO) string {
	if v == VFOB {
		return "1"
	}
	return "0"
}

// GetMode returns the current mode and passband (0 = radio default) for vfo.
func (m *Model) GetMode(v VFO) (HamlibMode, int, error) {
	frame, err := m.link.SendCommand("MD", vfoModeSelector(v))
	if err != nil {
		return "", 0, err
	}
	if len(frame.Payload) == 0 {
		return "", 0, fmt.Errorf("radio: empty mode payload")
	}
	catChar := CatModeChar(frame.Payload[len(frame.Payload)-1:])
	mode, ok := ModeForCatChar(catChar)
	if !ok {
		return "", 0, fmt.Errorf("radio: unknown mode char %q", catChar)
	}
	m.mode[v] = mode
	pb := m.passband[v]
	return mode, pb, nil
}

// SetMode sets vfo to mode with the given passband (0 = radio default).
func (m *Model) SetMode(v VFO, mode HamlibMode, passbandHz int) error {
	catChar, ok := CatCharForMode(mode)
	if !ok {
		return fmt.Errorf("radio: unsupported mode %q", mode)
	}
	_, err := m.link.SendCommand("MD", vfoModeSelector(v)+string(catChar))
	if err != nil {
		return err
	}
	m.mode[v] = mode
	m.passband[v] = passbandHz
	return nil
}

// --- VFO select / split / PTT -------------------------------------------

// ActiveVFO returns the locally cached active VFO.
func (m *Model) ActiveVFO() VFO { return m.activeVFO }

// SetActiveVFO switches the radio's active VFO via VS.
func (m *Model) SetActiveVFO(v VFO) error {
	sel := "0"
	if v == VFOB {
		sel = "1"
	}
	if _, err := m.link.SendCommand("VS", sel); err != nil {
		return err
	}
	m.activeVFO = v
	return nil
}

// SetSplit enables or disables split operation via ST.
func (m *Model) SetSplit(on bool) error {
	sel := "0"
	if on {
		sel = "1"
	}
	if _, err := m.link.SendCommand("ST", sel); err != nil {
		return err
	}
	m.splitOn = on
	return nil
}

// Split reports the cached split state and the fixed TX VFO (VFO-B, per
// the rigctld handler's "1\nVFOB\n" response shape).
func (m *Model) Split() (bool, VFO) { return m.splitOn, VFOB }

// SetPTT keys or unkeys the transmitter via TX1;/TX0;, both void commands.
func (m *Model) SetPTT(on bool) error {
	sel := "0"
	if on {
		sel = "1"
	}
	if _, err := m.link.SendCommand("TX", sel); err != nil {
		return err
	}
	m.pttOn = on
	if m.onPTTChange != nil {
		m.onPTTChange(on)
	}
	return nil
}

// PTT reports the cached PTT state.
func (m *Model) PTT() bool { return m.pttOn }

// --- RIT / XIT ------------------------------------------------------------

// SetRIT sets the receiver incremental-tuning offset via RC<±N>;.
func (m *Model) SetRIT(hz int) error {
	if _, err := m.link.SendCommand("RC", signedPayload(hz)); err != nil {
		return err
	}
	m.ritHz = hz
	return nil
}

// RIT returns the cached RIT offset; the CAT protocol exposes no
// read-back command, so this is the last value this process set
// (RC/TC simply lack a query form on this radio).
func (m *Model) RIT() int { return m.ritHz }

// SetXIT sets the transmitter incremental-tuning offset via TC<±N>;.
// RT/XT are deliberately never used: the firmware rejects them with "?;".
func (m *Model) SetXIT(hz int) error {
	if _, err := m.link.SendCommand("TC", signedPayload(hz)); err != nil {
		return err
	}
	m.xitHz = hz
	return nil
}

// XIT returns the cached XIT offset.
func (m *Model) XIT() int { return m.xitHz }

func signedPayload(v int) string {
	if v >= 0 {
		return fmt.Sprintf("+%04d", v)
	}
	return fmt.Sprintf("-%04d", -v)
}

// --- AGC -------------------------------------------------------------------

// SetAGC sets the AGC mode for vfo; level must be one of AGCAuto..AGCOff.
func (m *Model) SetAGC(v VFO, level int) error {
	if level < AGCAuto || level > AGCOff {
		return fmt.Errorf("radio: invalid AGC level %d", level)
	}
	_, err := m.link.SendCommand("GT", vfoModeSelector(v)+strconv.Itoa(level))
	return err
}

// GetAGC reads back the AGC mode for vfo.
func (m *Model) GetAGC(v VFO) (int, error) {
	frame, err := m.link.SendCommand("GT", vfoModeSelector(v))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(frame.Payload[len(frame.Payload)-1:]))
	if err != nil {
		return 0, fmt.Errorf("radio: parse AGC payload %q: %w", frame.Payload, err)
	}
	return n, nil
}

// --- Meters ------------------------------------------------------------

// MeterKind selects one of the five RM meters.
type MeterKind int

const (
	MeterALC MeterKind = iota + 1
	MeterSWR
	MeterComp
	MeterID
	MeterVDD
)

// ReadMeter reads one of the RM1-RM5 meters.
func (m *Model) ReadMeter(kind MeterKind) (int, error) {
	frame, err := m.link.SendCommand("RM", strconv.Itoa(int(kind)))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(frame.Payload))
	if err != nil {
		return 0, fmt.Errorf("radio: parse meter payload %q: %w", frame.Payload, err)
	}
	return n, nil
}

// SMeter reads the raw (0-255) S-meter for vfo via SM<vfo>;.
func (m *Model) SMeter(v VFO) (int, error) {
	frame, err := m.link.SendCommand("SM", vfoModeSelector(v))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(frame.Payload))
	if err != nil {
		return 0, fmt.Errorf("radio: parse s-meter payload %q: %w", frame.Payload, err)
	}
	return n, nil
}

// --- Power / levels ------------------------------------------------------

// SetPowerWatts sets TX power, using the Field head's one-decimal-place
// wire format or the SPA-1's integer-watt format.
func (m *Model) SetPowerWatts(w float64) error {
	var payload string
	if m.Head == HeadOptima {
		payload = strconv.Itoa(int(w + 0.5))
	} else {
		payload = formatFieldWatts(w)
	}
	if _, err := m.link.SendCommand("PC", payload); err != nil {
		return err
	}
	m.lastPowerW = w
	return nil
}

// PowerWatts reads back TX power in watts, skipping the head-type digit
// that leads the PC query response.
func (m *Model) PowerWatts() (float64, error) {
	frame, err := m.link.SendCommand("PC", "")
	if err != nil {
		return 0, err
	}
	if len(frame.Payload) == 0 {
		return 0, fmt.Errorf("radio: empty power payload")
	}
	w, err := parsePowerPayload(frame.Payload[1:])
	if err != nil {
		return 0, fmt.Errorf("radio: parse power payload %q: %w", frame.Payload, err)
	}
	m.lastPowerW = w
	return w, nil
}

// --- CTCSS / DCS ----------------------------------------------------------

// ctcssTable is the standard EIA/TIA CTCSS tone set, indexed the way the
// FTX-1's CN0xx memory bank indexes them.
var ctcssTable = []float64{
	67.0, 69.3, 71.9, 74.4, 77.0, 79.7, 82.5, 85.4, 88.5, 91.5,
	94.8, 97.4, 100.0, 103.5, 107.2, 110.9, 114.8, 118.8, 123.0, 127.3,
	131.8, 136.5, 141.3, 146.2, 151.4, 156.7, 162.2, 167.9, 173.8, 179.9,
	186.2, 192.8, 203.5, 210.7, 218.1, 225.7, 233.6, 241.8, 250.3, 254.1,
}

// SetCTCSSTone selects a CTCSS transmit/squelch tone by frequency (Hz*10
// on the rigctl wire, e.g. 885 for 88.5 Hz) and enables tone squelch.
func (m *Model) SetCTCSSTone(tenthsHz int) error {
	hz := float64(tenthsHz) / 10.0
	idx := nearestToneIndex(hz)
	if _, err := m.link.SendCommand("CN", "0"+fmt.Sprintf("%02d", idx)); err != nil {
		return err
	}
	_, err := m.link.SendCommand("CT", "1")
	return err
}

// DisableCTCSS turns off tone squelch.
func (m *Model) DisableCTCSS() error {
	_, err := m.link.SendCommand("CT", "0")
	return err
}

func nearestToneIndex(hz float64) int {
	best, bestDiff := 0, 1e9
	for i, t := range ctcssTable {
		d := t - hz
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// --- Memory --------------------------------------------------------------

// RecallMemory switches the active VFO to memory channel ch via MC.
func (m *Model) RecallMemory(ch int) error {
	if _, err := m.link.SendCommand("MC", fmt.Sprintf("%03d", ch)); err != nil {
		return err
	}
	m.memChannel = ch
	return nil
}

// SendRaw forwards arbitrary CAT text to the link, for the rigctl
// send_cmd/send_morse passthrough verbs.
func (m *Model) SendRaw(text string) (string, error) {
	return m.link.SendRaw(text)
}

// StoreMemory stores the current VFO contents into memory channel ch.
// The FTX-1 CAT protocol (like other Yaesu CAT sets) stores the
// currently tuned VFO into the channel already selected by MC; this
// wraps the two-step sequence as one operation.
func (m *Model) StoreMemory(ch int) error {
	if err := m.RecallMemory(ch); err != nil {
		return err
	}
	_, err := m.link.SendCommand("MW", "")
	return err
}
