package hamlib

import (
	"fmt"
	"strings"

	"github.com/w1cat/ftx1bridge/internal/radio"
)

// Hamlib RIG_MODE_* bit values, reused verbatim from the upstream
// convention so dump_state's mode bitmask means the same thing to any
// Hamlib-speaking client.
const (
	modeAM     = 1 << 0
	modeCW     = 1 << 1
	modeUSB    = 1 << 2
	modeLSB    = 1 << 3
	modeRTTY   = 1 << 4
	modeFM     = 1 << 5
	modeCWR    = 1 << 7
	modeRTTYR  = 1 << 8
	modePKTLSB = 1 << 10
	modePKTUSB = 1 << 11
	modePKTFM  = 1 << 12
)

var hamlibModeBits = map[radio.HamlibMode]int{
	radio.HamlibAM:     modeAM,
	radio.HamlibCW:     modeCW,
	radio.HamlibCWR:    modeCWR,
	radio.HamlibUSB:    modeUSB,
	radio.HamlibLSB:    modeLSB,
	radio.HamlibRTTY:   modeRTTY,
	radio.HamlibRTTYR:  modeRTTYR,
	radio.HamlibFM:     modeFM,
	radio.HamlibPKTUSB: modePKTUSB,
	radio.HamlibPKTLSB: modePKTLSB,
	radio.HamlibPKTFM:  modePKTFM,
}

func allModesBitmask() int {
	bits := 0
	for _, b := range hamlibModeBits {
		bits |= b
	}
	return bits
}

// vfoBitsMain/vfoBitsSub mirror Hamlib's RIG_VFO_A/RIG_VFO_B bit values.
const (
	vfoBitsMain = 1 << 0
	vfoBitsSub  = 1 << 1
)

const (
	rigctldProtocolVersion = 0
	ftx1RigID              = 1051
	ituRegion              = 0
	bandEdgeLowHz          = 0
	bandEdgeHighHz         = 30_000_000
)

const zeroRangeRow = "0 0 0 0 0 0 0\n"

// handleDumpState renders the fixed \dump_state block: everything is
// constant except TX power ceiling, which follows the detected head
// type's milliwatt range.
func handleDumpState(t *Translator, args []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n%d\n%d\n", rigctldProtocolVersion, ftx1RigID, ituRegion)

	modes := allModesBitmask()
	vfos := vfoBitsMain | vfoBitsSub

	// RX range.
	fmt.Fprintf(&b, "%d %d %d %d %d %d %d\n",
		bandEdgeLowHz, bandEdgeHighHz, modes, -1, -1, vfos, 0)
	b.WriteString(zeroRangeRow)

	// TX range: power ceiling is head-type dependent, expressed in mW.
	minMW := int(t.model.Head.MinPowerWatts() * 1000)
	maxMW := int(t.model.Head.MaxPowerWatts() * 1000)
	fmt.Fprintf(&b, "%d %d %d %d %d %d %d\n",
		bandEdgeLowHz, bandEdgeHighHz, modes, minMW, maxMW, vfos, 0)
	b.WriteString(zeroRangeRow)

	// Tuning steps: a single row covering every mode at the fixed 10 Hz
	// step this bridge reports (see get_ts), terminated by the zero row.
	fmt.Fprintf(&b, "%d %d\n", modes, 10)
	b.WriteString("0 0\n")

	// Filters: one representative passband width per mode family,
	// terminated by the zero row.
	fmt.Fprintf(&b, "%d %d\n", modeCW|modeCWR, 500)
	fmt.Fprintf(&b, "%d %d\n", modeUSB|modeLSB|modePKTUSB|modePKTLSB, 2400)
	fmt.Fprintf(&b, "%d %d\n", modeAM, 6000)
	fmt.Fprintf(&b, "%d %d\n", modeFM|modePKTFM, 15000)
	fmt.Fprintf(&b, "%d %d\n", modeRTTY|modeRTTYR, 500)
	b.WriteString("0 0\n")

	fmt.Fprintf(&b, "%d\n%d\n%d\n", radio.RITXITLimitHz, radio.RITXITLimitHz, radio.IFShiftLimit)

	// announces, preamp list, attenuator list: none advertised.
	b.WriteString("0\n0\n0\n")

	hasGetFunc, hasSetFunc := funcBitmasks()
	hasGetLevel, hasSetLevel := levelBitmasks()
	fmt.Fprintf(&b, "%d\n%d\n%d\n%d\n", hasGetFunc, hasSetFunc, hasGetLevel, hasSetLevel)

	// has_get_parm / has_set_parm: no parms supported.
	b.WriteString("0\n0\n")

	return b.String()
}

// funcBitmasks and levelBitmasks enumerate the get/set-capable function
// and level sets as bitmasks, positional per the order of the lists
// below; a level's set bit sits at the same position as its get bit.
// dump_caps reuses the same values.
func funcBitmasks() (get, set int) {
	funcs := []radio.FuncKind{
		radio.FuncNB, radio.FuncNR, radio.FuncComp, radio.FuncVox,
		radio.FuncTone, radio.FuncTSQL, radio.FuncLock, radio.FuncMon, radio.FuncANF,
	}
	for i := range funcs {
		get |= 1 << i
		set |= 1 << i
	}
	return get, set
}

func levelBitmasks() (get, set int) {
	readable := []radio.LevelKind{
		radio.LevelRFPower, radio.LevelStrength, radio.LevelSWR,
		radio.LevelALC, radio.LevelComp, radio.LevelAGC,
	}
	writable := []radio.LevelKind{radio.LevelRFPower, radio.LevelAGC}
	for i, k := range readable {
		get |= 1 << i
		for _, w := range writable {
			if w == k {
				set |= 1 << i
			}
		}
	}
	return get, set
}

// handleDumpCaps renders key=value capability lines, the modern
// complement to \dump_state.
func handleDumpCaps(t *Translator, args []string) string {
	hasGetFunc, hasSetFunc := funcBitmasks()
	hasGetLevel, hasSetLevel := levelBitmasks()
	var b strings.Builder
	fmt.Fprintf(&b, "Model name:\tFTX-1\n")
	fmt.Fprintf(&b, "Mfg name:\tYaesu\n")
	fmt.Fprintf(&b, "Rig type:\tTransceiver\n")
	fmt.Fprintf(&b, "Has Get Func:\t0x%x\n", hasGetFunc)
	fmt.Fprintf(&b, "Has Set Func:\t0x%x\n", hasSetFunc)
	fmt.Fprintf(&b, "Has Get Level:\t0x%x\n", hasGetLevel)
	fmt.Fprintf(&b, "Has Set Level:\t0x%x\n", hasSetLevel)
	fmt.Fprintf(&b, "Has Get Parm:\t0x0\n")
	fmt.Fprintf(&b, "Has Set Parm:\t0x0\n")
	b.WriteString(rprtLine(RPRTOK))
	return b.String()
}
