// Package hamlib implements the stateless mapping from rigctl verbs and
// arguments to radio.Model calls and back to rigctld wire text. Dispatch
// is a total function built once from a declarative verb table, never a
// chain of string-switches sprinkled through handlers.
package hamlib

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/w1cat/ftx1bridge/internal/radio"
)

// handlerFunc produces the full wire response for one verb invocation,
// including trailing newline(s). It holds model.Mu for its duration.
type handlerFunc func(t *Translator, args []string) string

type verbEntry struct {
	short   string
	long    string
	handler handlerFunc
}

// Translator binds the verb dispatch table to one RadioModel.
type Translator struct {
	model *radio.Model
}

// New returns a Translator for model.
func New(model *radio.Model) *Translator {
	return &Translator{model: model}
}

var dispatch map[string]handlerFunc

func init() {
	table := []verbEntry{
		{"f", "get_freq", handleGetFreq},
		{"F", "set_freq", handleSetFreq},
		{"m", "get_mode", handleGetMode},
		{"M", "set_mode", handleSetMode},
		{"v", "get_vfo", handleGetVFO},
		{"V", "set_vfo", handleSetVFO},
		{"t", "get_ptt", handleGetPTT},
		{"T", "set_ptt", handleSetPTT},
		{"s", "get_split_vfo", handleGetSplitVFO},
		{"S", "set_split_vfo", handleSetSplitVFO},
		{"i", "get_split_freq", handleGetSplitFreq},
		{"I", "set_split_freq", handleSetSplitFreq},
		{"l", "get_level", handleGetLevel},
		{"L", "set_level", handleSetLevel},
		{"u", "get_func", handleGetFunc},
		{"U", "set_func", handleSetFunc},
		{"j", "get_rit", handleGetRIT},
		{"J", "set_rit", handleSetRIT},
		{"z", "get_xit", handleGetXIT},
		{"Z", "set_xit", handleSetXIT},
		{"e", "get_mem", handleGetMem},
		{"E", "set_mem", handleSetMem},
		{"h", "get_channel", handleGetChannel},
		{"c", "get_ctcss_tone", handleGetCTCSS},
		{"C", "set_ctcss_tone", handleSetCTCSS},
		{"d", "get_dcs_code", handleGetDCS},
		{"D", "set_dcs_code", handleSetDCS},
		{"n", "get_ts", handleGetTS},
		{"N", "set_ts", handleSetTS},
		{"w", "send_cmd", handleSendCmd},
		{"_", "get_info", handleGetInfo},
		{"1", "dump_caps", handleDumpCaps},
		{"q", "quit", handleQuit},
	}

	dispatch = make(map[string]handlerFunc, len(table)*2)
	for _, e := range table {
		dispatch[e.short] = e.handler
		dispatch[e.long] = e.handler
	}

	dispatch[`\dump_state`] = handleDumpState
	dispatch[`\get_vfo_info`] = handleGetVFOInfo
	dispatch[`\get_rig_info`] = handleGetRigInfo
	dispatch[`\chk_vfo`] = handleChkVFO
	dispatch[`\set_split_freq_mode`] = handleSetSplitFreqMode
	dispatch[`\get_split_freq_mode`] = handleGetSplitFreqMode
	dispatch[`\send_morse`] = handleSendMorse
	dispatch[`\halt`] = handleQuit
	dispatch[`\pause`] = handlePause
}

// Handle parses and dispatches one rigctl request line, returning the
// full response text (terminated by \n). Unknown verbs and empty input
// both yield "RPRT -1\n".
func (t *Translator) Handle(line string) string {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return rprtLine(RPRTInvalid)
	}

	h, ok := dispatch[fields[0]]
	if !ok {
		return rprtLine(RPRTInvalid)
	}

	t.model.Mu.Lock()
	defer t.model.Mu.Unlock()
	return h(t, fields[1:])
}

func rprtLine(code int) string {
	return fmt.Sprintf("RPRT %d\n", code)
}

// roundFreq accepts floats as Hamlib input and rounds to the nearest
// integer hertz, including WSJT-X's "28074055.000000" style input.
func roundFreq(s string) (uint64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, ErrInvalidArgument
	}
	return uint64(math.Round(f)), nil
}

func currentVFO(t *Translator) radio.VFO { return t.model.ActiveVFO() }

func parseVFOArg(s string) (radio.VFO, bool) {
	switch strings.ToUpper(s) {
	case "VFOA", "MAIN", "A":
		return radio.VFOA, true
	case "VFOB", "SUB", "B":
		return radio.VFOB, true
	case "", "CURRVFO":
		return 0, false
	}
	return 0, false
}

// --- frequency -----------------------------------------------------------

func handleGetFreq(t *Translator, args []string) string {
	hz, err := t.model.GetFreq(currentVFO(t))
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return fmt.Sprintf("%d\n", hz)
}

func handleSetFreq(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	hz, err := roundFreq(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	err = t.model.SetFreq(currentVFO(t), hz)
	return rprtLine(rprtFor(err))
}

// --- mode ------------------------------------------------------------------

func handleGetMode(t *Translator, args []string) string {
	mode, pb, err := t.model.GetMode(currentVFO(t))
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return fmt.Sprintf("%s\n%d\n", mode, pb)
}

func handleSetMode(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	mode := radio.HamlibMode(strings.ToUpper(args[0]))
	pb := 0
	if len(args) >= 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return rprtLine(RPRTInvalid)
		}
		pb = v
	}
	if _, ok := radio.CatCharForMode(mode); !ok {
		return rprtLine(RPRTInvalid)
	}
	err := t.model.SetMode(currentVFO(t), mode, pb)
	return rprtLine(rprtFor(err))
}

// --- vfo ---------------------------------------------------------------

func handleGetVFO(t *Translator, args []string) string {
	return t.model.ActiveVFO().String() + "\n"
}

func handleSetVFO(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	v, ok := parseVFOArg(args[0])
	if !ok {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetActiveVFO(v)))
}

// --- ptt -----------------------------------------------------------------

func handleGetPTT(t *Translator, args []string) string {
	if t.model.PTT() {
		return "1\n"
	}
	return "0\n"
}

func handleSetPTT(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	on, err := parseBool01(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetPTT(on)))
}

func parseBool01(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, ErrInvalidArgument
}

// --- split ------------------------------------------------------------

func handleGetSplitVFO(t *Translator, args []string) string {
	on, vfo := t.model.Split()
	n := 0
	if on {
		n = 1
	}
	return fmt.Sprintf("%d\n%s\n", n, vfo)
}

func handleSetSplitVFO(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	on, err := parseBool01(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetSplit(on)))
}

func handleGetSplitFreq(t *Translator, args []string) string {
	hz, err := t.model.GetFreq(radio.VFOB)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return fmt.Sprintf("%d\n", hz)
}

func handleSetSplitFreq(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	hz, err := roundFreq(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetFreq(radio.VFOB, hz)))
}

func handleSetSplitFreqMode(t *Translator, args []string) string {
	if len(args) < 2 {
		return rprtLine(RPRTInvalid)
	}
	hz, err := roundFreq(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	mode := radio.HamlibMode(strings.ToUpper(args[1]))
	pb := 0
	if len(args) >= 3 {
		if v, err := strconv.Atoi(args[2]); err == nil {
			pb = v
		}
	}
	if err := t.model.SetFreq(radio.VFOB, hz); err != nil {
		return rprtLine(rprtFor(err))
	}
	return rprtLine(rprtFor(t.model.SetMode(radio.VFOB, mode, pb)))
}

func handleGetSplitFreqMode(t *Translator, args []string) string {
	hz, err := t.model.GetFreq(radio.VFOB)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	mode, pb, err := t.model.GetMode(radio.VFOB)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return fmt.Sprintf("%d\n%s\n%d\n", hz, mode, pb)
}

// --- level / func --------------------------------------------------------

func handleGetLevel(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	kind, ok := radio.IsKnownLevel(args[0])
	if !ok {
		return rprtLine(RPRTInvalid)
	}
	v, err := readLevel(t, kind)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return v + "\n"
}

func handleSetLevel(t *Translator, args []string) string {
	if len(args) < 2 {
		return rprtLine(RPRTInvalid)
	}
	kind, ok := radio.IsKnownLevel(args[0])
	if !ok {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(writeLevel(t, kind, args[1])))
}

func handleGetFunc(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	kind, ok := radio.IsKnownFunc(args[0])
	if !ok {
		return rprtLine(RPRTInvalid)
	}
	if kind == radio.FuncTuner {
		return rprtLine(RPRTNotAvailable)
	}
	// No function is read from the radio: every known function other than
	// TUNER reports 0, including NB and MON.
	return "0\n"
}

func handleSetFunc(t *Translator, args []string) string {
	if len(args) < 2 {
		return rprtLine(RPRTInvalid)
	}
	kind, ok := radio.IsKnownFunc(args[0])
	if !ok {
		return rprtLine(RPRTInvalid)
	}
	if kind == radio.FuncTuner {
		return rprtLine(RPRTNotAvailable)
	}
	if _, err := parseBool01(args[1]); err != nil {
		return rprtLine(RPRTInvalid)
	}
	// The value is validated and acknowledged; no CAT command is sent.
	return rprtLine(RPRTOK)
}

// --- RIT / XIT -------------------------------------------------------------

func handleGetRIT(t *Translator, args []string) string {
	return fmt.Sprintf("%d\n", t.model.RIT())
}

func handleSetRIT(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetRIT(n)))
}

func handleGetXIT(t *Translator, args []string) string {
	return fmt.Sprintf("%d\n", t.model.XIT())
}

func handleSetXIT(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetXIT(n)))
}

// --- memory ----------------------------------------------------------------

func handleGetMem(t *Translator, args []string) string {
	return rprtLine(RPRTNotAvailable)
}

func handleSetMem(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.RecallMemory(ch)))
}

func handleGetChannel(t *Translator, args []string) string {
	return rprtLine(RPRTNotAvailable)
}

// --- CTCSS / DCS -------------------------------------------------------

func handleGetCTCSS(t *Translator, args []string) string {
	return rprtLine(RPRTNotAvailable) // no CAT read-back command documented
}

func handleSetCTCSS(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	tenths, err := strconv.Atoi(args[0])
	if err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(rprtFor(t.model.SetCTCSSTone(tenths)))
}

func handleGetDCS(t *Translator, args []string) string {
	return rprtLine(RPRTNotAvailable)
}

func handleSetDCS(t *Translator, args []string) string {
	return rprtLine(RPRTNotAvailable)
}

// --- tuning step ----------------------------------------------------------

// handleGetTS returns a fixed 10 Hz. The FTX-1's real tuning step is
// mode dependent via menu item EX0306, which this bridge does not query.
func handleGetTS(t *Translator, args []string) string {
	return "10\n"
}

func handleSetTS(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	if _, err := strconv.Atoi(args[0]); err != nil {
		return rprtLine(RPRTInvalid)
	}
	return rprtLine(RPRTOK)
}

// --- raw passthrough / info ------------------------------------------------

func handleSendCmd(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	raw, err := t.model.SendRaw(strings.Join(args, " "))
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	return raw + "\n"
}

func handleGetInfo(t *Translator, args []string) string {
	return "FTX-1\n"
}

func handleGetRigInfo(t *Translator, args []string) string {
	vfo := currentVFO(t)
	hz, _ := t.model.GetFreq(vfo)
	mode, pb, _ := t.model.GetMode(vfo)
	return fmt.Sprintf("VFO: %s\nFreq: %d\nMode: %s\nPassband: %d\nPTT: %v\n",
		vfo, hz, mode, pb, t.model.PTT())
}

func handleChkVFO(t *Translator, args []string) string {
	return "CHKVFO 1\n"
}

func handleGetVFOInfo(t *Translator, args []string) string {
	vfo := currentVFO(t)
	hz, err := t.model.GetFreq(vfo)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	mode, pb, err := t.model.GetMode(vfo)
	if err != nil {
		return rprtLine(rprtFor(err))
	}
	split, _ := t.model.Split()
	splitN := 0
	if split {
		splitN = 1
	}
	return fmt.Sprintf("Freq: %d\nMode: %s\nWidth: %d\nSplit: %d\nSatMode: 0\n", hz, mode, pb, splitN)
}

func handleSendMorse(t *Translator, args []string) string {
	if len(args) < 1 {
		return rprtLine(RPRTInvalid)
	}
	// FTX-1 keyer text send: "KY<text>;" per the same two-letter+payload
	// convention as the rest of the command table.
	_, err := t.model.SendRaw("KY" + strings.Join(args, " "))
	return rprtLine(rprtFor(err))
}

func handlePause(t *Translator, args []string) string {
	return rprtLine(RPRTOK)
}

func handleQuit(t *Translator, args []string) string {
	return rprtLine(RPRTOK)
}
