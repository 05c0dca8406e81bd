package radio

// HamlibMode is a generic rigctl mode name, e.g. "USB", "PKTUSB".
type HamlibMode string

// CatModeChar is the single-character mode code used in MD<vfo><char>;.
type CatModeChar string

const (
	HamlibLSB    HamlibMode = "LSB"
	HamlibUSB    HamlibMode = "USB"
	HamlibCW     HamlibMode = "CW"
	HamlibFM     HamlibMode = "FM"
	HamlibAM     HamlibMode = "AM"
	HamlibRTTY   HamlibMode = "RTTY"  // canonical: lower-sideband RTTY
	HamlibCWR    HamlibMode = "CWR"
	HamlibPKTLSB HamlibMode = "PKTLSB"
	HamlibRTTYR  HamlibMode = "RTTYR"
	HamlibPKTFM  HamlibMode = "PKTFM"
	HamlibFMN    HamlibMode = "FMN"
	HamlibPKTUSB HamlibMode = "PKTUSB" // canonical: DATA-USB
	HamlibAMN    HamlibMode = "AMN"
)

// modeToHamlib is the exhaustive, total bijection between CAT mode chars
// and Hamlib mode names. For every CAT mode char there is
// exactly one Hamlib name and vice versa.
var modeToHamlib = map[CatModeChar]HamlibMode{
	"1": HamlibLSB,
	"2": HamlibUSB,
	"3": HamlibCW,
	"4": HamlibFM,
	"5": HamlibAM,
	"6": HamlibRTTY,   // RTTY-L
	"7": HamlibCWR,    // CW-R
	"8": HamlibPKTLSB, // DATA-LSB
	"9": HamlibRTTYR,  // RTTY-U
	"A": HamlibPKTFM,  // DATA-FM
	"B": HamlibFMN,    // FM-N
	"C": HamlibPKTUSB, // DATA-USB (canonical PKTUSB<->DATA_U)
	"D": HamlibAMN,    // AM-N
}

var hamlibToMode map[HamlibMode]CatModeChar

func init() {
	hamlibToMode = make(map[HamlibMode]CatModeChar, len(modeToHamlib))
	for c, m := range modeToHamlib {
		hamlibToMode[m] = c
	}
	// A small number of aliases accepted as rigctl input but normalized
	// to the canonical names above before wire translation, per the
	// each VFO holds exactly one mode at a time.
	hamlibToMode["DATA-USB"] = hamlibToMode[HamlibPKTUSB]
	hamlibToMode["DATA-LSB"] = hamlibToMode[HamlibPKTLSB]
	hamlibToMode["CW-R"] = hamlibToMode[HamlibCWR]
}

// CatCharForMode resolves a Hamlib mode name to its CAT wire character.
func CatCharForMode(m HamlibMode) (CatModeChar, bool) {
	c, ok := hamlibToMode[m]
	return c, ok
}

// ModeForCatChar resolves a CAT wire character to its canonical Hamlib
// mode name.
func ModeForCatChar(c CatModeChar) (HamlibMode, bool) {
	m, ok := modeToHamlib[c]
	return m, ok
}

// AllHamlibModes returns every mode name in the mapping table, useful
// for dump_state / dump_caps and for property tests that iterate the
// whole space.
func AllHamlibModes() []HamlibMode {
	out := make([]HamlibMode, 0, len(hamlibToMode))
	seen := make(map[HamlibMode]bool)
	for c := range modeToHamlib {
		m := modeToHamlib[c]
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
