package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestSetGetFreqRoundTripProperty checks the set_freq/get_freq round trip
// for every frequency the CAT wire format can carry (0 to 999,999,999 Hz).
func TestSetGetFreqRoundTripProperty(t *testing.T) {
	var stored uint64
	model := startModel(t, func(code, payload string) (string, bool) {
		if code == "FA" {
			if payload != "" {
				v, err := parseUint9(payload)
				if err != nil {
					return "", true
				}
				stored = v
			}
			return "FA" + fmt9(stored), false
		}
		return "", true
	})

	rapid.Check(t, func(rt *rapid.T) {
		hz := rapid.Uint64Range(0, 999_999_999).Draw(rt, "hz")

		assert.NoError(rt, model.SetFreq(VFOA, hz))
		got, err := model.GetFreq(VFOA)
		assert.NoError(rt, err)
		assert.Equal(rt, hz, got)
	})
}

// TestModeTableRoundTripProperty checks that every Hamlib mode this
// bridge advertises maps to a CAT char and back to the same mode.
func TestModeTableRoundTripProperty(t *testing.T) {
	modes := AllHamlibModes()

	rapid.Check(t, func(rt *rapid.T) {
		idx := rapid.IntRange(0, len(modes)-1).Draw(rt, "idx")
		mode := modes[idx]

		catChar, ok := CatCharForMode(mode)
		assert.True(rt, ok, "mode %q has no CAT char", mode)

		roundTripped, ok := ModeForCatChar(catChar)
		assert.True(rt, ok, "CAT char %q has no mode", catChar)
		assert.Equal(rt, mode, roundTripped)
	})
}
