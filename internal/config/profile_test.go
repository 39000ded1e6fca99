package config

import (
	"errors"
	"testing"
	"time"

	"github.com/retroenv/chipcheck/internal/gpio"
	"github.com/retroenv/chipcheck/internal/pattern"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/retroenv/retrogolib/assert"
	"github.com/spf13/afero"
)

func TestBuiltinProfiles(t *testing.T) {
	for _, name := range ProfileNames() {
		t.Run(name, func(t *testing.T) {
			p, err := BuiltinProfile(name)
			assert.NoError(t, err)
			assert.NoError(t, p.Validate())
			assert.Equal(t, DefaultDwell, p.Dwell)
			assert.True(t, p.Settle > 0)
		})
	}

	p, err := BuiltinProfile("41256")
	assert.NoError(t, err)
	assert.Equal(t, DRAM, p.Kind)
	assert.Equal(t, 9, p.AddressBits)
	assert.Equal(t, pattern.AllSelected(), p.Patterns)

	_, err = BuiltinProfile("6502")
	assert.True(t, errors.Is(err, errUnknownProfile))
}

func TestParseProfile(t *testing.T) {
	data := []byte(`
name: tms4164
kind: DRAM
address_bits: 8
settle: 200ns
dwell: 500ms
patterns:
  checkerboard: false
pattern_indicators: true
pins:
  RAS: {gpio: 17, active_low: true}
  DOUT: {gpio: 22, input: true}
`)

	p, err := ParseProfile(data)
	assert.NoError(t, err)
	assert.Equal(t, "tms4164", p.Name)
	assert.Equal(t, DRAM, p.Kind)
	assert.Equal(t, 200*time.Nanosecond, p.Settle)
	assert.Equal(t, 500*time.Millisecond, p.Dwell)
	assert.Equal(t, DefaultCycleSettle, p.CycleSettle)
	assert.True(t, p.PatternIndicators)
	assert.Equal(t, pattern.Selection{
		ConstantOne:         true,
		ConstantZero:        true,
		InverseCheckerboard: true,
	}, p.Patterns)
	assert.Equal(t, gpio.Pin{GPIO: 17, ActiveLow: true}, p.Pins[signal.RAS])
	assert.Equal(t, gpio.Pin{GPIO: 22, Input: true}, p.Pins[signal.DOUT])

	missing := p.MissingPins()
	assert.Len(t, missing, 3+8)
	assert.Equal(t, signal.Name("A0"), missing[0])

	missing = p.MissingPins(signal.LED, signal.PatternLED(pattern.ConstantOne))
	assert.Len(t, missing, 3+8+2)
	assert.Equal(t, []signal.Name{"LED", "LED_ONES", "WE"}, missing[len(missing)-3:])
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		errText string
	}{
		{
			name:    "unknown kind",
			data:    "kind: sram\naddress_bits: 8",
			errText: "unsupported chip kind",
		},
		{
			name:    "dram too large",
			data:    "kind: dram\naddress_bits: 13",
			errText: "address bits",
		},
		{
			name:    "no patterns",
			data:    "kind: dram\naddress_bits: 4\npatterns: {ones: false, zeros: false, checkerboard: false, inverse_checkerboard: false}",
			errText: "no test pattern",
		},
		{
			name:    "rom data width",
			data:    "kind: rom\naddress_bits: 12\ndata_bits: 16",
			errText: "data bits",
		},
		{
			name:    "negative delay",
			data:    "kind: pla\naddress_bits: 16\nsettle: -1ns",
			errText: "negative",
		},
		{
			name:    "malformed",
			data:    "kind: [dram",
			errText: "parsing profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.data))
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestLoadProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/profiles/rom.yaml", []byte("name: basic\nkind: rom\naddress_bits: 13\n"), 0o644))

	p, err := LoadProfile(fs, "/profiles/rom.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "basic", p.Name)
	assert.Equal(t, 8, p.DataBits)
	assert.Equal(t, timing.MinimumSettle, p.Settle)

	p, err = LoadProfile(fs, "2364")
	assert.NoError(t, err)
	assert.Equal(t, ROM, p.Kind)

	_, err = LoadProfile(fs, "/profiles/missing.yaml")
	assert.ErrorContains(t, err, "reading profile file")
}

func TestProfileLines(t *testing.T) {
	p, err := BuiltinProfile("82S100")
	assert.NoError(t, err)

	lines := p.Lines()
	assert.Len(t, lines, 24)
	assert.Equal(t, signal.Name("I0"), lines[0])
	assert.Equal(t, signal.Name("F7"), lines[23])
}
