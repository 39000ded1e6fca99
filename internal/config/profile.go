package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/retroenv/chipcheck/internal/gpio"
	"github.com/retroenv/chipcheck/internal/pattern"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Kind is the type of chip a profile describes.
type Kind string

// Supported chip kinds.
const (
	DRAM Kind = "dram"
	ROM  Kind = "rom"
	PLA  Kind = "pla"
)

// Default timing of the test cycle.
const (
	DefaultCycleSettle = 10 * time.Millisecond
	DefaultDwell       = time.Second
)

const (
	maxDRAMAddressBits = 12
	maxAddressBits     = 24
	defaultDataBits    = 8
)

var errUnknownProfile = errors.New("unknown profile")

// Profile describes a chip and how it is tested.
type Profile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Kind        Kind   `yaml:"kind"`

	// AddressBits is the number of multiplexed address lines of a DRAM,
	// the address or input lines of a ROM or PLA.
	AddressBits int `yaml:"address_bits"`
	// DataBits is the number of data or output lines of a ROM or PLA.
	DataBits int `yaml:"data_bits"`

	Settle      time.Duration `yaml:"settle"`
	CycleSettle time.Duration `yaml:"cycle_settle"`
	Dwell       time.Duration `yaml:"dwell"`

	Patterns          pattern.Selection `yaml:"patterns"`
	PatternIndicators bool              `yaml:"pattern_indicators"`

	Pins map[signal.Name]gpio.Pin `yaml:"pins"`
}

var builtinProfiles = []Profile{
	{
		Name:        "4116",
		Description: "16Kx1 DRAM",
		Kind:        DRAM,
		AddressBits: 7,
		Settle:      250 * time.Nanosecond,
	},
	{
		Name:        "4164",
		Description: "64Kx1 DRAM",
		Kind:        DRAM,
		AddressBits: 8,
		Settle:      timing.MinimumSettle,
	},
	{
		Name:        "41256",
		Description: "256Kx1 DRAM",
		Kind:        DRAM,
		AddressBits: 9,
		Settle:      timing.MinimumSettle,
	},
	{
		Name:        "2332",
		Description: "4Kx8 mask ROM",
		Kind:        ROM,
		AddressBits: 12,
		DataBits:    8,
		Settle:      450 * time.Nanosecond,
	},
	{
		Name:        "2364",
		Description: "8Kx8 mask ROM",
		Kind:        ROM,
		AddressBits: 13,
		DataBits:    8,
		Settle:      450 * time.Nanosecond,
	},
	{
		Name:        "82S100",
		Description: "16 input, 8 output field programmable logic array",
		Kind:        PLA,
		AddressBits: 16,
		DataBits:    8,
		Settle:      50 * time.Nanosecond,
	},
}

// ProfileNames returns the names of the built-in profiles.
func ProfileNames() []string {
	names := make([]string, len(builtinProfiles))
	for i, p := range builtinProfiles {
		names[i] = p.Name
	}
	return names
}

// BuiltinProfile returns the built-in profile with the given name.
func BuiltinProfile(name string) (Profile, error) {
	for _, p := range builtinProfiles {
		if strings.EqualFold(p.Name, name) {
			if p.Kind == DRAM {
				p.Patterns = pattern.AllSelected()
			}
			return withDefaults(p), nil
		}
	}
	return Profile{}, fmt.Errorf("%w '%s', built-in profiles: %s", errUnknownProfile, name,
		strings.Join(ProfileNames(), ", "))
}

// LoadProfile returns the built-in profile of the given name, or loads the
// profile from the YAML file if no built-in profile matches.
func LoadProfile(fs afero.Fs, nameOrPath string) (Profile, error) {
	if p, err := BuiltinProfile(nameOrPath); err == nil {
		return p, nil
	}

	data, err := afero.ReadFile(fs, nameOrPath)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile file '%s': %w", nameOrPath, err)
	}
	return ParseProfile(data)
}

// ParseProfile parses a YAML profile. Absent settings keep their defaults,
// all patterns are enabled unless switched off.
func ParseProfile(data []byte) (Profile, error) {
	p := Profile{Patterns: pattern.AllSelected()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}

	p.Kind = Kind(strings.ToLower(string(p.Kind)))
	p = withDefaults(p)
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile for consistency.
func (p Profile) Validate() error {
	switch p.Kind {
	case DRAM:
		if p.AddressBits < 1 || p.AddressBits > maxDRAMAddressBits {
			return fmt.Errorf("profile %s: dram address bits must be between 1 and %d", p.Name, maxDRAMAddressBits)
		}
		if p.Patterns.Empty() {
			return fmt.Errorf("profile %s: no test pattern enabled", p.Name)
		}

	case ROM, PLA:
		if p.AddressBits < 1 || p.AddressBits > maxAddressBits {
			return fmt.Errorf("profile %s: address bits must be between 1 and %d", p.Name, maxAddressBits)
		}
		if p.DataBits < 1 || p.DataBits > 8 {
			return fmt.Errorf("profile %s: data bits must be between 1 and 8", p.Name)
		}

	default:
		return fmt.Errorf("profile %s: unsupported chip kind '%s'", p.Name, p.Kind)
	}

	if p.Settle < 0 || p.CycleSettle < 0 || p.Dwell < 0 {
		return fmt.Errorf("profile %s: delays must not be negative", p.Name)
	}
	return nil
}

// Lines returns the names of all chip lines the profile uses, a sysfs pin
// map has to cover all of them.
func (p Profile) Lines() []signal.Name {
	var names []signal.Name
	switch p.Kind {
	case DRAM:
		names = append(names, signal.RAS, signal.CAS, signal.WE, signal.DIN, signal.DOUT)
		for i := range p.AddressBits {
			names = append(names, signal.Address(i))
		}
	case ROM:
		names = append(names, signal.CS)
		for i := range p.AddressBits {
			names = append(names, signal.Address(i))
		}
		for i := range p.DataBits {
			names = append(names, signal.Data(i))
		}
	case PLA:
		for i := range p.AddressBits {
			names = append(names, signal.Indexed(signal.InputPrefix, i))
		}
		for i := range p.DataBits {
			names = append(names, signal.Indexed(signal.OutputPrefix, i))
		}
	}
	return names
}

// MissingPins returns the used lines and the extra lines that have no pin
// assigned.
func (p Profile) MissingPins(extra ...signal.Name) []signal.Name {
	var missing []signal.Name
	for _, name := range append(p.Lines(), extra...) {
		if _, ok := p.Pins[name]; !ok {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}

func withDefaults(p Profile) Profile {
	if p.Settle == 0 {
		p.Settle = timing.MinimumSettle
	}
	if p.CycleSettle == 0 {
		p.CycleSettle = DefaultCycleSettle
	}
	if p.Dwell == 0 {
		p.Dwell = DefaultDwell
	}
	if p.Kind != DRAM && p.DataBits == 0 {
		p.DataBits = defaultDataBits
	}
	return p
}
