// Package pattern contains the bit pattern generators written to and
// expected from a memory during a sweep.
package pattern

import (
	"fmt"
	"strings"

	"github.com/retroenv/chipcheck/internal/signal"
	"gopkg.in/yaml.v3"
)

// Names of the supported patterns, also used in flags and profiles.
const (
	ConstantOne         = "ones"
	ConstantZero        = "zeros"
	Checkerboard        = "checkerboard"
	InverseCheckerboard = "inverse-checkerboard"
)

// Func returns the bit expected at an address.
type Func func(row, column int) signal.Bit

// Generator is a named pattern.
type Generator struct {
	Name string
	Bit  Func
}

var generators = []Generator{
	{Name: ConstantOne, Bit: func(int, int) signal.Bit { return signal.One }},
	{Name: ConstantZero, Bit: func(int, int) signal.Bit { return signal.Zero }},
	{Name: Checkerboard, Bit: func(row, column int) signal.Bit { return signal.Bit((row + column) % 2) }},
	{Name: InverseCheckerboard, Bit: func(row, column int) signal.Bit { return signal.Bit((row + column + 1) % 2) }},
}

// All returns all generators in their run order.
func All() []Generator {
	return append([]Generator(nil), generators...)
}

// Get returns the generator with the given name.
func Get(name string) (Generator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, gen := range generators {
		if gen.Name == name {
			return gen, nil
		}
	}
	return Generator{}, fmt.Errorf("unsupported pattern '%s', valid options: %s", name, strings.Join(Names(), ", "))
}

// Names returns the names of all generators in run order.
func Names() []string {
	names := make([]string, len(generators))
	for i, gen := range generators {
		names[i] = gen.Name
	}
	return names
}

// Selection toggles the individual patterns of a test cycle.
type Selection struct {
	ConstantOne         bool `yaml:"ones"`
	ConstantZero        bool `yaml:"zeros"`
	Checkerboard        bool `yaml:"checkerboard"`
	InverseCheckerboard bool `yaml:"inverse-checkerboard"`
}

// UnmarshalYAML reads a mapping of pattern names to toggles. Patterns that
// are not listed keep their current state, an underscore can be used in
// place of a hyphen.
func (s *Selection) UnmarshalYAML(value *yaml.Node) error {
	var toggles map[string]bool
	if err := value.Decode(&toggles); err != nil {
		return err
	}

	for key, enabled := range toggles {
		gen, err := Get(strings.ReplaceAll(key, "_", "-"))
		if err != nil {
			return err
		}
		s.set(gen.Name, enabled)
	}
	return nil
}

// AllSelected returns a selection with every pattern enabled.
func AllSelected() Selection {
	return Selection{
		ConstantOne:         true,
		ConstantZero:        true,
		Checkerboard:        true,
		InverseCheckerboard: true,
	}
}

// ParseSelection parses a comma separated list of pattern names.
// An empty list or "all" selects every pattern.
func ParseSelection(list string) (Selection, error) {
	list = strings.TrimSpace(list)
	if list == "" || strings.EqualFold(list, "all") {
		return AllSelected(), nil
	}

	var sel Selection
	for _, name := range strings.Split(list, ",") {
		gen, err := Get(name)
		if err != nil {
			return Selection{}, err
		}
		sel.set(gen.Name, true)
	}
	return sel, nil
}

// Generators returns the enabled generators, always in run order
// regardless of the order they were enabled in.
func (s Selection) Generators() []Generator {
	enabled := map[string]bool{
		ConstantOne:         s.ConstantOne,
		ConstantZero:        s.ConstantZero,
		Checkerboard:        s.Checkerboard,
		InverseCheckerboard: s.InverseCheckerboard,
	}

	var gens []Generator
	for _, gen := range generators {
		if enabled[gen.Name] {
			gens = append(gens, gen)
		}
	}
	return gens
}

// Empty returns whether no pattern is enabled.
func (s Selection) Empty() bool {
	return len(s.Generators()) == 0
}

func (s *Selection) set(name string, enabled bool) {
	switch name {
	case ConstantOne:
		s.ConstantOne = enabled
	case ConstantZero:
		s.ConstantZero = enabled
	case Checkerboard:
		s.Checkerboard = enabled
	case InverseCheckerboard:
		s.InverseCheckerboard = enabled
	}
}
