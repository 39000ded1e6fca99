// Package bus presents values on groups of lines and samples them back.
package bus

import (
	"fmt"

	"github.com/retroenv/chipcheck/internal/signal"
)

// Group is a set of lines sharing a name prefix, line 0 is the least
// significant bit.
type Group struct {
	Prefix string
	Width  int
}

// Address returns the address bus group of the given width.
func Address(width int) Group {
	return Group{Prefix: signal.AddressPrefix, Width: width}
}

// Data returns the data bus group of the given width.
func Data(width int) Group {
	return Group{Prefix: signal.DataPrefix, Width: width}
}

// Names returns the line names of the group, least significant first.
func (g Group) Names() []signal.Name {
	names := make([]signal.Name, g.Width)
	for i := range g.Width {
		names[i] = signal.Indexed(g.Prefix, i)
	}
	return names
}

// Size returns the number of distinct values the group can carry.
func (g Group) Size() int {
	return 1 << g.Width
}

// Present drives the value onto the lines of the group. Bits of value
// above the group width are ignored.
func (g Group) Present(lines signal.Lines, value int) error {
	for i := range g.Width {
		bit := signal.BitOf(value&(1<<i) != 0)
		if err := signal.Set(lines, signal.Indexed(g.Prefix, i), bit); err != nil {
			return fmt.Errorf("presenting %s bus value %d: %w", g.Prefix, value, err)
		}
	}
	return nil
}

// Sample reads all lines of the group and assembles them into a value.
func (g Group) Sample(lines signal.Lines) (int, error) {
	var value int
	for i := range g.Width {
		name := signal.Indexed(g.Prefix, i)
		bit, err := lines.Read(name)
		if err != nil {
			return 0, fmt.Errorf("sampling line %s: %w", name, err)
		}
		if bit == signal.One {
			value |= 1 << i
		}
	}
	return value, nil
}

// Decode assembles the value of the group from a line state lookup.
// It is used by simulated chips that observe the lines being driven.
func (g Group) Decode(level func(signal.Name) signal.Bit) int {
	var value int
	for i := range g.Width {
		if level(signal.Indexed(g.Prefix, i)) == signal.One {
			value |= 1 << i
		}
	}
	return value
}
