// Package signal defines the logical lines of a chip under test and the
// capability set used to drive and sample them.
package signal

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is the logical name of a chip line, independent of the physical pin
// it is wired to.
type Name string

// Control and data lines of a dynamic RAM.
const (
	RAS  Name = "RAS"  // row address strobe
	CAS  Name = "CAS"  // column address strobe
	WE   Name = "WE"   // write enable
	DIN  Name = "DIN"  // data input
	DOUT Name = "DOUT" // data output
)

// Control lines of ROM type chips.
const (
	CS Name = "CS" // chip select
)

// Indicator lines.
const (
	LED Name = "LED"
)

// Line group prefixes, a group member is named prefix + index, e.g. A0.
const (
	AddressPrefix = "A"
	DataPrefix    = "D"
	InputPrefix   = "I"
	OutputPrefix  = "F"
)

// Indexed returns the name of line index of a line group.
func Indexed(prefix string, index int) Name {
	return Name(prefix + strconv.Itoa(index))
}

// Address returns the name of address line index.
func Address(index int) Name {
	return Indexed(AddressPrefix, index)
}

// Data returns the name of data line index.
func Data(index int) Name {
	return Indexed(DataPrefix, index)
}

// PatternLED returns the name of the auxiliary indicator line of a test
// pattern, e.g. LED_INVERSE_CHECKERBOARD.
func PatternLED(pattern string) Name {
	name := strings.ToUpper(strings.ReplaceAll(pattern, "-", "_"))
	return LED + "_" + Name(name)
}

// Bit is the logical level of a line. One means asserted.
type Bit uint8

// Logical levels.
const (
	Zero Bit = 0
	One  Bit = 1
)

// BitOf converts a boolean to a Bit.
func BitOf(b bool) Bit {
	if b {
		return One
	}
	return Zero
}

// Invert returns the complement of the bit.
func (b Bit) Invert() Bit {
	return b ^ 1
}

func (b Bit) String() string {
	if b == Zero {
		return "0"
	}
	return "1"
}

// Lines is the capability set a platform provides to drive a chip.
// Assert and Deassert work on logical levels, a platform maps them to the
// electrical polarity of the line.
type Lines interface {
	// Assert drives the line to its active level.
	Assert(name Name) error
	// Deassert drives the line to its inactive level.
	Deassert(name Name) error
	// Read samples the line and returns One if it is at its active level.
	Read(name Name) (Bit, error)
}

// Set drives the line to the given logical level.
func Set(lines Lines, name Name, value Bit) error {
	var err error
	if value == One {
		err = lines.Assert(name)
	} else {
		err = lines.Deassert(name)
	}
	if err != nil {
		return fmt.Errorf("setting line %s to %s: %w", name, value, err)
	}
	return nil
}
