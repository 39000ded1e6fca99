// Package dram implements the access primitives of a 1 bit wide dynamic RAM
// with multiplexed row and column address.
package dram

import (
	"errors"
	"fmt"
	"time"

	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/timing"
)

// readSettleUnits is the number of settle delays a read waits before
// sampling, the output needs an extra delay to be driven.
const readSettleUnits = 2

var errNoAddressBits = errors.New("address bus width must be positive")

// Config describes the chip geometry and timing.
type Config struct {
	AddressBits int           // multiplexed address lines, N = 1 << AddressBits
	Settle      time.Duration // minimum settle delay
}

// Chip translates logical bit accesses into the strobe sequences of the
// chip. Accesses must be serialized by the caller.
type Chip struct {
	lines   signal.Lines
	delay   timing.Delayer
	address bus.Group
	settle  time.Duration
}

// New returns a chip accessed through the given lines.
func New(lines signal.Lines, delay timing.Delayer, cfg Config) (*Chip, error) {
	if cfg.AddressBits <= 0 {
		return nil, errNoAddressBits
	}
	if delay == nil {
		delay = timing.BusyWait{}
	}
	return &Chip{
		lines:   lines,
		delay:   delay,
		address: bus.Address(cfg.AddressBits),
		settle:  cfg.Settle,
	}, nil
}

// Size returns N, the number of rows and also of columns.
func (c *Chip) Size() int {
	return c.address.Size()
}

// Idle puts all control lines to their inactive level.
func (c *Chip) Idle() error {
	for _, name := range []signal.Name{signal.WE, signal.CAS, signal.RAS} {
		if err := c.lines.Deassert(name); err != nil {
			return fmt.Errorf("idling line %s: %w", name, err)
		}
	}
	return nil
}

// Write stores value at the given address using an early write cycle.
func (c *Chip) Write(row, column int, value signal.Bit) error {
	if err := signal.Set(c.lines, signal.DIN, value); err != nil {
		return err
	}
	if err := c.lines.Assert(signal.WE); err != nil {
		return fmt.Errorf("asserting write enable: %w", err)
	}
	if err := c.strobe(row, column); err != nil {
		return err
	}

	c.delay.Wait(c.settle)

	for _, name := range []signal.Name{signal.WE, signal.CAS, signal.RAS} {
		if err := c.lines.Deassert(name); err != nil {
			return fmt.Errorf("ending write cycle at line %s: %w", name, err)
		}
	}
	return nil
}

// Read returns the bit stored at the given address.
func (c *Chip) Read(row, column int) (signal.Bit, error) {
	if err := c.strobe(row, column); err != nil {
		return signal.Zero, err
	}

	c.delay.Wait(readSettleUnits * c.settle)

	value, err := c.lines.Read(signal.DOUT)
	if err != nil {
		return signal.Zero, fmt.Errorf("sampling data output: %w", err)
	}

	for _, name := range []signal.Name{signal.CAS, signal.RAS} {
		if err := c.lines.Deassert(name); err != nil {
			return signal.Zero, fmt.Errorf("ending read cycle at line %s: %w", name, err)
		}
	}
	return value, nil
}

// strobe latches the row and then the column address.
func (c *Chip) strobe(row, column int) error {
	if err := c.address.Present(c.lines, row); err != nil {
		return fmt.Errorf("presenting row %d: %w", row, err)
	}
	if err := c.lines.Assert(signal.RAS); err != nil {
		return fmt.Errorf("asserting row strobe: %w", err)
	}
	if err := c.address.Present(c.lines, column); err != nil {
		return fmt.Errorf("presenting column %d: %w", column, err)
	}
	if err := c.lines.Assert(signal.CAS); err != nil {
		return fmt.Errorf("asserting column strobe: %w", err)
	}
	return nil
}
