package sim

import (
	"testing"

	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/retrogolib/assert"
)

// cycle runs a RAS/CAS access on d with the given WE level and returns DOUT
// as sampled before the strobes are released.
func cycle(t *testing.T, d *DRAM, row, column int, write bool, value signal.Bit) signal.Bit {
	t.Helper()
	address := bus.Address(2)

	assert.NoError(t, signal.Set(d, signal.DIN, value))
	assert.NoError(t, signal.Set(d, signal.WE, signal.BitOf(write)))
	assert.NoError(t, address.Present(d, row))
	assert.NoError(t, d.Assert(signal.RAS))
	assert.NoError(t, address.Present(d, column))
	assert.NoError(t, d.Assert(signal.CAS))

	out, err := d.Read(signal.DOUT)
	assert.NoError(t, err)

	assert.NoError(t, d.Deassert(signal.WE))
	assert.NoError(t, d.Deassert(signal.CAS))
	assert.NoError(t, d.Deassert(signal.RAS))
	return out
}

func TestDRAM_LatchesOnStrobes(t *testing.T) {
	d := NewDRAM(2, WithTrace())

	out := cycle(t, d, 2, 3, true, signal.One)
	assert.Equal(t, signal.Zero, out) // output floats during a write cycle
	assert.Equal(t, signal.One, d.Peek(2, 3))
	assert.Equal(t, signal.Zero, d.Peek(3, 2))

	out = cycle(t, d, 2, 3, false, signal.Zero)
	assert.Equal(t, signal.One, out)
	assert.Equal(t, []Access{
		{Row: 2, Column: 3, Write: true, Value: signal.One},
		{Row: 2, Column: 3, Value: signal.One},
	}, d.Accesses())
}

func TestDRAM_OutputFloatsOutsideCycle(t *testing.T) {
	d := NewDRAM(2)
	cycle(t, d, 0, 0, true, signal.One)

	out, err := d.Read(signal.DOUT)
	assert.NoError(t, err)
	assert.Equal(t, signal.Zero, out)

	// CAS before RAS is a refresh cycle without data access
	assert.NoError(t, d.Assert(signal.CAS))
	assert.NoError(t, d.Assert(signal.RAS))
	out, err = d.Read(signal.DOUT)
	assert.NoError(t, err)
	assert.Equal(t, signal.Zero, out)
}

func TestDRAM_Faults(t *testing.T) {
	stuck := NewDRAM(2, WithStuckAt(1, 1, signal.One))
	assert.Equal(t, signal.One, cycle(t, stuck, 1, 1, false, signal.Zero))
	assert.Equal(t, signal.Zero, cycle(t, stuck, 1, 0, false, signal.Zero))

	dead := NewDRAM(2, WithDeadOutput())
	cycle(t, dead, 0, 0, true, signal.One)
	assert.Equal(t, signal.One, dead.Peek(0, 0))
	assert.Equal(t, signal.Zero, cycle(t, dead, 0, 0, false, signal.Zero))
}

func TestROM(t *testing.T) {
	r := NewROM(2, 8, []byte{0x00, 0xa5, 0xff})
	address := bus.Address(2)
	data := bus.Data(8)

	assert.NoError(t, address.Present(r, 1))
	value, err := data.Sample(r)
	assert.NoError(t, err)
	assert.Equal(t, 0, value) // not selected

	assert.NoError(t, r.Assert(signal.CS))
	value, err = data.Sample(r)
	assert.NoError(t, err)
	assert.Equal(t, 0xa5, value)

	// outside of the image
	assert.NoError(t, address.Present(r, 3))
	value, err = data.Sample(r)
	assert.NoError(t, err)
	assert.Equal(t, 0, value)
	assert.Equal(t, 2, r.Reads())
}

func TestPLA(t *testing.T) {
	p := NewPLA(2, 4, []byte{0x1, 0x2, 0x4, 0x8})
	inputs := bus.Group{Prefix: signal.InputPrefix, Width: 2}
	outputs := bus.Group{Prefix: signal.OutputPrefix, Width: 4}

	for input := range 4 {
		assert.NoError(t, inputs.Present(p, input))
		value, err := outputs.Sample(p)
		assert.NoError(t, err)
		assert.Equal(t, 1<<input, value)
	}
}
