package sim

import (
	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/signal"
)

// ROM simulates a read only chip: the data lines carry the image byte of
// the address presented on the input lines. It covers mask ROMs with a chip
// select and combinational parts like PLAs without one.
type ROM struct {
	input      bus.Group
	output     bus.Group
	image      []byte
	needSelect bool
	levels     map[signal.Name]signal.Bit
	reads      int
}

// NewROM returns a simulated ROM that requires chip select to drive its
// data lines.
func NewROM(addressBits, dataBits int, image []byte) *ROM {
	return &ROM{
		input:      bus.Address(addressBits),
		output:     bus.Data(dataBits),
		image:      image,
		needSelect: true,
		levels:     map[signal.Name]signal.Bit{},
	}
}

// NewPLA returns a simulated PLA, table holds the output word for every
// input word.
func NewPLA(inputs, outputs int, table []byte) *ROM {
	return &ROM{
		input:  bus.Group{Prefix: signal.InputPrefix, Width: inputs},
		output: bus.Group{Prefix: signal.OutputPrefix, Width: outputs},
		image:  table,
		levels: map[signal.Name]signal.Bit{},
	}
}

// Assert implements signal.Lines.
func (r *ROM) Assert(name signal.Name) error {
	r.levels[name] = signal.One
	return nil
}

// Deassert implements signal.Lines.
func (r *ROM) Deassert(name signal.Name) error {
	r.levels[name] = signal.Zero
	return nil
}

// Read implements signal.Lines. Output lines float to zero while the chip
// is not selected or the address is outside of the image.
func (r *ROM) Read(name signal.Name) (signal.Bit, error) {
	index, ok := r.outputIndex(name)
	if !ok {
		return r.levels[name], nil
	}
	if r.needSelect && r.levels[signal.CS] != signal.One {
		return signal.Zero, nil
	}

	if index == 0 {
		r.reads++
	}
	address := r.input.Decode(r.Level)
	if address >= len(r.image) {
		return signal.Zero, nil
	}
	return signal.BitOf(r.image[address]&(1<<index) != 0), nil
}

// Level returns the currently driven level of a line.
func (r *ROM) Level(name signal.Name) signal.Bit {
	return r.levels[name]
}

// Reads returns how many data words were sampled, counted on line 0.
func (r *ROM) Reads() int {
	return r.reads
}

func (r *ROM) outputIndex(name signal.Name) (int, bool) {
	for i, output := range r.output.Names() {
		if output == name {
			return i, true
		}
	}
	return 0, false
}
