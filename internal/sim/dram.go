// Package sim provides simulated chips that implement signal.Lines, they
// react to the driven lines the same way the real parts latch addresses and
// data on strobe edges.
package sim

import (
	"time"

	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/signal"
)

// Access is one completed access of the simulated DRAM.
type Access struct {
	Row    int
	Column int
	Write  bool
	Value  signal.Bit // written or returned value
}

// Address of a cell.
type Address struct {
	Row    int
	Column int
}

// DRAMOption configures a simulated DRAM.
type DRAMOption func(*DRAM)

// WithStuckAt makes the cell at row, column always read as value.
func WithStuckAt(row, column int, value signal.Bit) DRAMOption {
	return func(d *DRAM) {
		d.stuck[Address{Row: row, Column: column}] = value
	}
}

// WithDeadOutput makes the data output always read as zero, like a chip
// that is missing or not powered.
func WithDeadOutput() DRAMOption {
	return func(d *DRAM) {
		d.dead = true
	}
}

// WithRefresh enables charge decay: a row that was not strobed for longer
// than interval loses its contents. now is the clock used to measure it.
func WithRefresh(interval time.Duration, now func() time.Time) DRAMOption {
	return func(d *DRAM) {
		d.refreshInterval = interval
		d.now = now
	}
}

// WithTrace records every completed access.
func WithTrace() DRAMOption {
	return func(d *DRAM) {
		d.trace = true
	}
}

// DRAM simulates a N x N x 1 bit dynamic RAM with multiplexed address.
type DRAM struct {
	address bus.Group
	size    int
	cells   []signal.Bit
	levels  map[signal.Name]signal.Bit

	row        int
	column     int
	rowValid   bool
	colValid   bool
	wroteCycle bool

	stuck map[Address]signal.Bit
	dead  bool

	refreshInterval time.Duration
	now             func() time.Time
	lastStrobe      []time.Time

	trace    bool
	accesses []Access
}

// NewDRAM returns a simulated DRAM with addressBits multiplexed address lines.
func NewDRAM(addressBits int, opts ...DRAMOption) *DRAM {
	size := 1 << addressBits
	d := &DRAM{
		address: bus.Address(addressBits),
		size:    size,
		cells:   make([]signal.Bit, size*size),
		levels:  map[signal.Name]signal.Bit{},
		stuck:   map[Address]signal.Bit{},
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.now != nil {
		start := d.now()
		d.lastStrobe = make([]time.Time, size)
		for i := range d.lastStrobe {
			d.lastStrobe[i] = start
		}
	}
	return d
}

// Size returns the number of rows and columns.
func (d *DRAM) Size() int {
	return d.size
}

// Assert implements signal.Lines.
func (d *DRAM) Assert(name signal.Name) error {
	previous := d.levels[name]
	d.levels[name] = signal.One
	if previous == signal.One {
		return nil
	}

	switch name {
	case signal.RAS:
		d.latchRow()
	case signal.CAS:
		d.latchColumn()
	}
	return nil
}

// Deassert implements signal.Lines.
func (d *DRAM) Deassert(name signal.Name) error {
	previous := d.levels[name]
	d.levels[name] = signal.Zero
	if previous == signal.Zero {
		return nil
	}

	switch name {
	case signal.RAS:
		d.rowValid = false
		d.colValid = false
	case signal.CAS:
		d.colValid = false
	}
	return nil
}

// Read implements signal.Lines. The data output only drives a value
// during a read cycle, at any other time it floats and reads as zero.
func (d *DRAM) Read(name signal.Name) (signal.Bit, error) {
	if name != signal.DOUT {
		return d.levels[name], nil
	}
	if d.dead || !d.rowValid || !d.colValid || d.wroteCycle {
		return signal.Zero, nil
	}

	value := d.cell(d.row, d.column)
	if d.trace {
		d.accesses = append(d.accesses, Access{Row: d.row, Column: d.column, Value: value})
	}
	return value, nil
}

// Level returns the currently driven level of a line.
func (d *DRAM) Level(name signal.Name) signal.Bit {
	return d.levels[name]
}

// Accesses returns the recorded accesses, WithTrace has to be set.
func (d *DRAM) Accesses() []Access {
	return d.accesses
}

// Peek returns the stored cell value without an access cycle.
func (d *DRAM) Peek(row, column int) signal.Bit {
	return d.cells[row*d.size+column]
}

func (d *DRAM) latchRow() {
	d.row = d.address.Decode(d.Level)
	d.rowValid = true
	d.colValid = false
	d.wroteCycle = false

	if d.now == nil {
		return
	}
	now := d.now()
	if now.Sub(d.lastStrobe[d.row]) > d.refreshInterval {
		for column := range d.size {
			d.cells[d.row*d.size+column] = signal.Zero
		}
	}
	d.lastStrobe[d.row] = now
}

func (d *DRAM) latchColumn() {
	if !d.rowValid {
		// CAS before RAS starts a refresh cycle on the real parts, no data access.
		return
	}
	d.column = d.address.Decode(d.Level)
	d.colValid = true

	if d.levels[signal.WE] != signal.One {
		return
	}

	value := d.levels[signal.DIN]
	d.cells[d.row*d.size+d.column] = value
	d.wroteCycle = true
	if d.trace {
		d.accesses = append(d.accesses, Access{Row: d.row, Column: d.column, Write: true, Value: value})
	}
}

func (d *DRAM) cell(row, column int) signal.Bit {
	if value, ok := d.stuck[Address{Row: row, Column: column}]; ok {
		return value
	}
	return d.cells[row*d.size+column]
}
