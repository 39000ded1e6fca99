// Package pla captures the truth table of a programmable logic array.
package pla

import (
	"context"
	"fmt"
	"time"

	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/rom"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/retroenv/retrogolib/log"
)

// Table holds the output word for every input word.
type Table struct {
	Inputs  int
	Outputs int
	Words   []byte
}

// OutputStats describes the behavior of one output over the whole table.
type OutputStats struct {
	Output   int
	Ones     int  // input words that drive the output high
	Constant bool // output never changes, a hint for a dead output
}

// Capture presents every input word and records the outputs. A PLA is
// combinational and has no chip select.
func Capture(ctx context.Context, logger *log.Logger, lines signal.Lines, delay timing.Delayer,
	inputs, outputs int, settle time.Duration) (*Table, error) {

	cfg := rom.Config{
		Address: bus.Group{Prefix: signal.InputPrefix, Width: inputs},
		Data:    bus.Group{Prefix: signal.OutputPrefix, Width: outputs},
		Settle:  settle,
	}
	reader, err := rom.New(logger, lines, delay, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating reader: %w", err)
	}

	words, err := reader.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing truth table: %w", err)
	}
	return &Table{Inputs: inputs, Outputs: outputs, Words: words}, nil
}

// Output returns the output word for the input word.
func (t *Table) Output(input int) byte {
	return t.Words[input]
}

// Stats returns the statistics of every output.
func (t *Table) Stats() []OutputStats {
	stats := make([]OutputStats, t.Outputs)
	for i := range stats {
		stats[i].Output = i
	}

	for _, word := range t.Words {
		for i := range stats {
			if word&(1<<i) != 0 {
				stats[i].Ones++
			}
		}
	}

	for i := range stats {
		stats[i].Constant = stats[i].Ones == 0 || stats[i].Ones == len(t.Words)
	}
	return stats
}
