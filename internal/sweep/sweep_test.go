package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retroenv/chipcheck/internal/dram"
	"github.com/retroenv/chipcheck/internal/pattern"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/sim"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type countingIndicator struct {
	fails        int
	patternFails map[string]int
	clears       int
}

func newCountingIndicator() *countingIndicator {
	return &countingIndicator{patternFails: map[string]int{}}
}

func (c *countingIndicator) Fail() error {
	c.fails++
	return nil
}

func (c *countingIndicator) PatternFail(name string) error {
	c.patternFails[name]++
	return nil
}

func (c *countingIndicator) Clear() error {
	c.clears++
	return nil
}

func newChip(t *testing.T, addressBits int, opts ...sim.DRAMOption) (*dram.Chip, *sim.DRAM) {
	t.Helper()

	chipSim := sim.NewDRAM(addressBits, opts...)
	chip, err := dram.New(chipSim, timing.None{}, dram.Config{AddressBits: addressBits})
	assert.NoError(t, err)
	return chip, chipSim
}

func newVerifier(t *testing.T, mem Memory, ind Indicator, cfg Config, opts ...Option) *Verifier {
	t.Helper()

	if cfg.Patterns == nil {
		cfg.Patterns = pattern.All()
	}
	v, err := New(log.NewTestLogger(t), mem, ind, cfg, opts...)
	assert.NoError(t, err)
	return v
}

func TestNew_NoPatterns(t *testing.T) {
	chip, _ := newChip(t, 2)
	_, err := New(log.NewTestLogger(t), chip, newCountingIndicator(), Config{Patterns: []pattern.Generator{}})
	assert.True(t, errors.Is(err, errNoPatterns))
}

func TestSweep_HealthyChipStoresPattern(t *testing.T) {
	chip, chipSim := newChip(t, 3)
	v := newVerifier(t, chip, newCountingIndicator(), Config{})

	for _, gen := range pattern.All() {
		t.Run(gen.Name, func(t *testing.T) {
			mismatches, err := v.Sweep(context.Background(), gen)
			assert.NoError(t, err)
			assert.Equal(t, 0, mismatches)

			for row := range chip.Size() {
				for column := range chip.Size() {
					assert.Equal(t, gen.Bit(row, column), chipSim.Peek(row, column))
				}
			}
		})
	}
}

func TestSweep_VisitsEveryAddressOnce(t *testing.T) {
	chip, chipSim := newChip(t, 4, sim.WithTrace())
	v := newVerifier(t, chip, newCountingIndicator(), Config{})

	gen, err := pattern.Get(pattern.Checkerboard)
	assert.NoError(t, err)
	_, err = v.Sweep(context.Background(), gen)
	assert.NoError(t, err)

	size := chip.Size()
	writes := map[sim.Address]int{}
	reads := map[sim.Address]int{}
	for _, access := range chipSim.Accesses() {
		addr := sim.Address{Row: access.Row, Column: access.Column}
		if access.Write {
			writes[addr]++
		} else {
			reads[addr]++
		}
	}

	assert.Len(t, chipSim.Accesses(), 2*size*size)
	assert.Equal(t, size*size, len(writes))
	assert.Equal(t, size*size, len(reads))
	for addr, count := range writes {
		assert.Equal(t, 1, count, "address written more than once")
		assert.True(t, addr.Row < size && addr.Column < size)
	}
	for _, count := range reads {
		assert.Equal(t, 1, count, "address read more than once")
	}
}

func TestSweep_ToyAddressSpace(t *testing.T) {
	chip, chipSim := newChip(t, 2, sim.WithTrace(), sim.WithStuckAt(2, 2, signal.Zero))

	var mismatches []Mismatch
	var accessesAtMismatch []int
	v := newVerifier(t, chip, newCountingIndicator(), Config{}, OnMismatch(func(m Mismatch) {
		mismatches = append(mismatches, m)
		accessesAtMismatch = append(accessesAtMismatch, len(chipSim.Accesses()))
	}))

	gen, err := pattern.Get(pattern.ConstantOne)
	assert.NoError(t, err)
	count, err := v.Sweep(context.Background(), gen)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	var expected []sim.Address
	for column := range 4 {
		for row := range 4 {
			expected = append(expected, sim.Address{Row: row, Column: column})
		}
	}

	accesses := chipSim.Accesses()
	assert.Len(t, accesses, 32)
	for i, addr := range expected {
		write := accesses[i]
		assert.True(t, write.Write)
		assert.Equal(t, addr, sim.Address{Row: write.Row, Column: write.Column})

		read := accesses[16+i]
		assert.False(t, read.Write)
		assert.Equal(t, addr, sim.Address{Row: read.Row, Column: read.Column})
	}

	assert.Len(t, mismatches, 1)
	assert.Equal(t, Mismatch{Pattern: pattern.ConstantOne, Row: 2, Column: 2, Expected: signal.One, Got: signal.Zero}, mismatches[0])
	// (2,2) is the 11th address of the verify pass
	assert.Equal(t, 16+2*4+2+1, accessesAtMismatch[0])
}

func TestCycle_DeadChipFlagsOncePerPattern(t *testing.T) {
	chip, _ := newChip(t, 3, sim.WithDeadOutput())
	ind := newCountingIndicator()

	var mismatchCount int
	v := newVerifier(t, chip, ind, Config{}, OnMismatch(func(Mismatch) { mismatchCount++ }))

	result, err := v.Cycle(context.Background(), 1)
	assert.NoError(t, err)

	size := chip.Size()
	assert.Equal(t, size*size, result.Mismatches[pattern.ConstantOne])
	assert.Equal(t, 0, result.Mismatches[pattern.ConstantZero])
	assert.Equal(t, size*size/2, result.Mismatches[pattern.Checkerboard])
	assert.Equal(t, size*size/2, result.Mismatches[pattern.InverseCheckerboard])
	assert.Equal(t, 2*size*size, mismatchCount)

	assert.Equal(t, []string{pattern.ConstantOne, pattern.Checkerboard, pattern.InverseCheckerboard}, result.Failed)
	assert.True(t, v.Flags().IsSet(pattern.ConstantOne))
	assert.False(t, v.Flags().IsSet(pattern.ConstantZero))

	assert.Equal(t, 1, ind.fails)
	assert.Equal(t, 1, ind.patternFails[pattern.ConstantOne])
	assert.Equal(t, 0, ind.patternFails[pattern.ConstantZero])
	assert.Equal(t, 0, ind.clears)
}

func TestRun_HealthyChip(t *testing.T) {
	chip, _ := newChip(t, 3)
	ind := newCountingIndicator()

	var results []CycleResult
	v := newVerifier(t, chip, ind, Config{Cycles: 2}, OnCycle(func(r CycleResult) {
		results = append(results, r)
	}))

	summary, err := v.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Summary{Cycles: 2}, summary)
	assert.Len(t, results, 2)
	for i, result := range results {
		assert.Equal(t, i+1, result.Cycle)
		assert.True(t, result.Passed())
	}

	assert.Equal(t, 0, ind.fails)
	assert.Equal(t, 0, len(ind.patternFails))
	assert.Equal(t, 2, ind.clears)
	assert.False(t, v.Flags().Any())
}

func TestRun_FlagsClearedBetweenCycles(t *testing.T) {
	chip, _ := newChip(t, 2, sim.WithDeadOutput())
	ind := newCountingIndicator()

	gen, err := pattern.Get(pattern.ConstantOne)
	assert.NoError(t, err)
	v := newVerifier(t, chip, ind, Config{Patterns: []pattern.Generator{gen}, Cycles: 3})

	summary, err := v.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Summary{Cycles: 3, FailedCycles: 3}, summary)

	assert.Equal(t, 3, ind.fails)
	assert.Equal(t, 3, ind.patternFails[pattern.ConstantOne])
	assert.Equal(t, 3, ind.clears)
	assert.False(t, v.Flags().Any())
}

func TestRun_Cancelled(t *testing.T) {
	chip, _ := newChip(t, 2)
	v := newVerifier(t, chip, newCountingIndicator(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := v.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, summary.Cycles)
}

func TestCheckerboardComplement(t *testing.T) {
	checker, err := pattern.Get(pattern.Checkerboard)
	assert.NoError(t, err)
	inverse, err := pattern.Get(pattern.InverseCheckerboard)
	assert.NoError(t, err)

	for row := range 16 {
		for column := range 16 {
			assert.True(t, checker.Bit(row, column) != inverse.Bit(row, column))
		}
	}
}

// tickingLines advances a clock by a fixed step on every line operation.
type tickingLines struct {
	signal.Lines
	now  *time.Time
	step time.Duration
}

func (l tickingLines) Assert(name signal.Name) error {
	*l.now = l.now.Add(l.step)
	return l.Lines.Assert(name)
}

func (l tickingLines) Deassert(name signal.Name) error {
	*l.now = l.now.Add(l.step)
	return l.Lines.Deassert(name)
}

func (l tickingLines) Read(name signal.Name) (signal.Bit, error) {
	*l.now = l.now.Add(l.step)
	return l.Lines.Read(name)
}

func TestSweep_RefreshOverrun(t *testing.T) {
	tests := []struct {
		name       string
		step       time.Duration
		overrun    bool
		mismatches bool
	}{
		{name: "fast line driver", step: time.Microsecond},
		{name: "slow line driver", step: 100 * time.Microsecond, overrun: true, mismatches: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(0, 0)
			clock := func() time.Time { return now }

			chipSim := sim.NewDRAM(3, sim.WithRefresh(timing.RefreshInterval, clock))
			lines := tickingLines{Lines: chipSim, now: &now, step: tt.step}
			chip, err := dram.New(lines, timing.None{}, dram.Config{AddressBits: 3})
			assert.NoError(t, err)

			ones, err := pattern.Get(pattern.ConstantOne)
			assert.NoError(t, err)

			var passes []time.Duration
			cfg := Config{
				Patterns:        []pattern.Generator{ones},
				RefreshInterval: timing.RefreshInterval,
				Now:             clock,
			}
			v := newVerifier(t, chip, newCountingIndicator(), cfg,
				OnRefreshOverrun(func(pass time.Duration) { passes = append(passes, pass) }))

			mismatches, err := v.Sweep(context.Background(), ones)
			assert.NoError(t, err)
			assert.Equal(t, tt.mismatches, mismatches > 0)

			// a second sweep does not report again
			_, err = v.Sweep(context.Background(), ones)
			assert.NoError(t, err)

			if !tt.overrun {
				assert.Equal(t, 0, len(passes))
				return
			}
			assert.Equal(t, 1, len(passes))
			assert.True(t, passes[0] > timing.RefreshInterval)
		})
	}
}
