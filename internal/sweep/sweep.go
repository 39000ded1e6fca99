// Package sweep implements the exhaustive write and verify sweep over the
// address space of a memory chip and the endless test cycle around it.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retroenv/chipcheck/internal/pattern"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/retrogolib/log"
)

var errNoPatterns = errors.New("no test pattern enabled")

// Memory is a bit addressable memory with N rows and N columns.
type Memory interface {
	Size() int
	Write(row, column int, value signal.Bit) error
	Read(row, column int) (signal.Bit, error)
}

// Indicator presents the test state to the operator.
type Indicator interface {
	// Fail activates the main indicator, called on the first mismatch of a cycle.
	Fail() error
	// PatternFail activates the indicator of a pattern, called on the first
	// mismatch of the pattern in a cycle.
	PatternFail(name string) error
	// Clear resets all indicators to inactive.
	Clear() error
}

// Mismatch describes a verify read that did not return the written value.
type Mismatch struct {
	Pattern  string
	Row      int
	Column   int
	Expected signal.Bit
	Got      signal.Bit
}

// CycleResult is the outcome of one cycle over all enabled patterns.
type CycleResult struct {
	Cycle      int
	Failed     []string       // patterns with at least one mismatch
	Mismatches map[string]int // mismatch count per pattern
	Duration   time.Duration
}

// Passed returns whether no pattern failed.
func (r CycleResult) Passed() bool {
	return len(r.Failed) == 0
}

// Summary is the outcome of a run.
type Summary struct {
	Cycles       int
	FailedCycles int
}

// Config controls the test cycle.
type Config struct {
	Patterns    []pattern.Generator
	CycleSettle time.Duration // wait after the last pattern before presenting results
	Dwell       time.Duration // time the results stay visible before they are cleared
	Cycles      int           // number of cycles to run, 0 runs until cancelled

	// RefreshInterval is the longest time a row may go without a strobe.
	// A row is strobed once per column pass, a slower pass is reported
	// once per verifier. Zero disables the check.
	RefreshInterval time.Duration
	// Now returns the current time, time.Now if not set.
	Now func() time.Time
}

// Option configures a verifier.
type Option func(*Verifier)

// OnMismatch registers a function called for every mismatch.
func OnMismatch(fn func(Mismatch)) Option {
	return func(v *Verifier) {
		v.mismatchHandlers = append(v.mismatchHandlers, fn)
	}
}

// OnCycle registers a function called after every completed cycle.
func OnCycle(fn func(CycleResult)) Option {
	return func(v *Verifier) {
		v.cycleHandlers = append(v.cycleHandlers, fn)
	}
}

// OnRefreshOverrun registers a function called the first time a column
// pass takes longer than the refresh interval.
func OnRefreshOverrun(fn func(pass time.Duration)) Option {
	return func(v *Verifier) {
		v.overrunHandlers = append(v.overrunHandlers, fn)
	}
}

// Verifier runs sweeps against a memory.
type Verifier struct {
	logger    *log.Logger
	mem       Memory
	indicator Indicator
	cfg       Config
	flags     *Flags

	overrun bool

	mismatchHandlers []func(Mismatch)
	cycleHandlers    []func(CycleResult)
	overrunHandlers  []func(time.Duration)
}

// New returns a verifier for the memory.
func New(logger *log.Logger, mem Memory, indicator Indicator, cfg Config, opts ...Option) (*Verifier, error) {
	if len(cfg.Patterns) == 0 {
		return nil, errNoPatterns
	}

	names := make([]string, len(cfg.Patterns))
	for i, gen := range cfg.Patterns {
		names[i] = gen.Name
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	v := &Verifier{
		logger:    logger,
		mem:       mem,
		indicator: indicator,
		cfg:       cfg,
		flags:     NewFlags(names...),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Flags returns the failure flags of the current cycle.
func (v *Verifier) Flags() *Flags {
	return v.flags
}

// Run repeats test cycles until the context is cancelled or the configured
// number of cycles has completed.
func (v *Verifier) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	for cycle := 1; v.cfg.Cycles == 0 || cycle <= v.cfg.Cycles; cycle++ {
		result, err := v.Cycle(ctx, cycle)
		if err != nil {
			return summary, err
		}
		summary.Cycles++
		if !result.Passed() {
			summary.FailedCycles++
		}

		if err := wait(ctx, v.cfg.CycleSettle); err != nil {
			return summary, err
		}
		v.report(result)
		if err := wait(ctx, v.cfg.Dwell); err != nil {
			return summary, err
		}

		v.flags.Clear()
		if err := v.indicator.Clear(); err != nil {
			return summary, fmt.Errorf("clearing indicator: %w", err)
		}
	}
	return summary, nil
}

// Cycle runs a sweep for every enabled pattern in order. The failure flags
// are not cleared, the caller presents and clears them.
func (v *Verifier) Cycle(ctx context.Context, number int) (CycleResult, error) {
	start := v.cfg.Now()
	result := CycleResult{
		Cycle:      number,
		Mismatches: make(map[string]int, len(v.cfg.Patterns)),
	}

	for _, gen := range v.cfg.Patterns {
		mismatches, err := v.Sweep(ctx, gen)
		if err != nil {
			return result, fmt.Errorf("sweeping pattern %s: %w", gen.Name, err)
		}
		result.Mismatches[gen.Name] = mismatches
	}

	result.Failed = v.flags.Failed()
	result.Duration = v.cfg.Now().Sub(start)
	for _, fn := range v.cycleHandlers {
		fn(result)
	}
	return result, nil
}

// Sweep writes the pattern to every address and then reads every address
// back, in both passes column outer and row inner. The sweep does not stop
// at a mismatch so that the chip always sees the full address range.
// It returns the number of mismatches.
func (v *Verifier) Sweep(ctx context.Context, gen pattern.Generator) (int, error) {
	size := v.mem.Size()

	for column := range size {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := v.cfg.Now()
		for row := range size {
			if err := v.mem.Write(row, column, gen.Bit(row, column)); err != nil {
				return 0, fmt.Errorf("writing row %d column %d: %w", row, column, err)
			}
		}
		v.checkRefresh(start)
	}

	var mismatches int
	for column := range size {
		if err := ctx.Err(); err != nil {
			return mismatches, err
		}
		start := v.cfg.Now()
		for row := range size {
			got, err := v.mem.Read(row, column)
			if err != nil {
				return mismatches, fmt.Errorf("reading row %d column %d: %w", row, column, err)
			}

			expected := gen.Bit(row, column)
			if got == expected {
				continue
			}

			mismatches++
			if err := v.flag(Mismatch{Pattern: gen.Name, Row: row, Column: column, Expected: expected, Got: got}); err != nil {
				return mismatches, err
			}
		}
		v.checkRefresh(start)
	}

	v.logger.Debug("Pattern swept",
		log.String("pattern", gen.Name),
		log.Int("mismatches", mismatches))
	return mismatches, nil
}

// checkRefresh reports the first column pass that started at start and
// took longer than the refresh interval.
func (v *Verifier) checkRefresh(start time.Time) {
	if v.overrun || v.cfg.RefreshInterval <= 0 {
		return
	}
	pass := v.cfg.Now().Sub(start)
	if pass <= v.cfg.RefreshInterval {
		return
	}

	v.overrun = true
	for _, fn := range v.overrunHandlers {
		fn(pass)
	}
}

func (v *Verifier) flag(m Mismatch) error {
	for _, fn := range v.mismatchHandlers {
		fn(m)
	}

	first := !v.flags.Any()
	if !v.flags.Set(m.Pattern) {
		return nil
	}

	if first {
		if err := v.indicator.Fail(); err != nil {
			return fmt.Errorf("activating indicator: %w", err)
		}
	}
	if err := v.indicator.PatternFail(m.Pattern); err != nil {
		return fmt.Errorf("activating indicator of pattern %s: %w", m.Pattern, err)
	}
	return nil
}

func (v *Verifier) report(result CycleResult) {
	if result.Passed() {
		v.logger.Info("Cycle passed",
			log.Int("cycle", result.Cycle),
			log.String("duration", result.Duration.String()))
		return
	}

	for _, name := range result.Failed {
		v.logger.Error("Pattern failed",
			log.Int("cycle", result.Cycle),
			log.String("pattern", name),
			log.Int("mismatches", result.Mismatches[name]))
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
