// Package pipeline orchestrates the chip test workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/retroenv/chipcheck/internal/bridge"
	"github.com/retroenv/chipcheck/internal/config"
	"github.com/retroenv/chipcheck/internal/detector"
	"github.com/retroenv/chipcheck/internal/dram"
	"github.com/retroenv/chipcheck/internal/gpio"
	"github.com/retroenv/chipcheck/internal/indicator"
	"github.com/retroenv/chipcheck/internal/loader"
	"github.com/retroenv/chipcheck/internal/metrics"
	"github.com/retroenv/chipcheck/internal/options"
	"github.com/retroenv/chipcheck/internal/pattern"
	"github.com/retroenv/chipcheck/internal/pla"
	"github.com/retroenv/chipcheck/internal/rom"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/sim"
	"github.com/retroenv/chipcheck/internal/sweep"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/retroenv/chipcheck/internal/verification"
	"github.com/retroenv/chipcheck/internal/writer"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// Result of a test run.
type Result struct {
	Summary      sweep.Summary        // DRAM test cycles
	Image        []byte               // captured ROM image or PLA truth table
	Verification *verification.Result // set if the capture was verified against a reference
}

// Failed returns whether the chip failed the test.
func (r Result) Failed() bool {
	if r.Summary.FailedCycles > 0 {
		return true
	}
	return r.Verification != nil && !r.Verification.Matched()
}

// target is a chip reached through a line driver.
type target struct {
	lines  signal.Lines
	delay  timing.Delayer
	driver string // line driver name for messages

	// indicatorLines is set if the board drives indicator lines.
	indicatorLines bool
}

// Pipeline orchestrates the complete chip test workflow.
type Pipeline struct {
	logger   *log.Logger
	fs       afero.Fs
	metrics  *metrics.Metrics
	detector *detector.Detector
	loader   *loader.Loader
}

// New creates a new test pipeline. The file system is used for profile
// references, output files and the sysfs backend, m is optional.
func New(logger *log.Logger, fs afero.Fs, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		logger:   logger,
		fs:       fs,
		metrics:  m,
		detector: detector.New(logger),
		loader:   loader.New(fs),
	}
}

// Execute opens the line driver selected by the port option and runs the test.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, profile config.Profile) (Result, error) {
	if err := checkProfile(opts, profile); err != nil {
		return Result{}, err
	}

	reference, err := p.loadReference(opts)
	if err != nil {
		return Result{}, err
	}

	backend := p.detector.Detect(opts)
	lines, delay, err := p.openLines(opts, profile, backend, reference)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s line driver: %w", backend, err)
	}
	defer func() {
		if closer, ok := lines.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	chip := target{
		lines:          lines,
		delay:          delay,
		driver:         string(backend),
		indicatorLines: backend != detector.Sysfs || hasIndicatorPin(profile),
	}
	return p.run(ctx, opts, profile, chip, reference)
}

// ExecuteWithLines runs the test on already opened lines.
// This is useful for testing and programmatic usage where the chip is driven
// by a custom or preconfigured line driver.
func (p *Pipeline) ExecuteWithLines(ctx context.Context, opts options.Program, profile config.Profile,
	lines signal.Lines, delay timing.Delayer) (Result, error) {

	if err := checkProfile(opts, profile); err != nil {
		return Result{}, err
	}

	reference, err := p.loadReference(opts)
	if err != nil {
		return Result{}, err
	}
	chip := target{
		lines:          lines,
		delay:          delay,
		driver:         "custom",
		indicatorLines: true,
	}
	return p.run(ctx, opts, profile, chip, reference)
}

func (p *Pipeline) loadReference(opts options.Program) ([]byte, error) {
	if opts.Reference == "" {
		return nil, nil
	}
	reference, err := p.loader.LoadImage(opts.Reference)
	if err != nil {
		return nil, fmt.Errorf("loading reference: %w", err)
	}
	return reference, nil
}

func (p *Pipeline) run(ctx context.Context, opts options.Program, profile config.Profile,
	chip target, reference []byte) (Result, error) {

	switch profile.Kind {
	case config.DRAM:
		return p.runDRAM(ctx, opts, profile, chip)
	case config.ROM:
		return p.runROM(ctx, opts, profile, chip, reference)
	case config.PLA:
		return p.runPLA(ctx, opts, profile, chip, reference)
	default:
		return Result{}, fmt.Errorf("unsupported chip kind '%s'", profile.Kind)
	}
}

// openLines creates the line driver for the backend. The simulator is
// loaded with the reference image so that a simulated capture verifies.
func (p *Pipeline) openLines(opts options.Program, profile config.Profile, backend detector.Backend,
	reference []byte) (signal.Lines, timing.Delayer, error) {

	switch backend {
	case detector.Simulator:
		return newSimulator(profile, reference), timing.None{}, nil

	case detector.Serial:
		b, err := bridge.Open(opts.Port, opts.Baud)
		if err != nil {
			return nil, nil, err
		}
		return b, timing.BusyWait{}, nil

	case detector.Sysfs:
		indicators, err := indicatorLines(opts, profile)
		if err != nil {
			return nil, nil, err
		}
		if missing := profile.MissingPins(indicators...); len(missing) > 0 {
			return nil, nil, fmt.Errorf("%w: %v", gpio.ErrUnmapped, missing)
		}
		s, err := gpio.Open(p.fs, opts.Port, profile.Pins)
		if err != nil {
			return nil, nil, err
		}
		return s, timing.BusyWait{}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend '%s'", backend)
	}
}

func newSimulator(profile config.Profile, reference []byte) signal.Lines {
	switch profile.Kind {
	case config.ROM:
		return sim.NewROM(profile.AddressBits, profile.DataBits, reference)
	case config.PLA:
		return sim.NewPLA(profile.AddressBits, profile.DataBits, reference)
	default:
		return sim.NewDRAM(profile.AddressBits)
	}
}

func (p *Pipeline) runDRAM(ctx context.Context, opts options.Program, profile config.Profile,
	chip target) (Result, error) {

	mem, err := dram.New(chip.lines, chip.delay, dram.Config{AddressBits: profile.AddressBits, Settle: profile.Settle})
	if err != nil {
		return Result{}, fmt.Errorf("creating dram: %w", err)
	}
	if err := mem.Idle(); err != nil {
		return Result{}, fmt.Errorf("idling dram lines: %w", err)
	}

	selection, err := selectPatterns(opts, profile)
	if err != nil {
		return Result{}, err
	}
	generators := selection.Generators()
	names := make([]string, len(generators))
	for i, gen := range generators {
		names[i] = gen.Name
	}

	mismatchLogger := sweep.NewMismatchLogger(p.logger)
	sweepOptions := []sweep.Option{
		sweep.OnMismatch(mismatchLogger.Log),
		sweep.OnRefreshOverrun(func(pass time.Duration) {
			p.logger.Warn("Column pass exceeds the refresh interval, rows may decay and fail",
				log.String("driver", chip.driver),
				log.String("pass", pass.String()),
				log.String("interval", timing.RefreshInterval.String()))
		}),
	}
	if p.metrics != nil {
		sweepOptions = append(sweepOptions,
			sweep.OnMismatch(p.metrics.Mismatch),
			sweep.OnCycle(p.metrics.CycleDone))
	}

	var indicators indicator.Multi
	if chip.indicatorLines {
		var perPattern []string
		if patternIndicators(opts, profile) {
			perPattern = names
		}
		indicators = append(indicators, indicator.NewLines(chip.lines, perPattern...))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Panel {
		panel, err := indicator.OpenTerminal("chipcheck "+profile.Name, names, cancel)
		if err != nil {
			return Result{}, fmt.Errorf("opening indicator panel: %w", err)
		}
		defer panel.Close()
		indicators = append(indicators, panel)
		sweepOptions = append(sweepOptions, sweep.OnCycle(panel.CycleDone))
	} else {
		indicators = append(indicators, indicator.NewLog(p.logger))
	}

	cfg := sweep.Config{
		Patterns:        generators,
		CycleSettle:     profile.CycleSettle,
		Dwell:           profile.Dwell,
		Cycles:          opts.Cycles,
		RefreshInterval: timing.RefreshInterval,
	}
	verifier, err := sweep.New(p.logger, mem, indicators, cfg, sweepOptions...)
	if err != nil {
		return Result{}, fmt.Errorf("creating verifier: %w", err)
	}

	summary, err := verifier.Run(ctx)
	result := Result{Summary: summary}
	if err != nil {
		return result, fmt.Errorf("running dram test: %w", err)
	}

	p.logger.Info("DRAM test finished",
		log.Int("cycles", summary.Cycles),
		log.Int("failed", summary.FailedCycles))
	return result, nil
}

// selectPatterns returns the patterns of the profile unless the pattern
// option is set, "all" then enables every pattern.
func selectPatterns(opts options.Program, profile config.Profile) (pattern.Selection, error) {
	selection := profile.Patterns
	if opts.Patterns != "" {
		var err error
		selection, err = pattern.ParseSelection(opts.Patterns)
		if err != nil {
			return pattern.Selection{}, fmt.Errorf("parsing patterns: %w", err)
		}
	}
	if selection.Empty() {
		return pattern.Selection{}, errors.New("no test pattern enabled")
	}
	return selection, nil
}

func patternIndicators(opts options.Program, profile config.Profile) bool {
	return opts.PatternLEDs || profile.PatternIndicators
}

// indicatorLines returns the indicator lines a DRAM test drives on a sysfs
// board. Indicators are only driven if the main indicator is wired.
func indicatorLines(opts options.Program, profile config.Profile) ([]signal.Name, error) {
	if profile.Kind != config.DRAM || !hasIndicatorPin(profile) {
		return nil, nil
	}

	names := []signal.Name{signal.LED}
	if !patternIndicators(opts, profile) {
		return names, nil
	}

	selection, err := selectPatterns(opts, profile)
	if err != nil {
		return nil, err
	}
	for _, gen := range selection.Generators() {
		names = append(names, signal.PatternLED(gen.Name))
	}
	return names, nil
}

func (p *Pipeline) runROM(ctx context.Context, opts options.Program, profile config.Profile,
	chip target, reference []byte) (Result, error) {

	reader, err := rom.New(p.logger, chip.lines, chip.delay, rom.NewConfig(profile.AddressBits, profile.DataBits, profile.Settle))
	if err != nil {
		return Result{}, fmt.Errorf("creating rom reader: %w", err)
	}

	image, err := reader.Capture(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capturing rom: %w", err)
	}
	result := Result{Image: image}

	if err := p.writeImage(opts, profile, image); err != nil {
		return result, err
	}

	if reference == nil {
		p.countCapture(nil)
		return result, nil
	}

	verified, err := verification.VerifyImage(p.logger, reference, image)
	return p.verified(result, verified, err)
}

func (p *Pipeline) runPLA(ctx context.Context, opts options.Program, profile config.Profile,
	chip target, reference []byte) (Result, error) {

	table, err := pla.Capture(ctx, p.logger, chip.lines, chip.delay, profile.AddressBits, profile.DataBits, profile.Settle)
	if err != nil {
		return Result{}, fmt.Errorf("capturing pla: %w", err)
	}
	result := Result{Image: table.Words}

	for _, stats := range table.Stats() {
		if stats.Constant {
			p.logger.Warn("PLA output never changes",
				log.Int("output", stats.Output),
				log.Int("ones", stats.Ones))
			continue
		}
		p.logger.Debug("PLA output",
			log.Int("output", stats.Output),
			log.Int("ones", stats.Ones))
	}

	if err := p.writeImage(opts, profile, table.Words); err != nil {
		return result, err
	}

	if reference == nil {
		p.countCapture(nil)
		return result, nil
	}

	mask := byte(0xff >> (8 - profile.DataBits))
	verified, err := verification.VerifyTable(p.logger, reference, table.Words, mask)
	return p.verified(result, verified, err)
}

// verified records a verification result. A mismatching capture is a test
// result, not an error.
func (p *Pipeline) verified(result Result, verified verification.Result, err error) (Result, error) {
	if err != nil && !errors.Is(err, verification.ErrMismatch) {
		return result, err
	}

	result.Verification = &verified
	p.countCapture(&verified)
	if verified.Matched() {
		p.logger.Info("Verification successful", log.Int("size", verified.Size))
	} else {
		p.logger.Error("Verification failed",
			log.Int("size", verified.Size),
			log.Int("mismatches", verified.Mismatches))
	}
	return result, nil
}

func (p *Pipeline) countCapture(verified *verification.Result) {
	if p.metrics == nil {
		return
	}
	if verified == nil {
		p.metrics.Capture(false, false)
		return
	}
	p.metrics.Capture(true, verified.Matched())
}

// writeImage writes the capture as binary file or as hex dump.
func (p *Pipeline) writeImage(opts options.Program, profile config.Profile, image []byte) error {
	if opts.Binary {
		return p.loader.SaveImage(opts.Output, image)
	}

	out, err := p.loader.CreateOutput(opts.Output)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	w := writer.New(out, writer.Options{Header: opts.Header})
	if err := w.Write(profile.Name+" "+profile.Description, image); err != nil {
		return fmt.Errorf("writing hex dump: %w", err)
	}
	return nil
}

func checkProfile(opts options.Program, profile config.Profile) error {
	if string(profile.Kind) != opts.Test {
		return fmt.Errorf("profile %s describes a %s chip, it can not be used for the %s test",
			profile.Name, profile.Kind, opts.Test)
	}
	return nil
}

func hasIndicatorPin(profile config.Profile) bool {
	_, ok := profile.Pins[signal.LED]
	return ok
}
