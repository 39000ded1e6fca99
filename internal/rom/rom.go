// Package rom captures the contents of read only chips by presenting every
// address and sampling the data lines.
package rom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retroenv/chipcheck/internal/bus"
	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/chipcheck/internal/timing"
	"github.com/retroenv/retrogolib/log"
)

// maximum supported address width, 16M words
const maxAddressBits = 24

// progress is logged every progressInterval words.
const progressInterval = 0x1000

var errDataWidth = errors.New("data bus width must be between 1 and 8")

// Config describes how the chip is read.
type Config struct {
	Address bus.Group
	Data    bus.Group
	Select  signal.Name // chip select line, empty if the chip has none
	Settle  time.Duration
}

// NewConfig returns the configuration of a ROM with chip select.
func NewConfig(addressBits, dataBits int, settle time.Duration) Config {
	return Config{
		Address: bus.Address(addressBits),
		Data:    bus.Data(dataBits),
		Select:  signal.CS,
		Settle:  settle,
	}
}

// Reader captures chip contents.
type Reader struct {
	logger *log.Logger
	lines  signal.Lines
	delay  timing.Delayer
	cfg    Config
}

// New returns a reader for the chip on lines.
func New(logger *log.Logger, lines signal.Lines, delay timing.Delayer, cfg Config) (*Reader, error) {
	if cfg.Address.Width <= 0 || cfg.Address.Width > maxAddressBits {
		return nil, fmt.Errorf("address bus width must be between 1 and %d", maxAddressBits)
	}
	if cfg.Data.Width <= 0 || cfg.Data.Width > 8 {
		return nil, errDataWidth
	}
	if delay == nil {
		delay = timing.BusyWait{}
	}
	return &Reader{
		logger: logger,
		lines:  lines,
		delay:  delay,
		cfg:    cfg,
	}, nil
}

// ReadWord returns the data word stored at address.
func (r *Reader) ReadWord(address int) (byte, error) {
	if err := r.cfg.Address.Present(r.lines, address); err != nil {
		return 0, err
	}
	if r.cfg.Select != "" {
		if err := r.lines.Assert(r.cfg.Select); err != nil {
			return 0, fmt.Errorf("selecting chip: %w", err)
		}
	}

	r.delay.Wait(r.cfg.Settle)

	value, err := r.cfg.Data.Sample(r.lines)
	if err != nil {
		return 0, fmt.Errorf("reading address %04X: %w", address, err)
	}

	if r.cfg.Select != "" {
		if err := r.lines.Deassert(r.cfg.Select); err != nil {
			return 0, fmt.Errorf("deselecting chip: %w", err)
		}
	}
	return byte(value), nil
}

// Capture reads every address of the chip in ascending order.
func (r *Reader) Capture(ctx context.Context) ([]byte, error) {
	size := r.cfg.Address.Size()
	image := make([]byte, size)

	for address := range size {
		if address%progressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.logger.Debug("Capturing", log.Hex("address", address))
		}

		value, err := r.ReadWord(address)
		if err != nil {
			return nil, err
		}
		image[address] = value
	}
	return image, nil
}
