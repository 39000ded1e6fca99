// Package indicator implements the ways a test cycle result is presented
// to the operator.
package indicator

import (
	"errors"
	"fmt"

	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/retrogolib/log"
)

// Lines drives indicator lines of the test board: the main LED and
// optionally one line per pattern.
type Lines struct {
	lines      signal.Lines
	perPattern []string
}

// NewLines returns an indicator driving LED. For each name in patterns an
// auxiliary line is driven as well.
func NewLines(lines signal.Lines, patterns ...string) *Lines {
	return &Lines{
		lines:      lines,
		perPattern: patterns,
	}
}

// Fail drives the main indicator active.
func (l *Lines) Fail() error {
	if err := l.lines.Assert(signal.LED); err != nil {
		return fmt.Errorf("asserting indicator: %w", err)
	}
	return nil
}

// PatternFail drives the pattern indicator active if it is wired.
func (l *Lines) PatternFail(name string) error {
	for _, pattern := range l.perPattern {
		if pattern != name {
			continue
		}
		line := signal.PatternLED(name)
		if err := l.lines.Assert(line); err != nil {
			return fmt.Errorf("asserting indicator %s: %w", line, err)
		}
	}
	return nil
}

// Clear drives all indicator lines inactive.
func (l *Lines) Clear() error {
	if err := l.lines.Deassert(signal.LED); err != nil {
		return fmt.Errorf("clearing indicator: %w", err)
	}
	for _, pattern := range l.perPattern {
		line := signal.PatternLED(pattern)
		if err := l.lines.Deassert(line); err != nil {
			return fmt.Errorf("clearing indicator %s: %w", line, err)
		}
	}
	return nil
}

// Log reports indicator changes to the logger.
type Log struct {
	logger *log.Logger
}

// NewLog returns an indicator writing to the logger.
func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger}
}

// Fail implements sweep.Indicator.
func (l *Log) Fail() error {
	l.logger.Error("Chip failed verification")
	return nil
}

// PatternFail implements sweep.Indicator.
func (l *Log) PatternFail(name string) error {
	l.logger.Warn("Pattern mismatch detected", log.String("pattern", name))
	return nil
}

// Clear implements sweep.Indicator.
func (l *Log) Clear() error {
	l.logger.Debug("Indicators cleared")
	return nil
}

// Indicator is the interface all indicators implement, it matches
// sweep.Indicator.
type Indicator interface {
	Fail() error
	PatternFail(name string) error
	Clear() error
}

// Multi forwards every call to all its indicators.
type Multi []Indicator

// Fail implements sweep.Indicator.
func (m Multi) Fail() error {
	var errs []error
	for _, ind := range m {
		errs = append(errs, ind.Fail())
	}
	return errors.Join(errs...)
}

// PatternFail implements sweep.Indicator.
func (m Multi) PatternFail(name string) error {
	var errs []error
	for _, ind := range m {
		errs = append(errs, ind.PatternFail(name))
	}
	return errors.Join(errs...)
}

// Clear implements sweep.Indicator.
func (m Multi) Clear() error {
	var errs []error
	for _, ind := range m {
		errs = append(errs, ind.Clear())
	}
	return errors.Join(errs...)
}
