// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/chipcheck/internal/bridge"
	"github.com/retroenv/chipcheck/internal/options"
	"github.com/retroenv/chipcheck/internal/pattern"
)

// ParseFlags parses command line flags and returns the program options
func ParseFlags() (options.Program, error) {
	return parseArgs(os.Args[0], os.Args[1:])
}

func parseArgs(name string, arguments []string) (options.Program, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.Usage = func() {}
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(arguments)
	args := flags.Args()
	if err != nil || len(args) == 0 {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(flags, args); err != nil {
		return opts, err
	}
	opts.Test = args[0]

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: chipcheck [options] <%s>\n\n", strings.Join(options.Tests, "|"))
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(flags *flag.FlagSet, args []string) error {
	for i, arg := range args {
		if i > 0 && strings.HasPrefix(arg, "-") {
			return &UsageError{
				flags: flags,
				msg:   fmt.Sprintf("Potential argument %s found after the test name, please pass the test as last argument", arg),
			}
		}
	}
	if len(args) > 1 {
		return &UsageError{
			flags: flags,
			msg:   fmt.Sprintf("only one test can be run at a time, got %s", strings.Join(args, ", ")),
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Test = strings.ToLower(opts.Test)
	if !slices.Contains(options.Tests, opts.Test) {
		return fmt.Errorf("unsupported test: %s. Valid options: %s",
			opts.Test, strings.Join(options.Tests, ", "))
	}

	if _, err := pattern.ParseSelection(opts.Patterns); err != nil {
		return fmt.Errorf("invalid pattern list: %w", err)
	}

	if opts.Cycles < 0 {
		return fmt.Errorf("invalid cycle count %d", opts.Cycles)
	}
	if opts.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", opts.Baud)
	}
	if opts.Binary && opts.Output == "" {
		return errors.New("binary output requires an output file name")
	}

	if opts.Profile == "" {
		opts.Profile = defaultProfile(opts.Test)
	}
	return nil
}

// defaultProfile returns the profile used when none is given.
func defaultProfile(test string) string {
	switch test {
	case options.TestROM:
		return "2364"
	case options.TestPLA:
		return "82S100"
	default:
		return "4164"
	}
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Port, "port", "sim", "line driver: 'sim' for the simulator, a serial device of a bridge or a sysfs gpio directory")
	flags.IntVar(&opts.Baud, "baud", bridge.DefaultBaud, "baud rate of the serial bridge")
	flags.StringVar(&opts.Profile, "profile", "", "built-in chip profile name or YAML profile file (default depends on the test)")
	flags.StringVar(&opts.Output, "o", "", "name of the output file for the captured image, printed on console as hex dump if no name given")
	flags.StringVar(&opts.Reference, "ref", "", "name of a reference image file to verify the captured image against")
	flags.StringVar(&opts.Metrics, "metrics", "", "listen address of the Prometheus metrics endpoint, for example :9100")
	flags.StringVar(&opts.Patterns, "patterns", "", "comma separated list of DRAM test patterns ("+strings.Join(pattern.Names(), "/")+
		") or 'all', overrides the patterns of the profile")
	flags.IntVar(&opts.Cycles, "cycles", 0, "number of DRAM test cycles to run, 0 runs until interrupted")
	flags.BoolVar(&opts.Panel, "panel", false, "show the indicator panel in the terminal")
	flags.BoolVar(&opts.PatternLEDs, "pattern-leds", false, "drive one indicator line per test pattern")
	flags.BoolVar(&opts.Binary, "binary", false, "write the captured image as binary file instead of hex text")
	flags.BoolVar(&opts.Header, "header", false, "write a comment header with size and checksum to the hex dump")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
