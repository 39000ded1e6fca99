// Package options contains the program options.
package options

// Supported tests.
const (
	TestDRAM = "dram"
	TestROM  = "rom"
	TestPLA  = "pla"
)

// Tests lists the supported tests.
var Tests = []string{TestDRAM, TestROM, TestPLA}

// Positional contains positional arguments.
type Positional struct {
	Test string `arg:"positional" usage:"test to run: dram, rom, pla"`
}

// Parameters contains connection and file path options.
type Parameters struct {
	Port      string `flag:"port" usage:"line driver: sim, serial device or sysfs gpio directory"`
	Baud      int    `flag:"baud" usage:"baud rate of the serial bridge" default:"115200"`
	Profile   string `flag:"profile" usage:"built-in chip profile name or YAML profile file"`
	Output    string `flag:"o" usage:"output file of the captured image (default: hex dump on stdout)"`
	Reference string `flag:"ref" usage:"reference image to verify the capture against"`
	Metrics   string `flag:"metrics" usage:"listen address of the Prometheus metrics endpoint"`
}

// Flags contains behavior options.
type Flags struct {
	Patterns    string `flag:"patterns" usage:"comma separated list of patterns to run" default:"all"`
	Cycles      int    `flag:"cycles" usage:"number of test cycles, 0 runs until interrupted"`
	Panel       bool   `flag:"panel" usage:"show the indicator panel in the terminal"`
	PatternLEDs bool   `flag:"pattern-leds" usage:"drive one indicator line per pattern"`
	Binary      bool   `flag:"binary" usage:"write the captured image as binary instead of hex text"`
	Header      bool   `flag:"header" usage:"write a comment header with size and checksum"`
	Debug       bool   `flag:"debug" usage:"enable debug logging"`
	Quiet       bool   `flag:"q" usage:"quiet mode"`
}

// Program options of the chip tester.
type Program struct {
	Positional
	Parameters
	Flags
}
