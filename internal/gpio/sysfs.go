// Package gpio drives chip lines through the Linux sysfs GPIO interface.
package gpio

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/spf13/afero"
)

// DefaultRoot is the sysfs GPIO class directory.
const DefaultRoot = "/sys/class/gpio"

// Pin maps a logical line to a GPIO.
type Pin struct {
	GPIO      int  `yaml:"gpio"`
	Input     bool `yaml:"input"`
	ActiveLow bool `yaml:"active_low"`
}

// ErrUnmapped is returned for lines that have no pin assigned.
var ErrUnmapped = errors.New("line is not mapped to a gpio")

// Sysfs implements signal.Lines on top of sysfs GPIO value files. Active
// low lines are inverted by the kernel, the values written are logical.
type Sysfs struct {
	fs     afero.Fs
	root   string
	pins   map[signal.Name]Pin
	values map[signal.Name]afero.File
}

// Open exports and configures all pins and opens their value files.
func Open(fs afero.Fs, root string, pins map[signal.Name]Pin) (*Sysfs, error) {
	if root == "" {
		root = DefaultRoot
	}
	s := &Sysfs{
		fs:     fs,
		root:   root,
		pins:   pins,
		values: make(map[signal.Name]afero.File, len(pins)),
	}

	// configure in a stable order, errors then always name the same line
	names := make([]string, 0, len(pins))
	for name := range pins {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.setup(signal.Name(name)); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes all value files. The GPIOs stay exported.
func (s *Sysfs) Close() error {
	var errs []error
	for _, file := range s.values {
		errs = append(errs, file.Close())
	}
	clear(s.values)
	return errors.Join(errs...)
}

// Assert implements signal.Lines.
func (s *Sysfs) Assert(name signal.Name) error {
	return s.write(name, "1")
}

// Deassert implements signal.Lines.
func (s *Sysfs) Deassert(name signal.Name) error {
	return s.write(name, "0")
}

// Read implements signal.Lines.
func (s *Sysfs) Read(name signal.Name) (signal.Bit, error) {
	file, ok := s.values[name]
	if !ok {
		return signal.Zero, fmt.Errorf("%w: %s", ErrUnmapped, name)
	}

	buf := make([]byte, 1)
	if _, err := file.ReadAt(buf, 0); err != nil {
		return signal.Zero, fmt.Errorf("reading value of line %s: %w", name, err)
	}
	return signal.BitOf(buf[0] == '1'), nil
}

func (s *Sysfs) write(name signal.Name, value string) error {
	file, ok := s.values[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmapped, name)
	}
	if _, err := file.WriteAt([]byte(value), 0); err != nil {
		return fmt.Errorf("writing value of line %s: %w", name, err)
	}
	return nil
}

func (s *Sysfs) setup(name signal.Name) error {
	pin := s.pins[name]
	dir := path.Join(s.root, "gpio"+strconv.Itoa(pin.GPIO))

	exported, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return fmt.Errorf("checking gpio %d: %w", pin.GPIO, err)
	}
	if !exported {
		if err := s.writeFile("export", strconv.Itoa(pin.GPIO)); err != nil {
			return fmt.Errorf("exporting gpio %d for line %s: %w", pin.GPIO, name, err)
		}
		if exported, _ = afero.DirExists(s.fs, dir); !exported {
			return fmt.Errorf("gpio %d for line %s did not appear after export", pin.GPIO, name)
		}
	}

	direction := "out"
	if pin.Input {
		direction = "in"
	}
	if err := s.writeFile(path.Join(path.Base(dir), "direction"), direction); err != nil {
		return fmt.Errorf("setting direction of line %s: %w", name, err)
	}
	activeLow := "0"
	if pin.ActiveLow {
		activeLow = "1"
	}
	if err := s.writeFile(path.Join(path.Base(dir), "active_low"), activeLow); err != nil {
		return fmt.Errorf("setting polarity of line %s: %w", name, err)
	}

	flags := os.O_RDWR
	if pin.Input {
		flags = os.O_RDONLY
	}
	file, err := s.fs.OpenFile(path.Join(dir, "value"), flags, 0)
	if err != nil {
		return fmt.Errorf("opening value of line %s: %w", name, err)
	}
	s.values[name] = file
	return nil
}

func (s *Sysfs) writeFile(name, content string) error {
	return afero.WriteFile(s.fs, path.Join(s.root, name), []byte(content), 0o644)
}
