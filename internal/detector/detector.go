// Package detector handles line driver backend detection.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/retroenv/chipcheck/internal/gpio"
	"github.com/retroenv/chipcheck/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// Backend is a line driver implementation.
type Backend string

// Supported backends.
const (
	Simulator Backend = "sim"
	Serial    Backend = "serial"
	Sysfs     Backend = "sysfs"
)

// Detector handles backend detection from the port option.
type Detector struct {
	logger *log.Logger
}

// New creates a new backend detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the backend from the port option. An empty port or
// "sim" selects the simulator, a path below the sysfs gpio directory the
// sysfs backend and anything else a serial bridge.
func (d *Detector) Detect(opts options.Program) Backend {
	backend := detectFromPort(opts.Port)
	d.logger.Debug("Detected line driver",
		log.String("backend", string(backend)),
		log.String("port", opts.Port))
	return backend
}

func detectFromPort(port string) Backend {
	if port == "" || strings.EqualFold(port, string(Simulator)) {
		return Simulator
	}

	cleaned := filepath.Clean(port)
	if cleaned == gpio.DefaultRoot || strings.HasPrefix(cleaned, gpio.DefaultRoot+"/") {
		return Sysfs
	}
	return Serial
}
