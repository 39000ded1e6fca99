package detector

import (
	"testing"

	"github.com/retroenv/chipcheck/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestDetect(t *testing.T) {
	logger := log.NewTestLogger(t)
	d := New(logger)

	tests := []struct {
		name        string
		port        string
		wantBackend Backend
	}{
		{
			name:        "empty port",
			port:        "",
			wantBackend: Simulator,
		},
		{
			name:        "explicit simulator",
			port:        "SIM",
			wantBackend: Simulator,
		},
		{
			name:        "sysfs gpio root",
			port:        "/sys/class/gpio",
			wantBackend: Sysfs,
		},
		{
			name:        "sysfs gpio root with trailing slash",
			port:        "/sys/class/gpio/",
			wantBackend: Sysfs,
		},
		{
			name:        "usb serial adapter",
			port:        "/dev/ttyUSB0",
			wantBackend: Serial,
		},
		{
			name:        "similar sysfs prefix",
			port:        "/sys/class/gpiochip",
			wantBackend: Serial,
		},
		{
			name:        "windows com port",
			port:        "COM3",
			wantBackend: Serial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options.Program{
				Parameters: options.Parameters{Port: tt.port},
			}

			got := d.Detect(opts)
			assert.Equal(t, tt.wantBackend, got)
		})
	}
}
