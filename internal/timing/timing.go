// Package timing provides the settle delays that satisfy chip timing
// minimums between line transitions.
package timing

import (
	"sync"
	"time"
)

// Default delays, taken from the datasheets of the profiled 41xx parts.
const (
	// MinimumSettle is the minimum settle delay after a strobe transition
	// for a 150ns DRAM.
	MinimumSettle = 150 * time.Nanosecond
	// RefreshInterval is the maximum time a row may go without a strobe.
	RefreshInterval = 2 * time.Millisecond
)

// Delayer waits for a settle delay to pass.
type Delayer interface {
	Wait(d time.Duration)
}

// BusyWait spins until the delay has passed. time.Sleep can not wait
// for sub-microsecond durations, the scheduler granularity is far coarser.
type BusyWait struct{}

// Wait spins for at least d.
func (BusyWait) Wait(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// None does not wait at all. Transports with a round trip far above the
// settle delay, and simulated chips, use it.
type None struct{}

// Wait returns immediately.
func (None) Wait(time.Duration) {}

// Recorder records requested delays without waiting.
type Recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Wait records d.
func (r *Recorder) Wait(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
}

// Delays returns a copy of all recorded delays.
func (r *Recorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// Total returns the sum of all recorded delays.
func (r *Recorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.delays {
		total += d
	}
	return total
}
