package sweep

import (
	"time"

	"github.com/retroenv/retrogolib/log"
	"golang.org/x/time/rate"
)

// mismatch log rate, a dead chip produces N*N mismatches per pattern.
const (
	mismatchLogInterval = 100 * time.Millisecond
	mismatchLogBurst    = 16
)

// MismatchLogger logs mismatches with a rate limit and counts the ones it
// suppressed.
type MismatchLogger struct {
	logger     *log.Logger
	limiter    *rate.Limiter
	suppressed int
}

// NewMismatchLogger returns a rate limited mismatch logger.
func NewMismatchLogger(logger *log.Logger) *MismatchLogger {
	return &MismatchLogger{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(mismatchLogInterval), mismatchLogBurst),
	}
}

// Log logs the mismatch unless the rate limit is exceeded.
func (l *MismatchLogger) Log(m Mismatch) {
	if !l.limiter.Allow() {
		l.suppressed++
		return
	}

	if l.suppressed > 0 {
		l.logger.Warn("Mismatches not logged", log.Int("count", l.suppressed))
		l.suppressed = 0
	}
	l.logger.Warn("Mismatch",
		log.String("pattern", m.Pattern),
		log.Hex("row", m.Row),
		log.Hex("column", m.Column),
		log.Int("expected", int(m.Expected)),
		log.Int("got", int(m.Got)))
}

// Suppressed returns the number of mismatches not logged since the last
// logged one.
func (l *MismatchLogger) Suppressed() int {
	return l.suppressed
}
