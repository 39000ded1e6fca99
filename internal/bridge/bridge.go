// Package bridge drives chip lines through a microcontroller connected by a
// serial link. The bridge firmware owns the pin mapping, the host only
// sends logical line names.
//
// Every command is one line of text and is answered with one line:
//
//	!        ping, answered with OK
//	+NAME    assert line NAME, answered with OK
//	-NAME    de-assert line NAME, answered with OK
//	?NAME    read line NAME, answered with 0 or 1
//
// A command that fails is answered with "E <message>".
package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/term"
	"github.com/retroenv/chipcheck/internal/signal"
)

// DefaultBaud is the serial speed of the bridge firmware.
const DefaultBaud = 115200

const (
	replyOK    = "OK"
	replyError = "E "
)

// ErrDevice is wrapped by errors reported by the bridge firmware.
var ErrDevice = errors.New("bridge device error")

// Bridge implements signal.Lines over a serial link.
type Bridge struct {
	rw     io.ReadWriter
	reader *bufio.Reader
	closer io.Closer
}

// Open opens the serial port in raw mode and checks that a bridge answers.
func Open(port string, baud int) (*Bridge, error) {
	if baud == 0 {
		baud = DefaultBaud
	}

	t, err := term.Open(port, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", port, err)
	}
	// discard anything the firmware printed while booting
	if err := t.Flush(); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("flushing serial port %s: %w", port, err)
	}

	b := New(t)
	b.closer = t
	if err := b.Ping(); err != nil {
		_ = t.Close()
		return nil, err
	}
	return b, nil
}

// New returns a bridge communicating over rw.
func New(rw io.ReadWriter) *Bridge {
	return &Bridge{
		rw:     rw,
		reader: bufio.NewReader(rw),
	}
}

// Close closes the serial port if the bridge was opened with Open.
func (b *Bridge) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Ping checks that the bridge firmware is responding.
func (b *Bridge) Ping() error {
	reply, err := b.command("!")
	if err != nil {
		return fmt.Errorf("pinging bridge: %w", err)
	}
	if reply != replyOK {
		return fmt.Errorf("unexpected ping reply '%s'", reply)
	}
	return nil
}

// Assert implements signal.Lines.
func (b *Bridge) Assert(name signal.Name) error {
	return b.set('+', name)
}

// Deassert implements signal.Lines.
func (b *Bridge) Deassert(name signal.Name) error {
	return b.set('-', name)
}

// Read implements signal.Lines.
func (b *Bridge) Read(name signal.Name) (signal.Bit, error) {
	reply, err := b.command("?" + string(name))
	if err != nil {
		return signal.Zero, err
	}

	switch reply {
	case "0":
		return signal.Zero, nil
	case "1":
		return signal.One, nil
	default:
		return signal.Zero, fmt.Errorf("unexpected read reply '%s' for line %s", reply, name)
	}
}

func (b *Bridge) set(op byte, name signal.Name) error {
	reply, err := b.command(string(op) + string(name))
	if err != nil {
		return err
	}
	if reply != replyOK {
		return fmt.Errorf("unexpected reply '%s' for line %s", reply, name)
	}
	return nil
}

func (b *Bridge) command(cmd string) (string, error) {
	if _, err := io.WriteString(b.rw, cmd+"\n"); err != nil {
		return "", fmt.Errorf("sending command '%s': %w", cmd, err)
	}

	reply, err := b.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading reply to '%s': %w", cmd, err)
	}
	reply = strings.TrimRight(reply, "\r\n")

	if msg, ok := strings.CutPrefix(reply, replyError); ok {
		return "", fmt.Errorf("%w: %s: %s", ErrDevice, cmd, msg)
	}
	return reply, nil
}
