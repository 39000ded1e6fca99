package bus

import (
	"errors"
	"testing"

	"github.com/retroenv/chipcheck/internal/signal"
	"github.com/retroenv/retrogolib/assert"
)

type levelLines map[signal.Name]signal.Bit

func (l levelLines) Assert(name signal.Name) error {
	l[name] = signal.One
	return nil
}

func (l levelLines) Deassert(name signal.Name) error {
	l[name] = signal.Zero
	return nil
}

func (l levelLines) Read(name signal.Name) (signal.Bit, error) {
	return l[name], nil
}

type brokenLines struct{}

var errBroken = errors.New("broken")

func (brokenLines) Assert(signal.Name) error             { return errBroken }
func (brokenLines) Deassert(signal.Name) error           { return errBroken }
func (brokenLines) Read(signal.Name) (signal.Bit, error) { return 0, errBroken }

func TestGroup_PresentSample(t *testing.T) {
	lines := levelLines{}
	g := Address(9)

	assert.Equal(t, 512, g.Size())
	assert.NoError(t, g.Present(lines, 0x155))
	assert.Equal(t, signal.One, lines["A0"])
	assert.Equal(t, signal.Zero, lines["A1"])
	assert.Equal(t, signal.One, lines["A8"])

	value, err := g.Sample(lines)
	assert.NoError(t, err)
	assert.Equal(t, 0x155, value)
	assert.Equal(t, 0x155, g.Decode(func(name signal.Name) signal.Bit { return lines[name] }))

	// bits above the width are ignored
	assert.NoError(t, Data(4).Present(lines, 0xf3))
	value, err = Data(4).Sample(lines)
	assert.NoError(t, err)
	assert.Equal(t, 0x3, value)
}

func TestGroup_Names(t *testing.T) {
	names := Group{Prefix: signal.InputPrefix, Width: 3}.Names()
	assert.Equal(t, []signal.Name{"I0", "I1", "I2"}, names)
}

func TestGroup_Errors(t *testing.T) {
	err := Address(2).Present(brokenLines{}, 1)
	assert.True(t, errors.Is(err, errBroken))

	_, err = Data(8).Sample(brokenLines{})
	assert.ErrorContains(t, err, "sampling line D0")
}
