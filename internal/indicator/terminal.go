package indicator

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell"
	"github.com/retroenv/chipcheck/internal/sweep"
)

const (
	ledRune    = '●'
	panelWidth = 40
)

var (
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleActive   = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleInactive = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

// Terminal draws an indicator panel in the terminal: the main indicator,
// one indicator per pattern and the cycle counters.
type Terminal struct {
	mu sync.Mutex

	screen   tcell.Screen
	title    string
	patterns []string

	failed        bool
	patternFailed map[string]bool
	cycles        int
	failedCycles  int

	interrupt func()
	done      chan struct{}
}

// OpenTerminal initializes the terminal screen and returns a panel on it.
// The screen takes over the terminal input, interrupt is called when the
// operator presses Ctrl+C or Escape.
func OpenTerminal(title string, patterns []string, interrupt func()) (*Terminal, error) {
	tcell.SetEncodingFallback(tcell.EncodingFallbackASCII)

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("creating terminal screen: %w", err)
	}
	return NewTerminal(screen, title, patterns, interrupt)
}

// NewTerminal returns a panel drawn on the given screen, the screen is
// initialized by it. Screen events are handled until Close.
func NewTerminal(screen tcell.Screen, title string, patterns []string, interrupt func()) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal screen: %w", err)
	}
	screen.HideCursor()

	t := &Terminal{
		screen:        screen,
		title:         title,
		patterns:      patterns,
		patternFailed: map[string]bool{},
		interrupt:     interrupt,
		done:          make(chan struct{}),
	}
	t.draw()

	go t.handleEvents()
	return t, nil
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.screen.Fini()
	<-t.done
}

// handleEvents polls the screen until it is finalized.
func (t *Terminal) handleEvents() {
	defer close(t.done)

	for {
		switch ev := t.screen.PollEvent().(type) {
		case nil:
			return

		case *tcell.EventResize:
			t.mu.Lock()
			t.screen.Sync()
			t.mu.Unlock()

		case *tcell.EventKey:
			if ev.Key() != tcell.KeyCtrlC && ev.Key() != tcell.KeyEscape {
				continue
			}
			if t.interrupt != nil {
				t.interrupt()
			}
		}
	}
}

// Fail implements sweep.Indicator.
func (t *Terminal) Fail() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	t.draw()
	return nil
}

// PatternFail implements sweep.Indicator.
func (t *Terminal) PatternFail(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patternFailed[name] = true
	t.draw()
	return nil
}

// Clear implements sweep.Indicator.
func (t *Terminal) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = false
	clear(t.patternFailed)
	t.draw()
	return nil
}

// CycleDone updates the cycle counters, it is registered with sweep.OnCycle.
func (t *Terminal) CycleDone(result sweep.CycleResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycles++
	if !result.Passed() {
		t.failedCycles++
	}
	t.draw()
}

func (t *Terminal) draw() {
	t.screen.Clear()

	t.text(0, 0, t.title, styleTitle)
	t.led(1, "chip", t.failed)
	for i, name := range t.patterns {
		t.led(2+i, name, t.patternFailed[name])
	}

	counters := fmt.Sprintf("cycles %d  failed %d", t.cycles, t.failedCycles)
	t.text(0, 3+len(t.patterns), counters, tcell.StyleDefault)

	t.screen.Show()
}

func (t *Terminal) led(y int, label string, active bool) {
	style := styleInactive
	state := "ok"
	if active {
		style = styleActive
		state = "FAIL"
	}
	t.screen.SetContent(0, y, ledRune, nil, style)
	t.text(2, y, fmt.Sprintf("%-24s %s", label, state), tcell.StyleDefault)
}

func (t *Terminal) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= panelWidth {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
