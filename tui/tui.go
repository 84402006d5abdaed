// Package tui is the interactive terminal front end: it paces the driver at
// the display refresh rate, renders frames and feeds keys to the controller.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/input"
	"github.com/wippyai/simhost/present"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD866"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// LogLines is how many diagnostic records the log panel shows.
const LogLines = 6

// Options configures the model.
type Options struct {
	Title    string
	Driver   *driver.Driver
	Screen   *present.Terminal
	Pad      *input.State
	Logs     *diag.Recorder
	Keys     input.KeyMap
	Period   time.Duration
	MaxTicks uint64
}

type tickMsg time.Time

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	err    error
	opts   Options
	help   help.Model
	paused bool
	halted bool
}

// New creates the model. ctx bounds every tick.
func New(ctx context.Context, opts Options) *Model {
	if opts.Period <= 0 {
		opts.Period = driver.Period(driver.DefaultRefreshHz)
	}
	if opts.Pad == nil {
		opts.Pad = input.NewState(input.DefaultHoldFrames)
	}
	return &Model{ctx: ctx, opts: opts, help: help.New()}
}

func (m *Model) schedule() tea.Cmd {
	return tea.Tick(m.opts.Period, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.schedule()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		keys := m.opts.Keys
		switch {
		case key.Matches(msg, keys.Quit):
			m.opts.Driver.Halt(nil)
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		default:
			if b, ok := keys.Button(msg.String()); ok {
				m.opts.Pad.Press(b)
			}
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tickMsg:
		return m, m.tick()
	}
	return m, nil
}

// tick runs one frame and schedules the next only after it completed, so a
// slow frame delays the clock instead of queueing ticks.
func (m *Model) tick() tea.Cmd {
	if m.halted {
		return nil
	}
	if m.paused {
		return m.schedule()
	}

	err := m.opts.Driver.Tick(m.ctx)
	switch {
	case err == nil:
	case m.opts.Driver.State() == driver.StateHalted:
		m.halted = true
		m.err = m.opts.Driver.Err()
		return nil
	default:
		m.err = err
	}

	if m.opts.MaxTicks > 0 && m.opts.Driver.Stats().Ticks >= m.opts.MaxTicks {
		m.opts.Driver.Halt(nil)
		m.halted = true
		return nil
	}
	return m.schedule()
}

// Halted reports whether the session is over.
func (m *Model) Halted() bool { return m.halted }

// Err returns the last tick error.
func (m *Model) Err() error { return m.err }

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("simhost"))
	if m.opts.Title != "" {
		b.WriteString(" ")
		b.WriteString(m.opts.Title)
	}
	b.WriteString("\n\n")

	if m.opts.Screen != nil {
		b.WriteString(m.opts.Screen.View())
	}
	b.WriteString("\n")

	st := m.opts.Driver.Stats()
	status := fmt.Sprintf("%s • tick %d • frames %d • input %s",
		st.State, st.Ticks, st.Frames, m.opts.Pad.Held())
	if m.paused {
		status += " • paused"
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(describe(m.err)))
		b.WriteString("\n")
	}

	if m.opts.Logs != nil {
		for _, r := range m.opts.Logs.Tail(LogLines) {
			style := logStyle
			switch {
			case r.Severity >= diag.SeverityError:
				style = errorStyle
			case r.Severity == diag.SeverityWarn:
				style = warnStyle
			}
			b.WriteString(style.Render(r.String()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.opts.Keys))
	return b.String()
}

func describe(err error) string {
	switch {
	case errors.Is(err, errors.ErrGuestFatal):
		return "halted: guest reported a fatal error: " + err.Error()
	case errors.Is(err, errors.ErrOutOfBounds):
		return "halted: frame buffer outside guest memory: " + err.Error()
	case errors.Is(err, errors.ErrGuestTrap):
		return "halted: guest trapped: " + err.Error()
	default:
		return err.Error()
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, opts Options) (*Model, error) {
	m := New(ctx, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return m, err
}
