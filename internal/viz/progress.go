package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

// ProgressMsg carries the completion percentage of a run, 0 to 100.
type ProgressMsg float64

// DoneMsg ends the progress program.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

type spinMsg struct{}

// ProgressModel shows a progress bar for a single run.
type ProgressModel struct {
	title     string
	percent   float64
	frame     int
	done      bool
	cancelled bool
	err       error
	width     int
}

// NewProgressModel returns a model titled title.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{title: title, width: 40}
}

func spin() tea.Cmd {
	return tea.Tick(time.Second/10, func(time.Time) tea.Msg { return spinMsg{} })
}

func (m ProgressModel) Init() tea.Cmd { return spin() }

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case ProgressMsg:
		m.percent = float64(msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err == nil {
			m.percent = 100
		}
		return m, tea.Quit
	case spinMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, spin()
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	switch {
	case m.err != nil:
		b.WriteString(StatusFailed.Render("✗ ") + m.title)
	case m.done:
		b.WriteString(StatusRunning.Render("✓ ") + m.title)
	case m.cancelled:
		b.WriteString(StatusPaused.Render("■ ") + m.title)
	default:
		b.WriteString(StatusRunning.Render(AnimatedSpinner(m.frame)+" ") + m.title)
	}
	b.WriteString(fmt.Sprintf("\n%s %5.1f%%\n", ProgressBar(m.percent/100, m.width), m.percent))
	if m.err != nil {
		b.WriteString(StatusFailed.Render(m.err.Error()) + "\n")
	}
	return b.String()
}

// Percent returns the last reported completion percentage.
func (m ProgressModel) Percent() float64 { return m.percent }

// Cancelled reports whether the user quit before the run finished.
func (m ProgressModel) Cancelled() bool { return m.cancelled }

// RunWithProgress runs p on d in the background while a Bubble Tea program
// draws its progress. Quitting the program cancels the run; the partial
// result is returned with the context error.
func RunWithProgress(ctx context.Context, d *sim.Driver, p dynamo.Params, title string, opts ...tea.ProgramOption) (*sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(NewProgressModel(title), opts...)
	done := make(chan DoneMsg, 1)

	go func() {
		last := -1
		res, err := d.Run(ctx, p, func(percent float64) {
			// Only whole-percent changes reach the program.
			if pct := int(percent); pct != last {
				last = pct
				prog.Send(ProgressMsg(percent))
			}
		})
		msg := DoneMsg{Result: res, Err: err}
		done <- msg
		prog.Send(msg)
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress display: %w", err)
	}
	cancel()
	msg := <-done
	return msg.Result, msg.Err
}
