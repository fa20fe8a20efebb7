package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

const (
	canvasWidth     = 36
	canvasHeight    = 16
	historyCapacity = 600
	maxStepsPerTick = 500

	// Tuning a zero value up starts from these, since scaling zero is a no-op.
	zeroStep      = 0.1
	zeroLimitStep = 1.0
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(52)
	graphStyle  = lipgloss.NewStyle().Padding(1, 0)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveModel steps a run in real time and lets the user retune the PID gains
// while it runs.
type LiveModel struct {
	params  dynamo.Params
	engine  *control.FuzzyEngine
	stepper *sim.Stepper

	stepsPerTick int
	running      bool
	finished     bool
	err          error

	gains        map[string]float64
	initialGains map[string]float64
	paramKeys    []string
	selected     int

	last       dynamo.Sample
	deflection []float64
	reference  []float64
	valve      []float64
	misses     int

	canvas *Canvas
}

// NewLiveModel prepares a live run of p. stepsPerTick control periods are
// simulated per frame.
func NewLiveModel(p dynamo.Params, engine *control.FuzzyEngine, stepsPerTick int) (LiveModel, error) {
	if engine == nil {
		engine = control.DefaultFuzzyEngine()
	}
	if stepsPerTick < 1 {
		stepsPerTick = 1
	}
	st, err := sim.NewStepper(p, engine)
	if err != nil {
		return LiveModel{}, err
	}

	gains := st.PID().GetParams()
	initial := make(map[string]float64, len(gains))
	keys := make([]string, 0, len(gains))
	for k, v := range gains {
		initial[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return LiveModel{
		params:       p,
		engine:       engine,
		stepper:      st,
		stepsPerTick: min(stepsPerTick, maxStepsPerTick),
		running:      true,
		gains:        gains,
		initialGains: initial,
		paramKeys:    keys,
		deflection:   make([]float64, 0, historyCapacity),
		reference:    make([]float64, 0, historyCapacity),
		valve:        make([]float64, 0, historyCapacity),
		canvas:       NewCanvas(canvasWidth, canvasHeight),
	}, nil
}

func (m LiveModel) Init() tea.Cmd { return tick() }

// Update handles input events and steps the simulation.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.finished {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "+", "=":
			m.stepsPerTick = min(m.stepsPerTick*2, maxStepsPerTick)
		case "-", "_":
			m.stepsPerTick = max(m.stepsPerTick/2, 1)
		case "t":
			NextTheme()
		}
	case TickMsg:
		if m.running {
			m.advance(m.stepsPerTick)
		}
		return m, tick()
	}
	return m, nil
}

// advance runs up to n control periods.
func (m *LiveModel) advance(n int) {
	for i := 0; i < n && !m.stepper.Done(); i++ {
		s := m.stepper.Step()
		m.last = s
		if s.FuzzyMiss {
			m.misses++
		}
		if math.IsNaN(s.Deflection) || math.IsInf(s.Deflection, 0) {
			m.err = &dynamo.SimulationError{Step: s.Step, Time: s.Time, Wrapped: dynamo.ErrUnstable}
			m.running, m.finished = false, true
			return
		}
		m.deflection = pushBounded(m.deflection, dynamo.Rad2Deg(s.Deflection))
		m.reference = pushBounded(m.reference, dynamo.Rad2Deg(s.Reference))
		m.valve = pushBounded(m.valve, dynamo.Rad2Deg(s.ValveAngle))
	}
	if m.stepper.Done() {
		m.running, m.finished = false, true
	}
}

func pushBounded(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

func (m *LiveModel) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

func (m *LiveModel) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.gains[key] * factor
	if m.gains[key] == 0 && factor > 1 {
		val = zeroStep
		if key == "Limit" {
			val = zeroLimitStep
		}
	}
	if err := m.stepper.PID().SetParam(key, val); err != nil {
		m.err = err
		return
	}
	m.gains[key] = val
}

// reset restarts the run with the original gains.
func (m *LiveModel) reset() {
	st, err := sim.NewStepper(m.params, m.engine)
	if err != nil {
		m.err = err
		return
	}
	m.stepper = st
	m.gains = st.PID().GetParams()
	m.deflection = m.deflection[:0]
	m.reference = m.reference[:0]
	m.valve = m.valve[:0]
	m.last = dynamo.Sample{}
	m.misses = 0
	m.err = nil
	m.running, m.finished = true, false
}

// Gain returns the current value of a tunable PID parameter.
func (m LiveModel) Gain(name string) float64 { return m.gains[name] }

// Stepper exposes the run being displayed.
func (m LiveModel) Stepper() *sim.Stepper { return m.stepper }

// Finished reports whether the run has produced every sample or failed.
func (m LiveModel) Finished() bool { return m.finished }

// draw sketches the fin about its pivot with the reference dashed. Angles
// are exaggerated so a few degrees are visible.
func (m *LiveModel) draw() {
	const exaggerate = 3.0
	m.canvas.Clear()
	w, h := m.canvas.PixelSize()
	cx, cy := 4, h/2
	length := float64(w - 8)

	m.canvas.DrawDashed(cx, cy, length, exaggerate*m.last.Reference)
	m.canvas.DrawNeedle(cx, cy, length, exaggerate*m.last.Deflection)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			m.canvas.Set(cx+dx, cy+dy)
		}
	}

	// Valve angle gauge along the bottom edge.
	gx := w/2 + int(float64(w/2-2)*m.last.ValveAngle/m.params.Physical.SpoolMax)
	m.canvas.DrawLine(w/2, h-1, gx, h-1)
	m.canvas.DrawLine(gx, h-3, gx, h-1)
}

// View renders the TUI interface.
func (m LiveModel) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.params.Scenario.String())+" LIVE") + "\n")

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = StatusFailed.Render("FAILED: " + m.err.Error())
	case m.finished:
		status = StatusPaused.Render("FINISHED")
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	s.WriteString(status + "\n")
	s.WriteString(ProgressBar(float64(m.stepper.Index())/float64(m.stepper.Samples()), 30) + "\n\n")

	if len(m.deflection) > 1 {
		chart := asciigraph.PlotMany([][]float64{m.deflection, m.reference},
			asciigraph.Height(6), asciigraph.Width(40), asciigraph.Precision(2),
			asciigraph.SeriesColors(CurrentTheme.Deflection, CurrentTheme.Reference),
			asciigraph.Caption("phi / ref (deg)"))
		s.WriteString(graphStyle.Render(chart) + "\n")
		s.WriteString(MetricLabel.Render("Valve") + SparklineChart(m.valve, 30) + "\n\n")
	}

	s.WriteString(row("Time", fmt.Sprintf("%.3fs", m.last.Time)))
	s.WriteString(row("Deflection", fmt.Sprintf("%.4f deg", dynamo.Rad2Deg(m.last.Deflection))))
	s.WriteString(row("Valve", fmt.Sprintf("%.4f deg", dynamo.Rad2Deg(m.last.ValveAngle))))
	s.WriteString(row("Force", fmt.Sprintf("%.2f N", dynamo.Force(m.last.Deflection))))
	s.WriteString(row("Voltage", fmt.Sprintf("%.3f V", m.last.Voltage)))
	s.WriteString(row("Fuzzy misses", fmt.Sprintf("%d", m.misses)))
	s.WriteString(row("Steps/frame", fmt.Sprintf("%d", m.stepsPerTick)))

	s.WriteString("\nPID\n")
	for i, k := range m.paramKeys {
		val, initial := m.gains[k], m.initialGains[k]
		barWidth, ratio := 10, 0.0
		if initial > 0 {
			ratio = val / (2.0 * initial)
		}
		ratio = math.Max(0, math.Min(1, ratio))
		filled := int(ratio * float64(barWidth))
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"
		line := fmt.Sprintf("%-6s %s %.3f", k, bar, val)
		if i == m.selected {
			s.WriteString(ActiveParam.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + Subtle.Render(line) + "\n")
		}
	}
	s.WriteString(KeyHint.Render("SP:Pause R:Restart Q:Quit T:Theme\nTab:Select ↑↓:Tune +/-:Speed"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}
