package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/steersim/internal/analysis"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

func row(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// Summary renders a panel describing a finished run. resp may be nil.
func Summary(res *sim.Result, resp *analysis.Response) string {
	var b strings.Builder
	b.WriteString(Title.Render(GradientText("STEERSIM  "+strings.ToUpper(res.Params.Scenario.String()), CurrentTheme.Primary, CurrentTheme.Secondary)) + "\n")

	p := res.Params
	b.WriteString(row("Gains", fmt.Sprintf("Kp=%g Ki=%g Kd=%g", p.Gains.Kp, p.Gains.Ki, p.Gains.Kd)))
	b.WriteString(row("Samples", fmt.Sprintf("%d (dt=%gs, t_end=%gs)", res.Series.Len(), p.Dt, p.Duration)))
	b.WriteString(row("Elapsed", res.Elapsed.String()))

	if n := res.Series.Len(); n > 0 {
		phi := res.Series.Deflection[n-1]
		b.WriteString(row("Final phi", fmt.Sprintf("%.4f deg", dynamo.Rad2Deg(phi))))
		b.WriteString(row("Final force", fmt.Sprintf("%.2f N", dynamo.Force(phi))))
		b.WriteString(row("Final valve", fmt.Sprintf("%.4f deg", dynamo.Rad2Deg(res.Series.ValveAngle[n-1]))))
	}

	status := StatusRunning.Render("ok")
	if !res.Series.IsValid() {
		status = StatusFailed.Render("non-finite state")
	} else if res.FuzzyMisses > 0 || res.Clamps > 0 {
		status = StatusPaused.Render(fmt.Sprintf("%d fuzzy misses, %d clamps", res.FuzzyMisses, res.Clamps))
	}
	b.WriteString(row("Status", status))

	if resp != nil {
		b.WriteString("\n" + Separator(40) + "\n")
		b.WriteString(ResponseTable(*resp))
	}
	if len(res.Metrics) > 0 {
		b.WriteString("\n" + Separator(40) + "\n")
		b.WriteString(MetricsTable(res.Metrics))
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// ResponseTable renders the transient figures of a run.
func ResponseTable(r analysis.Response) string {
	var b strings.Builder
	b.WriteString(row("Peak", fmt.Sprintf("%.4f deg at %.3fs", dynamo.Rad2Deg(r.Peak), r.PeakTime)))
	b.WriteString(row("Overshoot", fmt.Sprintf("%.2f%%", r.Overshoot)))
	if r.Settled {
		b.WriteString(row("Settling", fmt.Sprintf("%.3fs", r.SettlingTime)))
	} else {
		b.WriteString(row("Settling", "not settled"))
	}
	b.WriteString(row("Steady error", fmt.Sprintf("%.5f deg", dynamo.Rad2Deg(r.SteadyStateError))))
	b.WriteString(row("IAE", fmt.Sprintf("%.6f", r.IAE)))
	return b.String()
}

// MetricsTable renders metric values sorted by name.
func MetricsTable(m map[string]float64) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(row(k, fmt.Sprintf("%.6g", m[k])))
	}
	return b.String()
}

// Strengths renders fuzzy rule strengths as labelled bars in term order.
func Strengths(terms []string, strength map[string]float64) string {
	lines := make([]string, 0, len(terms))
	for _, t := range terms {
		w := strength[t]
		lines = append(lines, MetricLabel.Render(t)+ProgressBar(w, 20)+MetricValue.Render(fmt.Sprintf(" %.3f", w)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
