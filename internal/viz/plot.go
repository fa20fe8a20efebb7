package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/steersim/internal/dynamo"
)

// Chart fields accepted by Chart.
const (
	FieldDeflection = "deflection"
	FieldValve      = "valve"
	FieldForce      = "force"
	FieldError      = "error"
)

// ChartFields lists the fields accepted by Chart.
func ChartFields() []string {
	return []string{FieldDeflection, FieldValve, FieldForce, FieldError}
}

var errNoSamples = errors.New("viz: series has no samples")

// Chart plots one quantity of s as an asciigraph line chart. The deflection
// chart overlays the reference.
func Chart(s *dynamo.Series, field string, width, height int) (string, error) {
	if s == nil || s.Len() == 0 {
		return "", errNoSamples
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
	}

	switch field {
	case FieldDeflection:
		opts = append(opts,
			asciigraph.Caption(fmt.Sprintf("fin deflection vs reference (deg), t=0..%.2fs", s.Time[s.Len()-1])),
			asciigraph.SeriesColors(CurrentTheme.Deflection, CurrentTheme.Reference),
		)
		return asciigraph.PlotMany([][]float64{Degrees(s.Deflection), Degrees(s.Reference)}, opts...), nil
	case FieldValve:
		opts = append(opts,
			asciigraph.Caption("valve angle (deg)"),
			asciigraph.SeriesColors(CurrentTheme.Valve),
		)
		return asciigraph.Plot(Degrees(s.ValveAngle), opts...), nil
	case FieldForce:
		opts = append(opts,
			asciigraph.Caption("hydraulic force (N)"),
			asciigraph.SeriesColors(CurrentTheme.Deflection),
		)
		return asciigraph.Plot(Forces(s.Deflection), opts...), nil
	case FieldError:
		e := make([]float64, s.Len())
		for i := range e {
			e[i] = dynamo.Rad2Deg(s.Error(i))
		}
		opts = append(opts,
			asciigraph.Caption("tracking error (deg)"),
			asciigraph.SeriesColors(CurrentTheme.Deflection),
		)
		return asciigraph.Plot(e, opts...), nil
	}
	return "", fmt.Errorf("viz: unknown chart field %q (want one of %v)", field, ChartFields())
}

// Degrees converts a slice of angles to degrees.
func Degrees(rad []float64) []float64 {
	out := make([]float64, len(rad))
	for i, v := range rad {
		out[i] = dynamo.Rad2Deg(v)
	}
	return out
}

// Forces maps deflections to hydraulic force.
func Forces(phi []float64) []float64 {
	out := make([]float64, len(phi))
	for i, v := range phi {
		out[i] = dynamo.Force(v)
	}
	return out
}
