package analysis

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/steersim/internal/dynamo"
)

func decaySeries(n int, dt, start float64) *dynamo.Series {
	s := dynamo.NewSeries(n)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		s.Append(t, start*math.Exp(-t), 0, 0)
	}
	return s
}

func TestComputeResponseDecay(t *testing.T) {
	s := decaySeries(1001, 0.01, 0.2)
	r, err := ComputeResponse(s)
	if err != nil {
		t.Fatalf("ComputeResponse: %v", err)
	}

	if r.Peak != 0.2 || r.PeakTime != 0 {
		t.Errorf("peak = %g at %g, want 0.2 at 0", r.Peak, r.PeakTime)
	}
	if r.Overshoot != 0 {
		t.Errorf("monotonic decay reported overshoot %g", r.Overshoot)
	}
	// 2% of 0.2 is reached at t = ln(50).
	if !r.Settled || math.Abs(r.SettlingTime-math.Log(50)) > 0.02 {
		t.Errorf("settling = %g (settled %v), want ~%g", r.SettlingTime, r.Settled, math.Log(50))
	}
	if r.SteadyStateError >= 0 {
		t.Errorf("expected negative steady-state error for positive deflection, got %g", r.SteadyStateError)
	}
	// Integral of 0.2 e^-t over [0, 10] by right rectangles.
	if math.Abs(r.IAE-0.2*(1-math.Exp(-10))) > 0.002 {
		t.Errorf("IAE = %g", r.IAE)
	}
}

func TestComputeResponseOvershoot(t *testing.T) {
	s := dynamo.NewSeries(5)
	s.Append(0, 0, 0, 0)
	s.Append(1, 0, 0, 1)
	s.Append(2, 1.2, 0, 1)
	s.Append(3, 0.95, 0, 1)
	s.Append(4, 1.0, 0, 1)

	r, err := ComputeResponse(s)
	if err != nil {
		t.Fatalf("ComputeResponse: %v", err)
	}
	if math.Abs(r.Overshoot-20) > 1e-9 {
		t.Errorf("overshoot = %g, want 20", r.Overshoot)
	}
	if r.FinalReference != 1 {
		t.Errorf("final reference = %g", r.FinalReference)
	}
	if !r.Settled || r.SettlingTime != 4 {
		t.Errorf("settling = %g (settled %v), want 4", r.SettlingTime, r.Settled)
	}
}

func TestComputeResponseAtRest(t *testing.T) {
	s := dynamo.NewSeries(3)
	for i := 0; i < 3; i++ {
		s.Append(float64(i), 0, 0, 0)
	}
	r, err := ComputeResponse(s)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Settled || r.SettlingTime != 0 || r.Overshoot != 0 {
		t.Errorf("rest run: %+v", r)
	}
}

func TestComputeResponseUnsettled(t *testing.T) {
	s := dynamo.NewSeries(3)
	s.Append(0, 0, 0, 0)
	s.Append(1, 0, 0, 0)
	s.Append(2, 0.5, 0, 0)
	r, _ := ComputeResponse(s)
	if r.Settled {
		t.Error("run ending outside the band reported settled")
	}
}

func TestComputeResponseRejects(t *testing.T) {
	if _, err := ComputeResponse(dynamo.NewSeries(0)); err == nil {
		t.Error("expected error for empty series")
	}

	s := dynamo.NewSeries(1)
	s.Append(0, math.NaN(), 0, 0)
	if _, err := ComputeResponse(s); err == nil {
		t.Error("expected error for non-finite series")
	}
}

func TestFFT(t *testing.T) {
	data := []float64{1, 0, 0, 0}
	got := FFT(data)
	for k, v := range got {
		if v != complex(1, 0) {
			t.Errorf("impulse bin %d = %v, want 1", k, v)
		}
	}
}

func TestDominantFrequency(t *testing.T) {
	dt := 1.0 / 256
	signal := make([]float64, 300)
	for i := range signal {
		signal[i] = 0.3 + math.Sin(2*math.Pi*8*float64(i)*dt)
	}

	freq, mag := DominantFrequency(signal, dt)
	if math.Abs(freq-8) > 1e-9 {
		t.Errorf("frequency = %g, want 8", freq)
	}
	if mag <= 0 {
		t.Errorf("magnitude = %g", mag)
	}

	if f, m := DominantFrequency([]float64{1, 2}, dt); f != 0 || m != 0 {
		t.Errorf("short signal gave %g, %g", f, m)
	}
}

func TestErrorPhasePortrait(t *testing.T) {
	s := decaySeries(11, 0.1, 0.2)
	p := ErrorPhasePortrait(s)
	if len(p.Points) != 10 {
		t.Fatalf("expected 10 points, got %d", len(p.Points))
	}

	first := p.Points[0]
	wantRate := (s.Error(1) - s.Error(0)) / 0.1
	if first.X != s.Error(1) || math.Abs(first.Y-wantRate) > 1e-12 {
		t.Errorf("first point = %+v, want (%g, %g)", first, s.Error(1), wantRate)
	}

	art := PhasePortraitToASCII(p, 20, 8)
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	if len(lines) != 9 {
		t.Errorf("expected header plus 8 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "error_dot vs error") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if PhasePortraitToASCII(&PhasePortrait2D{}, 10, 5) != "" {
		t.Error("empty portrait should render nothing")
	}
}

func TestDeflectionPhasePortrait(t *testing.T) {
	s := decaySeries(5, 0.1, 0.2)
	p := DeflectionPhasePortrait(s)
	if len(p.Points) != 5 || p.Points[0].X != 0.2 {
		t.Errorf("unexpected portrait %+v", p.Points)
	}
}

func TestSweep(t *testing.T) {
	base := dynamo.DefaultParams()
	base.Duration = 0.2

	points, err := Sweep(context.Background(), nil, base, "kp", 10, 50, 3)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, want := range []float64{10, 30, 50} {
		if points[i].Param != want {
			t.Errorf("point %d param = %g, want %g", i, points[i].Param, want)
		}
		if points[i].Peak <= 0 {
			t.Errorf("point %d has no peak", i)
		}
	}

	if _, err := Sweep(context.Background(), nil, base, "mass", 0, 1, 2); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
