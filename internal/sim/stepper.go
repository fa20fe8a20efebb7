package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/physics"
)

// Stepper advances one closed-loop run a step at a time. It owns the
// physical and PID state of the run; the fuzzy engine may be shared.
type Stepper struct {
	params  dynamo.Params
	engine  *control.FuzzyEngine
	cascade *physics.Cascade
	pid     *control.PID

	n         int
	i         int
	disturbAt int
	prevErr   float64
}

// NewStepper validates p and prepares a run at t=0.
func NewStepper(p dynamo.Params, engine *control.FuzzyEngine) (*Stepper, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run parameters: %w", err)
	}
	if engine == nil {
		engine = control.DefaultFuzzyEngine()
	}

	initial := 0.0
	if p.Scenario == dynamo.ScenarioInitialOffset {
		initial = p.InitialDeflection
	}
	cascade, err := physics.NewCascade(p.Physical, initial)
	if err != nil {
		return nil, fmt.Errorf("build cascade: %w", err)
	}

	s := &Stepper{
		params:    p,
		engine:    engine,
		cascade:   cascade,
		pid:       control.NewPID(p.Gains.Kp, p.Gains.Ki, p.Gains.Kd, p.Dt, p.OutputLimit),
		n:         p.Steps(),
		disturbAt: -1,
	}
	if p.Scenario == dynamo.ScenarioDisturbance {
		s.disturbAt = int(math.Round(p.DisturbanceTime / p.Dt))
	}
	s.prevErr = p.Reference(0) - cascade.Deflection()
	return s, nil
}

// Done reports whether every sample has been produced.
func (s *Stepper) Done() bool { return s.i > s.n }

// Samples is the total number of samples the run produces.
func (s *Stepper) Samples() int { return s.n + 1 }

// Index is the index of the next sample.
func (s *Stepper) Index() int { return s.i }

func (s *Stepper) Params() dynamo.Params        { return s.params }
func (s *Stepper) PID() *control.PID            { return s.pid }
func (s *Stepper) Cascade() *physics.Cascade    { return s.cascade }
func (s *Stepper) Engine() *control.FuzzyEngine { return s.engine }

// Step runs one control period and returns its sample. The deflection and
// valve angle are the values after the step; time is index*dt.
func (s *Stepper) Step() dynamo.Sample {
	p := s.params
	t := float64(s.i) * p.Dt
	if s.i == s.disturbAt {
		s.cascade.Hydraulic.Perturb(p.Disturbance)
	}
	ref := p.Reference(t)

	e := ref - s.cascade.Deflection()
	rate := (e - s.prevErr) / p.Dt
	s.prevErr = e

	inf := s.engine.Evaluate(e, rate)
	voltage := s.pid.Compute(inf.Value - s.cascade.ValveAngle())
	phi := s.cascade.Step(voltage, p.Dt)

	sample := dynamo.Sample{
		Step:       s.i,
		Time:       t,
		Deflection: phi,
		ValveAngle: s.cascade.ValveAngle(),
		Reference:  ref,
		Error:      e,
		ErrorRate:  rate,
		Command:    inf.Value,
		Voltage:    voltage,
		Saturated:  s.pid.Saturated(),
		Clamped:    s.cascade.Clamped(),
		FuzzyMiss:  !inf.Fired,
	}
	s.i++
	return sample
}
