package dynamo

import (
	"fmt"
	"math"
)

// Scenario selects the initial condition, reference and disturbance of a run.
type Scenario int

const (
	// ScenarioInitialOffset corrects a nonzero initial deflection.
	ScenarioInitialOffset Scenario = 1
	// ScenarioDisturbance rejects a one-time deflection disturbance.
	ScenarioDisturbance Scenario = 2
	// ScenarioTracking follows a step in the reference angle.
	ScenarioTracking Scenario = 3
)

func (s Scenario) String() string {
	switch s {
	case ScenarioInitialOffset:
		return "initial"
	case ScenarioDisturbance:
		return "disturbance"
	case ScenarioTracking:
		return "tracking"
	default:
		return fmt.Sprintf("scenario(%d)", int(s))
	}
}

// ParseScenario accepts a scenario name or its number.
func ParseScenario(s string) (Scenario, error) {
	switch s {
	case "initial", "1":
		return ScenarioInitialOffset, nil
	case "disturbance", "2":
		return ScenarioDisturbance, nil
	case "tracking", "3":
		return ScenarioTracking, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// Valid reports whether s is one of the three known scenarios.
func (s Scenario) Valid() bool {
	return s >= ScenarioInitialOffset && s <= ScenarioTracking
}

// Gains are the inner-loop PID gains.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Physical holds the actuation cascade constants.
type Physical struct {
	J        float64 // valve rotor inertia
	B        float64 // valve damping
	Kt       float64 // motor torque constant
	Kh       float64 // hydraulic gain
	TauH     float64 // hydraulic time constant (s)
	SpoolMax float64 // valve travel limit (rad)
}

// Params fully describes one simulation run.
type Params struct {
	Scenario Scenario
	Gains    Gains
	Physical Physical

	Duration float64 // t_end (s)
	Dt       float64 // step size (s)

	// OutputLimit bounds the PID voltage; zero disables clamping.
	OutputLimit float64

	InitialDeflection float64 // rad, scenario 1 only
	DisturbanceTime   float64 // s, scenario 2 only
	Disturbance       float64 // rad, scenario 2 only
	ReferenceTime     float64 // s, scenario 3 only
	ReferenceStep     float64 // rad, scenario 3 only

	// ValidateState aborts the run on a NaN/Inf state instead of warning.
	ValidateState bool
}

const (
	DefaultKp          = 40.0
	DefaultKi          = 5.0
	DefaultKd          = 5.0
	DefaultOutputLimit = 10.0
	DefaultDuration    = 5.0
	DefaultDt          = 0.001
)

// DefaultParams returns the reference configuration for scenario 1.
func DefaultParams() Params {
	return Params{
		Scenario: ScenarioInitialOffset,
		Gains:    Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
		Physical: Physical{
			J:        0.01,
			B:        0.1,
			Kt:       1.0,
			Kh:       0.2,
			TauH:     0.5,
			SpoolMax: 0.5,
		},
		Duration:          DefaultDuration,
		Dt:                DefaultDt,
		OutputLimit:       DefaultOutputLimit,
		InitialDeflection: Deg2Rad(10.0),
		DisturbanceTime:   2.0,
		Disturbance:       Deg2Rad(2.86),
		ReferenceTime:     2.0,
		ReferenceStep:     Deg2Rad(5.0),
		ValidateState:     false,
	}
}

// Validate rejects configurations that cannot be stepped.
func (p Params) Validate() error {
	if !p.Scenario.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownScenario, int(p.Scenario))
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"dt", p.Dt},
		{"t_end", p.Duration},
		{"tau_h", p.Physical.TauH},
		{"J", p.Physical.J},
		{"spool_max", p.Physical.SpoolMax},
	}
	for _, c := range checks {
		if !(c.value > 0) || math.IsInf(c.value, 0) {
			return boundsError(c.name, c.value)
		}
	}
	if ratio := p.Duration / p.Dt; ratio > MaxSteps {
		return fmt.Errorf("%w: t_end/dt = %g exceeds %d steps", ErrParameterBounds, ratio, MaxSteps)
	}
	if p.OutputLimit < 0 {
		return fmt.Errorf("%w: output limit must not be negative, got %g", ErrParameterBounds, p.OutputLimit)
	}
	return nil
}

// Set updates a numeric parameter by name. Names are case-sensitive and
// follow the config file keys.
func (p *Params) Set(name string, value float64) error {
	switch name {
	case "kp":
		p.Gains.Kp = value
	case "ki":
		p.Gains.Ki = value
	case "kd":
		p.Gains.Kd = value
	case "J":
		p.Physical.J = value
	case "B":
		p.Physical.B = value
	case "Kt":
		p.Physical.Kt = value
	case "Kh":
		p.Physical.Kh = value
	case "tau_h":
		p.Physical.TauH = value
	case "spool_max":
		p.Physical.SpoolMax = value
	case "t_end":
		p.Duration = value
	case "dt":
		p.Dt = value
	case "limit":
		p.OutputLimit = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrParameterBounds, name)
	}
	return nil
}

// ParamNames lists the names accepted by Set.
func ParamNames() []string {
	return []string{"kp", "ki", "kd", "J", "B", "Kt", "Kh", "tau_h", "spool_max", "t_end", "dt", "limit"}
}

// Reference returns the commanded deflection at time t. Only the tracking
// scenario moves it off zero.
func (p Params) Reference(t float64) float64 {
	if p.Scenario == ScenarioTracking && t >= p.ReferenceTime {
		return p.ReferenceStep
	}
	return 0
}

// MaxSteps bounds t_end/dt so that a run's sample buffers can be allocated.
const MaxSteps = math.MaxInt32

// stepEpsilon absorbs the rounding in Duration/Dt so that e.g. 0.3/0.1
// yields 3 steps rather than 2.
const stepEpsilon = 1e-9

// Steps returns the number of integration steps; a run records Steps()+1
// samples covering t=0 through the last multiple of Dt not beyond Duration.
func (p Params) Steps() int {
	return int(math.Floor(p.Duration/p.Dt + stepEpsilon))
}

// Sample is the record of one simulation step.
type Sample struct {
	Step       int
	Time       float64
	Deflection float64
	ValveAngle float64
	Reference  float64
	Error      float64
	ErrorRate  float64
	Command    float64 // fuzzy valve angle target
	Voltage    float64 // PID output
	Saturated  bool
	Clamped    bool
	FuzzyMiss  bool
}

// Series holds the four output sequences of a run, indexed by step.
type Series struct {
	Time       []float64
	Deflection []float64
	ValveAngle []float64
	Reference  []float64
}

// NewSeries preallocates a series for n samples.
func NewSeries(n int) *Series {
	return &Series{
		Time:       make([]float64, 0, n),
		Deflection: make([]float64, 0, n),
		ValveAngle: make([]float64, 0, n),
		Reference:  make([]float64, 0, n),
	}
}

// Append records one sample.
func (s *Series) Append(t, deflection, valve, reference float64) {
	s.Time = append(s.Time, t)
	s.Deflection = append(s.Deflection, deflection)
	s.ValveAngle = append(s.ValveAngle, valve)
	s.Reference = append(s.Reference, reference)
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Time) }

// Error returns reference minus deflection at index i.
func (s *Series) Error(i int) float64 {
	return s.Reference[i] - s.Deflection[i]
}

// IsValid reports whether every recorded value is finite.
func (s *Series) IsValid() bool {
	for _, col := range [][]float64{s.Time, s.Deflection, s.ValveAngle, s.Reference} {
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Observer receives every sample of a run.
type Observer interface {
	OnStep(s Sample)
}

// Metric accumulates a scalar summary over a run.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Configurable is implemented by components that support live tuning.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// StiffnessK relates deflection to hydraulic force, F = StiffnessK * phi.
const StiffnessK = 1000.0

// Force returns the hydraulic force for a deflection in radians.
func Force(phi float64) float64 { return StiffnessK * phi }

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 { return rad * 180.0 / math.Pi }
