package metrics

import (
	"math"

	"github.com/san-kum/steersim/internal/dynamo"
)

// IAE integrates the absolute tracking error |ref - phi| with step dt.
type IAE struct {
	dt  float64
	sum float64
}

func NewIAE(dt float64) *IAE { return &IAE{dt: dt} }

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(s dynamo.Sample) {
	m.sum += math.Abs(s.Reference-s.Deflection) * m.dt
}

func (m *IAE) Value() float64 { return m.sum }
func (m *IAE) Reset()         { m.sum = 0 }

// PeakValve is the largest absolute valve angle seen, in radians.
type PeakValve struct {
	peak float64
}

func NewPeakValve() *PeakValve { return &PeakValve{} }

func (m *PeakValve) Name() string { return "peak_valve" }

func (m *PeakValve) Observe(s dynamo.Sample) {
	if a := math.Abs(s.ValveAngle); a > m.peak {
		m.peak = a
	}
}

func (m *PeakValve) Value() float64 { return m.peak }
func (m *PeakValve) Reset()         { m.peak = 0 }

// PeakForce is the largest absolute hydraulic force seen.
type PeakForce struct {
	peak float64
}

func NewPeakForce() *PeakForce { return &PeakForce{} }

func (m *PeakForce) Name() string { return "peak_force" }

func (m *PeakForce) Observe(s dynamo.Sample) {
	if f := math.Abs(dynamo.Force(s.Deflection)); f > m.peak {
		m.peak = f
	}
}

func (m *PeakForce) Value() float64 { return m.peak }
func (m *PeakForce) Reset()         { m.peak = 0 }
