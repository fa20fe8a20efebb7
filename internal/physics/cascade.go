package physics

import "github.com/san-kum/steersim/internal/dynamo"

// Cascade drives the hydraulic actuator from the valve positioner and
// enforces the spool travel stop.
type Cascade struct {
	Valve     *ValvePositioner
	Hydraulic *HydraulicActuator
	SpoolMax  float64

	clamps  int
	clamped bool
}

// NewCascade builds both stages from p with the actuator starting at
// initialDeflection.
func NewCascade(p dynamo.Physical, initialDeflection float64) (*Cascade, error) {
	valve, err := NewValvePositioner(p.J, p.B, p.Kt)
	if err != nil {
		return nil, err
	}
	hyd, err := NewHydraulicActuator(p.Kh, p.TauH, p.SpoolMax, initialDeflection)
	if err != nil {
		return nil, err
	}
	return &Cascade{Valve: valve, Hydraulic: hyd, SpoolMax: p.SpoolMax}, nil
}

// Step applies voltage for dt and returns the new deflection.
func (c *Cascade) Step(voltage, dt float64) float64 {
	theta := c.Valve.Step(voltage, dt)

	c.clamped = false
	if theta > c.SpoolMax {
		theta = c.SpoolMax
		c.clamped = true
	} else if theta < -c.SpoolMax {
		theta = -c.SpoolMax
		c.clamped = true
	}
	if c.clamped {
		c.Valve.SetAngle(theta)
		c.clamps++
	}

	return c.Hydraulic.Step(theta, dt)
}

func (c *Cascade) ValveAngle() float64 { return c.Valve.Angle() }
func (c *Cascade) Deflection() float64 { return c.Hydraulic.Deflection() }

// Clamped reports whether the last Step hit the travel stop.
func (c *Cascade) Clamped() bool { return c.clamped }

// Clamps returns the number of steps that hit the travel stop.
func (c *Cascade) Clamps() int { return c.clamps }
