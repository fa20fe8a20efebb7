package physics

import (
	"fmt"

	"github.com/san-kum/steersim/internal/dynamo"
)

// ValvePositioner models the motor-driven valve spool:
// J*omega' = Kt*U - B*omega, theta' = omega.
type ValvePositioner struct {
	J  float64
	B  float64
	Kt float64

	theta float64
	omega float64
}

func NewValvePositioner(j, b, kt float64) (*ValvePositioner, error) {
	if !(j > 0) {
		return nil, fmt.Errorf("%w: valve inertia J must be positive, got %g", dynamo.ErrParameterBounds, j)
	}
	return &ValvePositioner{J: j, B: b, Kt: kt}, nil
}

// Step advances the spool by dt under the given voltage and returns the new
// angle. The rate is updated first and the angle integrates the new rate.
func (v *ValvePositioner) Step(voltage, dt float64) float64 {
	omegaDot := (v.Kt*voltage - v.B*v.omega) / v.J
	v.omega += omegaDot * dt
	v.theta += v.omega * dt
	return v.theta
}

func (v *ValvePositioner) Angle() float64 { return v.theta }
func (v *ValvePositioner) Rate() float64  { return v.omega }

// SetAngle overwrites the stored spool angle. The rate is left untouched.
func (v *ValvePositioner) SetAngle(theta float64) { v.theta = theta }

func (v *ValvePositioner) GetParams() map[string]float64 {
	return map[string]float64{
		"J":  v.J,
		"B":  v.B,
		"Kt": v.Kt,
	}
}

func (v *ValvePositioner) SetParam(name string, value float64) error {
	switch name {
	case "J":
		if !(value > 0) {
			return fmt.Errorf("%w: J must be positive, got %g", dynamo.ErrParameterBounds, value)
		}
		v.J = value
	case "B":
		v.B = value
	case "Kt":
		v.Kt = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
