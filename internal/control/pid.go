package control

import (
	"fmt"
	"math"
)

// PID is a discrete PID regulator with a fixed step. When OutputLimit is
// positive the output is clamped to ±OutputLimit and the integral is frozen
// while the error keeps pushing into the limit.
type PID struct {
	Kp          float64
	Ki          float64
	Kd          float64
	OutputLimit float64

	dt        float64
	integral  float64
	prevErr   float64
	saturated bool

	// OnNonFinite, if set, is called when Compute produces NaN or Inf.
	OnNonFinite func(err, out float64)
}

func NewPID(kp, ki, kd, dt, limit float64) *PID {
	return &PID{
		Kp:          kp,
		Ki:          ki,
		Kd:          kd,
		OutputLimit: limit,
		dt:          dt,
	}
}

// Compute advances the regulator by one step and returns its output.
func (p *PID) Compute(err float64) float64 {
	derivative := (err - p.prevErr) / p.dt
	integral := p.integral + err*p.dt
	out := p.Kp*err + p.Ki*integral + p.Kd*derivative

	p.saturated = false
	if p.OutputLimit > 0 {
		if out > p.OutputLimit {
			out = p.OutputLimit
			p.saturated = true
			if err > 0 {
				integral = p.integral
			}
		} else if out < -p.OutputLimit {
			out = -p.OutputLimit
			p.saturated = true
			if err < 0 {
				integral = p.integral
			}
		}
	}

	p.integral = integral
	p.prevErr = err

	if p.OnNonFinite != nil && (math.IsNaN(out) || math.IsInf(out, 0)) {
		p.OnNonFinite(err, out)
	}
	return out
}

func (p *PID) Integral() float64 { return p.integral }
func (p *PID) Dt() float64       { return p.dt }

// Saturated reports whether the last output was clamped.
func (p *PID) Saturated() bool { return p.saturated }

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.saturated = false
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Ki":    p.Ki,
		"Kd":    p.Kd,
		"Limit": p.OutputLimit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Limit":
		if value < 0 {
			return fmt.Errorf("output limit must not be negative, got %g", value)
		}
		p.OutputLimit = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
