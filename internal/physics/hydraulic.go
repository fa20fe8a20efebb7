package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/steersim/internal/dynamo"
)

// HydraulicActuator converts spool angle into bit deflection through a
// first-order lag: tau*phi' = K_h*u - phi, u = clip(spool)/SpoolMax.
type HydraulicActuator struct {
	Kh       float64
	TauH     float64
	SpoolMax float64

	phi float64
}

func NewHydraulicActuator(kh, tauH, spoolMax, initial float64) (*HydraulicActuator, error) {
	if !(tauH > 0) {
		return nil, fmt.Errorf("%w: tau_h must be positive, got %g", dynamo.ErrParameterBounds, tauH)
	}
	if !(spoolMax > 0) {
		return nil, fmt.Errorf("%w: spool_max must be positive, got %g", dynamo.ErrParameterBounds, spoolMax)
	}
	return &HydraulicActuator{Kh: kh, TauH: tauH, SpoolMax: spoolMax, phi: initial}, nil
}

// Step advances the deflection by dt for the given spool angle.
func (h *HydraulicActuator) Step(spoolAngle, dt float64) float64 {
	u := math.Max(-h.SpoolMax, math.Min(h.SpoolMax, spoolAngle)) / h.SpoolMax
	phiDot := (h.Kh/h.TauH)*u - h.phi/h.TauH
	h.phi += phiDot * dt
	return h.phi
}

func (h *HydraulicActuator) Deflection() float64 { return h.phi }

// Perturb adds delta directly to the deflection state.
func (h *HydraulicActuator) Perturb(delta float64) { h.phi += delta }
