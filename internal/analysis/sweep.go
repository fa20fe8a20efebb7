package analysis

import (
	"context"
	"fmt"

	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

// SweepPoint is the outcome of one run in a parameter sweep.
type SweepPoint struct {
	Param     float64
	Final     float64 // last deflection
	Peak      float64 // largest |deflection|
	Overshoot float64
	IAE       float64
}

// Sweep runs base once per parameter value, stepping paramName evenly from
// paramMin to paramMax, and records where the deflection ends up. Runs share
// the driver and therefore its fuzzy engine.
//
// Parameters:
// - d: driver to run with; nil builds a default one
// - paramName: any name accepted by dynamo.Params.Set
// - paramMin, paramMax: range to sweep
// - paramSteps: number of values to test (at least 2)
func Sweep(
	ctx context.Context,
	d *sim.Driver,
	base dynamo.Params,
	paramName string,
	paramMin, paramMax float64,
	paramSteps int,
) ([]SweepPoint, error) {
	if d == nil {
		d = sim.New()
	}
	if paramSteps <= 1 {
		paramSteps = 2
	}
	paramStep := (paramMax - paramMin) / float64(paramSteps-1)

	results := make([]SweepPoint, 0, paramSteps)
	for i := 0; i < paramSteps; i++ {
		param := paramMin + float64(i)*paramStep

		p := base
		if err := p.Set(paramName, param); err != nil {
			return results, err
		}

		res, err := d.Run(ctx, p, nil)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", paramName, param, err)
		}

		pt := SweepPoint{Param: param, Final: res.Series.Deflection[res.Series.Len()-1]}
		if r, err := ComputeResponse(res.Series); err == nil {
			pt.Peak = r.Peak
			pt.Overshoot = r.Overshoot
			pt.IAE = r.IAE
		}
		results = append(results, pt)
	}

	return results, nil
}
