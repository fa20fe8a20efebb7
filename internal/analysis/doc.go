// Package analysis characterizes recorded steering runs.
//
//   - [ComputeResponse]: overshoot, settling time, steady-state error
//   - [DominantFrequency]: strongest oscillation in a signal, for limit cycles
//   - [ErrorPhasePortrait]: the (error, error rate) plane the fuzzy rules act on
//   - [Sweep]: final and peak deflection across one parameter range
//
// # Settling
//
// The settling band is 2% of the largest tracking error in the run, with an
// absolute floor of [SettlingFloor] so that a run that never leaves the
// reference reports a zero settling time:
//
//	r, err := analysis.ComputeResponse(series)
//	if err == nil && r.Settled {
//	    fmt.Printf("settled after %.3fs\n", r.SettlingTime)
//	}
package analysis
