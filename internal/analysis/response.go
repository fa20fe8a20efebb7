package analysis

import (
	"errors"
	"math"

	"github.com/san-kum/steersim/internal/dynamo"
)

// SettlingFloor is the smallest settling band half-width, in radians.
const SettlingFloor = 1e-4

// SettlingFraction is the settling band relative to the largest error.
const SettlingFraction = 0.02

var errEmptySeries = errors.New("analysis: empty series")

// Response summarizes the transient of a run relative to its final reference.
type Response struct {
	FinalReference   float64
	Peak             float64 // largest |deflection|
	PeakTime         float64
	Overshoot        float64 // percent of the approach distance
	SettlingTime     float64
	Settled          bool
	SteadyStateError float64 // mean error over the last tenth of the run
	IAE              float64
}

// ComputeResponse measures the step response of s. The approach starts at the
// first sample carrying the final reference.
func ComputeResponse(s *dynamo.Series) (Response, error) {
	n := s.Len()
	if n == 0 {
		return Response{}, errEmptySeries
	}
	if !s.IsValid() {
		return Response{}, dynamo.ErrInvalidState
	}

	r := Response{FinalReference: s.Reference[n-1]}

	maxErr := 0.0
	for i := 0; i < n; i++ {
		if a := math.Abs(s.Deflection[i]); a > r.Peak {
			r.Peak = a
			r.PeakTime = s.Time[i]
		}
		e := math.Abs(s.Error(i))
		if e > maxErr {
			maxErr = e
		}
		if i > 0 {
			r.IAE += e * (s.Time[i] - s.Time[i-1])
		}
	}

	start := 0
	for start < n && s.Reference[start] != r.FinalReference {
		start++
	}
	approach := r.FinalReference - s.Deflection[start]
	if math.Abs(approach) > SettlingFloor {
		dir := math.Copysign(1, approach)
		beyond := 0.0
		for i := start; i < n; i++ {
			if d := dir * (s.Deflection[i] - r.FinalReference); d > beyond {
				beyond = d
			}
		}
		r.Overshoot = 100 * beyond / math.Abs(approach)
	}

	band := math.Max(SettlingFraction*maxErr, SettlingFloor)
	last := -1
	for i := 0; i < n; i++ {
		if math.Abs(s.Error(i)) > band {
			last = i
		}
	}
	switch {
	case last < 0:
		r.Settled = true
	case last < n-1:
		r.Settled = true
		r.SettlingTime = s.Time[last+1]
	}

	tail := n / 10
	if tail == 0 {
		tail = 1
	}
	for i := n - tail; i < n; i++ {
		r.SteadyStateError += s.Error(i)
	}
	r.SteadyStateError /= float64(tail)

	return r, nil
}
