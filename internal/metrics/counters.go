package metrics

import "github.com/san-kum/steersim/internal/dynamo"

// ClampRatio is the fraction of steps on which the valve hit its travel stop.
type ClampRatio struct {
	clamped int
	samples int
}

func NewClampRatio() *ClampRatio { return &ClampRatio{} }

func (c *ClampRatio) Name() string { return "clamp_ratio" }

func (c *ClampRatio) Observe(s dynamo.Sample) {
	if s.Clamped {
		c.clamped++
	}
	c.samples++
}

func (c *ClampRatio) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.clamped) / float64(c.samples)
}

func (c *ClampRatio) Reset() {
	c.clamped = 0
	c.samples = 0
}

// FuzzyMisses counts steps on which no fuzzy rule fired.
type FuzzyMisses struct {
	n int
}

func NewFuzzyMisses() *FuzzyMisses { return &FuzzyMisses{} }

func (f *FuzzyMisses) Name() string { return "fuzzy_misses" }

func (f *FuzzyMisses) Observe(s dynamo.Sample) {
	if s.FuzzyMiss {
		f.n++
	}
}

func (f *FuzzyMisses) Value() float64 { return float64(f.n) }
func (f *FuzzyMisses) Reset()         { f.n = 0 }

// Standard returns the metric set recorded for every stored run.
func Standard(dt float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewIAE(dt),
		NewPeakValve(),
		NewPeakForce(),
		NewControlEffort(),
		NewSaturation(),
		NewClampRatio(),
		NewFuzzyMisses(),
		NewStability(dynamo.Deg2Rad(0.5)),
	}
}

// ByName looks up a metric from Standard by its name.
func ByName(name string, dt float64) (dynamo.Metric, bool) {
	for _, m := range Standard(dt) {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}
