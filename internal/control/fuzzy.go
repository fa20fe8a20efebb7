package control

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Rule maps an (error term AND rate term) antecedent to an output term.
type Rule struct {
	Error  string
	Rate   string
	Output string
}

func (r Rule) String() string {
	return fmt.Sprintf("(%s, %s) -> %s", r.Error, r.Rate, r.Output)
}

type compiledRule struct {
	err, rate, out int
}

// Inference is the full result of one fuzzy evaluation.
type Inference struct {
	Value     float64   // commanded valve angle
	Fired     bool      // false when no rule fired and Value is the 0 fallback
	Error     float64   // error after clipping to its universe
	Rate      float64   // rate after clipping to its universe
	Strengths []float64 // firing strength per output term
}

// FuzzyEngine is a Mamdani inference system: min for AND, max to combine
// rules sharing an output term, max aggregation of clipped output sets and
// centroid defuzzification. Its configuration is fixed at construction and
// Compute keeps all scratch local, so one engine can serve many runs.
type FuzzyEngine struct {
	errVar  Variable
	rateVar Variable
	outVar  Variable
	rules   []Rule

	compiled []compiledRule
	universe []float64
	outMF    [][]float64

	onMiss func(err, rate float64)
	misses atomic.Int64
}

// FuzzyOption configures a FuzzyEngine.
type FuzzyOption func(*FuzzyEngine)

// WithMissHook registers fn to be called whenever no rule fires. fn runs
// synchronously inside Compute and must not block.
func WithMissHook(fn func(err, rate float64)) FuzzyOption {
	return func(e *FuzzyEngine) { e.onMiss = fn }
}

// NewFuzzyEngine validates the variables and rules and precomputes the output
// term memberships over the output universe.
func NewFuzzyEngine(errVar, rateVar, outVar Variable, rules []Rule, opts ...FuzzyOption) (*FuzzyEngine, error) {
	for _, v := range []Variable{errVar, rateVar, outVar} {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("fuzzy engine: empty rule table")
	}

	e := &FuzzyEngine{
		errVar:   errVar.clone(),
		rateVar:  rateVar.clone(),
		outVar:   outVar.clone(),
		rules:    append([]Rule(nil), rules...),
		compiled: make([]compiledRule, len(rules)),
		universe: outVar.Universe(),
	}

	for i, r := range rules {
		c := compiledRule{
			err:  errVar.termIndex(r.Error),
			rate: rateVar.termIndex(r.Rate),
			out:  outVar.termIndex(r.Output),
		}
		if c.err < 0 || c.rate < 0 || c.out < 0 {
			return nil, fmt.Errorf("fuzzy engine: rule %d %v references an unknown term", i, r)
		}
		e.compiled[i] = c
	}

	e.outMF = make([][]float64, len(outVar.Terms))
	for k, t := range outVar.Terms {
		row := make([]float64, len(e.universe))
		for i, x := range e.universe {
			row[i] = t.MF.Degree(x)
		}
		e.outMF[k] = row
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Compute returns the commanded valve angle for the given attitude error and
// error rate. It returns 0 when no rule fires.
func (e *FuzzyEngine) Compute(err, rate float64) float64 {
	return e.Evaluate(err, rate).Value
}

// Evaluate runs the inference and reports the intermediate results.
func (e *FuzzyEngine) Evaluate(err, rate float64) Inference {
	inf := Inference{
		Error:     e.errVar.Clip(err),
		Rate:      e.rateVar.Clip(rate),
		Strengths: make([]float64, len(e.outVar.Terms)),
	}

	if !math.IsNaN(inf.Error) && !math.IsNaN(inf.Rate) {
		muErr := e.errVar.Fuzzify(inf.Error)
		muRate := e.rateVar.Fuzzify(inf.Rate)
		for _, r := range e.compiled {
			w := math.Min(muErr[r.err], muRate[r.rate])
			if w > inf.Strengths[r.out] {
				inf.Strengths[r.out] = w
			}
		}

		agg := make([]float64, len(e.universe))
		for k, w := range inf.Strengths {
			if w == 0 {
				continue
			}
			for i, m := range e.outMF[k] {
				if v := math.Min(w, m); v > agg[i] {
					agg[i] = v
				}
			}
		}
		inf.Value, inf.Fired = centroid(e.universe, agg)
	}

	if !inf.Fired {
		e.misses.Add(1)
		if e.onMiss != nil {
			e.onMiss(inf.Error, inf.Rate)
		}
	}
	return inf
}

// Strengths returns the firing strength of each output term by name.
func (e *FuzzyEngine) Strengths(err, rate float64) map[string]float64 {
	inf := e.Evaluate(err, rate)
	out := make(map[string]float64, len(inf.Strengths))
	for k, w := range inf.Strengths {
		out[e.outVar.Terms[k].Name] = w
	}
	return out
}

// Misses returns how many evaluations fell back to 0 because no rule fired.
func (e *FuzzyEngine) Misses() int64 { return e.misses.Load() }

func (e *FuzzyEngine) Rules() []Rule            { return append([]Rule(nil), e.rules...) }
func (e *FuzzyEngine) ErrorVariable() Variable  { return e.errVar.clone() }
func (e *FuzzyEngine) RateVariable() Variable   { return e.rateVar.clone() }
func (e *FuzzyEngine) OutputVariable() Variable { return e.outVar.clone() }

// Default steering controller configuration. Angles in radians, rate in rad/s.
var (
	DefaultErrorVariable = Variable{
		Name: "error", Min: -0.3, Max: 0.3, Points: 61,
		Terms: []Term{
			{"neg", Triangle{-0.3, -0.2, -0.05}},
			{"zero", Triangle{-0.1, 0.0, 0.1}},
			{"pos", Triangle{0.05, 0.2, 0.3}},
		},
	}

	DefaultRateVariable = Variable{
		Name: "error_dot", Min: -0.2, Max: 0.2, Points: 61,
		Terms: []Term{
			{"neg", Triangle{-0.2, -0.05, 0.0}},
			{"zero", Triangle{-0.05, 0.0, 0.05}},
			{"pos", Triangle{0.0, 0.05, 0.2}},
		},
	}

	DefaultOutputVariable = Variable{
		Name: "alpha_cmd", Min: -0.5, Max: 0.5, Points: 61,
		Terms: []Term{
			{"neg_big", Triangle{-0.5, -0.5, -0.25}},
			{"neg_small", Triangle{-0.3, -0.15, 0.0}},
			{"zero", Triangle{-0.1, 0.0, 0.1}},
			{"pos_small", Triangle{0.0, 0.15, 0.3}},
			{"pos_big", Triangle{0.25, 0.5, 0.5}},
		},
	}

	// DefaultRules repeats some entries; max aggregation makes repeats
	// harmless. (zero, neg) -> pos_small has no neg_small mirror and
	// (neg, pos) maps to both neg_small and pos_small.
	DefaultRules = []Rule{
		{"pos", "pos", "pos_big"},
		{"pos", "zero", "pos_small"},
		{"pos", "neg", "neg_small"},
		{"neg", "neg", "neg_big"},
		{"neg", "zero", "neg_big"},
		{"neg", "pos", "neg_small"},
		{"zero", "pos", "pos_small"},
		{"zero", "zero", "zero"},
		{"zero", "neg", "pos_small"},
		{"pos", "pos", "pos_big"},
		{"neg", "neg", "neg_big"},
		{"zero", "zero", "zero"},
		{"pos", "pos", "pos_big"},
		{"neg", "pos", "pos_small"},
		{"pos", "neg", "neg_small"},
	}
)

// DefaultFuzzyEngine builds the engine for the default steering configuration.
func DefaultFuzzyEngine(opts ...FuzzyOption) *FuzzyEngine {
	e, err := NewFuzzyEngine(DefaultErrorVariable, DefaultRateVariable, DefaultOutputVariable, DefaultRules, opts...)
	if err != nil {
		panic(fmt.Sprintf("control: default fuzzy configuration invalid: %v", err))
	}
	return e
}
