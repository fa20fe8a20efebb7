package sim

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
)

// ProgressFunc receives the completed percentage after every step.
type ProgressFunc func(percent float64)

// Result is a finished (or cancelled) run.
type Result struct {
	Params      dynamo.Params
	Series      *dynamo.Series
	Metrics     map[string]float64
	StepsTaken  int
	FuzzyMisses int
	Clamps      int
	Elapsed     time.Duration
}

// Driver owns the shared pieces of a run: the fuzzy engine, the logger and
// any metrics or observers. Physical and PID state is created per run, so one
// Driver may run sequentially any number of times.
type Driver struct {
	engine    *control.FuzzyEngine
	logger    *zap.Logger
	metrics   []dynamo.Metric
	observers []dynamo.Observer
}

// Option configures a Driver.
type Option func(*Driver)

// WithEngine shares an existing fuzzy engine instead of building the default.
func WithEngine(e *control.FuzzyEngine) Option {
	return func(d *Driver) { d.engine = e }
}

// WithLogger sets the logger used for run lifecycle and diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func New(opts ...Option) *Driver {
	d := &Driver{
		logger:    zap.NewNop(),
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.engine == nil {
		d.engine = control.DefaultFuzzyEngine()
	}
	return d
}

func (d *Driver) AddMetric(m dynamo.Metric)     { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o dynamo.Observer) { d.observers = append(d.observers, o) }

// Engine returns the fuzzy engine used by the driver.
func (d *Driver) Engine() *control.FuzzyEngine { return d.engine }

// Run simulates params and returns the time, deflection, valve angle and
// reference series in radians. It is equivalent to New().Run.
func Run(ctx context.Context, p dynamo.Params, progress ProgressFunc) (*dynamo.Series, error) {
	res, err := New().Run(ctx, p, progress)
	if res == nil {
		return nil, err
	}
	return res.Series, err
}

// Run validates p and steps the closed loop from t=0 to the last multiple of
// dt not beyond the duration. On cancellation the partial result is returned
// together with ctx.Err().
func (d *Driver) Run(ctx context.Context, p dynamo.Params, progress ProgressFunc) (*Result, error) {
	st, err := NewStepper(p, d.engine)
	if err != nil {
		return nil, err
	}

	log := d.logger.With(
		zap.Stringer("scenario", p.Scenario),
		zap.Float64("t_end", p.Duration),
		zap.Float64("dt", p.Dt),
	)
	st.PID().OnNonFinite = func(e, out float64) {
		log.Debug("non-finite pid output", zap.Float64("valve_error", e), zap.Float64("voltage", out))
	}

	n := st.Samples()
	res := &Result{
		Params:  p,
		Series:  dynamo.NewSeries(n),
		Metrics: make(map[string]float64),
	}
	for _, m := range d.metrics {
		m.Reset()
	}

	log.Info("simulation started", zap.Int("steps", n-1))
	start := time.Now()
	warned := false

	for !st.Done() {
		select {
		case <-ctx.Done():
			d.finish(res, st, start)
			log.Warn("simulation cancelled", zap.Int("step", st.Index()))
			return res, ctx.Err()
		default:
		}

		s := st.Step()
		if s.FuzzyMiss {
			res.FuzzyMisses++
			log.Debug("no fuzzy rule fired", zap.Int("step", s.Step), zap.Float64("error", s.Error), zap.Float64("rate", s.ErrorRate))
		}

		if !finite(s.Deflection) || !finite(s.ValveAngle) {
			if p.ValidateState {
				d.finish(res, st, start)
				return res, &dynamo.SimulationError{Step: s.Step, Time: s.Time, Wrapped: dynamo.ErrUnstable}
			}
			if !warned {
				warned = true
				log.Warn("non-finite state, continuing", zap.Int("step", s.Step), zap.Float64("t", s.Time))
			}
		}

		res.Series.Append(s.Time, s.Deflection, s.ValveAngle, s.Reference)
		res.StepsTaken++

		for _, m := range d.metrics {
			m.Observe(s)
		}
		for _, obs := range d.observers {
			obs.OnStep(s)
		}

		if progress != nil {
			progress(100 * float64(s.Step+1) / float64(n))
		}
	}

	d.finish(res, st, start)
	log.Info("simulation finished",
		zap.Int("samples", res.Series.Len()),
		zap.Int("fuzzy_misses", res.FuzzyMisses),
		zap.Int("clamps", res.Clamps),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (d *Driver) finish(res *Result, st *Stepper, start time.Time) {
	res.Elapsed = time.Since(start)
	res.Clamps = st.Cascade().Clamps()
	for _, m := range d.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
