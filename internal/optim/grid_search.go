package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/metrics"
	"github.com/san-kum/steersim/internal/sim"
)

// GridSearch evaluates every combination of parameter values and keeps the
// one minimizing a metric. Runs execute in parallel; each owns its physical
// and PID state while sharing one fuzzy engine.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64

	Workers int
	Engine  *control.FuzzyEngine
	Logger  *zap.Logger
}

// Candidate is one evaluated parameter combination.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// SearchResult holds the best combination and every evaluation in grid order.
type SearchResult struct {
	Best       map[string]float64
	BestValue  float64
	Candidates []Candidate
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs base for each grid point and minimizes metricName, one of the
// names in metrics.Standard. Failed runs are recorded but never win; ties go
// to the earlier grid point.
func (g *GridSearch) Search(ctx context.Context, base dynamo.Params, metricName string) (*SearchResult, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("grid search: %d names for %d ranges", len(g.paramNames), len(g.ranges))
	}
	if _, ok := metrics.ByName(metricName, base.Dt); !ok {
		return nil, fmt.Errorf("grid search: unknown metric %q", metricName)
	}
	for _, name := range g.paramNames {
		trial := base
		if err := trial.Set(name, 1); err != nil {
			return nil, fmt.Errorf("grid search: %w", err)
		}
	}

	var grid []map[string]float64
	g.enumerate(0, make(map[string]float64), &grid)

	engine := g.Engine
	if engine == nil {
		engine = control.DefaultFuzzyEngine()
	}
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	candidates := make([]Candidate, len(grid))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, point := range grid {
		i, point := i, point
		eg.Go(func() error {
			candidates[i] = g.evaluate(egCtx, engine, base, point, metricName)
			if errCtx := egCtx.Err(); errCtx != nil {
				return errCtx
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &SearchResult{BestValue: math.Inf(1), Candidates: candidates}
	for _, c := range candidates {
		if c.Err != nil {
			logger.Debug("grid point failed", zap.Any("params", c.Params), zap.Error(c.Err))
			continue
		}
		if c.Value < res.BestValue {
			res.BestValue = c.Value
			res.Best = c.Params
		}
	}
	if res.Best == nil {
		return res, fmt.Errorf("grid search: no successful run among %d points", len(grid))
	}

	logger.Info("grid search finished",
		zap.Int("points", len(grid)),
		zap.String("metric", metricName),
		zap.Float64("best", res.BestValue),
		zap.Any("params", res.Best),
	)
	return res, nil
}

func (g *GridSearch) evaluate(ctx context.Context, engine *control.FuzzyEngine, base dynamo.Params, point map[string]float64, metricName string) Candidate {
	c := Candidate{Params: point, Value: math.Inf(1)}

	p := base
	for name, v := range point {
		if err := p.Set(name, v); err != nil {
			c.Err = err
			return c
		}
	}

	m, _ := metrics.ByName(metricName, p.Dt)
	d := sim.New(sim.WithEngine(engine))
	d.AddMetric(m)

	res, err := d.Run(ctx, p, nil)
	if err != nil {
		c.Err = err
		return c
	}
	if !res.Series.IsValid() {
		c.Err = dynamo.ErrUnstable
		return c
	}
	c.Value = res.Metrics[metricName]
	return c
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, out)
	}
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
