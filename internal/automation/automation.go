// Package automation runs scripted batches of simulations described in YAML.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/steersim/internal/config"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

// Batch defines a scripted sequence of runs.
type Batch struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Runs        []BatchRun `yaml:"runs"`
}

// BatchRun is a single run in a batch: a preset (default "initial"), an
// optional scenario override and parameter overrides by dynamo.Params.Set
// name.
type BatchRun struct {
	Label     string             `yaml:"label"`
	Preset    string             `yaml:"preset"`
	Scenario  string             `yaml:"scenario"`
	Overrides map[string]float64 `yaml:"params"`
}

// BatchResult is the outcome of one run. RunID is set when the result was
// stored.
type BatchResult struct {
	Label  string
	RunID  string
	Result *sim.Result
}

// Saver stores a finished run and returns its ID.
type Saver interface {
	Save(label string, result *sim.Result) (string, error)
}

var errEmptyBatch = errors.New("automation: batch has no runs")

// LoadBatch loads a batch from a YAML file
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBatch(data)
}

// ParseBatch decodes and checks a YAML batch.
func ParseBatch(data []byte) (*Batch, error) {
	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(batch.Runs) == 0 {
		return nil, errEmptyBatch
	}
	for i := range batch.Runs {
		if _, err := batch.Runs[i].Params(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
	}
	return &batch, nil
}

// Params resolves the run's preset and overrides into validated parameters.
// Overrides are applied in name order.
func (r BatchRun) Params() (dynamo.Params, error) {
	name := r.Preset
	if name == "" {
		name = "initial"
	}
	cfg, err := config.LookupPreset(name)
	if err != nil {
		return dynamo.Params{}, err
	}
	if r.Scenario != "" {
		cfg.Scenario = r.Scenario
	}
	p, err := cfg.Params()
	if err != nil {
		return dynamo.Params{}, err
	}

	names := make([]string, 0, len(r.Overrides))
	for k := range r.Overrides {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := p.Set(k, r.Overrides[k]); err != nil {
			return dynamo.Params{}, err
		}
	}
	return p, p.Validate()
}

func (r BatchRun) label(i int) string {
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("run-%d", i+1)
}

// DriverFunc builds the driver for one run, so per-run metrics can follow
// the run's step size.
type DriverFunc func(p dynamo.Params) *sim.Driver

// RunBatch executes every run in order, storing each result with saver when
// it is non-nil. newDriver may be nil for a bare driver. It stops at the
// first failing run and returns the results gathered so far.
func RunBatch(ctx context.Context, newDriver DriverFunc, batch *Batch, saver Saver, logger *zap.Logger) ([]BatchResult, error) {
	if len(batch.Runs) == 0 {
		return nil, errEmptyBatch
	}
	if newDriver == nil {
		newDriver = func(dynamo.Params) *sim.Driver { return sim.New() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]BatchResult, 0, len(batch.Runs))
	for i, run := range batch.Runs {
		label := run.label(i)
		logger.Info("batch run", zap.String("batch", batch.Name), zap.Int("index", i+1), zap.String("label", label))

		p, err := run.Params()
		if err != nil {
			return results, fmt.Errorf("run %d (%s): %w", i+1, label, err)
		}

		res, err := newDriver(p).Run(ctx, p, nil)
		if err != nil {
			return results, fmt.Errorf("run %d (%s): %w", i+1, label, err)
		}

		br := BatchResult{Label: label, Result: res}
		if saver != nil {
			if br.RunID, err = saver.Save(label, res); err != nil {
				return results, fmt.Errorf("run %d (%s) save: %w", i+1, label, err)
			}
		}
		results = append(results, br)
	}
	return results, nil
}
