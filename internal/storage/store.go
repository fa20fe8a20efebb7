package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/steersim/internal/config"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

var seriesHeader = []string{"time", "phi", "theta", "ref"}

// ErrInvalidRunID is returned for run IDs that do not name a single entry
// under the store directory.
var ErrInvalidRunID = errors.New("storage: invalid run id")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Label       string             `json:"label,omitempty"`
	Scenario    string             `json:"scenario"`
	Timestamp   time.Time          `json:"timestamp"`
	Config      *config.Config     `json:"config"`
	Samples     int                `json:"samples"`
	FuzzyMisses int                `json:"fuzzy_misses"`
	Clamps      int                `json:"clamps"`
	ElapsedMS   float64            `json:"elapsed_ms"`
	Metrics     map[string]float64 `json:"metrics"`
	NonFinite   []string           `json:"non_finite,omitempty"`
}

// Params rebuilds the run parameters recorded with the run.
func (m *RunMetadata) Params() (dynamo.Params, error) {
	if m.Config == nil {
		return dynamo.Params{}, fmt.Errorf("run %s: no recorded config", m.ID)
	}
	return m.Config.Params()
}

// Save writes result under a new run directory and returns the run ID. The
// files are written to a temporary directory that is renamed into place, so
// a failed save leaves nothing behind. Non-finite metric values cannot be
// encoded as JSON; they are left out of Metrics and named in NonFinite.
func (s *Store) Save(label string, result *sim.Result) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	runID := fmt.Sprintf("%s_%s", result.Params.Scenario, uuid.NewString()[:8])

	metrics, nonFinite := splitFinite(result.Metrics)
	meta := RunMetadata{
		ID:          runID,
		Label:       label,
		Scenario:    result.Params.Scenario.String(),
		Timestamp:   time.Now(),
		Config:      config.FromParams(result.Params),
		Samples:     result.Series.Len(),
		FuzzyMisses: result.FuzzyMisses,
		Clamps:      result.Clamps,
		ElapsedMS:   float64(result.Elapsed.Microseconds()) / 1000,
		Metrics:     metrics,
		NonFinite:   nonFinite,
	}

	tmpDir, err := os.MkdirTemp(s.baseDir, ".save-")
	if err != nil {
		return "", err
	}
	if err := writeRun(tmpDir, &meta, result.Series); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	if err := os.Rename(tmpDir, filepath.Join(s.baseDir, runID)); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	return runID, nil
}

func splitFinite(in map[string]float64) (map[string]float64, []string) {
	out := make(map[string]float64, len(in))
	var dropped []string
	for name, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped = append(dropped, name)
			continue
		}
		out[name] = v
	}
	sort.Strings(dropped)
	return out, dropped
}

func writeRun(dir string, meta *RunMetadata, series *dynamo.Series) error {
	metaFile, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		metaFile.Close()
		return err
	}
	if err := metaFile.Close(); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(dir, seriesFile))
	if err != nil {
		return err
	}
	if err := writeSeries(csvFile, series); err != nil {
		csvFile.Close()
		return err
	}
	return csvFile.Close()
}

func writeSeries(f *os.File, series *dynamo.Series) error {
	w := csv.NewWriter(f)
	if err := w.Write(seriesHeader); err != nil {
		return err
	}
	for i := 0; i < series.Len(); i++ {
		row := []string{
			formatFloat(series.Time[i]),
			formatFloat(series.Deflection[i]),
			formatFloat(series.ValveAngle[i]),
			formatFloat(series.Reference[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns all readable runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

// runDir resolves a run ID to its directory. IDs must be a single path
// element.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." ||
		strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadSeries reads the recorded series of a run.
func (s *Store) LoadSeries(runID string) (*dynamo.Series, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(dir, seriesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(seriesHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: missing header", runID)
	}

	series := dynamo.NewSeries(len(records) - 1)
	for i, record := range records[1:] {
		var vals [4]float64
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
			}
			vals[j] = v
		}
		series.Append(vals[0], vals[1], vals[2], vals[3])
	}

	return series, nil
}

// Delete removes a run directory.
func (s *Store) Delete(runID string) error {
	dir, err := s.runDir(runID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
