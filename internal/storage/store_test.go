package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/metrics"
	"github.com/san-kum/steersim/internal/sim"
)

func runShort(t *testing.T, sc dynamo.Scenario) *sim.Result {
	t.Helper()
	p := dynamo.DefaultParams()
	p.Scenario = sc
	p.Duration = 0.05

	d := sim.New()
	for _, m := range metrics.Standard(p.Dt) {
		d.AddMetric(m)
	}
	res, err := d.Run(context.Background(), p, nil)
	require.NoError(t, err)
	return res
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	result := runShort(t, dynamo.ScenarioInitialOffset)
	runID, err := st.Save("baseline", result)
	require.NoError(t, err)
	assert.Contains(t, runID, "initial_")

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", meta.Label)
	assert.Equal(t, "initial", meta.Scenario)
	assert.Equal(t, result.Series.Len(), meta.Samples)
	assert.Equal(t, result.Metrics["iae"], meta.Metrics["iae"])

	p, err := meta.Params()
	require.NoError(t, err)
	assert.Equal(t, result.Params.Gains, p.Gains)
	assert.Equal(t, result.Params.Scenario, p.Scenario)

	series, err := st.LoadSeries(runID)
	require.NoError(t, err)
	assert.Equal(t, result.Series, series, "series must round-trip exactly")
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = st.Save("", runShort(t, dynamo.ScenarioDisturbance))
	require.NoError(t, err)
	_, err = st.Save("", runShort(t, dynamo.ScenarioTracking))
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "garbage"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Timestamp.Before(runs[1].Timestamp), "newest first")
}

func TestStoreLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("nope")
	assert.Error(t, err)
	_, err = st.LoadSeries("nope")
	assert.Error(t, err)
	assert.Error(t, st.Delete("nope"))
}

func TestStoreLoadSeriesCorrupt(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	runID, err := st.Save("", runShort(t, dynamo.ScenarioInitialOffset))
	require.NoError(t, err)

	path := filepath.Join(dir, runID, seriesFile)
	require.NoError(t, os.WriteFile(path, []byte("time,phi,theta,ref\n0,abc,0,0\n"), 0644))
	_, err = st.LoadSeries(runID)
	assert.Error(t, err)
}

func TestStoreSaveDivergedRun(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	p := dynamo.DefaultParams()
	p.Dt = 1.5
	p.Duration = 3000
	d := sim.New()
	for _, m := range metrics.Standard(p.Dt) {
		d.AddMetric(m)
	}
	result, err := d.Run(context.Background(), p, nil)
	require.NoError(t, err)
	require.False(t, result.Series.IsValid(), "run should diverge at this step size")

	runID, err := st.Save("diverged", result)
	require.NoError(t, err)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Contains(t, meta.NonFinite, "iae")
	assert.NotContains(t, meta.Metrics, "iae")
	assert.Contains(t, meta.Metrics, "clamp_ratio")

	series, err := st.LoadSeries(runID)
	require.NoError(t, err)
	assert.Equal(t, result.Series.Len(), series.Len())
	assert.False(t, series.IsValid())

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary directories left behind")
}

func TestStoreSaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	result := &sim.Result{
		Params:  dynamo.DefaultParams(),
		Series:  dynamo.NewSeries(0),
		Metrics: map[string]float64{},
		Elapsed: time.Millisecond,
	}
	result.Params.Gains.Kp = math.Inf(1)

	_, err := st.Save("", result)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreRejectsInvalidRunID(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "runs")
	st := New(dir)
	require.NoError(t, st.Init())
	require.NoError(t, os.WriteFile(filepath.Join(parent, metadataFile), []byte("{}"), 0644))

	for _, id := range []string{"", ".", "..", "../runs", "a/b", `a\b`, "x..y"} {
		assert.ErrorIs(t, st.Delete(id), ErrInvalidRunID, id)
		_, err := st.Load(id)
		assert.ErrorIs(t, err, ErrInvalidRunID, id)
		_, err = st.LoadSeries(id)
		assert.ErrorIs(t, err, ErrInvalidRunID, id)
	}

	_, err := os.Stat(dir)
	assert.NoError(t, err, "store directory must survive")
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	runID, err := st.Save("", runShort(t, dynamo.ScenarioInitialOffset))
	require.NoError(t, err)

	require.NoError(t, st.Delete(runID))
	_, err = os.Stat(filepath.Join(dir, runID))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSV(t *testing.T) {
	series := dynamo.NewSeries(2)
	series.Append(0, dynamo.Deg2Rad(10), dynamo.Deg2Rad(-2), 0)
	series.Append(0.001, 0.01, 0, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, series))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"0.000000", "10.000000", "-2.000000", "174.532925"}, records[1])

	force, err := strconv.ParseFloat(records[2][3], 64)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, force, 1e-9)
}

func TestWriteJSON(t *testing.T) {
	result := runShort(t, dynamo.ScenarioTracking)
	meta := &RunMetadata{ID: "abc", Scenario: "tracking", Metrics: map[string]float64{"iae": 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, meta, result.Series))

	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "abc", data.ID)
	assert.Equal(t, result.Series.Len(), data.Steps)
	assert.Len(t, data.PhiDeg, data.Steps)
	assert.InDelta(t, dynamo.Rad2Deg(result.Series.Deflection[0]), data.PhiDeg[0], 1e-12)
	assert.InDelta(t, dynamo.Force(result.Series.Deflection[0]), data.Force[0], 1e-9)
}

func TestExportFiles(t *testing.T) {
	dir := t.TempDir()
	series := runShort(t, dynamo.ScenarioInitialOffset).Series

	require.NoError(t, ExportCSV(filepath.Join(dir, "out.csv"), series))
	require.NoError(t, ExportJSON(filepath.Join(dir, "out.json"), nil, series))

	for _, name := range []string{"out.csv", "out.json"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
