package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/steersim/internal/dynamo"
)

// CSVHeader is the column layout of exported tables.
var CSVHeader = []string{"time", "phi_deg", "theta_deg", "force"}

type ExportData struct {
	ID       string             `json:"id,omitempty"`
	Scenario string             `json:"scenario"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Times    []float64          `json:"times"`
	PhiDeg   []float64          `json:"phi_deg"`
	ThetaDeg []float64          `json:"theta_deg"`
	RefDeg   []float64          `json:"ref_deg"`
	Force    []float64          `json:"force"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// NewExportData converts a series to presentation units: degrees and
// hydraulic force.
func NewExportData(meta *RunMetadata, series *dynamo.Series) ExportData {
	n := series.Len()
	data := ExportData{
		Steps:    n,
		Times:    series.Time,
		PhiDeg:   make([]float64, n),
		ThetaDeg: make([]float64, n),
		RefDeg:   make([]float64, n),
		Force:    make([]float64, n),
	}
	if meta != nil {
		data.ID = meta.ID
		data.Scenario = meta.Scenario
		data.Metrics = meta.Metrics
		if meta.Config != nil {
			data.Dt = meta.Config.Dt
			data.Duration = meta.Config.Duration
		}
	}

	for i := 0; i < n; i++ {
		data.PhiDeg[i] = dynamo.Rad2Deg(series.Deflection[i])
		data.ThetaDeg[i] = dynamo.Rad2Deg(series.ValveAngle[i])
		data.RefDeg[i] = dynamo.Rad2Deg(series.Reference[i])
		data.Force[i] = dynamo.Force(series.Deflection[i])
	}
	return data
}

func ExportJSON(path string, meta *RunMetadata, series *dynamo.Series) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, meta, series)
}

func WriteJSON(w io.Writer, meta *RunMetadata, series *dynamo.Series) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, series))
}

func ExportCSV(path string, series *dynamo.Series) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteCSV(file, series)
}

// WriteCSV writes one row per sample: time, deflection and valve angle in
// degrees, and hydraulic force.
func WriteCSV(w io.Writer, series *dynamo.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := 0; i < series.Len(); i++ {
		row := []string{
			strconv.FormatFloat(series.Time[i], 'f', 6, 64),
			strconv.FormatFloat(dynamo.Rad2Deg(series.Deflection[i]), 'f', 6, 64),
			strconv.FormatFloat(dynamo.Rad2Deg(series.ValveAngle[i]), 'f', 6, 64),
			strconv.FormatFloat(dynamo.Force(series.Deflection[i]), 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
