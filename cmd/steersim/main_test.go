package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/san-kum/steersim/internal/config"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/storage"
)

func TestParseGrid(t *testing.T) {
	name, values, err := parseGrid("kp=20:80:4")
	if err != nil {
		t.Fatal(err)
	}
	if name != "kp" || len(values) != 4 || values[0] != 20 || values[3] != 80 {
		t.Errorf("parseGrid = %s %v", name, values)
	}

	for _, bad := range []string{"kp", "kp=1:2", "kp=a:2:3", "kp=1:2:0", "kp=1:b:3"} {
		if _, _, err := parseGrid(bad); err == nil {
			t.Errorf("parseGrid(%q) should fail", bad)
		}
	}
}

func TestRunParams_FlagsOverrideConfig(t *testing.T) {
	cfg = config.GetPreset("aggressive")

	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	if err := cmd.Flags().Set("ki", "3"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("scenario", "tracking"); err != nil {
		t.Fatal(err)
	}

	p, err := runParams(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if p.Gains.Kp != 80 || p.Gains.Kd != 10 {
		t.Errorf("unset flags should keep preset gains, got %+v", p.Gains)
	}
	if p.Gains.Ki != 3 {
		t.Errorf("Ki = %g, want flag value 3", p.Gains.Ki)
	}
	if p.Scenario != dynamo.ScenarioTracking {
		t.Errorf("scenario = %v", p.Scenario)
	}
}

func TestRunParams_Invalid(t *testing.T) {
	cfg = config.DefaultConfig()

	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	if err := cmd.Flags().Set("dt", "0"); err != nil {
		t.Fatal(err)
	}
	if _, err := runParams(cmd); err == nil {
		t.Error("expected validation error for dt=0")
	}
}

func TestExportToFile(t *testing.T) {
	dataDir = t.TempDir()
	t.Cleanup(func() { dataDir, outPath = "", "" })

	p := dynamo.DefaultParams()
	p.Duration = 0.05
	res, err := newDriver(p.Dt).Run(context.Background(), p, nil)
	if err != nil {
		t.Fatal(err)
	}
	runID, err := storage.New(dataDir).Save("", res)
	if err != nil {
		t.Fatal(err)
	}

	outPath = filepath.Join(t.TempDir(), "run.csv")
	if err := exportCSV(nil, []string{runID}); err != nil {
		t.Fatalf("exportCSV: %v", err)
	}
	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != res.Series.Len()+1 {
		t.Errorf("csv rows = %d, want %d", len(records), res.Series.Len()+1)
	}

	outPath = filepath.Join(t.TempDir(), "run.json")
	if err := exportJSON(nil, []string{runID}); err != nil {
		t.Fatalf("exportJSON: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var exported storage.ExportData
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatal(err)
	}
	if exported.ID != runID || exported.Steps != res.Series.Len() {
		t.Errorf("exported id=%q steps=%d", exported.ID, exported.Steps)
	}
}
