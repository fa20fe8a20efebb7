package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/steersim/internal/analysis"
	"github.com/san-kum/steersim/internal/automation"
	"github.com/san-kum/steersim/internal/control"
	"github.com/san-kum/steersim/internal/dynamo"
	"github.com/san-kum/steersim/internal/export"
	"github.com/san-kum/steersim/internal/metrics"
	"github.com/san-kum/steersim/internal/observability"
	"github.com/san-kum/steersim/internal/optim"
	"github.com/san-kum/steersim/internal/sim"
	"github.com/san-kum/steersim/internal/storage"
	"github.com/san-kum/steersim/internal/viz"
)

func newDriver(dt float64) *sim.Driver {
	d := sim.New(sim.WithLogger(observability.GetLogger()))
	for _, m := range metrics.Standard(dt) {
		d.AddMetric(m)
	}
	return d
}

func runSimulation(cmd *cobra.Command, args []string) error {
	p, err := runParams(cmd)
	if err != nil {
		return err
	}

	d := newDriver(p.Dt)
	title := fmt.Sprintf("simulating %s (%d steps)", p.Scenario, p.Steps())

	var res *sim.Result
	if noProgress {
		fmt.Println(title + "...")
		res, err = d.Run(cmd.Context(), p, nil)
	} else {
		res, err = viz.RunWithProgress(cmd.Context(), d, p, title)
	}
	if err != nil {
		return err
	}

	var resp *analysis.Response
	if r, err := analysis.ComputeResponse(res.Series); err == nil {
		resp = &r
	}
	fmt.Println(viz.Summary(res, resp))

	if chart, err := viz.Chart(res.Series, viz.FieldDeflection, 70, 10); err == nil {
		fmt.Println()
		fmt.Println(chart)
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(label, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	p, err := runParams(cmd)
	if err != nil {
		return err
	}

	m, err := viz.NewLiveModel(p, nil, stepsPerFrame)
	if err != nil {
		return err
	}
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := prog.Run(); err != nil {
		return err
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}

	var saver automation.Saver
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		saver = st
	}

	fmt.Printf("running batch %q (%d runs)...\n", batch.Name, len(batch.Runs))
	results, err := automation.RunBatch(cmd.Context(), func(p dynamo.Params) *sim.Driver { return newDriver(p.Dt) }, batch, saver, observability.GetLogger())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tRUN ID\tSCENARIO\tFINAL (deg)\tIAE\tMISSES")
	for _, r := range results {
		s := r.Result.Series
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.6f\t%d\n",
			r.Label, r.RunID, r.Result.Params.Scenario,
			dynamo.Rad2Deg(s.Deflection[s.Len()-1]), r.Result.Metrics["iae"], r.Result.FuzzyMisses)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tT_END\tDT\tKP\tKI\tKD\tMISSES\tLABEL")

	for _, run := range runs {
		var tEnd, step, p, i, d float64
		if c := run.Config; c != nil {
			tEnd, step = c.Duration, c.Dt
			p, i, d = c.Gains.Kp, c.Gains.Ki, c.Gains.Kd
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%g\t%g\t%g\t%d\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			tEnd, step, p, i, d,
			run.FuzzyMisses,
			run.Label,
		)
	}

	return w.Flush()
}

func deleteRun(cmd *cobra.Command, args []string) error {
	if err := storage.New(dataDir).Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func loadRun(runID string) (*storage.RunMetadata, *dynamo.Series, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, nil, err
	}
	if series.Len() == 0 {
		return nil, nil, fmt.Errorf("run %s: no data", runID)
	}
	return meta, series, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", series.Len())

	fields := viz.ChartFields()
	if field != "" {
		fields = []string{field}
	}
	for _, f := range fields {
		chart, err := viz.Chart(series, f, plotWidth, 10)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n\n", meta.Scenario)

	resp, err := analysis.ComputeResponse(series)
	if err != nil {
		return err
	}
	fmt.Println(viz.ResponseTable(resp))

	errSignal := make([]float64, series.Len())
	for i := range errSignal {
		errSignal[i] = series.Error(i)
	}
	step := series.Time[1%series.Len()] - series.Time[0]
	freq, mag := analysis.DominantFrequency(errSignal, step)
	fmt.Printf("dominant error frequency: %.3f hz (power %.3g)\n", freq, mag)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	fmt.Println()
	fmt.Println(analysis.PhasePortraitToASCII(analysis.ErrorPhasePortrait(series), 70, 20))
	fmt.Println(analysis.PhasePortraitToASCII(analysis.DeflectionPhasePortrait(series), 70, 20))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, series, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath != "" {
		return storage.ExportCSV(outPath, series)
	}
	return storage.WriteCSV(os.Stdout, series)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath != "" {
		return storage.ExportJSON(outPath, meta, series)
	}
	return storage.WriteJSON(os.Stdout, meta, series)
}

func exportImage(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(args[0])
	if err != nil {
		return err
	}
	st, err := export.ParseStyle(style)
	if err != nil {
		return err
	}

	opt := export.DefaultImageOptions()
	opt.Title = fmt.Sprintf("%s (%s)", meta.ID, meta.Scenario)
	opt.Field, opt.Style, opt.DPI = field, st, dpi
	opt.WidthIn, opt.HeightIn = widthIn, heightIn

	path := outPath
	if path == "" {
		path = filepath.Join(".", meta.ID+".png")
	}
	if err := export.SaveImage(path, series, opt); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

// parseGrid parses "name=lo:hi:n".
func parseGrid(spec string) (string, []float64, error) {
	name, rng, ok := strings.Cut(spec, "=")
	if !ok {
		return "", nil, fmt.Errorf("grid %q: want name=lo:hi:n", spec)
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("grid %q: want name=lo:hi:n", spec)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %q: %w", spec, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %q: %w", spec, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("grid %q: invalid count %q", spec, parts[2])
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	p, err := runParams(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(gridSpecs))
	ranges := make([][]float64, 0, len(gridSpecs))
	for _, spec := range gridSpecs {
		name, values, err := parseGrid(spec)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	gs := optim.NewGridSearch(names, ranges)
	gs.Workers = workers
	gs.Logger = observability.GetLogger()

	fmt.Printf("searching %v on %s, minimizing %s...\n", names, p.Scenario, metric)
	res, err := gs.Search(cmd.Context(), p, metric)
	if err != nil {
		return err
	}

	ranked := make([]optim.Candidate, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if c.Err == nil {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value < ranked[j].Value })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
	for i, c := range ranked {
		if i == 10 {
			break
		}
		vals := make([]string, len(names))
		for k, name := range names {
			vals[k] = strconv.FormatFloat(c.Params[name], 'g', 6, 64)
		}
		fmt.Fprintf(w, "%d\t%s\t%.6g\n", i+1, strings.Join(vals, "\t"), c.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed := len(res.Candidates) - len(ranked); failed > 0 {
		fmt.Printf("%d of %d runs failed\n", failed, len(res.Candidates))
	}
	fmt.Printf("\nbest: %v (%s=%.6g)\n", res.Best, metric, res.BestValue)
	return nil
}

func sweepParam(cmd *cobra.Command, args []string) error {
	p, err := runParams(cmd)
	if err != nil {
		return err
	}

	points, err := analysis.Sweep(cmd.Context(), newDriver(p.Dt), p, sweepName, sweepFrom, sweepTo, sweepN)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL (deg)\tPEAK (deg)\tOVERSHOOT\tIAE\n", strings.ToUpper(sweepName))
	for _, pt := range points {
		fmt.Fprintf(w, "%g\t%.4f\t%.4f\t%.2f%%\t%.6f\n",
			pt.Param, dynamo.Rad2Deg(pt.Final), dynamo.Rad2Deg(pt.Peak), pt.Overshoot, pt.IAE)
	}
	return w.Flush()
}

func inspectFuzzy(cmd *cobra.Command, args []string) error {
	engine := control.DefaultFuzzyEngine()
	e, r := dynamo.Deg2Rad(errDeg), dynamo.Deg2Rad(rateDeg)

	inf := engine.Evaluate(e, r)
	fmt.Printf("error: %.4f rad (clipped %.4f)\n", e, inf.Error)
	fmt.Printf("rate:  %.4f rad/s (clipped %.4f)\n\n", r, inf.Rate)

	out := engine.OutputVariable()
	fmt.Println(viz.Strengths(out.TermNames(), engine.Strengths(e, r)))
	fmt.Println()

	if !inf.Fired {
		fmt.Println("no rule fired; valve command falls back to 0")
	}
	fmt.Printf("valve command: %.5f rad (%.3f deg)\n", inf.Value, dynamo.Rad2Deg(inf.Value))
	return nil
}
