package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/evaluation"
	"github.com/banshee-data/celltrack/internal/external"
	"github.com/banshee-data/celltrack/internal/frames"
	"github.com/banshee-data/celltrack/internal/monitoring"
	"github.com/banshee-data/celltrack/internal/storage/sqlite"
	"github.com/banshee-data/celltrack/internal/sweep"
	"github.com/banshee-data/celltrack/internal/trackfile"
	"github.com/banshee-data/celltrack/internal/tracking"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// loadTuning reads path, or returns the built-in defaults when path is empty.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// parseScoreList splits a comma-separated score list; empty means all.
func parseScoreList(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return evaluation.ScoreNames(), nil
	}
	var names []string
	for _, p := range strings.Split(s, ",") {
		def, err := evaluation.LookupScore(p)
		if err != nil {
			return nil, err
		}
		names = append(names, def.Name)
	}
	return names, nil
}

func writeMetrics(m *monitoring.Metrics, path string) error {
	if path == "" {
		return nil
	}
	return m.WriteTextfile(path)
}

func openRunStore(path string) (*sqlite.DB, *sqlite.RunStore, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return db, sqlite.NewRunStore(db, nil), nil
}

func runTrack(args []string, out io.Writer) error {
	fs := newFlagSet("track", out)
	detections := fs.String("detections", "", "Detection CSV (frame,timestamp,x,y[,id]) (required)")
	configPath := fs.String("config", "", "Tuning config JSON (defaults to built-in values)")
	outPath := fs.String("out", "", "Output track file (required)")
	dbPath := fs.String("db", "", "SQLite database to save the run in")
	name := fs.String("name", "", "Run name stored with -db")
	strategy := fs.String("strategy", "", "Override association strategy (greedy_sequential, optimal_bipartite)")
	maxDistance := fs.Float64("max-distance", 0, "Override rejection threshold")
	window := fs.Int("window", 0, "Override forecast window")
	metricsPath := fs.String("metrics-textfile", "", "Write Prometheus metrics to this file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	monitoring.SetDebug(*debug)

	if *detections == "" || *outPath == "" {
		fs.Usage()
		return errors.New("-detections and -out are required")
	}

	cfg, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Strategy = strategy
		case "max-distance":
			cfg.MaxDistance = maxDistance
		case "window":
			cfg.ForecastWindow = window
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	trackerCfg, err := tracking.ConfigFromTuning(cfg)
	if err != nil {
		return err
	}

	src := frames.CSVSource{Path: *detections, Options: frames.Options{FrameInterval: cfg.GetFrameInterval()}}
	seq, err := src.Frames()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	metrics := monitoring.NewMetrics(nil)
	start := time.Now()
	store, err := tracking.Run(ctx, trackerCfg, seq, tracking.MetricsObserver{Metrics: metrics})
	if err != nil {
		return err
	}
	monitoring.Logf("tracked %d frames, %d detections in %v", len(seq), frames.CountDetections(seq), time.Since(start).Round(time.Millisecond))

	if err := trackfile.WriteFile(*outPath, store); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d tracks, %d false alarms, %d points -> %s\n",
		len(store.Tracks()), len(store.FalseAlarms()), store.PointCount(), *outPath)

	if *dbPath != "" {
		db, runs, err := openRunStore(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		run := &sqlite.Run{
			Name:           *name,
			Source:         "tracker",
			Strategy:       trackerCfg.Strategy.String(),
			MaxDistance:    trackerCfg.MaxDistance,
			ForecastWindow: trackerCfg.ForecastWindow,
		}
		if run.Name == "" {
			run.Name = filepath.Base(*detections)
		}
		if err := runs.SaveRun(ctx, run, store); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved run %s\n", run.RunID)
	}
	return writeMetrics(metrics, *metricsPath)
}

type evaluateOutput struct {
	evaluation.Evaluation
	Scores []evaluation.ScoreResult `json:"scores"`
}

func runEvaluate(args []string, out io.Writer) error {
	fs := newFlagSet("evaluate", out)
	refPath := fs.String("reference", "", "Reference track file")
	predPath := fs.String("predicted", "", "Predicted track file")
	scoreList := fs.String("scores", "", "Comma-separated scores (default: all)")
	asJSON := fs.Bool("json", false, "Print JSON instead of text")
	dbPath := fs.String("db", "", "SQLite database for -reference-run/-predicted-run")
	refRun := fs.String("reference-run", "", "Reference run id in -db")
	predRun := fs.String("predicted-run", "", "Predicted run id in -db; the evaluation is saved")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names, err := parseScoreList(*scoreList)
	if err != nil {
		return err
	}

	var (
		ref, pred *tracking.Store
		runs      *sqlite.RunStore
		ctx       = context.Background()
	)
	switch {
	case *refPath != "" && *predPath != "":
		if ref, err = trackfile.ReadFile(*refPath); err != nil {
			return err
		}
		if pred, err = trackfile.ReadFile(*predPath); err != nil {
			return err
		}
	case *dbPath != "" && *refRun != "" && *predRun != "":
		var db *sqlite.DB
		db, runs, err = openRunStore(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if ref, err = runs.LoadStore(ctx, *refRun); err != nil {
			return err
		}
		if pred, err = runs.LoadStore(ctx, *predRun); err != nil {
			return err
		}
	default:
		fs.Usage()
		return errors.New("need -reference and -predicted, or -db with -reference-run and -predicted-run")
	}

	result := evaluation.EvaluateStores(ref, pred)
	scores, err := evaluation.ComputeScores(evaluation.ScoreInput{Table: result.Table, Reference: ref, Predicted: pred}, names...)
	if err != nil {
		return err
	}

	if runs != nil {
		rec := &sqlite.EvaluationRecord{
			ReferenceRunID: *refRun,
			CandidateRunID: *predRun,
			Result:         result,
			Scores:         scores,
		}
		if err := runs.SaveEvaluation(ctx, rec); err != nil {
			return err
		}
		monitoring.Logf("saved evaluation %s", rec.EvaluationID)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(evaluateOutput{Evaluation: result, Scores: scores})
	}
	printEvaluation(out, result, scores)
	return nil
}

func printEvaluation(w io.Writer, result evaluation.Evaluation, scores []evaluation.ScoreResult) {
	fmt.Fprintln(w, result.Table.String())
	if result.UnmatchedPredictedAssocs > 0 || result.UnmatchedPredictedFalarms > 0 {
		fmt.Fprintf(w, "unmatched predicted: %d associations, %d false alarms\n",
			result.UnmatchedPredictedAssocs, result.UnmatchedPredictedFalarms)
	}
	for _, s := range scores {
		fmt.Fprintf(w, "%-4s %.4f\n", s.Name, s.Value)
	}
}

func runSweep(args []string, out io.Writer) error {
	fs := newFlagSet("sweep", out)
	planPath := fs.String("plan", "", "Sweep plan YAML (required)")
	detections := fs.String("detections", "", "Detection CSV (required)")
	refPath := fs.String("reference", "", "Reference track file (required)")
	outPath := fs.String("out", "", "Results CSV (required)")
	configPath := fs.String("config", "", "Tuning config JSON for the frame interval")
	metricsPath := fs.String("metrics-textfile", "", "Write Prometheus metrics to this file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	monitoring.SetDebug(*debug)
	if *planPath == "" || *detections == "" || *refPath == "" || *outPath == "" {
		fs.Usage()
		return errors.New("-plan, -detections, -reference and -out are required")
	}

	plan, err := config.LoadSweepPlan(*planPath)
	if err != nil {
		return err
	}
	cfg, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	seq, err := frames.CSVSource{Path: *detections, Options: frames.Options{FrameInterval: cfg.GetFrameInterval()}}.Frames()
	if err != nil {
		return err
	}
	ref, err := trackfile.ReadFile(*refPath)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	metrics := monitoring.NewMetrics(nil)
	runner := sweep.NewRunner(plan, seq, ref, metrics)
	results, runErr := runner.Run(ctx)
	if err := sweep.WriteResultsFile(*outPath, plan.Scores, results); err != nil {
		return err
	}
	state := runner.GetSweepState()
	fmt.Fprintf(out, "%d/%d jobs completed (%d failed) -> %s\n", state.CompletedJobs, state.TotalJobs, state.FailedJobs, *outPath)
	if best, ok := sweep.Best(results, plan.Scores[0]); ok {
		fmt.Fprintf(out, "best %s: job %d strategy=%s max_distance=%g window=%d\n",
			plan.Scores[0], best.Index, best.Strategy, best.MaxDistance, best.ForecastWindow)
	}
	if err := writeMetrics(metrics, *metricsPath); err != nil {
		return err
	}
	return runErr
}

func runExternal(args []string, out io.Writer) error {
	fs := newFlagSet("external", out)
	bin := fs.String("bin", "", "External tracker executable (required)")
	detections := fs.String("detections", "", "Detection file passed to the tracker (required)")
	paramsPath := fs.String("params", "", "Parameter file passed to the tracker (required)")
	outPath := fs.String("out", "", "Track file the tracker writes (required)")
	configPath := fs.String("config", "", "Tuning config JSON; when set, -params is written from it")
	refPath := fs.String("reference", "", "Reference track file to score the output against")
	scoreList := fs.String("scores", "", "Comma-separated scores (default: all)")
	timeout := fs.Duration("timeout", 0, "Override the external tracker timeout")
	workDir := fs.String("workdir", "", "Require all tracker file paths to lie under this directory")
	dbPath := fs.String("db", "", "SQLite database to save the run in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bin == "" || *detections == "" || *paramsPath == "" || *outPath == "" {
		fs.Usage()
		return errors.New("-bin, -detections, -params and -out are required")
	}

	cfg, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	if *configPath != "" {
		if err := external.WriteParams(*paramsPath, cfg); err != nil {
			return err
		}
	}

	metrics := monitoring.NewMetrics(nil)
	tr := external.NewTracker(*bin, cfg, metrics)
	if *timeout > 0 {
		tr.Timeout = *timeout
	}
	tr.WorkDir = *workDir

	ctx, cancel := signalContext()
	defer cancel()

	store, err := tr.Run(ctx, *detections, *paramsPath, *outPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d tracks, %d false alarms from %s\n", len(store.Tracks()), len(store.FalseAlarms()), filepath.Base(*bin))

	if *dbPath != "" {
		db, runs, err := openRunStore(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		run := &sqlite.Run{Name: filepath.Base(*bin), Source: "external"}
		if err := runs.SaveRun(ctx, run, store); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved run %s\n", run.RunID)
	}

	if *refPath == "" {
		return nil
	}
	names, err := parseScoreList(*scoreList)
	if err != nil {
		return err
	}
	ref, err := trackfile.ReadFile(*refPath)
	if err != nil {
		return err
	}
	result := evaluation.EvaluateStores(ref, store)
	scores, err := evaluation.ComputeScores(evaluation.ScoreInput{Table: result.Table, Reference: ref, Predicted: store}, names...)
	if err != nil {
		return err
	}
	printEvaluation(out, result, scores)
	return nil
}

func runRuns(args []string, out io.Writer) error {
	fs := newFlagSet("runs", out)
	dbPath := fs.String("db", "", "SQLite database (required)")
	remove := fs.String("delete", "", "Delete the run with this id instead of listing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		fs.Usage()
		return errors.New("-db is required")
	}
	db, runs, err := openRunStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	if *remove != "" {
		if err := runs.DeleteRun(ctx, *remove); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted run %s\n", *remove)
		return nil
	}

	list, err := runs.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tNAME\tSOURCE\tSTRATEGY\tTRACKS\tFALSE ALARMS\tCREATED")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", r.RunID, r.Name, r.Source, r.Strategy,
			r.TrackCount, r.FalseAlarmCount, time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func runMigrate(args []string, out io.Writer) error {
	fs := newFlagSet("migrate", out)
	dbPath := fs.String("db", "", "SQLite database (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" || fs.NArg() != 1 {
		fs.Usage()
		return errors.New("usage: celltrack migrate -db runs.db <up|down|status>")
	}

	db, err := sqlite.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch fs.Arg(0) {
	case "up":
		if err := db.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q", fs.Arg(0))
	}
	v, dirty, err := db.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}
