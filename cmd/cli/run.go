package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"omicpath/adapters/cache"
	"omicpath/adapters/excel"
	"omicpath/adapters/pathways"
	"omicpath/adapters/postgres"
	htmlreport "omicpath/adapters/report"
	"omicpath/app"
	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/reduction"
	domain "omicpath/domain/report"
	"omicpath/domain/run"
	"omicpath/domain/unit"
	"omicpath/internal"
	"omicpath/internal/analysis"
	"omicpath/internal/config"
	"omicpath/internal/errors"
	"omicpath/internal/migration"
	"omicpath/internal/testkit"
	"omicpath/internal/validation"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// runOptions collects the run command flags
type runOptions struct {
	Matrices      []string
	Methods       []string
	Survival      string
	Classes       string
	Positive      string
	Pathways      string
	Mode          string
	Iterations    int
	Drop          int
	Alpha         float64
	Seed          int64
	Workers       int
	UniverseOmic  string
	MinModuleSize int
	CacheDir      string
	MinSuccess    int
	Out           string
	HTML          string
	Markdown      string
	JSON          string
	Top           int
	Save          bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test every pathway or module and estimate leave-k-out stability",
		Long: `Reduce each omic of each pathway to covariates, fit a Cox or logistic
model against the outcome and rank the units by p-value. Significant units
are re-tested with k samples removed per iteration.

Example: omicpath run --matrix expr=expr.csv --matrix mut=mut.csv \
  --method expr=pca,max_components=2 --method mut=count \
  --survival surv.csv --pathways kegg.yaml --mode module --out report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyConfigDefaults(cmd, opts, cfg)

			logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			rep, err := runAnalysis(cmd.Context(), opts, cfg, logger)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), rep, opts.Top)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.Matrices, "matrix", nil, "omic=path of a genes x samples table (repeatable)")
	f.StringArrayVar(&opts.Methods, "method", nil, "omic=method[,param=value...] reduction per omic (default pca)")
	f.StringVar(&opts.Survival, "survival", "", "sample,time,event outcome table")
	f.StringVar(&opts.Classes, "classes", "", "sample,label two-class outcome table")
	f.StringVar(&opts.Positive, "positive", "", "class coded as 1 for two-class outcomes")
	f.StringVar(&opts.Pathways, "pathways", "", "pathway collection (.json, .yaml)")
	f.StringVar(&opts.Mode, "mode", string(app.ModePathway), "pathway or module")
	f.IntVar(&opts.Iterations, "iterations", 100, "resampling iterations (0 disables)")
	f.IntVar(&opts.Drop, "drop", 3, "samples removed per iteration")
	f.Float64Var(&opts.Alpha, "alpha", 0.05, "significance threshold")
	f.Int64Var(&opts.Seed, "seed", 42, "base seed for the resampling streams")
	f.IntVar(&opts.Workers, "workers", 0, "concurrent units and iterations (default from OMICPATH_WORKERS)")
	f.StringVar(&opts.UniverseOmic, "universe-omic", "", "omic whose genes modules are cut against")
	f.IntVar(&opts.MinModuleSize, "min-module-size", 1, "smallest module kept in module mode")
	f.StringVar(&opts.CacheDir, "cache-dir", "", "badger directory caching batch results")
	f.IntVar(&opts.MinSuccess, "min-success", 0, "keep rows resampled significant at least this often")
	f.StringVar(&opts.Out, "out", "", "write the report table (.xlsx, .csv)")
	f.StringVar(&opts.HTML, "html", "", "write the report as an HTML page")
	f.StringVar(&opts.Markdown, "md", "", "write the report as markdown")
	f.StringVar(&opts.JSON, "json", "", "write the report as JSON (importable with migrate)")
	f.IntVar(&opts.Top, "top", 20, "rows printed to stdout")
	f.BoolVar(&opts.Save, "save", false, "store the report in DATABASE_URL")

	_ = cmd.MarkFlagRequired("matrix")
	_ = cmd.MarkFlagRequired("pathways")
	cmd.MarkFlagsMutuallyExclusive("survival", "classes")
	cmd.MarkFlagsOneRequired("survival", "classes")

	return cmd
}

// applyConfigDefaults lets environment settings stand in for flags the
// user did not pass
func applyConfigDefaults(cmd *cobra.Command, opts *runOptions, cfg *config.Config) {
	f := cmd.Flags()
	if !f.Changed("iterations") {
		opts.Iterations = cfg.Analysis.Iterations
	}
	if !f.Changed("drop") {
		opts.Drop = cfg.Analysis.Drop
	}
	if !f.Changed("alpha") {
		opts.Alpha = cfg.Analysis.Alpha
	}
	if !f.Changed("seed") {
		opts.Seed = cfg.Analysis.Seed
	}
	if !f.Changed("workers") {
		opts.Workers = cfg.Analysis.Workers
	}
	if !f.Changed("min-module-size") {
		opts.MinModuleSize = cfg.Analysis.MinModuleSize
	}
	if !f.Changed("cache-dir") {
		opts.CacheDir = cfg.Cache.Dir
	}
}

// runAnalysis loads the inputs, runs the batch and the resampler and
// writes every requested output
func runAnalysis(ctx context.Context, opts *runOptions, cfg *config.Config, logger *internal.Logger) (*domain.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	mode, err := app.ParseMode(opts.Mode)
	if err != nil {
		return nil, err
	}

	ds, err := loadDataset(opts, logger)
	if err != nil {
		return nil, errors.Wrap(err, "load dataset")
	}
	coll, err := pathways.LoadFile(opts.Pathways)
	if err != nil {
		return nil, errors.Wrap(err, "load pathways")
	}
	logger.Info("dataset %s, %d pathways", ds, coll.Len())

	batchOpts := app.BatchOptions{
		Workers:       opts.Workers,
		UniverseOmic:  opts.UniverseOmic,
		MinModuleSize: opts.MinModuleSize,
		Logger:        logger,
	}
	if opts.CacheDir != "" {
		cacheCfg := cache.DefaultConfig(opts.CacheDir)
		cacheCfg.TTL = cfg.Cache.TTL
		cacheCfg.Logger = logger
		c, err := cache.Open(cacheCfg)
		if err != nil {
			return nil, errors.Wrap(err, "open cache")
		}
		defer c.Close()
		batchOpts.Cache = c
	}

	tester := app.NewUnitTester(nil, app.DefaultModelOptions(), logger)
	runner := app.NewBatchRunner(tester, batchOpts)

	runID := core.NewRunID()
	batch, err := runner.Run(ctx, ds, coll, app.BatchRequest{Mode: mode})
	if err != nil {
		return nil, errors.Wrap(err, "batch")
	}

	var resampled *unit.ResamplingResult
	significant := batch.Significant(opts.Alpha)
	if opts.Iterations > 0 && len(significant) > 0 {
		kit := testkit.NewTestKit()
		res, err := validation.NewResampler(resamplingConfig(opts, ds), runner, kit.RNGAdapter(), logger).Run(ctx, ds, coll, mode, significant)
		if err != nil {
			return nil, errors.Wrap(err, "resampling")
		}
		resampled = res
	}

	rep := analysis.BuildReport(batch, resampled, analysis.ReportMeta{
		RunID:   runID,
		Mode:    string(mode),
		Outcome: string(ds.Outcome().Kind),
		Alpha:   opts.Alpha,
	})
	rep.Manifest = run.NewManifest(runID, ds.Hash(), coll.Hash(), ds.NumSamples(), ds.Omics(), run.Parameters{
		Mode:             string(mode),
		UniverseOmic:     opts.UniverseOmic,
		MinModuleSize:    opts.MinModuleSize,
		Iterations:       opts.Iterations,
		DropPerIteration: opts.Drop,
		Alpha:            opts.Alpha,
		Seed:             opts.Seed,
	})
	if opts.MinSuccess > 0 {
		rep = rep.FilterStable(opts.MinSuccess)
	}

	if err := writeOutputs(ctx, opts, cfg, rep, logger); err != nil {
		return nil, err
	}
	return rep, nil
}

// resamplingConfig keys the RNG streams on the dataset content, so the same
// inputs and seed draw the same leave-k-out samples on every run
func resamplingConfig(opts *runOptions, ds *omics.Dataset) validation.ResamplingConfig {
	cfg := validation.DefaultResamplingConfig()
	cfg.Iterations = opts.Iterations
	cfg.DropPerIteration = opts.Drop
	cfg.Alpha = opts.Alpha
	cfg.Seed = opts.Seed
	cfg.Workers = opts.Workers
	cfg.RunID = ds.Hash().String()
	return cfg
}

func loadDataset(opts *runOptions, logger *internal.Logger) (*omics.Dataset, error) {
	paths, err := parseAssignments("matrix", opts.Matrices)
	if err != nil {
		return nil, err
	}
	redCfg, err := parseMethods(opts.Methods)
	if err != nil {
		return nil, err
	}

	reader := excel.NewDataReader(logger)
	matrices := make(map[string]omics.Matrix, len(paths))
	for omic, path := range paths {
		m, err := reader.ReadMatrix(path)
		if err != nil {
			return nil, err
		}
		matrices[omic] = m
		if _, ok := redCfg[omic]; !ok {
			redCfg[omic] = reduction.Spec{Method: reduction.MethodComponents}
		}
	}
	for omic := range redCfg {
		if _, ok := matrices[omic]; !ok {
			return nil, core.NewInvalidInputError("method", fmt.Sprintf("omic %q has no --matrix", omic))
		}
	}

	kind, path := omics.OutcomeSurvival, opts.Survival
	if opts.Classes != "" {
		kind, path = omics.OutcomeTwoClass, opts.Classes
	}
	outcome, err := reader.ReadOutcome(path, kind)
	if err != nil {
		return nil, err
	}
	outcome.Positive = opts.Positive

	return omics.NewDataset(matrices, outcome, redCfg)
}

// parseAssignments splits repeated name=value flags
func parseAssignments(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, core.NewInvalidInputError(flag, fmt.Sprintf("%q is not name=value", v))
		}
		if _, dup := out[name]; dup {
			return nil, core.NewInvalidInputError(flag, fmt.Sprintf("%s given twice", name))
		}
		out[name] = value
	}
	return out, nil
}

// parseMethods reads omic=method[,param=value...] flags
func parseMethods(values []string) (reduction.Config, error) {
	assigned, err := parseAssignments("method", values)
	if err != nil {
		return nil, err
	}
	cfg := reduction.Config{}
	for omic, raw := range assigned {
		parts := strings.Split(raw, ",")
		method, err := reduction.ParseMethod(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, err
		}
		spec := reduction.Spec{Method: method}
		for _, p := range parts[1:] {
			if err := setParam(&spec.Params, p); err != nil {
				return nil, err
			}
		}
		if err := spec.Params.Validate(); err != nil {
			return nil, err
		}
		cfg[omic] = spec
	}
	return cfg, nil
}

func setParam(p *reduction.Params, raw string) error {
	key, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok {
		return core.NewInvalidInputError("method", fmt.Sprintf("parameter %q is not key=value", raw))
	}
	var err error
	switch key {
	case "max_components":
		p.MaxComponents, err = strconv.Atoi(value)
	case "max_clusters":
		p.MaxClusters, err = strconv.Atoi(value)
	case "shrink":
		p.Shrink, err = strconv.ParseFloat(value, 64)
	case "min_proportion":
		p.MinProportion, err = strconv.ParseFloat(value, 64)
	case "event_threshold":
		p.EventThreshold, err = strconv.ParseFloat(value, 64)
	case "directional":
		p.Directional, err = strconv.ParseBool(value)
	case "skip_standardize":
		p.SkipStandardize, err = strconv.ParseBool(value)
	default:
		return core.NewInvalidInputError("method", fmt.Sprintf("unknown parameter %q", key))
	}
	if err != nil {
		return core.NewInvalidInputError("method", fmt.Sprintf("parameter %s: %v", key, err))
	}
	return nil
}

func writeOutputs(ctx context.Context, opts *runOptions, cfg *config.Config, rep *domain.Report, logger *internal.Logger) error {
	if opts.Out != "" {
		if err := excel.NewReportWriter().WriteReport(opts.Out, rep); err != nil {
			return errors.Wrapf(err, "write %s", opts.Out)
		}
		logger.Info("wrote %s", opts.Out)
	}

	renderer := htmlreport.NewRenderer(0)
	pages := []struct {
		path   string
		render func(*domain.Report) []byte
	}{{opts.HTML, renderer.HTML}, {opts.Markdown, renderer.Markdown}}
	for _, page := range pages {
		if page.path == "" {
			continue
		}
		if err := os.WriteFile(page.path, page.render(rep), 0o644); err != nil {
			return errors.Wrapf(err, "write %s", page.path)
		}
		logger.Info("wrote %s", page.path)
	}

	if opts.JSON != "" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		if err := os.WriteFile(opts.JSON, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", opts.JSON)
		}
		logger.Info("wrote %s", opts.JSON)
	}

	if opts.Save {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return errors.DatabaseError("failed to connect to database", err)
		}
		defer db.Close()
		if err := migration.NewRunner().Run(ctx, db); err != nil {
			return errors.Wrap(err, "database migration failed")
		}
		if err := postgres.NewReportRepository(db).SaveReport(ctx, rep); err != nil {
			return errors.DatabaseError("failed to save report", err)
		}
		logger.Info("saved report %s", rep.RunID)
	}
	return nil
}

func printSummary(w io.Writer, rep *domain.Report, top int) {
	fmt.Fprintf(w, "run %s: %d units ranked, %d not ranked\n", rep.RunID, len(rep.Rows), len(rep.Failures))
	fmt.Fprintf(w, "%-5s %-28s %-12s %-12s %s\n", "rank", "unit", "p", "adj p", "stability")
	for _, row := range rep.Top(top) {
		stability := "-"
		if row.SuccessCount != nil {
			stability = fmt.Sprintf("%d/%d", *row.SuccessCount, row.Iterations)
		}
		fmt.Fprintf(w, "%-5d %-28s %-12.4g %-12.4g %s\n", row.Rank, row.Unit, row.PValue, row.AdjustedPValue, stability)
	}

	if len(rep.Failures) == 0 {
		return
	}
	counts := map[string]int{}
	for _, f := range rep.Failures {
		counts[string(f.Status)]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(w, "%s: %d\n", s, counts[s])
	}
}
