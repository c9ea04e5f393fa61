package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"omicpath/adapters/stats/models"
	strategies "omicpath/adapters/stats/reduction"
	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/reduction"
	"omicpath/domain/unit"
	"omicpath/internal"
	"omicpath/internal/metrics"
)

// UnitTester reduces every omic of one unit to covariates and fits the
// association model matching the outcome kind
type UnitTester struct {
	registry *strategies.Registry
	opts     models.Options
	logger   *internal.Logger
}

// DefaultModelOptions returns the solver defaults used by the CLI and server
func DefaultModelOptions() models.Options { return models.DefaultOptions() }

// NewUnitTester creates a tester. A nil registry uses the built-in strategies.
func NewUnitTester(registry *strategies.Registry, opts models.Options, logger *internal.Logger) *UnitTester {
	if registry == nil {
		registry = strategies.NewRegistry()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &UnitTester{registry: registry, opts: opts, logger: logger}
}

// Test runs one unit. Omics whose reduction has too little data are dropped;
// ErrEmptyUnit is returned when none remain and ErrModelFit when the fit is
// degenerate. Any other error is fatal to the caller.
func (t *UnitTester) Test(ctx context.Context, ds *omics.Dataset, ref unit.Ref, genes []string, topo *reduction.Topology) (*unit.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	id := string(ref.ID())

	result := &unit.Result{
		Ref:   ref,
		Genes: append([]string(nil), genes...),
	}

	var covariates []reduction.Covariate
	for _, omic := range ds.Omics() {
		spec, _ := ds.Reduction(omic)
		sub, err := ds.Submatrix(omic, genes)
		if err != nil {
			return nil, err
		}
		covs, err := t.registry.Reduce(omic, spec, sub, topo)
		if errors.Is(err, core.ErrInsufficientData) {
			t.logger.Trace("unit %s: dropping %s: %v", id, omic, err)
			result.DroppedOmics = append(result.DroppedOmics, omic)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("unit %s omic %s: %w", id, omic, err)
		}
		result.Omics = append(result.Omics, omic)
		covariates = append(covariates, covs...)
	}
	if len(covariates) == 0 {
		return nil, core.NewEmptyUnitError(id)
	}

	names := make([]string, len(covariates))
	for j, c := range covariates {
		names[j] = c.Name
	}
	design := make([][]float64, ds.NumSamples())
	for i := range design {
		row := make([]float64, len(covariates))
		for j, c := range covariates {
			row[j] = c.Values[i]
		}
		design[i] = row
	}

	fit, err := t.fit(ds.Outcome(), design, names)
	if err != nil {
		if !errors.Is(err, core.ErrModelFit) {
			err = core.NewModelFitError(id, err.Error())
		}
		return nil, fmt.Errorf("unit %s: %w", id, err)
	}
	metrics.ObserveFit(string(fit.Kind), time.Since(start))

	result.Covariates = names
	result.Fit = fit
	result.PValue = fit.PValue
	result.CovariatePValues = fit.CovariatePValues()
	return result, nil
}

func (t *UnitTester) fit(outcome omics.Outcome, design [][]float64, names []string) (*models.Fit, error) {
	kind, err := models.KindFor(outcome.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.KindCox:
		return models.FitCox(design, names, outcome.Times, outcome.Events, t.opts)
	default:
		return models.FitLogistic(design, names, outcome.Binary(), t.opts)
	}
}
