package validation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"omicpath/app"
	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/pathway"
	"omicpath/domain/unit"
	"omicpath/internal"
	"omicpath/internal/metrics"
	"omicpath/ports"

	"golang.org/x/sync/errgroup"
)

// stageResample names the RNG stage for leave-k-out draws
const stageResample = "resample"

// ResamplingConfig controls leave-k-out stability estimation
type ResamplingConfig struct {
	Iterations       int     // Number of perturbed reruns (default: 100)
	DropPerIteration int     // Samples removed per iteration (default: 3)
	Alpha            float64 // Significance threshold (default: 0.05)
	Seed             int64   // Base seed for the per-iteration streams
	Workers          int     // Concurrent iterations (default: GOMAXPROCS)
	RunID            string  // Namespaces the RNG streams
	KeepDropped      bool    // Record the dropped samples of every iteration
}

// DefaultResamplingConfig returns 100 iterations dropping 3 samples at alpha 0.05
func DefaultResamplingConfig() ResamplingConfig {
	return ResamplingConfig{
		Iterations:       100,
		DropPerIteration: 3,
		Alpha:            0.05,
		Seed:             42,
	}
}

// Validate rejects malformed settings for a dataset of numSamples samples.
// Zero iterations is allowed and yields all-zero counts.
func (c ResamplingConfig) Validate(numSamples int) error {
	if c.Iterations < 0 {
		return core.NewInvalidInputError("iterations", fmt.Sprintf("must be >= 0, got %d", c.Iterations))
	}
	if c.DropPerIteration < 0 {
		return core.NewInvalidInputError("drop_per_iteration", fmt.Sprintf("must be >= 0, got %d", c.DropPerIteration))
	}
	if c.DropPerIteration >= numSamples {
		return core.NewInvalidInputError("drop_per_iteration", fmt.Sprintf("cannot drop %d of %d samples", c.DropPerIteration, numSamples))
	}
	if !(c.Alpha > 0 && c.Alpha <= 1) {
		return core.NewInvalidInputError("alpha", fmt.Sprintf("must be in (0, 1], got %g", c.Alpha))
	}
	if c.Workers < 0 {
		return core.NewInvalidInputError("workers", fmt.Sprintf("must be >= 0, got %d", c.Workers))
	}
	return nil
}

// Batcher runs one batch; *app.BatchRunner satisfies it
type Batcher interface {
	Run(ctx context.Context, ds *omics.Dataset, coll *pathway.Collection, req app.BatchRequest) (*unit.BatchResult, error)
}

// Resampler reruns significant units on perturbed sample sets and counts how
// often each stays significant
type Resampler struct {
	config ResamplingConfig
	runner Batcher
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewResampler creates a resampler
func NewResampler(config ResamplingConfig, runner Batcher, rng ports.RNGPort, logger *internal.Logger) *Resampler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Resampler{
		config: config,
		runner: runner,
		rng:    rng,
		logger: logger.With("component", "resampler"),
	}
}

// Run performs the configured iterations. Each iteration draws its samples
// from its own RNG stream, so counts do not depend on completion order.
// The input dataset is never modified.
func (r *Resampler) Run(ctx context.Context, ds *omics.Dataset, coll *pathway.Collection, mode app.Mode, significant []unit.ID) (*unit.ResamplingResult, error) {
	if ds == nil || coll == nil {
		return nil, core.NewInvalidInputError("resampling", "dataset and pathway collection are required")
	}
	if err := r.config.Validate(ds.NumSamples()); err != nil {
		return nil, err
	}

	units := dedupe(significant)
	result := &unit.ResamplingResult{
		SuccessCount:     make(map[unit.ID]int, len(units)),
		Units:            units,
		Iterations:       r.config.Iterations,
		DropPerIteration: r.config.DropPerIteration,
		Alpha:            r.config.Alpha,
	}
	for _, id := range units {
		result.SuccessCount[id] = 0
	}
	if r.config.Iterations == 0 || len(units) == 0 {
		return result, nil
	}
	if r.rng == nil {
		return nil, core.NewInvalidInputError("resampling", "an RNG port is required")
	}
	if r.config.KeepDropped {
		result.Dropped = make([][]string, r.config.Iterations)
	}

	workers := r.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < r.config.Iterations; i++ {
		g.Go(func() error {
			dropped, passed, err := r.iterate(gctx, ds, coll, mode, units, i)
			if err != nil {
				return fmt.Errorf("resampling iteration %d: %w", i, err)
			}
			metrics.RecordIteration()

			mu.Lock()
			defer mu.Unlock()
			for j, ok := range passed {
				if ok {
					result.SuccessCount[units[j]]++
				}
			}
			if result.Dropped != nil {
				result.Dropped[i] = dropped
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("resampling: %d iterations over %d units (k=%d, alpha=%g)",
		r.config.Iterations, len(units), r.config.DropPerIteration, r.config.Alpha)
	return result, nil
}

// iterate runs one leave-k-out batch and reports, per unit, whether it
// stayed at or below alpha
func (r *Resampler) iterate(ctx context.Context, ds *omics.Dataset, coll *pathway.Collection, mode app.Mode, units []unit.ID, i int) ([]string, []bool, error) {
	rng, err := r.rng.Stream(ctx, r.config.RunID, stageResample, strconv.Itoa(i), r.config.Seed)
	if err != nil {
		return nil, nil, err
	}
	samples := ds.Samples()
	perm := rng.Perm(len(samples))
	dropped := make([]string, r.config.DropPerIteration)
	for j := range dropped {
		dropped[j] = samples[perm[j]]
	}
	sort.Strings(dropped)

	reduced, err := ds.WithoutSamples(dropped)
	if err != nil {
		return nil, nil, err
	}
	batch, err := r.runner.Run(ctx, reduced, coll, app.BatchRequest{Mode: mode, Only: units})
	if err != nil {
		return nil, nil, err
	}

	passed := make([]bool, len(units))
	for j, id := range units {
		if res, ok := batch.Units[id]; ok && res.PValue <= r.config.Alpha {
			passed[j] = true
		}
	}
	r.logger.Trace("iteration %d dropped %v", i, dropped)
	return dropped, passed, nil
}

func dedupe(ids []unit.ID) []unit.ID {
	seen := make(map[unit.ID]bool, len(ids))
	out := make([]unit.ID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
