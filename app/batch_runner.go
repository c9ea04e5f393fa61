package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"omicpath/adapters/stats/partition"
	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/pathway"
	"omicpath/domain/reduction"
	"omicpath/domain/unit"
	"omicpath/internal"
	"omicpath/internal/metrics"
	"omicpath/ports"

	"golang.org/x/sync/errgroup"
)

// Mode selects whole-pathway or per-module analysis
type Mode string

const (
	ModePathway Mode = "pathway"
	ModeModule  Mode = "module"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePathway, ModeModule:
		return Mode(s), nil
	}
	return "", core.NewInvalidInputError("mode", fmt.Sprintf("unknown mode %q (want pathway or module)", s))
}

// BatchRequest describes one batch run. Only, when set, restricts the run
// to those unit ids.
type BatchRequest struct {
	Mode Mode
	Only []unit.ID
}

// BatchOptions configures a BatchRunner
type BatchOptions struct {
	Workers int
	// UniverseOmic is the omic whose genes modules are partitioned against;
	// empty means the first omic in sorted order
	UniverseOmic  string
	MinModuleSize int
	Cache         ports.CachePort
	Logger        *internal.Logger
}

// BatchRunner applies the unit tester to every pathway or module
type BatchRunner struct {
	tester       *UnitTester
	partitioner  *partition.Partitioner
	workers      int
	universeOmic string
	cache        ports.CachePort
	logger       *internal.Logger
}

// NewBatchRunner creates a batch runner
func NewBatchRunner(tester *UnitTester, opts BatchOptions) *BatchRunner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if tester == nil {
		tester = NewUnitTester(nil, DefaultModelOptions(), logger)
	}
	return &BatchRunner{
		tester:       tester,
		partitioner:  partition.NewPartitioner(opts.MinModuleSize),
		workers:      workers,
		universeOmic: opts.UniverseOmic,
		cache:        opts.Cache,
		logger:       logger.With("component", "batch"),
	}
}

// job is one unit to test, or a pathway already known to be empty
type job struct {
	ref   unit.Ref
	genes []string
	topo  *reduction.Topology
	empty error
}

type outcome struct {
	result *unit.Result
	err    error
}

// Run tests every unit. Per-unit failures are recorded in the result and
// never cancel other units; only fatal errors and context cancellation abort.
func (r *BatchRunner) Run(ctx context.Context, ds *omics.Dataset, coll *pathway.Collection, req BatchRequest) (*unit.BatchResult, error) {
	if ds == nil || coll == nil {
		return nil, core.NewInvalidInputError("batch", "dataset and pathway collection are required")
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return nil, err
	}

	key := r.cacheKey(ds, coll, req)
	if cached, ok := r.lookup(ctx, key); ok {
		return cached, nil
	}

	jobs, err := r.plan(ds, coll, req)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range jobs {
		j := jobs[i]
		if j.empty != nil {
			outcomes[i] = outcome{err: j.empty}
			continue
		}
		g.Go(func() error {
			res, err := r.tester.Test(gctx, ds, j.ref, j.genes, j.topo)
			if err != nil && !core.IsUnitFailure(err) {
				return err
			}
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := unit.NewBatchResult()
	for i, j := range jobs {
		id := j.ref.ID()
		batch.Order = append(batch.Order, id)
		o := outcomes[i]
		status := unit.StatusFor(o.err)
		metrics.RecordUnit(string(status))
		if o.err != nil {
			r.logger.Debug("unit %s %s: %v", id, status, o.err)
			batch.Failures = append(batch.Failures, unit.Failure{Unit: id, Status: status, Reason: o.err.Error()})
			continue
		}
		batch.Units[id] = o.result
	}
	r.logger.Info("batch %s: %d units, %d tested, %d not ranked", req.Mode, len(jobs), len(batch.Units), len(batch.Failures))

	r.store(ctx, key, batch)
	return batch, nil
}

// plan enumerates units in collection order, modules by index
func (r *BatchRunner) plan(ds *omics.Dataset, coll *pathway.Collection, req BatchRequest) ([]job, error) {
	only := make(map[unit.ID]bool, len(req.Only))
	for _, id := range req.Only {
		only[id] = true
	}
	wanted := func(id unit.ID) bool { return len(only) == 0 || only[id] }

	var jobs []job
	seen := make(map[unit.ID]bool)
	switch req.Mode {
	case ModePathway:
		universe := toSet(ds.Universe())
		for _, g := range coll.Graphs() {
			ref := unit.Ref{Pathway: g.Name}
			if !wanted(ref.ID()) {
				continue
			}
			seen[ref.ID()] = true
			var genes []string
			for _, n := range g.Nodes {
				if universe[n] {
					genes = append(genes, n)
				}
			}
			j := job{ref: ref, genes: genes, topo: g.Topology()}
			if len(genes) == 0 {
				j.empty = core.NewEmptyUnitError(g.Name + ": no pathway genes measured")
			}
			jobs = append(jobs, j)
		}

	case ModeModule:
		omic, err := r.referenceOmic(ds)
		if err != nil {
			return nil, err
		}
		universe := ds.GeneUniverse(omic)
		for _, g := range coll.Graphs() {
			modules := r.partitioner.Partition(g, universe)
			if len(modules) == 0 {
				ref := unit.Ref{Pathway: g.Name}
				if !wanted(ref.ID()) {
					continue
				}
				seen[ref.ID()] = true
				jobs = append(jobs, job{ref: ref, empty: core.NewEmptyUnitError(g.Name + ": no modules in " + omic + " gene universe")})
				continue
			}
			for _, m := range modules {
				ref := unit.Ref{Pathway: g.Name, Module: m.Index}
				if !wanted(ref.ID()) {
					continue
				}
				seen[ref.ID()] = true
				jobs = append(jobs, job{ref: ref, genes: m.Genes, topo: m.Topology()})
			}
		}
	}

	// requested units that do not exist are reported rather than dropped
	for _, id := range req.Only {
		if seen[id] {
			continue
		}
		seen[id] = true
		ref, err := unit.ParseID(id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job{ref: ref, empty: core.NewEmptyUnitError(string(id) + ": not present in the collection")})
	}
	return jobs, nil
}

func (r *BatchRunner) referenceOmic(ds *omics.Dataset) (string, error) {
	if r.universeOmic == "" {
		return ds.Omics()[0], nil
	}
	for _, o := range ds.Omics() {
		if o == r.universeOmic {
			return o, nil
		}
	}
	return "", core.NewInvalidInputError("universe_omic", "unknown omic "+r.universeOmic)
}

func (r *BatchRunner) cacheKey(ds *omics.Dataset, coll *pathway.Collection, req BatchRequest) core.Hash {
	if r.cache == nil {
		return ""
	}
	only := make([]string, len(req.Only))
	for i, id := range req.Only {
		only[i] = string(id)
	}
	sort.Strings(only)
	opts := []string{string(req.Mode), r.universeOmic, strconv.Itoa(r.partitioner.MinSize), r.tester.opts.Canonical()}
	opts = append(opts, only...)
	return core.ComputeAnalysisHash(ds.Hash(), coll.Hash(), opts...)
}

func (r *BatchRunner) lookup(ctx context.Context, key core.Hash) (*unit.BatchResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, core.ErrCacheMiss) {
			metrics.RecordCacheLookup("miss")
		} else {
			metrics.RecordCacheLookup("error")
			r.logger.Warn("cache lookup %s: %v", key, err)
		}
		return nil, false
	}
	var batch unit.BatchResult
	if err := json.Unmarshal(data, &batch); err != nil {
		metrics.RecordCacheLookup("error")
		r.logger.Warn("cache entry %s unreadable: %v", key, err)
		return nil, false
	}
	if batch.Units == nil {
		batch.Units = make(map[unit.ID]*unit.Result)
	}
	metrics.RecordCacheLookup("hit")
	r.logger.Debug("batch restored from cache %s", key)
	return &batch, true
}

func (r *BatchRunner) store(ctx context.Context, key core.Hash, batch *unit.BatchResult) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(batch)
	if err != nil {
		r.logger.Warn("encode batch for cache: %v", err)
		return
	}
	if err := r.cache.Put(ctx, key, data); err != nil {
		r.logger.Warn("cache store %s: %v", key, err)
	}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
