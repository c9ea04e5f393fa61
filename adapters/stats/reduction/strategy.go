package reduction

import (
	"math"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	domain "omicpath/domain/reduction"

	"github.com/montanaflynn/stats"
)

// Strategy reduces a genes x samples submatrix to covariates over the same samples
type Strategy interface {
	Method() domain.Method
	Reduce(omic string, sub omics.Matrix, params domain.Params, topo *domain.Topology) ([]domain.Covariate, error)
}

// Registry resolves configured methods to strategies. The table is fixed at
// construction; unknown methods are rejected by Lookup and Verify.
type Registry struct {
	strategies map[domain.Method]Strategy
}

// NewRegistry creates a registry with every built-in strategy
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[domain.Method]Strategy)}
	for _, s := range []Strategy{
		NewComponentStrategy(domain.MethodComponents),
		NewComponentStrategy(domain.MethodSparseComponents),
		NewComponentStrategy(domain.MethodTopologyComponents),
		NewClusterStrategy(),
		NewEventCountStrategy(),
	} {
		r.strategies[s.Method()] = s
	}
	return r
}

// Lookup returns the strategy for a method
func (r *Registry) Lookup(m domain.Method) (Strategy, error) {
	s, ok := r.strategies[m]
	if !ok {
		return nil, core.NewUnknownMethodError("reduction", string(m))
	}
	return s, nil
}

// Verify checks that every configured method resolves
func (r *Registry) Verify(cfg domain.Config) error {
	for omic, spec := range cfg {
		if _, err := r.Lookup(spec.Method); err != nil {
			return core.NewInvalidInputError(omic, err.Error())
		}
	}
	return nil
}

// Reduce dispatches to the configured strategy with defaults applied
func (r *Registry) Reduce(omic string, spec domain.Spec, sub omics.Matrix, topo *domain.Topology) ([]domain.Covariate, error) {
	s, err := r.Lookup(spec.Method)
	if err != nil {
		return nil, err
	}
	return s.Reduce(omic, sub, spec.Params.WithDefaults(), topo)
}

// varianceFloor treats anything this close to zero as constant
const varianceFloor = 1e-12

// standardize z-scores a row with the sample standard deviation. ok is false
// for constant rows.
func standardize(row []float64, centerOnly bool) ([]float64, bool) {
	if len(row) < 2 {
		return nil, false
	}
	mean, err := stats.Mean(row)
	if err != nil {
		return nil, false
	}
	sd, err := stats.StandardDeviationSample(row)
	if err != nil || sd*sd < varianceFloor || math.IsNaN(sd) {
		return nil, false
	}
	out := make([]float64, len(row))
	for i, v := range row {
		if centerOnly {
			out[i] = v - mean
		} else {
			out[i] = (v - mean) / sd
		}
	}
	return out, true
}

// isConstant reports whether values carry no variance
func isConstant(values []float64) bool {
	if len(values) < 2 {
		return true
	}
	v, err := stats.SampleVariance(values)
	return err != nil || v < varianceFloor || math.IsNaN(v)
}
