package models

import (
	"fmt"
	"math"
	"strconv"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/stats"

	summary "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind enumerates the association models
type Kind = stats.ModelKind

const (
	KindCox      = stats.ModelCox
	KindLogistic = stats.ModelLogistic
)

// KindFor maps an outcome kind to its model
func KindFor(o omics.OutcomeKind) (Kind, error) {
	switch o {
	case omics.OutcomeSurvival:
		return KindCox, nil
	case omics.OutcomeTwoClass:
		return KindLogistic, nil
	}
	return "", core.NewUnknownMethodError("model", string(o))
}

// Fit and Coefficient live in the domain so results can travel without
// importing the solver.
type (
	Fit         = stats.Fit
	Coefficient = stats.Coefficient
)

// Options tunes the Newton-Raphson solver
type Options struct {
	MaxIter int
	Tol     float64
	// MaxAbsCoef flags divergence (monotone likelihood, perfect separation)
	MaxAbsCoef float64
	// MaxCond rejects ill-conditioned information matrices
	MaxCond float64
}

// Canonical renders the options as a stable string for cache keys
func (o Options) Canonical() string {
	return fmt.Sprintf("iter=%d;tol=%s;coef=%s;cond=%s", o.MaxIter,
		strconv.FormatFloat(o.Tol, 'g', -1, 64),
		strconv.FormatFloat(o.MaxAbsCoef, 'g', -1, 64),
		strconv.FormatFloat(o.MaxCond, 'g', -1, 64))
}

// DefaultOptions returns the solver defaults
func DefaultOptions() Options {
	return Options{MaxIter: 50, Tol: 1e-9, MaxAbsCoef: 30, MaxCond: 1e12}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Tol <= 0 {
		o.Tol = d.Tol
	}
	if o.MaxAbsCoef <= 0 {
		o.MaxAbsCoef = d.MaxAbsCoef
	}
	if o.MaxCond <= 0 {
		o.MaxCond = d.MaxCond
	}
	return o
}

// objective evaluates log-likelihood, score and observed information at beta
type objective func(beta []float64) (ll float64, grad []float64, info *mat.SymDense)

type solution struct {
	beta       []float64
	ll         float64
	covariance *mat.SymDense
	iterations int
}

// maximize runs Newton-Raphson with step halving from beta = 0
func maximize(model Kind, f objective, p int, opts Options) (*solution, error) {
	beta := make([]float64, p)
	ll, grad, info := f(beta)
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return nil, core.NewModelFitError(string(model), "non-finite likelihood at start")
	}

	iter := 0
	converged := false
	for iter = 1; iter <= opts.MaxIter; iter++ {
		step, err := solve(model, info, grad, opts.MaxCond)
		if err != nil {
			return nil, err
		}

		next := make([]float64, p)
		var nextLL float64
		var nextGrad []float64
		var nextInfo *mat.SymDense
		scale := 1.0
		for halving := 0; halving < 30; halving++ {
			for j := range next {
				next[j] = beta[j] + scale*step[j]
			}
			nextLL, nextGrad, nextInfo = f(next)
			if !math.IsNaN(nextLL) && !math.IsInf(nextLL, 0) && nextLL >= ll-1e-12 {
				break
			}
			scale /= 2
		}
		if math.IsNaN(nextLL) || math.IsInf(nextLL, 0) {
			return nil, core.NewModelFitError(string(model), "likelihood became non-finite")
		}
		for _, b := range next {
			if math.Abs(b) > opts.MaxAbsCoef {
				return nil, core.NewModelFitError(string(model), "coefficients diverge (perfect separation or monotone likelihood)")
			}
		}

		delta := math.Abs(nextLL - ll)
		beta, ll, grad, info = next, nextLL, nextGrad, nextInfo
		if delta < opts.Tol*(math.Abs(ll)+opts.Tol) {
			converged = true
			break
		}
	}
	if !converged {
		return nil, core.NewModelFitError(string(model), fmt.Sprintf("no convergence after %d iterations", opts.MaxIter))
	}

	cov, err := invert(model, info, opts.MaxCond)
	if err != nil {
		return nil, err
	}
	return &solution{beta: beta, ll: ll, covariance: cov, iterations: iter}, nil
}

func solve(model Kind, info *mat.SymDense, grad []float64, maxCond float64) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, core.NewModelFitError(string(model), "information matrix is not positive definite (rank-deficient design)")
	}
	if c := chol.Cond(); c > maxCond || math.IsNaN(c) {
		return nil, core.NewModelFitError(string(model), fmt.Sprintf("ill-conditioned design (cond %.3g)", c))
	}
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, mat.NewVecDense(len(grad), grad)); err != nil {
		return nil, core.NewModelFitError(string(model), "solve failed: "+err.Error())
	}
	return mat.Col(nil, 0, &step), nil
}

func invert(model Kind, info *mat.SymDense, maxCond float64) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, core.NewModelFitError(string(model), "information matrix is singular at the estimate")
	}
	if c := chol.Cond(); c > maxCond || math.IsNaN(c) {
		return nil, core.NewModelFitError(string(model), fmt.Sprintf("ill-conditioned information (cond %.3g)", c))
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, core.NewModelFitError(string(model), "inverse failed: "+err.Error())
	}
	return &cov, nil
}

// summarize builds Wald tests for len(names) coefficients starting at offset,
// mapping estimates back to the original covariate scale
func summarize(model Kind, sol *solution, names []string, scales []float64, offset int) ([]Coefficient, error) {
	coefs := make([]Coefficient, len(names))
	for i, name := range names {
		j := i + offset
		v := sol.covariance.At(j, j)
		if v <= 0 || math.IsNaN(v) {
			return nil, core.NewModelFitError(string(model), "non-positive variance for "+name)
		}
		se := math.Sqrt(v)
		z := sol.beta[j] / se
		coefs[i] = Coefficient{
			Name:     name,
			Estimate: sol.beta[j] / scales[i],
			StdError: se / scales[i],
			Z:        z,
			PValue:   clampP(2 * distuv.UnitNormal.Survival(math.Abs(z))),
		}
	}
	return coefs, nil
}

// lrTest returns the statistic and chi-square p-value
func lrTest(ll, nullLL float64, df int) (float64, float64) {
	stat := 2 * (ll - nullLL)
	if stat < 0 {
		stat = 0
	}
	chi := distuv.ChiSquared{K: float64(df)}
	return stat, clampP(chi.Survival(stat))
}

func clampP(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	return math.Max(0, math.Min(1, p))
}

// designColumns validates the samples x covariates design and returns
// standardized columns plus the scale of each, so divergence checks are
// unit-free. Constant columns make the design rank-deficient.
func designColumns(model Kind, design [][]float64, names []string, n int) ([][]float64, []float64, error) {
	p := len(names)
	if p == 0 {
		return nil, nil, core.NewModelFitError(string(model), "no covariates")
	}
	if len(design) != n {
		return nil, nil, core.NewInvalidInputError("design", fmt.Sprintf("%d rows for %d samples", len(design), n))
	}
	if n <= p+1 {
		return nil, nil, core.NewModelFitError(string(model), fmt.Sprintf("%d samples cannot support %d covariates", n, p))
	}
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	for i, row := range design {
		if len(row) != p {
			return nil, nil, core.NewInvalidInputError("design", fmt.Sprintf("row %d has %d columns, want %d", i, len(row), p))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, core.NewModelFitError(string(model), "non-finite covariate value")
			}
			cols[j][i] = v
		}
	}
	scales := make([]float64, p)
	for j := range cols {
		mean, sd := meanSD(cols[j])
		if sd < 1e-10 {
			return nil, nil, core.NewModelFitError(string(model), "constant covariate "+names[j]+" (rank-deficient design)")
		}
		scales[j] = sd
		for i := range cols[j] {
			cols[j][i] = (cols[j][i] - mean) / sd
		}
	}
	return cols, scales, nil
}

// meanSD returns the mean and sample standard deviation; sd is 0 when it is
// undefined
func meanSD(values []float64) (float64, float64) {
	mean, err := summary.Mean(values)
	if err != nil {
		return 0, 0
	}
	sd, err := summary.StandardDeviationSample(values)
	if err != nil || len(values) < 2 || math.IsNaN(sd) {
		return mean, 0
	}
	return mean, sd
}
