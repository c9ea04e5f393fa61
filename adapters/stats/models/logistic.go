package models

import (
	"math"

	"omicpath/domain/core"

	"gonum.org/v1/gonum/mat"
)

// FitLogistic fits a binomial GLM with logit link by IRLS. labels are 0/1;
// the intercept is estimated but not reported as a covariate.
func FitLogistic(design [][]float64, names []string, labels []float64, opts Options) (*Fit, error) {
	opts = opts.withDefaults()
	n := len(labels)
	pos := 0.0
	for _, y := range labels {
		if y != 0 && y != 1 {
			return nil, core.NewInvalidInputError("labels", "logistic labels must be 0 or 1")
		}
		pos += y
	}
	if pos == 0 || pos == float64(n) {
		return nil, core.NewModelFitError(string(KindLogistic), "outcome has a single class")
	}

	cols, scales, err := designColumns(KindLogistic, design, names, n)
	if err != nil {
		return nil, err
	}
	p := len(cols) + 1
	x := make([][]float64, n)
	for i := range x {
		x[i] = make([]float64, p)
		x[i][0] = 1
		for j := range cols {
			x[i][j+1] = cols[j][i]
		}
	}

	sol, err := maximize(KindLogistic, logisticObjective(x, labels), p, opts)
	if err != nil {
		return nil, err
	}

	ybar := pos / float64(n)
	nullLL := float64(n) * (ybar*math.Log(ybar) + (1-ybar)*math.Log(1-ybar))

	coefs, err := summarize(KindLogistic, sol, names, scales, 1)
	if err != nil {
		return nil, err
	}
	lr, pValue := lrTest(sol.ll, nullLL, len(names))
	return &Fit{
		Kind:         KindLogistic,
		Coefficients: coefs,
		LogLik:       sol.ll,
		NullLogLik:   nullLL,
		LRStatistic:  lr,
		DF:           len(names),
		PValue:       pValue,
		Iterations:   sol.iterations,
		N:            n,
	}, nil
}

func logisticObjective(x [][]float64, y []float64) objective {
	return func(beta []float64) (float64, []float64, *mat.SymDense) {
		p := len(beta)
		ll := 0.0
		grad := make([]float64, p)
		info := make([]float64, p*p)
		for i, row := range x {
			eta := 0.0
			for j, b := range beta {
				eta += row[j] * b
			}
			ll += y[i]*eta - log1pExp(eta)
			mu := sigmoid(eta)
			w := mu * (1 - mu)
			for a := 0; a < p; a++ {
				grad[a] += (y[i] - mu) * row[a]
				for b := 0; b < p; b++ {
					info[a*p+b] += w * row[a] * row[b]
				}
			}
		}
		return ll, grad, symmetric(info, p)
	}
}

func sigmoid(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}

// log1pExp computes log(1+exp(eta)) without overflow
func log1pExp(eta float64) float64 {
	if eta > 0 {
		return eta + math.Log1p(math.Exp(-eta))
	}
	return math.Log1p(math.Exp(eta))
}
