package models

import (
	"math"
	"sort"

	"omicpath/domain/core"

	"gonum.org/v1/gonum/mat"
)

// FitCox fits a Cox proportional hazards model by maximizing the Breslow
// partial likelihood. design is samples x covariates.
func FitCox(design [][]float64, names []string, times []float64, events []bool, opts Options) (*Fit, error) {
	opts = opts.withDefaults()
	n := len(times)
	if len(events) != n {
		return nil, core.NewInvalidInputError("outcome", "times and events differ in length")
	}
	nEvents := 0
	for _, e := range events {
		if e {
			nEvents++
		}
	}
	if nEvents == 0 {
		return nil, core.NewModelFitError(string(KindCox), "no observed events")
	}

	cols, scales, err := designColumns(KindCox, design, names, n)
	if err != nil {
		return nil, err
	}
	p := len(cols)
	x := make([][]float64, n)
	for i := range x {
		x[i] = make([]float64, p)
		for j := range cols {
			x[i][j] = cols[j][i]
		}
	}

	f := coxObjective(x, times, events)
	sol, err := maximize(KindCox, f, p, opts)
	if err != nil {
		return nil, err
	}
	nullLL, _, _ := f(make([]float64, p))

	coefs, err := summarize(KindCox, sol, names, scales, 0)
	if err != nil {
		return nil, err
	}
	lr, pValue := lrTest(sol.ll, nullLL, p)
	return &Fit{
		Kind:         KindCox,
		Coefficients: coefs,
		LogLik:       sol.ll,
		NullLogLik:   nullLL,
		LRStatistic:  lr,
		DF:           p,
		PValue:       pValue,
		Iterations:   sol.iterations,
		N:            n,
	}, nil
}

// coxObjective returns the Breslow partial likelihood over risk sets built
// by walking samples from the longest time down. Tied times enter the risk
// set together before their events are scored.
func coxObjective(x [][]float64, times []float64, events []bool) objective {
	n := len(times)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return times[order[a]] > times[order[b]] })

	return func(beta []float64) (float64, []float64, *mat.SymDense) {
		p := len(beta)
		eta := make([]float64, n)
		maxEta := math.Inf(-1)
		for i := range x {
			s := 0.0
			for j, b := range beta {
				s += x[i][j] * b
			}
			eta[i] = s
			if s > maxEta {
				maxEta = s
			}
		}

		s0 := 0.0
		s1 := make([]float64, p)
		s2 := make([]float64, p*p)
		ll := 0.0
		grad := make([]float64, p)
		info := make([]float64, p*p)

		for start := 0; start < n; {
			end := start
			for end < n && times[order[end]] == times[order[start]] {
				end++
			}
			for _, i := range order[start:end] {
				w := math.Exp(eta[i] - maxEta)
				s0 += w
				for a := 0; a < p; a++ {
					s1[a] += w * x[i][a]
					for b := 0; b < p; b++ {
						s2[a*p+b] += w * x[i][a] * x[i][b]
					}
				}
			}
			for _, i := range order[start:end] {
				if !events[i] {
					continue
				}
				ll += eta[i] - (math.Log(s0) + maxEta)
				for a := 0; a < p; a++ {
					ma := s1[a] / s0
					grad[a] += x[i][a] - ma
					for b := 0; b < p; b++ {
						info[a*p+b] += s2[a*p+b]/s0 - ma*s1[b]/s0
					}
				}
			}
			start = end
		}
		return ll, grad, symmetric(info, p)
	}
}

// symmetric builds a SymDense from a row-major square, averaging off-diagonals
func symmetric(data []float64, p int) *mat.SymDense {
	sym := mat.NewSymDense(p, nil)
	for a := 0; a < p; a++ {
		for b := a; b < p; b++ {
			sym.SetSym(a, b, (data[a*p+b]+data[b*p+a])/2)
		}
	}
	return sym
}
