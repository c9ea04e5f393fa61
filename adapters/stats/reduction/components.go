package reduction

import (
	"fmt"
	"math"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	domain "omicpath/domain/reduction"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ComponentStrategy summarizes genes by principal component scores. The sparse
// variant soft-thresholds loadings; the topology variant up-weights hub genes.
type ComponentStrategy struct {
	method domain.Method
}

// NewComponentStrategy creates one of the three component variants
func NewComponentStrategy(method domain.Method) *ComponentStrategy {
	return &ComponentStrategy{method: method}
}

func (s *ComponentStrategy) Method() domain.Method { return s.method }

// Reduce returns up to MaxComponents score vectors named <omic>PC<i>
func (s *ComponentStrategy) Reduce(omic string, sub omics.Matrix, params domain.Params, topo *domain.Topology) ([]domain.Covariate, error) {
	if sub.NumGenes() == 0 {
		return nil, core.NewInsufficientDataError(omic, "no genes in unit")
	}
	n := sub.NumSamples()
	if n < 3 {
		return nil, core.NewInsufficientDataError(omic, "fewer than three samples")
	}

	var degree map[string]int
	if s.method == domain.MethodTopologyComponents {
		degree = topo.Degree()
	}

	var cols [][]float64
	for i, g := range sub.Genes {
		row, ok := standardize(sub.Values[i], params.SkipStandardize)
		if !ok {
			continue
		}
		if degree != nil {
			w := math.Sqrt(1 + float64(degree[g]))
			for j := range row {
				row[j] *= w
			}
		}
		cols = append(cols, row)
	}
	if len(cols) == 0 {
		return nil, core.NewInsufficientDataError(omic, "zero variance across unit genes")
	}

	p := len(cols)
	x := mat.NewDense(n, p, nil)
	for j, col := range cols {
		for i, v := range col {
			x.Set(i, j, v)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, core.NewInsufficientDataError(omic, "principal component decomposition failed")
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	if total <= varianceFloor {
		return nil, core.NewInsufficientDataError(omic, "zero total variance")
	}

	keep := params.MaxComponents
	if keep > len(vars) {
		keep = len(vars)
	}

	var out []domain.Covariate
	for k := 0; k < keep; k++ {
		if vars[k]/total < 1e-8 {
			break
		}
		loading := mat.Col(nil, k, &vecs)
		if s.method == domain.MethodSparseComponents && params.Shrink > 0 {
			loading = softThreshold(loading, params.Shrink)
		}
		orientLoading(loading)

		scores := make([]float64, n)
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < p; j++ {
				sum += x.At(i, j) * loading[j]
			}
			scores[i] = sum
		}
		if isConstant(scores) {
			continue
		}
		out = append(out, domain.Covariate{
			Name:   fmt.Sprintf("%sPC%d", omic, len(out)+1),
			Omic:   omic,
			Values: scores,
		})
	}
	if len(out) == 0 {
		return nil, core.NewInsufficientDataError(omic, "no component with variance")
	}
	return out, nil
}

// softThreshold shrinks loadings toward zero by shrink*max|l| and renormalizes
func softThreshold(loading []float64, shrink float64) []float64 {
	maxAbs := 0.0
	for _, v := range loading {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	thr := shrink * maxAbs
	out := make([]float64, len(loading))
	norm := 0.0
	for i, v := range loading {
		a := math.Abs(v) - thr
		if a <= 0 {
			continue
		}
		out[i] = math.Copysign(a, v)
		norm += out[i] * out[i]
	}
	if norm == 0 {
		return loading
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// orientLoading flips the vector so its largest-magnitude entry is positive.
// SVD sign is arbitrary; this pins it.
func orientLoading(loading []float64) {
	best := 0
	for i, v := range loading {
		if math.Abs(v) > math.Abs(loading[best]) {
			best = i
		}
	}
	if loading[best] < 0 {
		for i := range loading {
			loading[i] = -loading[i]
		}
	}
}
