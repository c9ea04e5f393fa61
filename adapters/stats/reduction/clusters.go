package reduction

import (
	"fmt"
	"math"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	domain "omicpath/domain/reduction"
)

const maxKMeansIterations = 100

// ClusterStrategy groups correlated sub-features (e.g. probes of the same
// genes) with a deterministic k-means and averages each group into one covariate.
type ClusterStrategy struct{}

// NewClusterStrategy creates the cluster summarization strategy
func NewClusterStrategy() *ClusterStrategy { return &ClusterStrategy{} }

func (s *ClusterStrategy) Method() domain.Method { return domain.MethodClusters }

// Reduce returns one averaged profile per cluster named <omic>CL<i>
func (s *ClusterStrategy) Reduce(omic string, sub omics.Matrix, params domain.Params, _ *domain.Topology) ([]domain.Covariate, error) {
	if sub.NumGenes() == 0 {
		return nil, core.NewInsufficientDataError(omic, "no features in unit")
	}
	if sub.NumSamples() < 3 {
		return nil, core.NewInsufficientDataError(omic, "fewer than three samples")
	}

	var profiles [][]float64
	for i := range sub.Genes {
		if z, ok := standardize(sub.Values[i], false); ok {
			profiles = append(profiles, z)
		}
	}
	if len(profiles) == 0 {
		return nil, core.NewInsufficientDataError(omic, "zero variance across unit features")
	}

	k := params.MaxClusters
	if k > len(profiles) {
		k = len(profiles)
	}
	assign := kmeans(profiles, k)

	// clusters are numbered by their lowest member index
	order := make([]int, 0, k)
	seen := make(map[int]bool, k)
	for _, c := range assign {
		if !seen[c] {
			seen[c] = true
			order = append(order, c)
		}
	}

	n := sub.NumSamples()
	var out []domain.Covariate
	for _, c := range order {
		avg := make([]float64, n)
		count := 0
		for i, a := range assign {
			if a != c {
				continue
			}
			count++
			for j, v := range profiles[i] {
				avg[j] += v
			}
		}
		for j := range avg {
			avg[j] /= float64(count)
		}
		if isConstant(avg) {
			continue
		}
		out = append(out, domain.Covariate{
			Name:   fmt.Sprintf("%sCL%d", omic, len(out)+1),
			Omic:   omic,
			Values: avg,
		})
	}
	if len(out) == 0 {
		return nil, core.NewInsufficientDataError(omic, "all cluster profiles are constant")
	}
	return out, nil
}

// kmeans clusters rows into k groups with farthest-point initialization from
// row 0. Ties break toward the lower index so the result is reproducible.
func kmeans(rows [][]float64, k int) []int {
	if k <= 1 {
		return make([]int, len(rows))
	}

	centers := [][]float64{append([]float64(nil), rows[0]...)}
	for len(centers) < k {
		best, bestDist := -1, -1.0
		for i, r := range rows {
			d := math.Inf(1)
			for _, c := range centers {
				if dd := sqDist(r, c); dd < d {
					d = dd
				}
			}
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		if bestDist <= 0 {
			break
		}
		centers = append(centers, append([]float64(nil), rows[best]...))
	}

	assign := make([]int, len(rows))
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, r := range rows {
			best, bestDist := 0, math.Inf(1)
			for c, center := range centers {
				if d := sqDist(r, center); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		for c := range centers {
			sum := make([]float64, len(centers[c]))
			count := 0
			for i, a := range assign {
				if a != c {
					continue
				}
				count++
				for j, v := range rows[i] {
					sum[j] += v
				}
			}
			if count == 0 {
				continue
			}
			for j := range sum {
				sum[j] /= float64(count)
			}
			centers[c] = sum
		}
	}
	return assign
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
