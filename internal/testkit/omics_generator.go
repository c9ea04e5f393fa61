package testkit

import (
	"fmt"
	"math"

	"omicpath/domain/omics"
	"omicpath/domain/pathway"
	"omicpath/domain/reduction"
)

// Omic names produced by the generator
const (
	OmicExpression = "expr"
	OmicMutation   = "mut"
	// SeparatingGene perfectly predicts the outcome when enabled
	SeparatingGene = "SEP"
)

// DatasetConfig configures the synthetic multi-omic generator. Every value
// comes from a closed-form noise function of (sample, column, seed), so a
// configuration always yields the same dataset.
type DatasetConfig struct {
	Samples int
	Genes   int // named G1..Gn
	// Effect is the log-hazard (or log-odds) per unit of the latent factor
	// that drives every expression gene
	Effect  float64
	Outcome omics.OutcomeKind
	Seed    int64
	// Omics restricts the generated omics; empty means expr and mut
	Omics []string
	// Separating adds gene SEP to the expression omic tracking the outcome exactly
	Separating bool
	// Reduction overrides the default config (expr: one principal component,
	// mut: event count)
	Reduction reduction.Config
}

// DefaultDatasetConfig returns a 20-sample survival dataset over three genes
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Samples: 20,
		Genes:   3,
		Effect:  1.5,
		Outcome: omics.OutcomeSurvival,
		Seed:    1,
	}
}

// DefaultReduction returns the reduction config the generator uses
func DefaultReduction() reduction.Config {
	return reduction.Config{
		OmicExpression: {Method: reduction.MethodComponents, Params: reduction.Params{MaxComponents: 1}},
		OmicMutation:   {Method: reduction.MethodEventCount},
	}
}

// Noise returns a deterministic value in [-0.5, 0.5)
func Noise(i, j int, seed int64) float64 {
	x := math.Sin(float64(i)*12.9898+float64(j)*78.233+float64(seed)*37.719) * 43758.5453
	return x - math.Floor(x) - 0.5
}

// SampleIDs returns S01..Sn
func SampleIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i+1)
	}
	return out
}

// GeneIDs returns G1..Gn
func GeneIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("G%d", i+1)
	}
	return out
}

// NewDataset builds the configured dataset
func NewDataset(cfg DatasetConfig) (*omics.Dataset, error) {
	matrices, outcome := Generate(cfg)
	config := cfg.Reduction
	if config == nil {
		config = reduction.Config{}
		for omic, spec := range DefaultReduction() {
			if _, ok := matrices[omic]; ok {
				config[omic] = spec
			}
		}
	}
	return omics.NewDataset(matrices, outcome, config)
}

// Generate returns the raw matrices and outcome for cfg
func Generate(cfg DatasetConfig) (map[string]omics.Matrix, omics.Outcome) {
	n := cfg.Samples
	samples := SampleIDs(n)
	genes := GeneIDs(cfg.Genes)
	unit := math.Sqrt(12)

	latent := make([]float64, n)
	for i := range latent {
		latent[i] = Noise(i, 0, cfg.Seed) * unit
	}

	times := make([]float64, n)
	events := make([]bool, n)
	labels := make([]string, n)
	binary := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = math.Exp(-cfg.Effect*latent[i] + 0.8*unit*Noise(i, 100, cfg.Seed))
		events[i] = i%5 != 4
		if cfg.Effect*latent[i]+unit*Noise(i, 300, cfg.Seed) > 0 {
			labels[i], binary[i] = "responder", 1
		} else {
			labels[i] = "non_responder"
		}
	}

	want := map[string]bool{}
	for _, o := range cfg.Omics {
		want[o] = true
	}
	if len(want) == 0 {
		want[OmicExpression], want[OmicMutation] = true, true
	}

	matrices := make(map[string]omics.Matrix)
	if want[OmicExpression] {
		m := omics.Matrix{Genes: append([]string(nil), genes...), Samples: append([]string(nil), samples...)}
		for g := range genes {
			row := make([]float64, n)
			for i := range row {
				row[i] = latent[i] + 0.6*unit*Noise(i, g+1, cfg.Seed)
			}
			m.Values = append(m.Values, row)
		}
		if cfg.Separating {
			row := make([]float64, n)
			for i := range row {
				if cfg.Outcome == omics.OutcomeTwoClass {
					row[i] = 2*binary[i] - 1 + 0.01*Noise(i, 400, cfg.Seed)
				} else {
					row[i] = -math.Log(times[i])
				}
			}
			m.Genes = append(m.Genes, SeparatingGene)
			m.Values = append(m.Values, row)
		}
		matrices[OmicExpression] = m
	}
	if want[OmicMutation] {
		m := omics.Matrix{Genes: append([]string(nil), genes...), Samples: append([]string(nil), samples...)}
		for g := range genes {
			row := make([]float64, n)
			for i := range row {
				if Noise(i, g+200, cfg.Seed) > 0.2 {
					row[i] = 1
				}
			}
			m.Values = append(m.Values, row)
		}
		matrices[OmicMutation] = m
	}

	if cfg.Outcome == omics.OutcomeTwoClass {
		return matrices, omics.NewTwoClassOutcome(append([]string(nil), samples...), labels)
	}
	return matrices, omics.NewSurvivalOutcome(append([]string(nil), samples...), times, events)
}

// ChainPathway links genes in order: g1-g2-...-gn
func ChainPathway(name string, genes ...string) *pathway.Graph {
	g := &pathway.Graph{Name: name, Nodes: append([]string(nil), genes...)}
	for i := 1; i < len(genes); i++ {
		g.Edges = append(g.Edges, pathway.Edge{From: genes[i-1], To: genes[i]})
	}
	return g
}

// Collection builds a collection, panicking on invalid fixtures
func Collection(graphs ...*pathway.Graph) *pathway.Collection {
	c, err := pathway.NewCollection(graphs...)
	if err != nil {
		panic(err)
	}
	return c
}
