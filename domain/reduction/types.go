package reduction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"omicpath/domain/core"
)

// Method identifies one reduction strategy. The set is closed; ParseMethod is
// the only way in from configuration strings.
type Method string

const (
	// MethodComponents summarizes genes by their leading principal components.
	MethodComponents Method = "pca"
	// MethodSparseComponents is MethodComponents with soft-thresholded loadings.
	MethodSparseComponents Method = "spca"
	// MethodTopologyComponents weights genes by pathway degree before PCA.
	MethodTopologyComponents Method = "topology"
	// MethodClusters groups correlated sub-features and averages each group.
	MethodClusters Method = "cluster"
	// MethodEventCount counts qualifying gene events per sample.
	MethodEventCount Method = "count"
)

// Methods lists every known method in a stable order
func Methods() []Method {
	return []Method{
		MethodComponents,
		MethodSparseComponents,
		MethodTopologyComponents,
		MethodClusters,
		MethodEventCount,
	}
}

// Valid checks whether m is a known method
func (m Method) Valid() bool {
	for _, known := range Methods() {
		if m == known {
			return true
		}
	}
	return false
}

// UsesTopology reports whether the method consumes pathway edges
func (m Method) UsesTopology() bool {
	return m == MethodTopologyComponents
}

func (m Method) String() string { return string(m) }

// ParseMethod resolves a configuration string to a Method
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", core.NewUnknownMethodError("reduction", s)
	}
	return m, nil
}

// Params carries method-specific knobs. Zero values fall back to Defaults.
type Params struct {
	MaxComponents  int               `json:"max_components,omitempty"`
	Shrink         float64           `json:"shrink,omitempty"`
	MaxClusters    int               `json:"max_clusters,omitempty"`
	Dictionary     map[string]string `json:"dictionary,omitempty"` // sub-feature -> gene
	MinProportion  float64           `json:"min_proportion,omitempty"`
	EventThreshold float64           `json:"event_threshold,omitempty"`
	Directional    bool              `json:"directional,omitempty"`
	// SkipStandardize disables per-gene z-scoring before component methods.
	SkipStandardize bool `json:"skip_standardize,omitempty"`
}

const (
	DefaultMaxComponents  = 3
	DefaultMaxClusters    = 3
	DefaultMinProportion  = 0.05
	DefaultEventThreshold = 1.0
)

// WithDefaults returns a copy with unset fields filled in
func (p Params) WithDefaults() Params {
	out := p
	if out.MaxComponents <= 0 {
		out.MaxComponents = DefaultMaxComponents
	}
	if out.MaxClusters <= 0 {
		out.MaxClusters = DefaultMaxClusters
	}
	if out.MinProportion <= 0 {
		out.MinProportion = DefaultMinProportion
	}
	if out.EventThreshold <= 0 {
		out.EventThreshold = DefaultEventThreshold
	}
	return out.clone()
}

// Validate rejects parameter values no strategy can honour
func (p Params) Validate() error {
	if p.MaxComponents < 0 {
		return core.NewInvalidInputError("max_components", "must not be negative")
	}
	if p.MaxClusters < 0 {
		return core.NewInvalidInputError("max_clusters", "must not be negative")
	}
	if p.Shrink < 0 || p.Shrink >= 1 {
		return core.NewInvalidInputError("shrink", "must be in [0,1)")
	}
	if p.MinProportion < 0 || p.MinProportion > 1 {
		return core.NewInvalidInputError("min_proportion", "must be in [0,1]")
	}
	if p.EventThreshold < 0 {
		return core.NewInvalidInputError("event_threshold", "must not be negative")
	}
	return nil
}

// Canonical renders params as a stable string for content hashing
func (p Params) Canonical() string {
	var b strings.Builder
	b.WriteString("mc=" + strconv.Itoa(p.MaxComponents))
	b.WriteString(";sh=" + strconv.FormatFloat(p.Shrink, 'g', -1, 64))
	b.WriteString(";k=" + strconv.Itoa(p.MaxClusters))
	b.WriteString(";mp=" + strconv.FormatFloat(p.MinProportion, 'g', -1, 64))
	b.WriteString(";et=" + strconv.FormatFloat(p.EventThreshold, 'g', -1, 64))
	b.WriteString(";dir=" + strconv.FormatBool(p.Directional))
	b.WriteString(";nostd=" + strconv.FormatBool(p.SkipStandardize))
	keys := make([]string, 0, len(p.Dictionary))
	for k := range p.Dictionary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s>%s", k, p.Dictionary[k])
	}
	return b.String()
}

// Spec binds a method to its parameters for one omic
type Spec struct {
	Method Method `json:"method"`
	Params Params `json:"params"`
}

// Clone returns a deep copy of the spec
func (s Spec) Clone() Spec {
	return Spec{Method: s.Method, Params: s.Params.clone()}
}

// Config maps omic name to its reduction spec
type Config map[string]Spec

// Clone returns a deep copy
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}

func (p Params) clone() Params {
	out := p
	if p.Dictionary != nil {
		out.Dictionary = make(map[string]string, len(p.Dictionary))
		for k, v := range p.Dictionary {
			out.Dictionary[k] = v
		}
	}
	return out
}

// Edge is an undirected gene-gene relation used by topology-aware methods
type Edge struct {
	From string
	To   string
}

// Topology is the optional edge structure passed to a strategy
type Topology struct {
	Edges []Edge
}

// Degree counts distinct neighbours per gene, ignoring self loops
func (t *Topology) Degree() map[string]int {
	deg := make(map[string]int)
	if t == nil {
		return deg
	}
	seen := make(map[[2]string]bool)
	for _, e := range t.Edges {
		if e.From == e.To {
			continue
		}
		a, b := e.From, e.To
		if b < a {
			a, b = b, a
		}
		key := [2]string{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true
		deg[a]++
		deg[b]++
	}
	return deg
}

// Covariate is one reduced feature for a unit, aligned to the dataset samples
type Covariate struct {
	Name   string    `json:"name"`
	Omic   string    `json:"omic"`
	Values []float64 `json:"-"`
}
