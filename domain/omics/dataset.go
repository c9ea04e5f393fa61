package omics

import (
	"fmt"
	"sort"
	"strconv"

	"omicpath/domain/core"
	"omicpath/domain/reduction"
)

// Dataset is the aligned multi-omic container. It is immutable once built;
// every "modifying" operation returns a new Dataset and leaves the receiver
// untouched, so a Dataset may be shared freely across goroutines.
type Dataset struct {
	matrices map[string]Matrix
	omics    []string
	samples  []string
	outcome  Outcome
	config   reduction.Config
	// features maps omic -> gene -> matrix rows measuring that gene, either
	// directly or through the reduction dictionary
	features map[string]map[string][]int
}

// NewDataset validates and aligns the inputs. Every matrix and the outcome
// must carry the same sample identifiers in the same order; a mismatch is an
// alignment error and nothing is reindexed.
func NewDataset(matrices map[string]Matrix, outcome Outcome, config reduction.Config) (*Dataset, error) {
	if len(matrices) == 0 {
		return nil, core.NewInvalidInputError("matrices", "at least one omic is required")
	}
	if err := outcome.Validate(); err != nil {
		return nil, err
	}
	if len(outcome.Samples) == 0 {
		return nil, core.NewInvalidInputError("outcome", "no samples")
	}
	if dup := firstDuplicate(outcome.Samples); dup != "" {
		return nil, core.NewInvalidInputError("outcome", "duplicate sample "+dup)
	}

	omicNames := make([]string, 0, len(matrices))
	for name := range matrices {
		omicNames = append(omicNames, name)
	}
	sort.Strings(omicNames)

	ds := &Dataset{
		matrices: make(map[string]Matrix, len(matrices)),
		omics:    omicNames,
		samples:  append([]string(nil), outcome.Samples...),
		outcome:  outcome.clone(),
		config:   config.Clone(),
		features: make(map[string]map[string][]int, len(matrices)),
	}

	for _, name := range omicNames {
		m := matrices[name]
		if err := m.Validate(name); err != nil {
			return nil, err
		}
		if err := checkAlignment(name, m.Samples, outcome.Samples); err != nil {
			return nil, err
		}
		spec, ok := config[name]
		if !ok {
			return nil, core.NewInvalidInputError(name, "no reduction configured")
		}
		if !spec.Method.Valid() {
			return nil, core.NewUnknownMethodError("reduction", string(spec.Method))
		}
		if err := spec.Params.Validate(); err != nil {
			return nil, err
		}
		ds.matrices[name] = m.clone()
		ds.features[name] = featureIndex(m.Genes, spec.Params.Dictionary)
	}
	for name := range config {
		if _, ok := matrices[name]; !ok {
			return nil, core.NewInvalidInputError(name, "reduction configured for absent omic")
		}
	}
	return ds, nil
}

func checkAlignment(omic string, got, want []string) error {
	if len(got) != len(want) {
		return core.NewAlignmentError(omic, "%d samples, outcome has %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			return core.NewAlignmentError(omic, "sample %d is %q, outcome has %q", i, got[i], want[i])
		}
	}
	return nil
}

// Omics returns omic names in sorted order
func (d *Dataset) Omics() []string {
	return append([]string(nil), d.omics...)
}

// Samples returns the aligned sample identifiers
func (d *Dataset) Samples() []string {
	return append([]string(nil), d.samples...)
}

// NumSamples returns the sample count
func (d *Dataset) NumSamples() int { return len(d.samples) }

// Outcome returns a copy of the outcome annotation
func (d *Dataset) Outcome() Outcome { return d.outcome.clone() }

// Reduction returns the spec configured for an omic
func (d *Dataset) Reduction(omic string) (reduction.Spec, bool) {
	spec, ok := d.config[omic]
	return spec, ok
}

// ReductionConfig returns a copy of the full reduction configuration
func (d *Dataset) ReductionConfig() reduction.Config {
	return d.config.Clone()
}

// GeneUniverse returns the genes measured by one omic, sorted. Rows mapped
// through a reduction dictionary contribute their gene, not their own id.
func (d *Dataset) GeneUniverse(omic string) []string {
	idx, ok := d.features[omic]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(idx))
	for g := range idx {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Universe returns the union of genes across omics, sorted
func (d *Dataset) Universe() []string {
	set := make(map[string]bool)
	for _, idx := range d.features {
		for g := range idx {
			set[g] = true
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Submatrix restricts an omic to the rows measuring the given genes, in the
// order given. Genes the omic does not measure are skipped. Row ids are kept,
// so dictionary-mapped sub-features keep their own identifiers.
func (d *Dataset) Submatrix(omic string, genes []string) (Matrix, error) {
	m, ok := d.matrices[omic]
	if !ok {
		return Matrix{}, core.NewInvalidInputError("omic", "unknown omic "+omic)
	}
	idx := d.features[omic]
	out := Matrix{Samples: d.Samples()}
	seen := make(map[int]bool, len(genes))
	for _, g := range genes {
		for _, row := range idx[g] {
			if seen[row] {
				continue
			}
			seen[row] = true
			out.Genes = append(out.Genes, m.Genes[row])
			out.Values = append(out.Values, append([]float64(nil), m.Values[row]...))
		}
	}
	return out, nil
}

// WithReduction returns a new Dataset whose omic uses spec. Matrices are
// shared with the receiver since neither side can mutate them.
func (d *Dataset) WithReduction(omic string, spec reduction.Spec) (*Dataset, error) {
	if _, ok := d.matrices[omic]; !ok {
		return nil, core.NewInvalidInputError("omic", "unknown omic "+omic)
	}
	if !spec.Method.Valid() {
		return nil, core.NewUnknownMethodError("reduction", string(spec.Method))
	}
	if err := spec.Params.Validate(); err != nil {
		return nil, err
	}
	next := d.shallow()
	next.config = d.config.Clone()
	next.config[omic] = spec.Clone()
	next.features = make(map[string]map[string][]int, len(d.features))
	for name, idx := range d.features {
		next.features[name] = idx
	}
	next.features[omic] = featureIndex(d.matrices[omic].Genes, spec.Params.Dictionary)
	return next, nil
}

// Subset returns a Dataset restricted to the given samples. Sample order
// follows the receiver so alignment is preserved.
func (d *Dataset) Subset(samples []string) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, core.NewInvalidInputError("samples", "subset is empty")
	}
	want := make(map[string]bool, len(samples))
	pos := indexOf(d.samples)
	for _, s := range samples {
		if _, ok := pos[s]; !ok {
			return nil, core.NewInvalidInputError("samples", "unknown sample "+s)
		}
		if want[s] {
			return nil, core.NewInvalidInputError("samples", "duplicate sample "+s)
		}
		want[s] = true
	}
	idx := make([]int, 0, len(samples))
	kept := make([]string, 0, len(samples))
	for i, s := range d.samples {
		if want[s] {
			idx = append(idx, i)
			kept = append(kept, s)
		}
	}
	return d.project(idx, kept), nil
}

// WithoutSamples returns a Dataset with the given samples removed
func (d *Dataset) WithoutSamples(drop []string) (*Dataset, error) {
	pos := indexOf(d.samples)
	skip := make(map[string]bool, len(drop))
	for _, s := range drop {
		if _, ok := pos[s]; !ok {
			return nil, core.NewInvalidInputError("samples", "unknown sample "+s)
		}
		skip[s] = true
	}
	if len(skip) >= len(d.samples) {
		return nil, core.NewInvalidInputError("samples", "cannot drop every sample")
	}
	idx := make([]int, 0, len(d.samples)-len(skip))
	kept := make([]string, 0, len(d.samples)-len(skip))
	for i, s := range d.samples {
		if !skip[s] {
			idx = append(idx, i)
			kept = append(kept, s)
		}
	}
	return d.project(idx, kept), nil
}

func (d *Dataset) project(idx []int, samples []string) *Dataset {
	next := d.shallow()
	next.samples = samples
	next.outcome = d.outcome.columns(idx, samples)
	next.matrices = make(map[string]Matrix, len(d.matrices))
	for name, m := range d.matrices {
		next.matrices[name] = m.columns(idx, samples)
	}
	return next
}

func (d *Dataset) shallow() *Dataset {
	return &Dataset{
		matrices: d.matrices,
		omics:    d.omics,
		samples:  d.samples,
		outcome:  d.outcome,
		config:   d.config,
		features: d.features,
	}
}

// Hash returns a content hash over samples, outcome, matrices and config
func (d *Dataset) Hash() core.Hash {
	h := &core.Hasher{}
	h.WriteString("samples")
	for _, s := range d.samples {
		h.WriteString(s)
	}
	h.WriteString(string(d.outcome.Kind)).WriteFloats(d.outcome.Times)
	for i, e := range d.outcome.Events {
		h.WriteString(strconv.Itoa(i) + ":" + strconv.FormatBool(e))
	}
	for _, l := range d.outcome.Labels {
		h.WriteString(l)
	}
	h.WriteString(d.outcome.Positive)
	for _, name := range d.omics {
		m := d.matrices[name]
		h.WriteString("omic").WriteString(name)
		for i, g := range m.Genes {
			h.WriteString(g).WriteFloats(m.Values[i])
		}
		spec := d.config[name]
		h.WriteString(string(spec.Method)).WriteString(spec.Params.Canonical())
	}
	return h.Sum()
}

// String summarizes the dataset shape for logs
func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset{omics=%v samples=%d outcome=%s}", d.omics, len(d.samples), d.outcome.Kind)
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

func featureIndex(rows []string, dict map[string]string) map[string][]int {
	idx := make(map[string][]int, len(rows))
	for i, r := range rows {
		gene := r
		if mapped, ok := dict[r]; ok && mapped != "" {
			gene = mapped
		}
		idx[gene] = append(idx[gene], i)
	}
	return idx
}

func firstDuplicate(values []string) string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v
		}
		seen[v] = true
	}
	return ""
}
