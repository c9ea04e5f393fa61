package omics

import (
	"math"
	"sort"

	"omicpath/domain/core"
)

// Matrix is a dense genes x samples block for one omic.
type Matrix struct {
	Genes   []string    `json:"genes"`
	Samples []string    `json:"samples"`
	Values  [][]float64 `json:"values"` // Values[gene][sample]
}

// NumGenes returns the row count
func (m Matrix) NumGenes() int { return len(m.Genes) }

// NumSamples returns the column count
func (m Matrix) NumSamples() int { return len(m.Samples) }

// Validate checks shape, finite values and gene uniqueness
func (m Matrix) Validate(omic string) error {
	if len(m.Values) != len(m.Genes) {
		return core.NewInvalidInputError(omic, "row count does not match gene count")
	}
	seen := make(map[string]bool, len(m.Genes))
	for i, g := range m.Genes {
		if g == "" {
			return core.NewInvalidInputError(omic, "empty gene identifier")
		}
		if seen[g] {
			return core.NewInvalidInputError(omic, "duplicate gene "+g)
		}
		seen[g] = true
		if len(m.Values[i]) != len(m.Samples) {
			return core.NewInvalidInputError(omic, "ragged row for gene "+g)
		}
		for _, v := range m.Values[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewInvalidInputError(omic, "non-finite value for gene "+g)
			}
		}
	}
	return nil
}

// clone deep-copies the matrix
func (m Matrix) clone() Matrix {
	out := Matrix{
		Genes:   append([]string(nil), m.Genes...),
		Samples: append([]string(nil), m.Samples...),
		Values:  make([][]float64, len(m.Values)),
	}
	for i, row := range m.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// columns returns a copy restricted to the given sample positions
func (m Matrix) columns(idx []int, samples []string) Matrix {
	out := Matrix{
		Genes:   m.Genes,
		Samples: samples,
		Values:  make([][]float64, len(m.Values)),
	}
	for i, row := range m.Values {
		r := make([]float64, len(idx))
		for j, c := range idx {
			r[j] = row[c]
		}
		out.Values[i] = r
	}
	return out
}

// OutcomeKind discriminates the outcome annotation
type OutcomeKind string

const (
	OutcomeSurvival OutcomeKind = "survival"
	OutcomeTwoClass OutcomeKind = "two_class"
)

// Outcome is the per-sample response. Survival outcomes use Times and Events;
// two-class outcomes use Labels.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Samples []string    `json:"samples"`
	Times   []float64   `json:"times,omitempty"`
	Events  []bool      `json:"events,omitempty"`
	Labels  []string    `json:"labels,omitempty"`
	// Positive names the class coded as 1; defaults to the last class in sorted order.
	Positive string `json:"positive,omitempty"`
}

// NewSurvivalOutcome builds a (time, event) outcome
func NewSurvivalOutcome(samples []string, times []float64, events []bool) Outcome {
	return Outcome{Kind: OutcomeSurvival, Samples: samples, Times: times, Events: events}
}

// NewTwoClassOutcome builds a categorical outcome with two classes
func NewTwoClassOutcome(samples []string, labels []string) Outcome {
	return Outcome{Kind: OutcomeTwoClass, Samples: samples, Labels: labels}
}

// Validate checks the outcome against its kind
func (o Outcome) Validate() error {
	n := len(o.Samples)
	switch o.Kind {
	case OutcomeSurvival:
		if len(o.Times) != n || len(o.Events) != n {
			return core.NewInvalidInputError("outcome", "times/events length does not match samples")
		}
		for i, t := range o.Times {
			if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
				return core.NewInvalidInputError("outcome", "invalid survival time for sample "+o.Samples[i])
			}
		}
	case OutcomeTwoClass:
		if len(o.Labels) != n {
			return core.NewInvalidInputError("outcome", "labels length does not match samples")
		}
		classes := distinct(o.Labels)
		if len(classes) != 2 {
			return core.NewInvalidInputError("outcome", "two-class outcome needs exactly two classes")
		}
		if o.Positive != "" && o.Positive != classes[0] && o.Positive != classes[1] {
			return core.NewInvalidInputError("outcome", "positive class "+o.Positive+" not among labels")
		}
	default:
		return core.NewInvalidInputError("outcome", "unknown outcome kind "+string(o.Kind))
	}
	return nil
}

// Classes returns the distinct labels in sorted order
func (o Outcome) Classes() []string {
	return distinct(o.Labels)
}

// Binary codes two-class labels as 0/1
func (o Outcome) Binary() []float64 {
	pos := o.Positive
	if pos == "" {
		classes := o.Classes()
		if len(classes) > 0 {
			pos = classes[len(classes)-1]
		}
	}
	out := make([]float64, len(o.Labels))
	for i, l := range o.Labels {
		if l == pos {
			out[i] = 1
		}
	}
	return out
}

// EventCount returns the number of observed events
func (o Outcome) EventCount() int {
	n := 0
	for _, e := range o.Events {
		if e {
			n++
		}
	}
	return n
}

func (o Outcome) clone() Outcome {
	out := o
	out.Samples = append([]string(nil), o.Samples...)
	out.Times = append([]float64(nil), o.Times...)
	out.Events = append([]bool(nil), o.Events...)
	out.Labels = append([]string(nil), o.Labels...)
	return out
}

func (o Outcome) columns(idx []int, samples []string) Outcome {
	out := Outcome{Kind: o.Kind, Samples: samples, Positive: o.Positive}
	if o.Positive == "" && o.Kind == OutcomeTwoClass {
		// keep the coding of the full dataset even if a subset loses a class
		classes := o.Classes()
		out.Positive = classes[len(classes)-1]
	}
	for _, c := range idx {
		switch o.Kind {
		case OutcomeSurvival:
			out.Times = append(out.Times, o.Times[c])
			out.Events = append(out.Events, o.Events[c])
		case OutcomeTwoClass:
			out.Labels = append(out.Labels, o.Labels[c])
		}
	}
	return out
}

func distinct(values []string) []string {
	set := make(map[string]bool)
	for _, v := range values {
		set[v] = true
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
