package unit

import (
	"fmt"
	"strconv"
	"strings"

	"omicpath/domain/core"
	"omicpath/domain/stats"
)

// ID identifies an analysis unit: "pathway" or "pathway#3" for module 3
type ID string

// Ref names a whole pathway (Module == 0) or one of its modules
type Ref struct {
	Pathway string `json:"pathway"`
	Module  int    `json:"module,omitempty"`
}

// ID renders the unit identifier
func (r Ref) ID() ID {
	if r.Module == 0 {
		return ID(r.Pathway)
	}
	return ID(fmt.Sprintf("%s#%d", r.Pathway, r.Module))
}

// ParseID splits a unit identifier back into its reference. Pathway names
// may themselves contain '#'; only a numeric suffix is treated as a module.
func ParseID(id ID) (Ref, error) {
	s := string(id)
	if s == "" {
		return Ref{}, core.NewInvalidInputError("unit", "empty identifier")
	}
	i := strings.LastIndexByte(s, '#')
	if i <= 0 {
		return Ref{Pathway: s}, nil
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return Ref{Pathway: s}, nil
	}
	return Ref{Pathway: s[:i], Module: n}, nil
}

// Status records what happened to a unit in a batch
type Status string

const (
	StatusTested    Status = "tested"
	StatusSkipped   Status = "skipped"
	StatusFitFailed Status = "fit_failed"
)

// StatusFor classifies a unit error
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusTested
	case core.IsModelFitError(err):
		return StatusFitFailed
	default:
		return StatusSkipped
	}
}

// Result is one tested unit
type Result struct {
	Ref              Ref                `json:"unit"`
	Genes            []string           `json:"genes"`
	Covariates       []string           `json:"covariates"`
	Omics            []string           `json:"omics"`
	DroppedOmics     []string           `json:"dropped_omics,omitempty"`
	Fit              *stats.Fit         `json:"fit"`
	PValue           float64            `json:"p_value"`
	CovariatePValues map[string]float64 `json:"covariate_p_values"`
}

// ID returns the result's unit identifier
func (r *Result) ID() ID { return r.Ref.ID() }

// Failure is a unit that was not ranked, kept for audit
type Failure struct {
	Unit   ID     `json:"unit"`
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

// BatchResult collects a batch run. Order lists every attempted unit in
// input order; each one is either in Units or in Failures.
type BatchResult struct {
	Units    map[ID]*Result `json:"units"`
	Order    []ID           `json:"order"`
	Failures []Failure      `json:"failures"`
}

// NewBatchResult creates an empty batch result
func NewBatchResult() *BatchResult {
	return &BatchResult{Units: make(map[ID]*Result)}
}

// Tested returns successful results in batch order
func (b *BatchResult) Tested() []*Result {
	out := make([]*Result, 0, len(b.Units))
	for _, id := range b.Order {
		if r, ok := b.Units[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Significant returns the tested units with p <= alpha, in batch order
func (b *BatchResult) Significant(alpha float64) []ID {
	var out []ID
	for _, r := range b.Tested() {
		if r.PValue <= alpha {
			out = append(out, r.ID())
		}
	}
	return out
}

// ResamplingResult counts, per unit, the iterations in which it stayed
// significant. Counts lie in [0, Iterations].
type ResamplingResult struct {
	SuccessCount     map[ID]int `json:"success_count"`
	Units            []ID       `json:"units"`
	Iterations       int        `json:"iterations"`
	DropPerIteration int        `json:"drop_per_iteration"`
	Alpha            float64    `json:"alpha"`
	Dropped          [][]string `json:"dropped,omitempty"`
}

// Count returns the success count for a unit and whether it was resampled
func (r *ResamplingResult) Count(id ID) (int, bool) {
	if r == nil {
		return 0, false
	}
	c, ok := r.SuccessCount[id]
	return c, ok
}

// StabilityScore is the fraction of iterations in which the unit stayed
// significant; zero when no iterations ran.
func (r *ResamplingResult) StabilityScore(id ID) float64 {
	c, ok := r.Count(id)
	if !ok || r.Iterations == 0 {
		return 0
	}
	return float64(c) / float64(r.Iterations)
}
