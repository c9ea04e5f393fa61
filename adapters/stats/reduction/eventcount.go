package reduction

import (
	"math"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	domain "omicpath/domain/reduction"
)

// EventCountStrategy counts, per sample, the qualifying genes that carry an
// event (a mutation, or a copy-number state beyond the threshold).
type EventCountStrategy struct{}

// NewEventCountStrategy creates the event-count strategy
func NewEventCountStrategy() *EventCountStrategy { return &EventCountStrategy{} }

func (s *EventCountStrategy) Method() domain.Method { return domain.MethodEventCount }

type eventRule struct {
	suffix string
	hit    func(v, thr float64) bool
}

var (
	anyEvent  = eventRule{"Count", func(v, thr float64) bool { return math.Abs(v) >= thr }}
	gainEvent = eventRule{"Gain", func(v, thr float64) bool { return v >= thr }}
	lossEvent = eventRule{"Loss", func(v, thr float64) bool { return v <= -thr }}
)

// Reduce returns <omic>Count, or <omic>Gain / <omic>Loss when directional.
// A gene only counts when at least MinProportion of samples carry its event.
func (s *EventCountStrategy) Reduce(omic string, sub omics.Matrix, params domain.Params, _ *domain.Topology) ([]domain.Covariate, error) {
	if sub.NumGenes() == 0 {
		return nil, core.NewInsufficientDataError(omic, "no genes in unit")
	}
	n := sub.NumSamples()
	if n == 0 {
		return nil, core.NewInsufficientDataError(omic, "no samples")
	}

	rules := []eventRule{anyEvent}
	if params.Directional {
		rules = []eventRule{gainEvent, lossEvent}
	}

	var out []domain.Covariate
	for _, rule := range rules {
		counts := make([]float64, n)
		qualifying := 0
		for _, row := range sub.Values {
			hits := 0
			for _, v := range row {
				if rule.hit(v, params.EventThreshold) {
					hits++
				}
			}
			if hits == 0 || float64(hits)/float64(n) < params.MinProportion {
				continue
			}
			qualifying++
			for j, v := range row {
				if rule.hit(v, params.EventThreshold) {
					counts[j]++
				}
			}
		}
		if qualifying == 0 || isConstant(counts) {
			continue
		}
		out = append(out, domain.Covariate{Name: omic + rule.suffix, Omic: omic, Values: counts})
	}
	if len(out) == 0 {
		return nil, core.NewInsufficientDataError(omic, "no qualifying events")
	}
	return out, nil
}
