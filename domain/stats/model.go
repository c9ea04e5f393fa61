package stats

// ModelKind enumerates the association models
type ModelKind string

const (
	ModelCox      ModelKind = "cox"
	ModelLogistic ModelKind = "logistic"
)

// Coefficient is one covariate's estimate and Wald test
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdError float64 `json:"std_error"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
}

// Fit is a converged association model with its likelihood-ratio test
// against the null model
type Fit struct {
	Kind         ModelKind     `json:"kind"`
	Coefficients []Coefficient `json:"coefficients"`
	LogLik       float64       `json:"log_lik"`
	NullLogLik   float64       `json:"null_log_lik"`
	LRStatistic  float64       `json:"lr_statistic"`
	DF           int           `json:"df"`
	PValue       float64       `json:"p_value"`
	Iterations   int           `json:"iterations"`
	N            int           `json:"n"`
}

// CovariatePValues returns Wald p-values keyed by covariate name
func (f *Fit) CovariatePValues() map[string]float64 {
	out := make(map[string]float64, len(f.Coefficients))
	for _, c := range f.Coefficients {
		out[c.Name] = c.PValue
	}
	return out
}
