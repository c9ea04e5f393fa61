package ports

import (
	"omicpath/domain/omics"
	"omicpath/domain/report"
)

// MatrixReader loads a genes x samples matrix. The first column holds gene
// ids and the header row holds sample ids.
type MatrixReader interface {
	ReadMatrix(path string) (omics.Matrix, error)
}

// OutcomeReader loads a survival (sample, time, event) or two-class
// (sample, label) annotation
type OutcomeReader interface {
	ReadOutcome(path string, kind omics.OutcomeKind) (omics.Outcome, error)
}

// ReportWriter exports a ranked report to a file
type ReportWriter interface {
	WriteReport(path string, r *report.Report) error
}
