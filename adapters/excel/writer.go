package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"omicpath/domain/report"

	"github.com/xuri/excelize/v2"
)

// Sheet names of an exported report workbook
const (
	SheetReport   = "Report"
	SheetFailures = "Failures"
)

var reportHeaders = []string{
	"rank", "unit", "pathway", "module", "p_value", "adjusted_p_value",
	"success_count", "iterations", "omics", "covariates", "covariate_p_values",
}

// ReportWriter exports ranked reports as .xlsx (Report and Failures sheets)
// or .csv (ranked rows only)
type ReportWriter struct{}

// NewReportWriter creates a report writer
func NewReportWriter() *ReportWriter { return &ReportWriter{} }

// WriteReport picks the format from the file extension
func (w *ReportWriter) WriteReport(path string, r *report.Report) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCSV(path, r)
	case ".xlsx":
		return writeXLSX(path, r)
	}
	return fmt.Errorf("unsupported report format %q (want .xlsx or .csv)", filepath.Ext(path))
}

func reportRecords(r *report.Report) [][]interface{} {
	out := make([][]interface{}, 0, len(r.Rows))
	for _, row := range r.Rows {
		var success, iterations interface{} = "", ""
		if row.SuccessCount != nil {
			success, iterations = *row.SuccessCount, row.Iterations
		}
		out = append(out, []interface{}{
			row.Rank, string(row.Unit), row.Pathway, row.Module, row.PValue, row.AdjustedPValue,
			success, iterations, strings.Join(row.Omics, ";"), strings.Join(row.Covariates, ";"),
			formatPValues(row.CovariatePValues),
		})
	}
	return out
}

// formatPValues renders name=p pairs in name order
func formatPValues(ps map[string]float64) string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + strconv.FormatFloat(ps[n], 'g', 6, 64)
	}
	return strings.Join(parts, ";")
}

func writeXLSX(path string, r *report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetReport)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := writeSheet(f, SheetReport, reportHeaders, reportRecords(r)); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetFailures); err != nil {
		return err
	}
	failures := make([][]interface{}, len(r.Failures))
	for i, fl := range r.Failures {
		failures[i] = []interface{}{string(fl.Unit), string(fl.Status), fl.Reason}
	}
	if err := writeSheet(f, SheetFailures, []string{"unit", "status", "reason"}, failures); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCSV(path string, r *report.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(reportHeaders); err != nil {
		return err
	}
	for _, rec := range reportRecords(r) {
		cells := make([]string, len(rec))
		for i, v := range rec {
			switch x := v.(type) {
			case float64:
				cells[i] = strconv.FormatFloat(x, 'g', -1, 64)
			default:
				cells[i] = fmt.Sprint(x)
			}
		}
		if err := w.Write(cells); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
