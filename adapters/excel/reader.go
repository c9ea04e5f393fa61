package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader reads matrices and outcome annotations from Excel or CSV files.
// Excel input is read from Sheet, or the first sheet when Sheet is empty.
type DataReader struct {
	Sheet  string
	logger *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{logger: logger}
}

// ReadMatrix reads a genes x samples table: the header row names the samples
// after a leading label cell, every following row starts with a gene id
func (r *DataReader) ReadMatrix(path string) (omics.Matrix, error) {
	rows, err := r.readRows(path)
	if err != nil {
		return omics.Matrix{}, err
	}
	if len(rows) < 2 {
		return omics.Matrix{}, core.NewInvalidInputError(path, "need a header row and at least one gene row")
	}

	header := trimAll(rows[0])
	if len(header) < 2 {
		return omics.Matrix{}, core.NewInvalidInputError(path, "header has no sample columns")
	}
	m := omics.Matrix{Samples: header[1:]}
	for i, row := range rows[1:] {
		row = trimAll(row)
		if len(row) == 0 || (len(row) == 1 && row[0] == "") {
			continue
		}
		if len(row) != len(header) {
			return omics.Matrix{}, core.NewInvalidInputError(path, fmt.Sprintf("row %d has %d cells, want %d", i+2, len(row), len(header)))
		}
		values := make([]float64, len(row)-1)
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return omics.Matrix{}, core.NewInvalidInputError(path, fmt.Sprintf("gene %s sample %s: %q is not a number", row[0], header[j+1], cell))
			}
			values[j] = v
		}
		m.Genes = append(m.Genes, row[0])
		m.Values = append(m.Values, values)
	}
	r.logger.Debug("[DataReader] %s: %d genes x %d samples", path, m.NumGenes(), m.NumSamples())
	return m, nil
}

// ReadOutcome reads sample,time,event rows for survival outcomes or
// sample,label rows for two-class outcomes. The header row is skipped.
func (r *DataReader) ReadOutcome(path string, kind omics.OutcomeKind) (omics.Outcome, error) {
	rows, err := r.readRows(path)
	if err != nil {
		return omics.Outcome{}, err
	}
	if len(rows) < 2 {
		return omics.Outcome{}, core.NewInvalidInputError(path, "need a header row and at least one sample row")
	}

	var samples, labels []string
	var times []float64
	var events []bool
	for i, row := range rows[1:] {
		row = trimAll(row)
		if len(row) == 0 || row[0] == "" {
			continue
		}
		line := i + 2
		switch kind {
		case omics.OutcomeSurvival:
			if len(row) < 3 {
				return omics.Outcome{}, core.NewInvalidInputError(path, fmt.Sprintf("row %d: want sample,time,event", line))
			}
			t, err := strconv.ParseFloat(row[1], 64)
			if err != nil {
				return omics.Outcome{}, core.NewInvalidInputError(path, fmt.Sprintf("row %d: bad time %q", line, row[1]))
			}
			e, err := parseEvent(row[2])
			if err != nil {
				return omics.Outcome{}, core.NewInvalidInputError(path, fmt.Sprintf("row %d: %v", line, err))
			}
			times = append(times, t)
			events = append(events, e)
		case omics.OutcomeTwoClass:
			if len(row) < 2 || row[1] == "" {
				return omics.Outcome{}, core.NewInvalidInputError(path, fmt.Sprintf("row %d: want sample,label", line))
			}
			labels = append(labels, row[1])
		default:
			return omics.Outcome{}, core.NewInvalidInputError("outcome", "unknown outcome kind "+string(kind))
		}
		samples = append(samples, row[0])
	}

	if kind == omics.OutcomeSurvival {
		return omics.NewSurvivalOutcome(samples, times, events), nil
	}
	return omics.NewTwoClassOutcome(samples, labels), nil
}

// parseEvent accepts 1/0, true/false and dead/alive style codings
func parseEvent(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "dead", "deceased", "event":
		return true, nil
	case "0", "false", "f", "no", "alive", "living", "censored":
		return false, nil
	}
	return false, fmt.Errorf("bad event %q", s)
}

func (r *DataReader) readRows(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, core.NewInvalidInputError(path, "file not found")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readDelimited(path, ',')
	case ".tsv", ".txt":
		return readDelimited(path, '\t')
	case ".xlsx", ".xlsm":
		return r.readExcel(path)
	}
	return nil, core.NewInvalidInputError(path, "unsupported file type (want .csv, .tsv or .xlsx)")
}

func (r *DataReader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.NewInvalidInputError(path, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	return rows, nil
}

func readDelimited(path string, sep rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
