package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	evaluationsSheet = "Evaluations"
	comparisonsSheet = "Comparisons"
)

// EvaluationRow is one evaluated JD of a session.
type EvaluationRow struct {
	Position  string
	JDChars   int
	Truncated bool
	Result    string
}

// ComparisonRow is one scope comparison of a session.
type ComparisonRow struct {
	Position string
	Compared int
	Result   string
}

// Report is everything a session produced.
type Report struct {
	SessionID   string
	CreatedAt   time.Time
	Evaluations []EvaluationRow
	Comparisons []ComparisonRow
}

// Write saves r as an xlsx workbook and returns the final path. The .xlsx
// extension is added when missing.
func Write(path string, r Report) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("output path is required")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := Build(r)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	return path, nil
}

// Build renders r into a new workbook.
func Build(r Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", evaluationsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(comparisonsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create wrap style: %w", err)
	}

	evaluations := make([][]any, 0, len(r.Evaluations))
	for i, e := range r.Evaluations {
		evaluations = append(evaluations, []any{i + 1, e.Position, e.JDChars, e.Truncated, e.Result})
	}

	comparisons := make([][]any, 0, len(r.Comparisons))
	for i, c := range r.Comparisons {
		comparisons = append(comparisons, []any{i + 1, c.Position, c.Compared, c.Result})
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
		widths []float64
	}{
		{
			name:   evaluationsSheet,
			header: []any{"#", "Position", "JD characters", "Truncated", "Evaluation"},
			rows:   evaluations,
			widths: []float64{5, 30, 14, 10, 100},
		},
		{
			name:   comparisonsSheet,
			header: []any{"#", "Position", "Compared with", "Comparison"},
			rows:   comparisons,
			widths: []float64{5, 30, 14, 100},
		},
	}

	for _, sheet := range sheets {
		if err := writeSheet(f, sheet.name, sheet.header, sheet.rows, sheet.widths, headerStyle, wrapStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s sheet: %w", sheet.name, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:       "JD evaluation session " + r.SessionID,
		Created:     r.CreatedAt.UTC().Format(time.RFC3339),
		Description: fmt.Sprintf("%d evaluations, %d comparisons", len(r.Evaluations), len(r.Comparisons)),
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any, widths []float64, headerStyle, wrapStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(rows) > 0 {
		bottom, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A2", bottom, wrapStyle); err != nil {
			return err
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	return nil
}
