package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func sampleReport() Report {
	return Report{
		SessionID: "session-1",
		CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		Evaluations: []EvaluationRow{
			{Position: "Backend Engineer", JDChars: 1200, Result: "| Knowledge | F |"},
			{Position: "Backend Developer", JDChars: 25000, Truncated: true, Result: "| Knowledge | E |"},
		},
		Comparisons: []ComparisonRow{
			{Position: "Backend Developer", Compared: 1, Result: "Backend Engineer: 85%"},
		},
	}
}

func TestWriteAddsExtension(t *testing.T) {
	path, err := Write(filepath.Join(t.TempDir(), "session"), sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasSuffix(path, ".xlsx") {
		t.Fatalf("expected .xlsx extension, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected workbook on disk: %v", err)
	}
}

func TestWriteContent(t *testing.T) {
	path, err := Write(filepath.Join(t.TempDir(), "session.xlsx"), sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(evaluationsSheet)
	if err != nil {
		t.Fatalf("read evaluations: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Position" || rows[2][1] != "Backend Developer" || rows[2][3] != "TRUE" {
		t.Fatalf("unexpected evaluation rows: %q", rows)
	}

	rows, err = f.GetRows(comparisonsSheet)
	if err != nil {
		t.Fatalf("read comparisons: %v", err)
	}
	if len(rows) != 2 || rows[1][3] != "Backend Engineer: 85%" {
		t.Fatalf("unexpected comparison rows: %q", rows)
	}
}

func TestWriteEmptyReport(t *testing.T) {
	path, err := Write(filepath.Join(t.TempDir(), "empty.xlsx"), Report{SessionID: "empty"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(evaluationsSheet)
	if err != nil {
		t.Fatalf("read evaluations: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestWriteRequiresPath(t *testing.T) {
	if _, err := Write("  ", sampleReport()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
