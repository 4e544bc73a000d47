package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// binarySampleSize is the number of bytes sampled for binary detection.
	binarySampleSize = 1000
	// binaryThreshold is the share of control bytes that marks data as binary.
	binaryThreshold = 0.3
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a reader.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when no text could be extracted.
	ErrEmptyDocument = errors.New("document is empty or unreadable")
)

// Format is a supported document type.
type Format string

const (
	FormatDOCX Format = ".docx"
	FormatTXT  Format = ".txt"
	FormatPDF  Format = ".pdf"
)

// Formats lists supported formats in the order they are offered to users.
var Formats = []Format{FormatDOCX, FormatTXT, FormatPDF}

// DetectFormat picks the reader by file extension.
func DetectFormat(name string) (Format, error) {
	ext := Format(strings.ToLower(filepath.Ext(strings.TrimSpace(name))))
	for _, f := range Formats {
		if f == ext {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Read extracts plain text from data, choosing the reader by name.
func Read(name string, data []byte) (string, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case FormatDOCX:
		text, err = readDOCX(data)
	case FormatPDF:
		text, err = readPDF(data)
	default:
		text, err = readTXT(data)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("read %s: %w", name, ErrEmptyDocument)
	}

	return text, nil
}

// ReadFile extracts plain text from the file at path.
func ReadFile(path string) (string, error) {
	if _, err := DetectFormat(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}

	return Read(filepath.Base(path), data)
}

func readTXT(data []byte) (string, error) {
	if isBinary(data) {
		return "", fmt.Errorf("content looks binary: %w", ErrEmptyDocument)
	}

	text := strings.ToValidUTF8(string(data), "")
	return strings.TrimPrefix(text, "\ufeff"), nil
}

// isBinary reports whether data looks like a PDF/ZIP container or contains
// a high share of control bytes.
func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	if strings.HasPrefix(string(data[:min(len(data), 5)]), "%PDF-") {
		return true
	}

	if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
		return true
	}

	sample := data[:min(binarySampleSize, len(data))]
	control := 0
	for _, ch := range sample {
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			control++
		}
	}

	return float64(control)/float64(len(sample)) > binaryThreshold
}
