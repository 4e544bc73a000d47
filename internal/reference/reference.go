package reference

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FactorCount is the number of factors the rubric grades.
const FactorCount = 12

// Ratings lists the rubric grades in ascending order.
var Ratings = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

// Field selects which text of a reference evaluation feeds the similarity corpus.
type Field string

const (
	FieldJobTitle    Field = "job_title"
	FieldSummaryNote Field = "summary_note"
)

// ParseField validates a configured corpus field. Empty input selects FieldJobTitle.
func ParseField(s string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(s))) {
	case "", FieldJobTitle:
		return FieldJobTitle, nil
	case FieldSummaryNote:
		return FieldSummaryNote, nil
	default:
		return "", fmt.Errorf("unsupported corpus field %q (use %s or %s)", s, FieldJobTitle, FieldSummaryNote)
	}
}

// Evaluation is one historically scored JD.
type Evaluation struct {
	JobTitle    string            `json:"job_title"`
	Factors     map[string]string `json:"factors"`
	SummaryNote string            `json:"summary_note,omitempty"`
}

// Text returns the evaluation text used for the given corpus field.
func (e Evaluation) Text(field Field) string {
	if field == FieldSummaryNote {
		return e.SummaryNote
	}
	return e.JobTitle
}

// FactorsJSON serialises the factors with sorted keys and without HTML escaping.
func (e Evaluation) FactorsJSON() string {
	factors := e.Factors
	if factors == nil {
		factors = map[string]string{}
	}

	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(factors); err != nil {
		return "{}"
	}

	return strings.TrimSpace(b.String())
}

// IsRating reports whether label is one of the rubric grades.
func IsRating(label string) bool {
	label = strings.TrimSpace(label)
	for _, r := range Ratings {
		if r == label {
			return true
		}
	}
	return false
}

// Dataset is the immutable, ordered reference set.
type Dataset struct {
	items       []Evaluation
	fingerprint string
}

// NewDataset copies items and computes the dataset fingerprint.
func NewDataset(items []Evaluation) *Dataset {
	copied := make([]Evaluation, len(items))
	copy(copied, items)

	return &Dataset{
		items:       copied,
		fingerprint: fingerprint(copied),
	}
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

// At returns the evaluation at position i of the original order.
func (d *Dataset) At(i int) Evaluation {
	return d.items[i]
}

// Texts returns the corpus texts in dataset order.
func (d *Dataset) Texts(field Field) []string {
	if d == nil {
		return nil
	}

	texts := make([]string, 0, len(d.items))
	for _, item := range d.items {
		texts = append(texts, item.Text(field))
	}
	return texts
}

// Fingerprint identifies the dataset content. Two datasets with identical
// records in identical order share a fingerprint.
func (d *Dataset) Fingerprint() string {
	if d == nil {
		return fingerprint(nil)
	}
	return d.fingerprint
}

// Warnings lists records that deviate from the rubric shape.
func (d *Dataset) Warnings() []string {
	if d == nil {
		return nil
	}

	var warnings []string
	for i, item := range d.items {
		title := strings.TrimSpace(item.JobTitle)
		if title == "" {
			warnings = append(warnings, fmt.Sprintf("record %d: job_title is empty", i))
			title = fmt.Sprintf("#%d", i)
		}

		if len(item.Factors) != FactorCount {
			warnings = append(warnings, fmt.Sprintf("record %s: expected %d factors, got %d", title, FactorCount, len(item.Factors)))
		}

		names := make([]string, 0, len(item.Factors))
		for name := range item.Factors {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !IsRating(item.Factors[name]) {
				warnings = append(warnings, fmt.Sprintf("record %s: factor %q has rating %q outside A..J", title, name, item.Factors[name]))
			}
		}
	}

	return warnings
}

func fingerprint(items []Evaluation) string {
	h := sha256.New()
	for _, item := range items {
		// encoding/json sorts map keys, so the encoding is canonical.
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		h.Write(b)
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
