package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/jd-evaluator/internal/similarity"
	"github.com/spigell/jd-evaluator/internal/utils"
)

const (
	// DefaultMaxJDChars caps the JD text used for retrieval and in the prompt.
	DefaultMaxJDChars = 25000
	// DefaultMaxReferenceChars caps the serialised reference block.
	DefaultMaxReferenceChars = 12000

	referencesIntro = "Below are JDs that have already been evaluated with the PwC methodology:"
	outputShape     = "Evaluate the new JD with the PwC methodology (12 factors, graded from A to J).\n" +
		"Return the result as a table with one row per factor.\n" +
		"If the JD lacks information for a factor, write \"Missing data\" for that factor and state the minimal assumption you made."
	separator     = "---"
	untitledEntry = "(no title)"
)

var (
	// ErrEmptyJD is returned when the JD text is blank after trimming.
	ErrEmptyJD = errors.New("job description is empty")
	// ErrEmptyPosition is returned when no position name is provided.
	ErrEmptyPosition = errors.New("position is required")
)

//go:embed rubric.md
var defaultRubric string

// DefaultRubric returns the built-in rubric template.
func DefaultRubric() string {
	return defaultRubric
}

// LoadRubric reads the rubric template from path, or returns the built-in
// template when path is empty.
func LoadRubric(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultRubric, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read rubric template: %w", err)
	}

	rubric := strings.TrimSpace(string(data))
	if rubric == "" {
		return "", fmt.Errorf("rubric template %q is empty", path)
	}

	return rubric, nil
}

// Limits are hard character caps applied while composing.
type Limits struct {
	JDChars        int
	ReferenceChars int
}

func (l Limits) withDefaults() Limits {
	if l.JDChars <= 0 {
		l.JDChars = DefaultMaxJDChars
	}
	if l.ReferenceChars <= 0 {
		l.ReferenceChars = DefaultMaxReferenceChars
	}
	return l
}

// Input carries everything that ends up in one evaluation prompt.
type Input struct {
	Position   string
	JD         string
	References []similarity.Match
}

// Composed is a prompt ready for a single generation call.
type Composed struct {
	Text string
	// ReferencesTruncated reports that the reference block hit its cap.
	ReferencesTruncated bool
}

// Composer assembles bounded evaluation prompts.
type Composer struct {
	rubric string
	limits Limits
}

func NewComposer(rubric string, limits Limits) *Composer {
	if strings.TrimSpace(rubric) == "" {
		rubric = defaultRubric
	}

	return &Composer{
		rubric: strings.TrimSpace(rubric),
		limits: limits.withDefaults(),
	}
}

// Limits returns the effective caps.
func (c *Composer) Limits() Limits {
	return c.limits
}

// TruncateJD trims the JD text and applies the JD cap. The returned flag
// reports whether characters were dropped.
func (c *Composer) TruncateJD(text string) (string, bool) {
	return utils.Truncate(strings.TrimSpace(text), c.limits.JDChars)
}

// ReferenceBlock serialises matches as "<title>: <factors JSON>" lines and
// caps the result.
func (c *Composer) ReferenceBlock(matches []similarity.Match) (string, bool) {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		title := strings.TrimSpace(m.Evaluation.JobTitle)
		if title == "" {
			title = untitledEntry
		}
		lines = append(lines, fmt.Sprintf("%s: %s", title, m.Evaluation.FactorsJSON()))
	}

	return utils.Truncate(strings.Join(lines, "\n"), c.limits.ReferenceChars)
}

// Compose builds the evaluation prompt. It never calls the model.
func (c *Composer) Compose(in Input) (*Composed, error) {
	position := strings.TrimSpace(in.Position)
	if position == "" {
		return nil, ErrEmptyPosition
	}

	jd, _ := c.TruncateJD(in.JD)
	if jd == "" {
		return nil, ErrEmptyJD
	}

	references, truncated := c.ReferenceBlock(in.References)

	var b strings.Builder
	b.WriteString(c.rubric)
	b.WriteString("\n\n")
	b.WriteString(referencesIntro)
	b.WriteString("\n\n")
	b.WriteString(references)
	b.WriteString("\n\n")
	b.WriteString(outputShape)
	b.WriteString("\n\n")
	b.WriteString(separator)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Position: %s\n\n", position)
	b.WriteString("New JD:\n")
	b.WriteString(jd)

	return &Composed{
		Text:                strings.TrimSpace(b.String()),
		ReferencesTruncated: truncated,
	}, nil
}
