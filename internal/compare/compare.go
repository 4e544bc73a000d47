package compare

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/ai"
	"github.com/spigell/jd-evaluator/internal/session"
	"github.com/spigell/jd-evaluator/internal/utils"
)

const (
	DefaultMaxEntryChars = 12000
	DefaultMaxTotalChars = 35000

	header      = "Compare the job scope of the following description with the descriptions analysed earlier."
	instruction = "List the similar positions, an estimated similarity percentage for each, and the reasons for the similarity."
)

// Limits are hard character caps for the comparison prompt.
type Limits struct {
	EntryChars int
	TotalChars int
}

// Comparison is the outcome of one compare action.
type Comparison struct {
	// Skipped is set when the history holds no earlier entry.
	Skipped bool
	Text    string
	// Compared is the number of earlier entries included.
	Compared  int
	Truncated bool
}

// Comparator contrasts the latest JD of a session with all earlier ones.
type Comparator struct {
	generator ai.Generator
	limits    Limits
	logger    *zap.Logger
}

func New(generator ai.Generator, limits Limits, logger *zap.Logger) *Comparator {
	if limits.EntryChars <= 0 {
		limits.EntryChars = DefaultMaxEntryChars
	}
	if limits.TotalChars <= 0 {
		limits.TotalChars = DefaultMaxTotalChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Comparator{
		generator: generator,
		limits:    limits,
		logger:    logger,
	}
}

// Compare issues one generation call when history has at least two
// entries, and skips otherwise. history is only read.
func (c *Comparator) Compare(ctx context.Context, history *session.History) (*Comparison, error) {
	current, previous, ok := history.Prior()
	if !ok {
		c.logger.Debug("skipping scope comparison", zap.String("reason", "no earlier entries in session"))
		return &Comparison{Skipped: true}, nil
	}

	prompt, truncated := c.BuildPrompt(current, previous)
	if truncated {
		c.logger.Warn("scope comparison prompt truncated", zap.Int("max_chars", c.limits.TotalChars))
	}

	text, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("compare scope: %w", err)
	}

	return &Comparison{
		Text:      text,
		Compared:  len(previous),
		Truncated: truncated,
	}, nil
}

// BuildPrompt assembles the comparison prompt and applies the caps.
func (c *Comparator) BuildPrompt(current session.Entry, previous []session.Entry) (string, bool) {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "New JD (%s):\n%s\n\n", current.Position, current.Content)

	for _, past := range previous {
		content, _ := utils.Truncate(past.Content, c.limits.EntryChars)
		fmt.Fprintf(&b, "\n---\nPreviously evaluated JD (%s):\n%s\n", past.Position, content)
	}

	b.WriteString("\n\n")
	b.WriteString(instruction)

	return utils.Truncate(b.String(), c.limits.TotalChars)
}
