package evaluation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/ai"
	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/prompt"
	"github.com/spigell/jd-evaluator/internal/session"
	"github.com/spigell/jd-evaluator/internal/similarity"
	"github.com/spigell/jd-evaluator/internal/utils"
)

// Submission is a validated JD ready for evaluation.
type Submission struct {
	Position string
	// Content is the trimmed JD text after the character cap.
	Content string
	// OriginalChars is the trimmed length before the cap.
	OriginalChars int
	Truncated     bool
}

// Result is the outcome of one evaluation action.
type Result struct {
	Submission          *Submission
	Text                string
	References          []similarity.Match
	ReferencesTruncated bool
}

// Deps are the collaborators of the Service.
type Deps struct {
	Retriever  *similarity.Retriever
	Composer   *prompt.Composer
	Generator  ai.Generator
	Comparator *compare.Comparator
	Logger     *zap.Logger
}

// Service runs evaluation and comparison actions for sessions.
type Service struct {
	retriever  *similarity.Retriever
	composer   *prompt.Composer
	generator  ai.Generator
	comparator *compare.Comparator
	topK       int
	logger     *zap.Logger
}

func New(deps Deps, topK int) (*Service, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if deps.Composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	if topK <= 0 {
		topK = similarity.DefaultTopK
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	comparator := deps.Comparator
	if comparator == nil {
		comparator = compare.New(deps.Generator, compare.Limits{}, log)
	}

	return &Service{
		retriever:  deps.Retriever,
		composer:   deps.Composer,
		generator:  deps.Generator,
		comparator: comparator,
		topK:       topK,
		logger:     log,
	}, nil
}

// NewSubmission validates and bounds user input. It fails with
// prompt.ErrEmptyPosition or prompt.ErrEmptyJD before any model call.
func (s *Service) NewSubmission(position, content string) (*Submission, error) {
	position = strings.TrimSpace(position)
	if position == "" {
		return nil, prompt.ErrEmptyPosition
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, prompt.ErrEmptyJD
	}

	bounded, truncated := s.composer.TruncateJD(trimmed)

	return &Submission{
		Position:      position,
		Content:       bounded,
		OriginalChars: utils.Length(trimmed),
		Truncated:     truncated,
	}, nil
}

// Evaluate runs one evaluation action: retrieve references, compose the
// prompt and issue exactly one generation request. On success the
// submission is appended to the session history.
func (s *Service) Evaluate(ctx context.Context, sess *session.Session, position, content string) (*Result, error) {
	release, err := sess.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.evaluate(ctx, sess, position, content)
}

// Outcome is an evaluation followed by a scope comparison.
type Outcome struct {
	Result     *Result
	Comparison *compare.Comparison
	// CompareErr is set when the evaluation succeeded but the comparison
	// failed. The evaluation is kept in history either way.
	CompareErr error
}

// EvaluateAndCompare runs an evaluation and then a scope comparison as two
// actions under one hold of the session, so the comparison always sees the
// JD that was just evaluated as the latest entry.
func (s *Service) EvaluateAndCompare(ctx context.Context, sess *session.Session, position, content string) (*Outcome, error) {
	release, err := sess.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.evaluate(ctx, sess, position, content)
	if err != nil {
		return nil, err
	}

	comparison, err := s.compare(ctx, sess)
	if err != nil {
		return &Outcome{Result: result, CompareErr: err}, nil
	}

	return &Outcome{Result: result, Comparison: comparison}, nil
}

func (s *Service) evaluate(ctx context.Context, sess *session.Session, position, content string) (*Result, error) {
	log := logger.WithFields(s.logger, logger.SessionFields(sess.ID, position)...)

	sub, err := s.NewSubmission(position, content)
	if err != nil {
		return nil, err
	}

	if sub.Truncated {
		log.Warn("job description truncated",
			zap.Int("original_chars", sub.OriginalChars),
			zap.Int("max_chars", s.composer.Limits().JDChars),
		)
	}

	matches := s.retriever.TopK(sub.Content, s.topK)
	log.Debug("similar reference evaluations",
		zap.Int("count", len(matches)),
		zap.String("corpus_field", string(s.retriever.Field())),
	)

	composed, err := s.composer.Compose(prompt.Input{
		Position:   sub.Position,
		JD:         sub.Content,
		References: matches,
	})
	if err != nil {
		return nil, err
	}

	if composed.ReferencesTruncated {
		log.Warn("reference context truncated", zap.Int("max_chars", s.composer.Limits().ReferenceChars))
	}

	log.Info("evaluating job description", zap.Int("jd_chars", utils.Length(sub.Content)))

	text, err := s.generator.GenerateContent(ctx, composed.Text)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", sub.Position, err)
	}

	sess.History.Append(session.Entry{Position: sub.Position, Content: sub.Content})

	log.Info("job description evaluated",
		zap.Int("response_chars", utils.Length(text)),
		zap.Int("history_size", sess.History.Len()),
	)

	return &Result{
		Submission:          sub,
		Text:                text,
		References:          matches,
		ReferencesTruncated: composed.ReferencesTruncated,
	}, nil
}

// Compare runs one scope comparison action for the session. It is skipped
// while the session has fewer than two evaluated JDs.
func (s *Service) Compare(ctx context.Context, sess *session.Session) (*compare.Comparison, error) {
	release, err := sess.Begin()
	if err != nil {
		return nil, err
	}
	defer release()

	return s.compare(ctx, sess)
}

func (s *Service) compare(ctx context.Context, sess *session.Session) (*compare.Comparison, error) {
	result, err := s.comparator.Compare(ctx, sess.History)
	if err != nil {
		return nil, err
	}

	if !result.Skipped {
		s.logger.Info("scope comparison completed",
			zap.String(logger.FieldSession, sess.ID),
			zap.Int("compared_entries", result.Compared),
		)
	}

	return result, nil
}
