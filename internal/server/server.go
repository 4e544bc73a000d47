package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/ai"
	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/document"
	"github.com/spigell/jd-evaluator/internal/evaluation"
	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/prompt"
	"github.com/spigell/jd-evaluator/internal/session"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

// Config holds the server collaborators.
type Config struct {
	Service     *evaluation.Service
	Registry    *session.Registry
	AutoCompare bool
	// MaxUploadBytes bounds the request body. Zero selects 10 MiB.
	MaxUploadBytes int
	Logger         *zap.Logger
}

type handler struct {
	service     *evaluation.Service
	registry    *session.Registry
	autoCompare bool
	logger      *zap.Logger
}

// New builds the HTTP app:
//
//	POST /sessions                 start a session
//	POST /sessions/:id/evaluate    multipart: position, file (or jd text)
//	POST /sessions/:id/compare     compare the latest JD with earlier ones
//	GET  /sessions/:id/history     evaluated JDs in order
func New(cfg Config) (*fiber.App, error) {
	if cfg.Service == nil {
		return nil, errors.New("evaluation service is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = session.NewRegistry()
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	bodyLimit := cfg.MaxUploadBytes
	if bodyLimit <= 0 {
		bodyLimit = defaultMaxUploadBytes
	}

	h := &handler{
		service:     cfg.Service,
		registry:    registry,
		autoCompare: cfg.AutoCompare,
		logger:      log,
	}

	app := fiber.New(fiber.Config{
		AppName:               "jd-evaluator",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		// form values end up in session history and must outlive the request
		Immutable: true,
	})

	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"sessions": registry.Len(),
			"time":     time.Now(),
		})
	})

	sessions := app.Group("/sessions")
	sessions.Post("/", h.createSession)
	sessions.Post("/:id/evaluate", h.evaluate)
	sessions.Post("/:id/compare", h.compare)
	sessions.Get("/:id/history", h.history)

	return app, nil
}

func (h *handler) createSession(c *fiber.Ctx) error {
	sess := h.registry.Create()
	h.logger.Info("session created", zap.String(logger.FieldSession, sess.ID))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

type referenceView struct {
	JobTitle string  `json:"job_title"`
	Score    float64 `json:"score"`
}

type comparisonView struct {
	Text      string `json:"text"`
	Compared  int    `json:"compared"`
	Truncated bool   `json:"truncated"`
}

type evaluationView struct {
	SessionID           string          `json:"session_id"`
	Position            string          `json:"position"`
	Evaluation          string          `json:"evaluation"`
	Truncated           bool            `json:"truncated"`
	OriginalChars       int             `json:"original_chars"`
	References          []referenceView `json:"references"`
	ReferencesTruncated bool            `json:"references_truncated"`
	Comparison          *comparisonView `json:"comparison,omitempty"`
	ComparisonError     string          `json:"comparison_error,omitempty"`
}

func (h *handler) evaluate(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	position := c.FormValue("position")

	text, err := jdText(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()

	var (
		result  *evaluation.Result
		outcome *evaluation.Outcome
	)
	if h.autoCompare {
		outcome, err = h.service.EvaluateAndCompare(ctx, sess, position, text)
		if err != nil {
			return err
		}
		result = outcome.Result
	} else {
		result, err = h.service.Evaluate(ctx, sess, position, text)
		if err != nil {
			return err
		}
	}

	view := evaluationView{
		SessionID:           sess.ID,
		Position:            result.Submission.Position,
		Evaluation:          result.Text,
		Truncated:           result.Submission.Truncated,
		OriginalChars:       result.Submission.OriginalChars,
		References:          make([]referenceView, 0, len(result.References)),
		ReferencesTruncated: result.ReferencesTruncated,
	}
	for _, m := range result.References {
		view.References = append(view.References, referenceView{JobTitle: m.Evaluation.JobTitle, Score: m.Score})
	}

	if outcome != nil {
		switch {
		case outcome.CompareErr != nil:
			h.logger.Error("scope comparison failed", zap.String(logger.FieldSession, sess.ID), zap.Error(outcome.CompareErr))
			view.ComparisonError = outcome.CompareErr.Error()
		case !outcome.Comparison.Skipped:
			view.Comparison = newComparisonView(outcome.Comparison)
		}
	}

	return c.JSON(view)
}

func (h *handler) compare(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	comparison, err := h.service.Compare(c.UserContext(), sess)
	if err != nil {
		return err
	}

	if comparison.Skipped {
		return c.JSON(fiber.Map{
			"session_id": sess.ID,
			"skipped":    true,
			"reason":     "at least two evaluated job descriptions are required",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"skipped":    false,
		"comparison": newComparisonView(comparison),
	})
}

func (h *handler) history(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"busy":       sess.Busy(),
		"entries":    sess.History.All(),
	})
}

func (h *handler) session(c *fiber.Ctx) (*session.Session, error) {
	id := c.Params("id")
	sess, ok := h.registry.Get(id)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("session %q not found", id))
	}
	return sess, nil
}

func newComparisonView(comparison *compare.Comparison) *comparisonView {
	return &comparisonView{
		Text:      comparison.Text,
		Compared:  comparison.Compared,
		Truncated: comparison.Truncated,
	}
}

// jdText reads the uploaded file field, or falls back to the jd form value.
func jdText(c *fiber.Ctx) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.FormValue("jd"), nil
	}

	f, err := fh.Open()
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("open upload: %v", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
	}

	return document.Read(fh.Filename, data)
}

// StatusFor maps an action error to an HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, prompt.ErrEmptyJD),
		errors.Is(err, prompt.ErrEmptyPosition),
		errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrEmptyDocument):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, ai.ErrQuotaExhausted):
		return fiber.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusBadGateway
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)

	body := fiber.Map{
		"error": err.Error(),
		"code":  code,
	}
	if code == fiber.StatusTooManyRequests {
		body["hint"] = ai.QuotaHint
	}

	return c.Status(code).JSON(body)
}
