package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/jd-evaluator/internal/ai"
	"github.com/spigell/jd-evaluator/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel        = "gemini-2.0-flash"
	defaultMaxRetries   = 4
	defaultMaxLogLength = 200
	baseDelay           = time.Second
	statusQuotaExceeded = "RESOURCE_EXHAUSTED"
)

// sleep waits between attempts; tests replace it.
var sleep = utils.WaitFor

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures a Generator.
type Config struct {
	APIKey string
	Model  string
	// MaxRetries is the total number of attempts made while the provider
	// reports rate limiting.
	MaxRetries int
	// RequestsPerMinute paces attempts on the client side. Zero disables pacing.
	RequestsPerMinute float64
	MaxLogLength      int
}

// Generator sends prompts to Gemini. Rate-limited attempts are retried with
// exponential backoff; every other failure is returned immediately.
type Generator struct {
	models     contentModels
	model      string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxLogLen  int
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentModels, cfg Config, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:     models,
		model:      model,
		maxRetries: maxRetries,
		limiter:    limiter,
		logger:     logger,
		maxLogLen:  maxLogLen,
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// outcome classifies a single attempt.
type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeRateLimited
	outcomeFailed
)

type attempt struct {
	text    string
	outcome outcome
	err     error
}

// GenerateContent sends prompt to Gemini and returns the response text. A
// response without text yields an empty string. When every attempt is rate
// limited the error is an *ai.QuotaExhaustedError.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	var last attempt
	for i := 0; i < g.maxRetries; i++ {
		if i > 0 {
			delay := backoff(i - 1)
			g.logger.Warn("gemini rate limited, backing off",
				zap.Int("attempt", i),
				zap.Int("max_attempts", g.maxRetries),
				zap.Duration("delay", delay),
				zap.Error(last.err),
			)
			if err := sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("wait before retry: %w", err)
			}
		}

		last = g.try(ctx, prompt)

		switch last.outcome {
		case outcomeSucceeded:
			g.logger.Debug("gemini generate content response",
				zap.Int("attempt", i+1),
				zap.Int("response_length", utf8.RuneCountInString(last.text)),
				zap.String("response_preview", utils.TruncateForLog(last.text, g.maxLogLen)),
			)
			return last.text, nil
		case outcomeFailed:
			return "", last.err
		}
	}

	return "", &ai.QuotaExhaustedError{Attempts: g.maxRetries, Err: last.err}
}

func (g *Generator) try(ctx context.Context, prompt string) attempt {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return attempt{outcome: outcomeFailed, err: fmt.Errorf("wait for rate limiter: %w", err)}
		}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimited(err) {
			return attempt{outcome: outcomeRateLimited, err: err}
		}
		return attempt{outcome: outcomeFailed, err: fmt.Errorf("generate content: %w", err)}
	}

	return attempt{outcome: outcomeSucceeded, text: responseText(resp)}
}

// backoff returns the delay after the n-th (0-based) rate-limited attempt:
// 1s, 2s, 4s and so on.
func backoff(n int) time.Duration {
	return baseDelay << n
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, statusQuotaExceeded)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErrPtr.Status, statusQuotaExceeded)
	}

	return false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
