package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/jd-evaluator/internal/ai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu      sync.Mutex
	queue   []fakeResponse
	prompts []string
	models  []string
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.models = append(f.models, model)
	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func (f *fakeModels) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.models)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

var quotaErr = genai.APIError{
	Code:    http.StatusTooManyRequests,
	Status:  "RESOURCE_EXHAUSTED",
	Message: "quota exceeded",
}

func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()

	var delays []time.Duration
	original := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })

	return &delays
}

func TestGeneratorRetriesOnRateLimit(t *testing.T) {
	delays := recordSleeps(t)

	models := &fakeModels{}
	models.enqueue(nil, quotaErr)
	models.enqueue(nil, quotaErr)
	models.enqueue(nil, quotaErr)
	models.enqueue(textResponse("| Factor | Grade |"), nil)

	g := newGenerator(models, Config{Model: "gemini-pro", MaxRetries: 4}, zap.NewNop())

	output, err := g.GenerateContent(context.Background(), "  evaluate this  ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "| Factor | Grade |" {
		t.Fatalf("unexpected output: %q", output)
	}

	if models.calls() != 4 {
		t.Fatalf("expected 4 calls, got %d", models.calls())
	}
	for _, p := range models.prompts {
		if p != "evaluate this" {
			t.Fatalf("unexpected prompt: %q", p)
		}
	}
	for _, m := range models.models {
		if m != "gemini-pro" {
			t.Fatalf("unexpected model: %q", m)
		}
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *delays)
	}
	for i, d := range *delays {
		if d != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], d)
		}
		if i > 0 && d <= (*delays)[i-1] {
			t.Fatalf("backoff must strictly increase: %v", *delays)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	delays := recordSleeps(t)

	models := &fakeModels{}
	for i := 0; i < 5; i++ {
		models.enqueue(nil, quotaErr)
	}

	g := newGenerator(models, Config{MaxRetries: 4}, zap.NewNop())

	_, err := g.GenerateContent(context.Background(), "prompt")
	if !errors.Is(err, ai.ErrQuotaExhausted) {
		t.Fatalf("expected quota exhausted error, got %v", err)
	}

	var typed *ai.QuotaExhaustedError
	if !errors.As(err, &typed) || typed.Attempts != 4 {
		t.Fatalf("expected 4 attempts in error, got %+v", typed)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected the last rate-limit failure to be wrapped, got %v", err)
	}

	if models.calls() != 4 {
		t.Fatalf("expected exactly 4 calls, got %d", models.calls())
	}
	if len(*delays) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", *delays)
	}
}

func TestGeneratorDoesNotRetryOtherFailures(t *testing.T) {
	delays := recordSleeps(t)

	cases := map[string]error{
		"server error": genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"},
		"bad request":  genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"},
		"network":      errors.New("connection reset by peer"),
	}

	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			models := &fakeModels{}
			models.enqueue(nil, failure)

			g := newGenerator(models, Config{MaxRetries: 4}, zap.NewNop())

			_, err := g.GenerateContent(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ai.ErrQuotaExhausted) {
				t.Fatalf("unexpected quota classification: %v", err)
			}
			if !strings.Contains(err.Error(), failure.Error()) {
				t.Fatalf("expected underlying error message, got %v", err)
			}
			if models.calls() != 1 {
				t.Fatalf("expected single call, got %d", models.calls())
			}
		})
	}

	if len(*delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", *delays)
	}
}

func TestGeneratorEmptyResponseIsNotAnError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(&genai.GenerateContentResponse{}, nil)

	g := newGenerator(models, Config{}, zap.NewNop())

	output, err := g.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "" {
		t.Fatalf("expected empty output, got %q", output)
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{}
	g := newGenerator(models, Config{}, zap.NewNop())

	if _, err := g.GenerateContent(context.Background(), " \n "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if models.calls() != 0 {
		t.Fatalf("expected no calls, got %d", models.calls())
	}
}

func TestGeneratorStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	original := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { sleep = original })

	models := &fakeModels{}
	models.enqueue(nil, quotaErr)
	models.enqueue(textResponse("never"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newGenerator(models, Config{MaxRetries: 4}, zap.NewNop())
	_, err := g.GenerateContent(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if models.calls() != 1 {
		t.Fatalf("expected a single call, got %d", models.calls())
	}
}

func TestGeneratorDefaults(t *testing.T) {
	g := newGenerator(&fakeModels{}, Config{}, nil)

	if g.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
	if g.maxRetries != defaultMaxRetries {
		t.Fatalf("expected default retries, got %d", g.maxRetries)
	}
	if g.limiter != nil {
		t.Fatal("expected pacing disabled by default")
	}

	paced := newGenerator(&fakeModels{}, Config{RequestsPerMinute: 30}, nil)
	if paced.limiter == nil {
		t.Fatal("expected limiter when requests per minute is set")
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), Config{APIKey: "  "}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			nil,
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: " first "},
				nil,
				{Text: "   "},
				{Text: "second"},
			}}},
		},
	}

	if got := responseText(resp); got != "first\nsecond" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Fatalf("expected empty text for nil response, got %q", got)
	}
}
