package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/session"
	"github.com/spigell/jd-evaluator/internal/utils"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestCompareSkipsShortHistory(t *testing.T) {
	stub := &stubGenerator{response: "unused"}
	c := New(stub, Limits{}, zap.NewNop())

	h := &session.History{}
	h.Append(session.Entry{Position: "Analyst", Content: "jd"})

	result, err := c.Compare(context.Background(), h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected comparison to be skipped")
	}
	if len(stub.prompts) != 0 {
		t.Fatalf("expected no generation calls, got %d", len(stub.prompts))
	}
}

func TestCompareSingleCall(t *testing.T) {
	stub := &stubGenerator{response: "Backend Engineer: 80%"}
	c := New(stub, Limits{}, zap.NewNop())

	h := &session.History{}
	h.Append(session.Entry{Position: "Backend Engineer", Content: "old jd"})
	h.Append(session.Entry{Position: "Backend Developer", Content: "new jd"})

	result, err := c.Compare(context.Background(), h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped || result.Text != "Backend Engineer: 80%" || result.Compared != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(stub.prompts) != 1 {
		t.Fatalf("expected exactly one generation call, got %d", len(stub.prompts))
	}
	if h.Len() != 2 {
		t.Fatalf("history must not change, got %d entries", h.Len())
	}

	prompt := stub.prompts[0]
	for _, part := range []string{
		header,
		"New JD (Backend Developer):\nnew jd",
		"\n---\nPreviously evaluated JD (Backend Engineer):\nold jd\n",
		instruction,
	} {
		if !strings.Contains(prompt, part) {
			t.Fatalf("missing %q in prompt:\n%s", part, prompt)
		}
	}
}

func TestCompareIsRepeatable(t *testing.T) {
	stub := &stubGenerator{response: "ok"}
	c := New(stub, Limits{}, zap.NewNop())

	h := &session.History{}
	h.Append(session.Entry{Position: "a", Content: "a"})
	h.Append(session.Entry{Position: "b", Content: "b"})

	for i := 0; i < 3; i++ {
		if _, err := c.Compare(context.Background(), h); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(stub.prompts) != 3 || h.Len() != 2 {
		t.Fatalf("expected 3 calls and unchanged history, got %d calls and %d entries", len(stub.prompts), h.Len())
	}
}

func TestBuildPromptOrderAndCaps(t *testing.T) {
	c := New(&stubGenerator{}, Limits{EntryChars: 10, TotalChars: 100000}, zap.NewNop())

	previous := []session.Entry{
		{Position: "first", Content: strings.Repeat("x", 50)},
		{Position: "second", Content: "short"},
	}
	prompt, truncated := c.BuildPrompt(session.Entry{Position: "current", Content: "now"}, previous)
	if truncated {
		t.Fatal("did not expect overall truncation")
	}

	first := strings.Index(prompt, "(first):\n"+strings.Repeat("x", 10)+"\n")
	second := strings.Index(prompt, "(second):\nshort")
	if first == -1 || second == -1 || first > second {
		t.Fatalf("unexpected entries in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("x", 11)) {
		t.Fatal("expected entry content to be capped")
	}
	if !strings.HasSuffix(prompt, instruction) {
		t.Fatal("expected instruction at the end")
	}
}

func TestBuildPromptTotalCap(t *testing.T) {
	c := New(&stubGenerator{}, Limits{EntryChars: 1000, TotalChars: 500}, zap.NewNop())

	previous := make([]session.Entry, 0, 10)
	for i := 0; i < 10; i++ {
		previous = append(previous, session.Entry{Position: "p", Content: strings.Repeat("y", 1000)})
	}

	prompt, truncated := c.BuildPrompt(session.Entry{Position: "current", Content: "now"}, previous)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if utils.Length(prompt) != 500 {
		t.Fatalf("expected 500 characters, got %d", utils.Length(prompt))
	}
	if !strings.HasPrefix(prompt, header) {
		t.Fatal("truncation must cut from the end")
	}
}

func TestComparePropagatesErrors(t *testing.T) {
	cause := errors.New("boom")
	c := New(&stubGenerator{err: cause}, Limits{}, zap.NewNop())

	h := &session.History{}
	h.Append(session.Entry{Position: "a", Content: "a"})
	h.Append(session.Entry{Position: "b", Content: "b"})

	if _, err := c.Compare(context.Background(), h); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
