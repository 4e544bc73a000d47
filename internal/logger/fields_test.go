package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFieldsSkipsBlank(t *testing.T) {
	fields := stringFields("  provider  ", "  Gemini  ", "ignored", "   ", "   ", "empty key", "dangling")

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
}

func TestWithFieldsFallsBackToNop(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}

	enriched.Info("does not panic")
}

func TestGeneratorFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), GeneratorFields("gemini", "gemini-2.0-flash", 4)...).Info("generate")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "gemini" {
		t.Fatalf("expected provider field to be gemini, got %q", ctx[FieldProvider])
	}
	if ctx[FieldModel] != "gemini-2.0-flash" {
		t.Fatalf("unexpected model field: %q", ctx[FieldModel])
	}
	if ctx[FieldMaxAttempts] != int64(4) {
		t.Fatalf("unexpected attempts field: %v", ctx[FieldMaxAttempts])
	}

	if fields := GeneratorFields("gemini", "", 0); len(fields) != 1 {
		t.Fatalf("expected only the provider field, got %d", len(fields))
	}
}

func TestSessionFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), SessionFields("s-1", " Data Analyst ")...).Info("evaluate")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldSession] != "s-1" {
		t.Fatalf("unexpected session field: %q", ctx[FieldSession])
	}
	if ctx[FieldPosition] != "Data Analyst" {
		t.Fatalf("unexpected position field: %q", ctx[FieldPosition])
	}

	if fields := SessionFields("", ""); len(fields) != 0 {
		t.Fatalf("expected no fields for empty values, got %d", len(fields))
	}
}
