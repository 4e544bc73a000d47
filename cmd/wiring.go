package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/ai"
	"github.com/spigell/jd-evaluator/internal/ai/gemini"
	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/evaluation"
	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/prompt"
	"github.com/spigell/jd-evaluator/internal/reference"
	"github.com/spigell/jd-evaluator/internal/secrets"
	"github.com/spigell/jd-evaluator/internal/similarity"
)

const apiKeyHint = "set GEMINI_API_KEY (or GOOGLE_API_KEY) in the environment or .env, or the gemini.api-key-file key in the configuration file"

var apiKeyEnv = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// startup loads the config and builds the evaluation service. Any failure is
// fatal: nothing can be evaluated without the key, the dataset and the rubric.
func startup(ctx context.Context, log *zap.Logger) (*Config, *evaluation.Service) {
	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the jd-evaluator", zap.String("version", resolveVersion()))
	log.Debug("starting with config",
		zap.String("reference_file", config.ReferenceFile),
		zap.String("corpus_field", config.CorpusField),
		zap.Int("top_k", config.TopK),
		zap.Bool("auto_compare", config.AutoCompare),
		zap.String("model", config.Gemini.Model),
	)

	apiKey, err := resolveAPIKey(config)
	if err != nil {
		log.Fatal("loading gemini api key", zap.Error(err), zap.String("hint", apiKeyHint))
	}

	generator, err := newGenerator(ctx, config.Gemini, apiKey, log)
	if err != nil {
		log.Fatal("creating a generator", zap.Error(err))
	}

	service, err := buildService(config, generator, log)
	if err != nil {
		log.Fatal("preparing the evaluation service", zap.Error(err))
	}

	return config, service
}

func resolveAPIKey(config *Config) (string, error) {
	if config == nil || config.Gemini == nil {
		return "", errors.New("config is required")
	}

	return secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  config.Gemini.APIKeyFile,
		Value: config.Gemini.APIKey,
		Env:   apiKeyEnv,
	})
}

func newGenerator(ctx context.Context, cfg *GeminiConfig, apiKey string, log *zap.Logger) (*gemini.Generator, error) {
	genLogger := logger.WithFields(log, logger.GeneratorFields(gemini.Provider, cfg.Model, cfg.MaxRetries)...)

	return gemini.NewGenerator(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Model,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxLogLength:      cfg.MaxLogLength,
	}, genLogger)
}

// buildService loads the reference dataset and rubric and wires the core
// around generator.
func buildService(config *Config, generator ai.Generator, log *zap.Logger) (*evaluation.Service, error) {
	field, err := reference.ParseField(config.CorpusField)
	if err != nil {
		return nil, err
	}

	referenceFile := strings.TrimSpace(config.ReferenceFile)
	if referenceFile == "" {
		return nil, errors.New("reference-file is required")
	}

	dataset, err := reference.Load(referenceFile)
	if err != nil {
		return nil, err
	}

	log.Info("loaded reference evaluations",
		zap.String("file", referenceFile),
		zap.Int("count", dataset.Len()),
	)
	for _, warning := range dataset.Warnings() {
		log.Warn("reference dataset", zap.String("problem", warning))
	}

	rubric := prompt.DefaultRubric()
	if path := strings.TrimSpace(config.RubricFile); path != "" {
		rubric, err = prompt.LoadRubric(path)
		if err != nil {
			return nil, err
		}
	}

	limits := config.Limits
	if limits == nil {
		limits = &LimitsConfig{}
	}

	cache := similarity.NewCache(log)
	retriever := similarity.NewRetriever(dataset, field, cache)

	composer := prompt.NewComposer(rubric, prompt.Limits{
		JDChars:        limits.JDChars,
		ReferenceChars: limits.ReferenceChars,
	})

	comparator := compare.New(generator, compare.Limits{
		EntryChars: limits.CompareEntryChars,
		TotalChars: limits.CompareTotalChars,
	}, log)

	service, err := evaluation.New(evaluation.Deps{
		Retriever:  retriever,
		Composer:   composer,
		Generator:  generator,
		Comparator: comparator,
		Logger:     log,
	}, config.TopK)
	if err != nil {
		return nil, fmt.Errorf("create evaluation service: %w", err)
	}

	return service, nil
}

// describeError renders an action failure for the user. The second value is
// an optional hint.
func describeError(err error) (string, string) {
	switch {
	case errors.Is(err, ai.ErrQuotaExhausted):
		return "the model quota is exhausted", ai.QuotaHint
	case errors.Is(err, prompt.ErrEmptyJD):
		return "the job description is empty", "provide a non-empty file or text"
	case errors.Is(err, prompt.ErrEmptyPosition):
		return "the position name is required", ""
	default:
		return err.Error(), ""
	}
}
