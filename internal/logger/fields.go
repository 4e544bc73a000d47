package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
	FieldMaxAttempts = "ai_max_attempts"
	FieldSession     = "session_id"
	FieldPosition    = "position"
)

// stringFields builds string fields from key/value pairs, trimming both and
// dropping pairs where either side is blank. A trailing odd key is ignored.
func stringFields(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key := strings.TrimSpace(pairs[i])
		value := strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields attaches fields to logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// GeneratorFields describes the model backend. maxAttempts is omitted when
// not positive.
func GeneratorFields(provider, model string, maxAttempts int) []zap.Field {
	fields := stringFields(FieldProvider, provider, FieldModel, model)
	if maxAttempts > 0 {
		fields = append(fields, zap.Int(FieldMaxAttempts, maxAttempts))
	}
	return fields
}

// SessionFields describes a unit of work inside a user session.
func SessionFields(sessionID, position string) []zap.Field {
	return stringFields(FieldSession, sessionID, FieldPosition, position)
}
