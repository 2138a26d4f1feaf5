package logger

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldTenant is the structured log field key for the tenant a request belongs to.
	FieldTenant = "tenant_id"
	// FieldRequest is the structured log field key for a request correlation id.
	FieldRequest = "request_id"
	// FieldCollection is the structured log field key for a vector collection name.
	FieldCollection = "collection"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// TenantFields describes the caller scope of a request. Anonymous callers are
// logged as "anonymous" so they can be told apart from missing data.
func TenantFields(tenantID *int64, requestID string) []zap.Field {
	tenant := "anonymous"
	if tenantID != nil {
		tenant = strconv.FormatInt(*tenantID, 10)
	}

	return StringFields(
		StringField{Key: FieldTenant, Value: tenant},
		StringField{Key: FieldRequest, Value: requestID},
	)
}

// WithTenant attaches tenant and request fields to the logger.
func WithTenant(logger *zap.Logger, tenantID *int64, requestID string) *zap.Logger {
	return WithFields(logger, TenantFields(tenantID, requestID)...)
}
