package errors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel maps an error category to an appropriate log level.
// - Auth errors (failed connection_init auth) are INFO (expected behavior)
// - Validation errors are WARN (client mistakes)
// - Internal errors are ERROR (requires attention)
func LogLevel(category ErrorCategory) zapcore.Level {
	switch category {
	case CategoryAuth:
		return zapcore.InfoLevel
	case CategoryValidation:
		return zapcore.WarnLevel
	case CategoryInternal:
		return zapcore.ErrorLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ErrorFields returns structured zap fields for a ServiceError.
// Sensitive data is automatically redacted.
func ErrorFields(err error) []zap.Field {
	svcErr := GetServiceError(err)
	if svcErr == nil {
		return []zap.Field{
			zap.String("error_type", "unknown"),
			zap.String("error_message", err.Error()),
		}
	}

	fields := []zap.Field{
		zap.String("error_code", svcErr.Code),
		zap.String("error_category", string(svcErr.Category)),
		zap.String("error_message", svcErr.Message),
		zap.Bool("recoverable", svcErr.Recoverable),
	}

	if len(svcErr.Context) > 0 {
		redactedCtx := RedactMap(svcErr.Context)
		fields = append(fields, zap.Any("context", redactedCtx))
	}

	if svcErr.Cause != nil {
		// Don't log the full cause in production - could contain sensitive info
		fields = append(fields, zap.Bool("has_cause", true))
	}

	return fields
}

// LogError logs an error with appropriate level and structured fields.
func LogError(logger *zap.Logger, err error) {
	svcErr := GetServiceError(err)

	var level zapcore.Level
	var msg string

	if svcErr != nil {
		level = LogLevel(svcErr.Category)
		msg = svcErr.Message
	} else {
		level = zapcore.ErrorLevel
		msg = err.Error()
	}

	fields := ErrorFields(err)
	logAtLevel(logger, level, msg, fields)
}

// LogErrorCtx logs an error with context (request ID) and appropriate level.
func LogErrorCtx(ctx context.Context, logger *zap.Logger, err error) {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		logger = logger.With(zap.String("request_id", requestID))
	}
	LogError(logger, err)
}

// LogErrorWithDuration logs an error with duration information.
// Useful for logging errors from operations with timing.
func LogErrorWithDuration(logger *zap.Logger, err error, duration time.Duration) {
	svcErr := GetServiceError(err)

	var level zapcore.Level
	var msg string

	if svcErr != nil {
		level = LogLevel(svcErr.Category)
		msg = svcErr.Message
	} else {
		level = zapcore.ErrorLevel
		msg = err.Error()
	}

	fields := append(ErrorFields(err), zap.Duration("duration", duration))
	logAtLevel(logger, level, msg, fields)
}

func logAtLevel(logger *zap.Logger, level zapcore.Level, msg string, fields []zap.Field) {
	switch level {
	case zapcore.DebugLevel:
		logger.Debug(msg, fields...)
	case zapcore.InfoLevel:
		logger.Info(msg, fields...)
	case zapcore.WarnLevel:
		logger.Warn(msg, fields...)
	default:
		logger.Error(msg, fields...)
	}
}

// LogErrorCtxWithDuration combines context and duration logging.
func LogErrorCtxWithDuration(ctx context.Context, logger *zap.Logger, err error, duration time.Duration) {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		logger = logger.With(zap.String("request_id", requestID))
	}
	LogErrorWithDuration(logger, err, duration)
}

// ErrorLogger provides a convenient interface for error logging.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger with the given zap.Logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log logs an error at the appropriate level.
func (el *ErrorLogger) Log(err error) {
	LogError(el.logger, err)
}

// LogCtx logs an error with context.
func (el *ErrorLogger) LogCtx(ctx context.Context, err error) {
	LogErrorCtx(ctx, el.logger, err)
}

// LogWithDuration logs an error with duration.
func (el *ErrorLogger) LogWithDuration(err error, duration time.Duration) {
	LogErrorWithDuration(el.logger, err, duration)
}

// LogCtxWithDuration logs an error with context and duration.
func (el *ErrorLogger) LogCtxWithDuration(ctx context.Context, err error, duration time.Duration) {
	LogErrorCtxWithDuration(ctx, el.logger, err, duration)
}

// With returns a new ErrorLogger with additional fields.
func (el *ErrorLogger) With(fields ...zap.Field) *ErrorLogger {
	return &ErrorLogger{logger: el.logger.With(fields...)}
}

// WithRequestID returns a new ErrorLogger with request ID from context.
func (el *ErrorLogger) WithRequestID(ctx context.Context) *ErrorLogger {
	requestID := GetRequestID(ctx)
	if requestID == "" {
		return el
	}
	return el.With(zap.String("request_id", requestID))
}
