package errors

import (
	"context"
	"errors"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request correlation ID.
	RequestIDKey contextKey = "requestId"
	// ProductionModeKey is the context key for production mode flag.
	ProductionModeKey contextKey = "productionMode"
)

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// IsProductionMode checks if running in production mode.
func IsProductionMode(ctx context.Context) bool {
	if prod, ok := ctx.Value(ProductionModeKey).(bool); ok {
		return prod
	}
	return false
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithProductionMode sets the production mode flag in context.
func WithProductionMode(ctx context.Context, production bool) context.Context {
	return context.WithValue(ctx, ProductionModeKey, production)
}

// ErrorPresenter is the gqlgen error presenter used by the bundled demo
// executor/subscriber (cmd/wsgatewayd) to shape ServiceErrors, and any
// ordinary gqlgen/gqlerror errors, into GraphQL errors with request-scoped
// extensions. It has no bearing on internal/graphql/protocol.Error, which
// never flows through gqlgen.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	requestID := GetRequestID(ctx)
	isProduction := IsProductionMode(ctx)

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return presentServiceError(ctx, svcErr, requestID, isProduction)
	}

	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Extensions == nil {
			gqlErr.Extensions = make(map[string]interface{})
		}
		gqlErr.Extensions["requestId"] = requestID
		return gqlErr
	}

	return presentUnknownError(ctx, err, requestID, isProduction)
}

// presentServiceError converts a ServiceError to a GraphQL error with extensions.
func presentServiceError(ctx context.Context, err *ServiceError, requestID string, isProduction bool) *gqlerror.Error {
	if isProduction {
		err = RedactErrorForProduction(err, requestID)
	}

	extensions := buildExtensions(err, requestID)

	if valErr, ok := interface{}(err).(*ValidationError); ok {
		extensions["field"] = valErr.Field
		extensions["value"] = valErr.Value
	} else if field, ok := err.Context["field"]; ok {
		extensions["field"] = field
	}

	gqlErr := &gqlerror.Error{
		Message:    err.Message,
		Extensions: extensions,
	}

	if path := graphql.GetPath(ctx); path != nil {
		gqlErr.Path = path
	}

	return gqlErr
}

// buildExtensions creates the error extensions map.
func buildExtensions(err *ServiceError, requestID string) map[string]interface{} {
	extensions := map[string]interface{}{
		"code":        err.Code,
		"category":    string(err.Category),
		"recoverable": err.Recoverable,
		"requestId":   requestID,
	}

	for key, value := range err.Context {
		if !IsSensitiveKey(key) {
			extensions[key] = value
		}
	}

	return extensions
}

// presentUnknownError handles errors that are not ServiceErrors.
func presentUnknownError(ctx context.Context, err error, requestID string, isProduction bool) *gqlerror.Error {
	message := err.Error()
	if isProduction {
		message = "An unexpected error occurred. Please try again later."
	}

	extensions := map[string]interface{}{
		"code":        CodeInternal,
		"category":    string(CategoryInternal),
		"recoverable": false,
		"requestId":   requestID,
	}

	gqlErr := &gqlerror.Error{
		Message:    message,
		Extensions: extensions,
	}

	if path := graphql.GetPath(ctx); path != nil {
		gqlErr.Path = path
	}

	return gqlErr
}

// ErrorRecoverer is a panic recovery function for gqlgen. It converts panics
// raised from within the demo executor/subscriber into internal errors.
func ErrorRecoverer(ctx context.Context, p interface{}) error {
	requestID := GetRequestID(ctx)

	internalErr := NewInternalError("internal server error", nil).
		WithComponent("graphql")
	internalErr.Context["requestId"] = requestID
	internalErr.Context["panic"] = p

	return internalErr
}

// PresenterConfig holds configuration for the error presenter.
type PresenterConfig struct {
	Production bool
}

// DefaultPresenterConfig returns the default presenter configuration.
func DefaultPresenterConfig() *PresenterConfig {
	return &PresenterConfig{Production: false}
}

// NewErrorPresenter creates a configured error presenter.
func NewErrorPresenter(config *PresenterConfig) func(ctx context.Context, err error) *gqlerror.Error {
	if config == nil {
		config = DefaultPresenterConfig()
	}

	return func(ctx context.Context, err error) *gqlerror.Error {
		if _, ok := ctx.Value(ProductionModeKey).(bool); !ok {
			ctx = WithProductionMode(ctx, config.Production)
		}
		return ErrorPresenter(ctx, err)
	}
}

// ToGraphQLError converts any error to a gqlerror.Error. Useful for returning
// errors from the demo resolver.
func ToGraphQLError(ctx context.Context, err error) *gqlerror.Error {
	return ErrorPresenter(ctx, err)
}

// NewGraphQLValidationError creates a GraphQL error for validation failures.
func NewGraphQLValidationError(ctx context.Context, field string, message string, value interface{}) *gqlerror.Error {
	valErr := NewValidationError(field, value, message)
	return ErrorPresenter(ctx, valErr)
}

// NewGraphQLAuthError creates a GraphQL error for auth failures.
func NewGraphQLAuthError(ctx context.Context, message string, code string) *gqlerror.Error {
	authErr := NewAuthError(code, message)
	return ErrorPresenter(ctx, authErr)
}
