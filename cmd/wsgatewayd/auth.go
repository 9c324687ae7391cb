package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/nasnetconnect/gqlwsengine/internal/auth"
	internalerrors "github.com/nasnetconnect/gqlwsengine/internal/errors"
	"github.com/nasnetconnect/gqlwsengine/internal/graphql/protocol"
)

// generateDemoKeypair mints an ephemeral RSA key pair for the demo gateway.
// A real deployment would load PrivateKey/PublicKey from its secret store
// instead of generating throwaway keys on every start.
func generateDemoKeypair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// initPayload is the connection_init payload shape this gateway expects:
// a bearer token, mirroring the teacher's ConnectionInitPayload.Authorization
// field.
type initPayload struct {
	Authorization string `json:"authorization"`
}

// jwtAuthHook validates the bearer token carried by connection_init against
// svc, rejecting the session (close 4401) on any failure. Validation
// failures are reported as internalerrors.AuthError so they log and present
// the same way any other ambient auth failure in this module would.
func jwtAuthHook(svc *auth.JWTService, logger *zap.Logger) protocol.AuthHook {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p initPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				authErr := internalerrors.NewAuthError(internalerrors.CodeInvalidCredentials, "malformed connection_init payload")
				internalerrors.LogErrorCtx(ctx, logger, authErr.ServiceError)
				return authErr
			}
		}

		token := strings.TrimPrefix(p.Authorization, "Bearer ")
		if token == "" {
			authErr := internalerrors.NewAuthError(internalerrors.CodeInvalidCredentials, "missing bearer token")
			internalerrors.LogErrorCtx(ctx, logger, authErr.ServiceError)
			return authErr
		}

		claims, err := svc.ValidateToken(token)
		if err != nil {
			code := internalerrors.CodeInvalidCredentials
			if errors.Is(err, auth.ErrTokenExpired) {
				code = internalerrors.CodeSessionExpired
			}
			authErr := internalerrors.NewAuthError(code, "token validation failed")
			authErr.Cause = err
			internalerrors.LogErrorCtx(ctx, logger, authErr.ServiceError)
			return authErr
		}

		logger.Debug("connection authenticated", zap.String("user_id", claims.UserID))
		return nil
	}
}
