// Package auth provides RS256 JWT issuance and validation for the demo
// gateway's connection_init AuthHook. Adapted from the teacher's
// internal/auth JWTService, trimmed to what a protocol-engine AuthHook
// actually needs: a bearer token in, a validated subject out. The sliding
// session / role-permission machinery the teacher builds on top of this for
// its own services layer has no equivalent here.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by ValidateToken.
var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims is the JWT claim set issued/validated by JWTService.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// JWTConfig holds JWT configuration options.
type JWTConfig struct {
	PrivateKey    *rsa.PrivateKey
	PublicKey     *rsa.PublicKey
	TokenDuration time.Duration
	Issuer        string
}

// DefaultJWTConfig returns a JWTConfig with default timing values; the
// caller must still supply PrivateKey/PublicKey.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		TokenDuration: time.Hour,
		Issuer:        "gqlwsengine",
	}
}

// JWTService issues and validates RS256 tokens.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a JWTService from config, applying DefaultJWTConfig
// for any zero-valued timing/issuer fields.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if config.PrivateKey == nil {
		return nil, errors.New("JWT private key not configured")
	}
	if config.PublicKey == nil {
		return nil, errors.New("JWT public key not configured")
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = DefaultJWTConfig().TokenDuration
	}
	if config.Issuer == "" {
		config.Issuer = DefaultJWTConfig().Issuer
	}
	return &JWTService{config: config}, nil
}

// GenerateToken issues a signed token for userID, valid for
// config.TokenDuration.
func (s *JWTService) GenerateToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenDuration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(s.config.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses and validates tokenString, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.PublicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
