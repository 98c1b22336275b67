package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller a quota is charged to. It is either an end user
// or an upstream API key, whichever the issuer put in the token subject.
type Identity struct {
	ID   string `json:"id"`
	Tier string `json:"tier"`
	Kind string `json:"kind"` // "user" or "api_key"
}

// ExtractToken extracts the JWT token from an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}

	return token, nil
}

// JWTAuth verifies HS256 identity tokens
type JWTAuth struct {
	SecretKey   []byte
	TokenExpiry time.Duration // Default: 1 hour
}

// NewJWTAuth creates a new JWT auth instance
func NewJWTAuth(secretKey string, expiry time.Duration) (*JWTAuth, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	if expiry == 0 {
		expiry = time.Hour
	}
	return &JWTAuth{SecretKey: []byte(secretKey), TokenExpiry: expiry}, nil
}

// IdentityClaims represents the JWT token claims
type IdentityClaims struct {
	Tier string `json:"tier,omitempty"`
	Kind string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for an identity
func (a *JWTAuth) IssueToken(identity Identity) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Tier: identity.Tier,
		Kind: identity.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.SecretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// VerifyToken verifies a token and returns the identity it carries
func (a *JWTAuth) VerifyToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.SecretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	kind := claims.Kind
	if kind == "" {
		kind = "user"
	}
	return &Identity{ID: claims.Subject, Tier: claims.Tier, Kind: kind}, nil
}
