package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "matchroom/errors"
)

const (
	accessTokenType  = "access_token"
	refreshTokenType = "refresh_token"
)

// AccessClaims defines the structure of the data stored inside the JWT.
// The subject claim carries the user identity; TokenType discriminates
// access tokens from refresh tokens so a refresh token can never open
// a live connection.
type AccessClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates the service's JWTs. The secret is
// injected from configuration at the composition root.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Generate creates a signed access token for a specific user.
func (t *TokenIssuer) Generate(subject string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "matchroom",
		},
	}

	// HS256 (HMAC with SHA256), same algorithm the issuing service uses.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// GenerateRefresh creates a refresh-class token. It exists so tests can
// prove the dispatcher rejects non-access credentials.
func (t *TokenIssuer) GenerateRefresh(subject string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "matchroom",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses a JWT string and checks it is a live access-class
// credential with a subject. Returns the user identity and the expiry
// instant captured from the token.
func (t *TokenIssuer) Validate(tokenString string) (string, time.Time, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", time.Time{}, jwt.ErrSignatureInvalid
	}
	if claims.TokenType != accessTokenType {
		return "", time.Time{}, apperrors.ErrNotAccessToken
	}
	if claims.Subject == "" {
		return "", time.Time{}, apperrors.ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return "", time.Time{}, apperrors.ErrInvalidToken
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}
