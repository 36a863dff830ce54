package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose tags a token with its intended use. A password-reset
// token must never authenticate a login and a session token must never
// authorize a password change, so Verify requires an exact match.
type TokenPurpose string

const (
	PurposeSession       TokenPurpose = "session"
	PurposePasswordReset TokenPurpose = "password_reset"
)

const (
	defaultSessionTTL = time.Hour
	defaultResetTTL   = 15 * time.Minute
)

// TokenService issues and verifies stateless HS256 bearer tokens. Tokens
// are never persisted; expiry is the only termination mechanism.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		sessionTTL: defaultSessionTTL,
		resetTTL:   defaultResetTTL,
		now:        time.Now,
	}
}

func (s *TokenService) WithLifetimes(sessionTTL, resetTTL time.Duration) {
	if sessionTTL > 0 {
		s.sessionTTL = sessionTTL
	}
	if resetTTL > 0 {
		s.resetTTL = resetTTL
	}
}

func (s *TokenService) Lifetime(purpose TokenPurpose) time.Duration {
	if purpose == PurposePasswordReset {
		return s.resetTTL
	}
	return s.sessionTTL
}

func (s *TokenService) Issue(subjectID string, purpose TokenPurpose) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(s.Lifetime(purpose)).Unix(),
		"typ": string(purpose),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify returns the subject id of a valid token. Every failure mode
// (bad signature, expiry, wrong purpose, malformed payload) collapses
// into ErrInvalidOrExpiredToken so callers cannot tell which check
// rejected the token.
func (s *TokenService) Verify(tokenString string, expected TokenPurpose) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidOrExpiredToken
	}

	if purpose, _ := claims["typ"].(string); purpose != string(expected) {
		return "", ErrInvalidOrExpiredToken
	}

	subjectID, _ := claims["sub"].(string)
	if subjectID == "" {
		return "", ErrInvalidOrExpiredToken
	}

	return subjectID, nil
}
