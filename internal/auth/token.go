package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures. Callers map all of them to 401.
var (
	ErrTokenMalformed        = errors.New("auth: malformed token")
	ErrTokenSignatureInvalid = errors.New("auth: invalid token signature")
	ErrTokenExpired          = errors.New("auth: token expired")
)

// Verifier checks a bearer token and returns the subject user id and
// the token expiry. Alternative credential strategies (e.g. API keys)
// implement this to plug into the authentication middleware.
type Verifier interface {
	Verify(token string) (int64, time.Time, error)
}

// TokenService issues and verifies signed, time-bounded tokens. The
// payload carries only the subject id and expiry; any other claim in a
// presented token is ignored.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService constructs a TokenService with a symmetric secret.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given subject expiring after the
// configured TTL.
func (s *TokenService) Issue(subjectID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, returning its subject user id
// and expiry. Failures are one of ErrTokenMalformed,
// ErrTokenSignatureInvalid or ErrTokenExpired.
func (s *TokenService) Verify(tokenString string) (int64, time.Time, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, time.Time{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, time.Time{}, ErrTokenSignatureInvalid
		default:
			return 0, time.Time{}, ErrTokenMalformed
		}
	}
	if !token.Valid {
		return 0, time.Time{}, ErrTokenMalformed
	}

	subject, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || subject < 1 {
		return 0, time.Time{}, ErrTokenMalformed
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return subject, expiresAt, nil
}

var _ Verifier = (*TokenService)(nil)
