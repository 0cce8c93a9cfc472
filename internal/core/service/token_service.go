package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verimail/verimail/internal/core/domain"
)

const defaultTokenTTL = time.Hour

// JWTTokenService issues and validates HS256-signed verification tokens.
// Tokens carry only the subject user id plus issue and expiry times; there
// is no revocation list, a token stays valid until it expires.
type JWTTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenService(secret string, ttl time.Duration) *JWTTokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTTokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *JWTTokenService) Issue(subject string) (string, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate checks signature and expiry and returns the subject user id.
// Expired tokens fail with domain.ErrTokenExpired, everything else that is
// wrong with the token with domain.ErrTokenInvalid.
func (s *JWTTokenService) Validate(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", domain.ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}
