package session

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"coursehub/internal/util"
	"coursehub/pkg/domain"
)

const jwtIssuer = "coursehub"

// JWTStore issues stateless HS256 session tokens carrying the name and role
// as claims. Logout cannot revoke an outstanding token; the cookie is simply
// cleared and the token ages out at its expiry.
type JWTStore struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
}

type sessionClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTStore builds a stateless session store from a shared secret.
func NewJWTStore(secret string, ttl time.Duration) (*JWTStore, error) {
	if secret == "" {
		return nil, errors.New("session secret is required for jwt sessions")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTStore{secret: []byte(secret), ttl: ttl, leeway: 30 * time.Second}, nil
}

// Create signs a token embedding the session identity.
func (s *JWTStore) Create(_ context.Context, sess domain.Session) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Name: sess.Name,
		Role: string(sess.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        util.NewID(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Get validates the token and recovers the session identity.
func (s *JWTStore) Get(_ context.Context, token string) (domain.Session, bool, error) {
	claims := sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		return domain.Session{}, false, nil
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok || claims.Name == "" {
		return domain.Session{}, false, nil
	}
	return domain.Session{Name: claims.Name, Role: role}, true, nil
}

// Delete is a no-op for stateless tokens.
func (s *JWTStore) Delete(context.Context, string) error {
	return nil
}
