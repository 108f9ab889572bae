package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"deja/internal/ports/auth"
)

var ErrMissingSecret = errors.New("jwt secret is empty")

// Claims del token emitido por el IdP (HS256).
// sub => UserID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Leeway tolera desfasajes de reloj en exp/nbf.
	Leeway time.Duration
}

// Verifier implementa auth.AuthVerifier validando JWT firmados con secreto compartido.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func New(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &Verifier{secret: []byte(cfg.Secret), opts: opts}, nil
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, auth.ErrUnauthorized
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrUnauthorized, err)
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return auth.Claims{}, fmt.Errorf("%w: token without subject", auth.ErrUnauthorized)
	}

	return auth.Claims{
		UserID: sub,
		Email:  strings.TrimSpace(claims.Email),
		Name:   strings.TrimSpace(claims.Name),
	}, nil
}

// Sign emite un token HS256; lo usan los tests y el tooling local.
func Sign(secret string, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
