package auth

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("unauthorized")

// Claims es la identidad que el resto de la app conoce del usuario autenticado.
type Claims struct {
	UserID string
	Email  string
	Name   string
}

// AuthVerifier verifica un token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
