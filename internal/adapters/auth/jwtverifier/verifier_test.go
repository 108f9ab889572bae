package jwtverifier

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/ports/auth"
)

func token(t *testing.T, secret, sub, iss string, exp time.Time) string {
	t.Helper()
	s, err := Sign(secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    iss,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: "ana@example.com",
	})
	require.NoError(t, err)
	return s
}

func TestVerify_OK(t *testing.T) {
	v, err := New(Config{Secret: "k", Issuer: "deja-idp"})
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token(t, "k", "u1", "deja-idp", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := New(Config{Secret: "k", Issuer: "deja-idp"})
	require.NoError(t, err)
	future := time.Now().Add(time.Hour)

	cases := map[string]string{
		"wrong secret": token(t, "other", "u1", "deja-idp", future),
		"expired":      token(t, "k", "u1", "deja-idp", time.Now().Add(-time.Hour)),
		"wrong issuer": token(t, "k", "u1", "someone-else", future),
		"no subject":   token(t, "k", "", "deja-idp", future),
		"garbage":      "not-a-jwt",
		"empty":        "",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, auth.ErrUnauthorized)
		})
	}
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}
