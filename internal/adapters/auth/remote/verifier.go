package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"deja/internal/platform/httpclient"
	"deja/internal/ports/auth"
)

var ErrUpstream = errors.New("identity provider upstream error")

const introspectPath = "/v1/tokens/verify"

// Verifier implementa auth.AuthVerifier contra un servicio de identidad externo.
// Las respuestas positivas se cachean durante ttl.
type Verifier struct {
	client *httpclient.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	claims  auth.Claims
	expires time.Time
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func New(client *httpclient.Client, ttl time.Duration) *Verifier {
	return &Verifier{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  map[string]cached{},
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, auth.ErrUnauthorized
	}

	if c, ok := v.lookup(token); ok {
		return c, nil
	}

	var out verifyResponse
	err := v.client.DoJSON(ctx, http.MethodPost, introspectPath,
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"token": token},
		&out,
	)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusUnauthorized) || httpclient.IsStatus(err, http.StatusForbidden) {
			return auth.Claims{}, auth.ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	uid := strings.TrimSpace(out.UserID)
	if uid == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}

	claims := auth.Claims{
		UserID: uid,
		Email:  strings.TrimSpace(out.Email),
		Name:   strings.TrimSpace(out.Name),
	}
	v.store(token, claims)
	return claims, nil
}

func (v *Verifier) lookup(token string) (auth.Claims, bool) {
	if v.ttl <= 0 {
		return auth.Claims{}, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	c, ok := v.cache[token]
	if !ok {
		return auth.Claims{}, false
	}
	if v.now().After(c.expires) {
		delete(v.cache, token)
		return auth.Claims{}, false
	}
	return c.claims, true
}

func (v *Verifier) store(token string, claims auth.Claims) {
	if v.ttl <= 0 {
		return
	}
	v.mu.Lock()
	v.cache[token] = cached{claims: claims, expires: v.now().Add(v.ttl)}
	v.mu.Unlock()
}
