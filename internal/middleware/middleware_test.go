package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/ports/auth"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if token == "ok" {
		return auth.Claims{UserID: "u-token"}, nil
	}
	return auth.Claims{}, errors.New("bad token")
}

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	})
}

func TestAuthContext_DevHeader(t *testing.T) {
	h := AuthContext(nil)(whoAmI())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DebugUserHeader, " u1 ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "u1", rr.Body.String())
}

func TestAuthContext_Bearer(t *testing.T) {
	h := AuthContext(stubVerifier{})(whoAmI())

	cases := map[string]string{
		"Bearer ok":  "u-token",
		"bearer ok":  "u-token",
		"Bearer bad": "",
		"Basic ok":   "",
		"":           "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		req.Header.Set(DebugUserHeader, "ignored-when-verifier-set")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Body.String(), "header %q", header)
	}
}

func TestRecover_Returns500AndLogs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(RequestLogger(base, nil))
	r.Use(Recover)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("kaboom") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"route":"/boom"`)
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestRequestLogger_IncludesAuthenticatedUser(t *testing.T) {
	cases := []struct {
		name     string
		verifier auth.AuthVerifier
		header   string
		value    string
		want     string
	}{
		{name: "dev header", header: DebugUserHeader, value: "owner-1", want: `"user_id":"owner-1"`},
		{name: "bearer", verifier: stubVerifier{}, header: "Authorization", value: "Bearer ok", want: `"user_id":"u-token"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := chi.NewRouter()
			r.Use(RequestLogger(zerolog.New(&buf), nil))
			r.Use(AuthContext(tc.verifier))
			r.Get("/patients", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/patients", nil)
			req.Header.Set(tc.header, tc.value)
			r.ServeHTTP(httptest.NewRecorder(), req)

			assert.Contains(t, buf.String(), tc.want)
			assert.Contains(t, buf.String(), `"message":"http request"`)
		})
	}
}

func TestRequestLogger_AnonymousHasNoUser(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(zerolog.New(&buf), nil)(AuthContext(nil)(whoAmI()))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), "user_id")
}
