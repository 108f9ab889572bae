package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/platform/httpclient"
	"deja/internal/ports/auth"
)

func newServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != introspectPath {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["token"] != "good" {
			http.Error(w, "invalid", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{UserID: "u-42", Email: "x@y.z"})
	}))
}

func TestVerify_CachesPositiveAnswers(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	client, err := httpclient.New(srv.URL, time.Second, httpclient.WithHeader("X-API-Key", "key-1"))
	require.NoError(t, err)
	v := New(client, time.Minute)

	for i := 0; i < 3; i++ {
		claims, err := v.Verify(context.Background(), "good")
		require.NoError(t, err)
		assert.Equal(t, "u-42", claims.UserID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVerify_ExpiredCacheCallsAgain(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	client, err := httpclient.New(srv.URL, time.Second, httpclient.WithHeader("X-API-Key", "key-1"))
	require.NoError(t, err)
	v := New(client, time.Minute)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	_, err = v.Verify(context.Background(), "good")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestVerify_Unauthorized(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	client, err := httpclient.New(srv.URL, time.Second, httpclient.WithHeader("X-API-Key", "key-1"))
	require.NoError(t, err)
	v := New(client, time.Minute)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
