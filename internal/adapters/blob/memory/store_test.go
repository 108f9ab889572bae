package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deja/internal/ports/blob"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Put(ctx, "a/b.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

	rc, obj, err := s.Get(ctx, "a/b.pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, int64(8), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)

	require.NoError(t, s.Delete(ctx, "a/b.pdf"))
	_, _, err = s.Get(ctx, "a/b.pdf")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a/b.pdf"), blob.ErrNotFound)
}

func TestStoreSizeMismatch(t *testing.T) {
	err := NewStore().Put(context.Background(), "k", strings.NewReader("abc"), 10, "text/plain")
	assert.Error(t, err)
}
