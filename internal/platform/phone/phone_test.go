package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize("(11) 98765-4321", "BR")
	require.NoError(t, err)
	assert.Equal(t, "+5511987654321", got)

	got, err = Normalize("+1 650-253-0000", "BR")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)

	got, err = Normalize("   ", "BR")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = Normalize("123", "BR")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}
