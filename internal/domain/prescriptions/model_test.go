package prescriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiryByType(t *testing.T) {
	issue := time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC), ExpiryFor(TypeSimple, issue))
	for _, typ := range []Type{TypeB, TypeC1, TypeC2} {
		assert.Equal(t, time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), ExpiryFor(typ, issue), typ)
	}
}

func TestExpiredAndExpiresWithin(t *testing.T) {
	p := Prescription{ExpiryDate: time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)}

	assert.False(t, p.Expired(time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)), "valid on its expiry day")
	assert.True(t, p.Expired(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))

	assert.True(t, p.ExpiresWithin(time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), 7))
	assert.False(t, p.ExpiresWithin(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 7))
	assert.False(t, p.ExpiresWithin(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), 7), "expired is not expiring")
}
