package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hydit/hydit-backend/internal/pricing"
)

func TestCreditsToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(0), pricing.CreditsToMinorUnits(0))
	assert.Equal(t, int64(8300), pricing.CreditsToMinorUnits(1))
	assert.Equal(t, int64(5*83*100), pricing.CreditsToMinorUnits(5))
}

func TestListingCost(t *testing.T) {
	assert.Equal(t, int64(0), pricing.ListingCost(4, 0))
	assert.Equal(t, int64(8), pricing.ListingCost(4, 2))
	assert.Equal(t, int64(250), pricing.ListingCost(50, 5))
}
