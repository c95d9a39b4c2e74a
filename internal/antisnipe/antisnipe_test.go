package antisnipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"antiquebid/internal/models"
)

func TestExtendInsideWindow(t *testing.T) {
	now := time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)
	lot := &models.Lot{
		ExtendOnBid:   true,
		ExtensionTime: 300 * time.Second,
		AuctionEnd:    now.Add(200 * time.Second),
	}
	origEnd := lot.AuctionEnd

	assert.True(t, Extend(lot, now))
	assert.Equal(t, origEnd.Add(300*time.Second), lot.AuctionEnd)
}

func TestNoExtendOutsideWindow(t *testing.T) {
	now := time.Now()
	lot := &models.Lot{
		ExtendOnBid:   true,
		ExtensionTime: 5 * time.Minute,
		AuctionEnd:    now.Add(time.Hour),
	}
	origEnd := lot.AuctionEnd

	assert.False(t, Extend(lot, now))
	assert.Equal(t, origEnd, lot.AuctionEnd)
}

func TestNoExtendWhenDisabled(t *testing.T) {
	now := time.Now()
	lot := &models.Lot{
		ExtendOnBid:   false,
		ExtensionTime: 5 * time.Minute,
		AuctionEnd:    now.Add(time.Minute),
	}

	assert.False(t, Extend(lot, now))
}

func TestRepeatedExtensionsStayMonotonic(t *testing.T) {
	now := time.Now()
	lot := &models.Lot{
		ExtendOnBid:   true,
		ExtensionTime: 5 * time.Minute,
		AuctionEnd:    now.Add(time.Minute),
	}

	prev := lot.AuctionEnd
	for i := 0; i < 5; i++ {
		// Each qualifying bid extends again; there is no cap.
		Extend(lot, lot.AuctionEnd.Add(-time.Minute))
		assert.False(t, lot.AuctionEnd.Before(prev))
		prev = lot.AuctionEnd
	}
}
