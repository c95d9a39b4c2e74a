package autobid_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antiquebid/internal/autobid"
	"antiquebid/internal/ledger"
	"antiquebid/internal/ledger/ledgertest"
	"antiquebid/internal/models"
)

var now = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

func setup() (*ledgertest.Store, *ledger.Ledger, *autobid.Resolver) {
	st := ledgertest.NewStore()
	st.PutLot(&models.Lot{
		ID:            "lot-1",
		SellerID:      "seller-1",
		Title:         "Edwardian pocket watch",
		StartingPrice: 100,
		BidIncrement:  10,
		AuctionStart:  now.Add(-time.Hour),
		AuctionEnd:    now.Add(time.Hour),
		Status:        models.LotStatusActive,
	})
	led := ledger.New(st, ledger.Config{Now: func() time.Time { return now }})
	return st, led, autobid.New(st, led)
}

func TestNewCeilingPlacesProxyAtMinimum(t *testing.T) {
	ctx := context.Background()
	st, _, r := setup()

	bid, err := r.SetAutoBid(ctx, "lot-1", "b1", 500)
	require.NoError(t, err)
	assert.Equal(t, 110.0, bid.Amount)
	assert.Equal(t, 500.0, bid.MaxBid)
	assert.Equal(t, models.BidTypeProxy, bid.Type)
	assert.Equal(t, models.BidStatusWinning, bid.Status)

	lot, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, 110.0, lot.CurrentBid)
	assert.Equal(t, 1, lot.TotalBids)
}

func TestCeilingUpdateLeavesStandingBidInPlace(t *testing.T) {
	ctx := context.Background()
	st, _, r := setup()

	first, err := r.SetAutoBid(ctx, "lot-1", "b1", 500)
	require.NoError(t, err)

	second, err := r.SetAutoBid(ctx, "lot-1", "b1", 600)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 110.0, second.Amount)
	assert.Equal(t, 600.0, second.MaxBid)

	lot, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, 1, lot.TotalBids)
}

func TestCeilingBelowMinimumRejected(t *testing.T) {
	_, _, r := setup()

	_, err := r.SetAutoBid(context.Background(), "lot-1", "b1", 105)
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 110.0, ve.Minimum)
}

func TestCeilingBelowStandingAmountRejected(t *testing.T) {
	ctx := context.Background()
	_, led, r := setup()

	_, err := r.SetAutoBid(ctx, "lot-1", "b1", 500)
	require.NoError(t, err)

	// Being outbid does not move the standing proxy bid, so the ceiling
	// still cannot drop below the amount it was placed at.
	_, err = led.AdmitBid(ctx, "lot-1", "b2", 200, models.BidTypeStandard, 0)
	require.NoError(t, err)

	_, err = r.SetAutoBid(ctx, "lot-1", "b1", 50)
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 110.0, ve.Minimum)
}

func TestCompetingBidDoesNotAutoRaiseProxy(t *testing.T) {
	ctx := context.Background()
	st, led, r := setup()

	proxy, err := r.SetAutoBid(ctx, "lot-1", "b1", 500)
	require.NoError(t, err)

	adm, err := led.AdmitBid(ctx, "lot-1", "b2", 120, models.BidTypeStandard, 0)
	require.NoError(t, err)
	assert.Equal(t, proxy.ID, adm.Superseded.ID)

	// The outbid proxy stays at its original amount; no counter-bid fires.
	stored, _ := st.LoadBid(ctx, proxy.ID)
	assert.Equal(t, models.BidStatusOutbid, stored.Status)
	assert.Equal(t, 110.0, stored.Amount)

	lot, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, 120.0, lot.CurrentBid)
	assert.Equal(t, 2, lot.TotalBids)
}

func TestAutoBidOnUnknownLot(t *testing.T) {
	_, _, r := setup()

	_, err := r.SetAutoBid(context.Background(), "nope", "b1", 500)
	assert.ErrorIs(t, err, ledger.ErrLotNotFound)
}
