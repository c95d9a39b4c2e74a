package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antiquebid/internal/antisnipe"
	"antiquebid/internal/ledger"
	"antiquebid/internal/ledger/ledgertest"
	"antiquebid/internal/models"
)

var now = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

func newLedger(st *ledgertest.Store) *ledger.Ledger {
	return ledger.New(st, ledger.Config{
		Now: func() time.Time { return now },
	})
}

func activeLot() *models.Lot {
	return &models.Lot{
		ID:            "lot-1",
		SellerID:      "seller-1",
		Title:         "Victorian writing desk",
		StartingPrice: 100,
		BidIncrement:  10,
		AuctionStart:  now.Add(-time.Hour),
		AuctionEnd:    now.Add(time.Hour),
		Status:        models.LotStatusActive,
	}
}

func TestMinimumBid(t *testing.T) {
	cases := []struct {
		name       string
		currentBid float64
		totalBids  int
		want       float64
	}{
		{"no bids yet", 0, 0, 110},
		{"current above start", 150, 3, 160},
		{"current below start", 50, 2, 110},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lot := activeLot()
			lot.CurrentBid = tc.currentBid
			lot.TotalBids = tc.totalBids
			assert.Equal(t, tc.want, ledger.MinimumBid(lot))
		})
	}
}

func TestFirstBidBelowMinimumRejected(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	led := newLedger(st)

	_, err := led.AdmitBid(ctx, "lot-1", "b1", 105, models.BidTypeStandard, 0)
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 110.0, ve.Minimum)

	// Retrying the same bid is rejected identically, nothing mutated.
	_, err = led.AdmitBid(ctx, "lot-1", "b1", 105, models.BidTypeStandard, 0)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 110.0, ve.Minimum)

	lot, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, 0, lot.TotalBids)
	assert.Zero(t, lot.CurrentBid)

	adm, err := led.AdmitBid(ctx, "lot-1", "b1", 110, models.BidTypeStandard, 0)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusWinning, adm.Accepted.Status)
	assert.Nil(t, adm.Superseded)
	assert.Equal(t, 110.0, adm.Lot.CurrentBid)
	assert.Equal(t, 1, adm.Lot.TotalBids)
	assert.Equal(t, []string{"b1"}, adm.Lot.UniqueBidders)
}

func TestHigherBidSupersedesLeader(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	led := newLedger(st)

	adm1, err := led.AdmitBid(ctx, "lot-1", "b1", 110, models.BidTypeStandard, 0)
	require.NoError(t, err)

	adm2, err := led.AdmitBid(ctx, "lot-1", "b2", 120, models.BidTypeStandard, 0)
	require.NoError(t, err)

	require.NotNil(t, adm2.Superseded)
	assert.Equal(t, adm1.Accepted.ID, adm2.Superseded.ID)
	assert.Equal(t, 120.0, adm2.Lot.CurrentBid)
	assert.Equal(t, 2, adm2.Lot.TotalBids)
	assert.ElementsMatch(t, []string{"b1", "b2"}, adm2.Lot.UniqueBidders)

	first, _ := st.LoadBid(ctx, adm1.Accepted.ID)
	assert.Equal(t, models.BidStatusOutbid, first.Status)

	winning := st.WinningBids("lot-1")
	require.Len(t, winning, 1)
	assert.Equal(t, adm2.Accepted.ID, winning[0].ID)
}

func TestSellerCannotBidOnOwnLot(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	led := newLedger(st)

	_, err := led.AdmitBid(ctx, "lot-1", "seller-1", 110, models.BidTypeStandard, 0)
	assert.ErrorIs(t, err, ledger.ErrSelfBid)

	lot, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, 0, lot.TotalBids)
}

func TestBidOutsideBiddingWindowRejected(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()

	pending := activeLot()
	pending.ID = "lot-pending"
	pending.Status = models.LotStatusPending
	st.PutLot(pending)

	ended := activeLot()
	ended.ID = "lot-ended"
	ended.AuctionEnd = now.Add(-time.Minute)
	st.PutLot(ended)

	led := newLedger(st)

	_, err := led.AdmitBid(ctx, "lot-pending", "b1", 110, models.BidTypeStandard, 0)
	assert.ErrorIs(t, err, ledger.ErrAuctionNotActive)

	_, err = led.AdmitBid(ctx, "lot-ended", "b1", 110, models.BidTypeStandard, 0)
	assert.ErrorIs(t, err, ledger.ErrAuctionNotActive)
}

func TestBidOnUnknownLot(t *testing.T) {
	led := newLedger(ledgertest.NewStore())

	_, err := led.AdmitBid(context.Background(), "nope", "b1", 110, models.BidTypeStandard, 0)
	assert.ErrorIs(t, err, ledger.ErrLotNotFound)
}

func TestCancelSoleWinningBid(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	led := newLedger(st)

	adm, err := led.AdmitBid(ctx, "lot-1", "b1", 110, models.BidTypeStandard, 0)
	require.NoError(t, err)

	cn, err := led.CancelBid(ctx, adm.Accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusCancelled, cn.Cancelled.Status)
	assert.Nil(t, cn.Promoted)
	assert.Equal(t, 100.0, cn.Lot.CurrentBid)
	assert.Equal(t, 0, cn.Lot.TotalBids)
	assert.Empty(t, st.WinningBids("lot-1"))
}

func TestCancelWinningPromotesRunnerUp(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	led := newLedger(st)

	adm1, err := led.AdmitBid(ctx, "lot-1", "b1", 110, models.BidTypeStandard, 0)
	require.NoError(t, err)
	adm2, err := led.AdmitBid(ctx, "lot-1", "b2", 120, models.BidTypeStandard, 0)
	require.NoError(t, err)

	cn, err := led.CancelBid(ctx, adm2.Accepted.ID)
	require.NoError(t, err)
	require.NotNil(t, cn.Promoted)
	assert.Equal(t, adm1.Accepted.ID, cn.Promoted.ID)
	assert.Equal(t, 110.0, cn.Lot.CurrentBid)
	assert.Equal(t, 1, cn.Lot.TotalBids)

	winning := st.WinningBids("lot-1")
	require.Len(t, winning, 1)
	assert.Equal(t, adm1.Accepted.ID, winning[0].ID)
}

func TestPromotionTieBreaksOnEarliestPlacement(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()

	lot := activeLot()
	lot.CurrentBid = 150
	lot.TotalBids = 3
	st.PutLot(lot)

	st.PutBid(&models.Bid{
		ID: "w", LotID: "lot-1", BidderID: "b3", Amount: 150,
		Type: models.BidTypeStandard, Status: models.BidStatusWinning,
		PlacedAt: now.Add(-time.Minute),
	})
	st.PutBid(&models.Bid{
		ID: "early", LotID: "lot-1", BidderID: "b1", Amount: 120,
		Type: models.BidTypeStandard, Status: models.BidStatusOutbid,
		PlacedAt: now.Add(-10 * time.Minute),
	})
	st.PutBid(&models.Bid{
		ID: "late", LotID: "lot-1", BidderID: "b2", Amount: 120,
		Type: models.BidTypeStandard, Status: models.BidStatusOutbid,
		PlacedAt: now.Add(-5 * time.Minute),
	})

	led := newLedger(st)
	cn, err := led.CancelBid(ctx, "w")
	require.NoError(t, err)
	require.NotNil(t, cn.Promoted)
	assert.Equal(t, "early", cn.Promoted.ID)
	assert.Equal(t, 120.0, cn.Lot.CurrentBid)
}

func TestCancelWindowExpired(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()

	lot := activeLot()
	lot.CurrentBid = 110
	lot.TotalBids = 1
	st.PutLot(lot)
	st.PutBid(&models.Bid{
		ID: "old", LotID: "lot-1", BidderID: "b1", Amount: 110,
		Type: models.BidTypeStandard, Status: models.BidStatusWinning,
		PlacedAt: now.Add(-10 * time.Minute),
	})

	led := newLedger(st)
	_, err := led.CancelBid(ctx, "old")
	assert.ErrorIs(t, err, ledger.ErrCancellationNotAllowed)
}

func TestProxyBidCancellableAfterWindow(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()

	lot := activeLot()
	lot.CurrentBid = 110
	lot.TotalBids = 1
	st.PutLot(lot)
	st.PutBid(&models.Bid{
		ID: "proxy", LotID: "lot-1", BidderID: "b1", Amount: 110, MaxBid: 500,
		Type: models.BidTypeProxy, Status: models.BidStatusWinning,
		PlacedAt: now.Add(-10 * time.Minute),
	})

	led := newLedger(st)
	cn, err := led.CancelBid(ctx, "proxy")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusCancelled, cn.Cancelled.Status)
}

func TestSettledBidsAreImmutable(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()
	st.PutLot(activeLot())
	st.PutBid(&models.Bid{
		ID: "won", LotID: "lot-1", BidderID: "b1", Amount: 110,
		Type: models.BidTypeStandard, Status: models.BidStatusWon,
		PlacedAt: now.Add(-time.Minute),
	})

	led := newLedger(st)
	_, err := led.CancelBid(ctx, "won")
	assert.ErrorIs(t, err, ledger.ErrCancellationNotAllowed)
}

func TestAntiSnipeExtensionApplied(t *testing.T) {
	ctx := context.Background()
	st := ledgertest.NewStore()

	lot := activeLot()
	lot.ExtendOnBid = true
	lot.ExtensionTime = 300 * time.Second
	lot.AuctionEnd = now.Add(200 * time.Second)
	st.PutLot(lot)

	led := ledger.New(st, ledger.Config{
		Extend: antisnipe.Extend,
		Now:    func() time.Time { return now },
	})

	adm, err := led.AdmitBid(ctx, "lot-1", "b1", 110, models.BidTypeStandard, 0)
	require.NoError(t, err)
	assert.True(t, adm.Extended)
	assert.Equal(t, now.Add(500*time.Second), adm.Lot.AuctionEnd)

	stored, _ := st.LoadLot(ctx, "lot-1")
	assert.Equal(t, now.Add(500*time.Second), stored.AuctionEnd)

	// Next bid lands well outside the window, no further extension.
	adm2, err := led.AdmitBid(ctx, "lot-1", "b2", 120, models.BidTypeStandard, 0)
	require.NoError(t, err)
	assert.False(t, adm2.Extended)
	assert.Equal(t, now.Add(500*time.Second), adm2.Lot.AuctionEnd)
}
