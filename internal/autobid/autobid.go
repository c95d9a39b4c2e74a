// Package autobid manages standing maximum-bid orders: a bidder registers
// a private ceiling once and the resolver places the proxy bid for them.
package autobid

import (
	"context"
	"fmt"

	"antiquebid/internal/ledger"
	"antiquebid/internal/models"
)

// Resolver turns ceiling registrations into proxy bids through the ledger.
//
// A competing bid does not automatically re-raise a standing proxy bid;
// callers re-invoke SetAutoBid with the stored ceiling as the upper bound.
// TODO: auto-raise outbid proxy holders up to MaxBid from the admission path.
type Resolver struct {
	store ledger.Store
	led   *ledger.Ledger
}

func New(store ledger.Store, led *ledger.Ledger) *Resolver {
	return &Resolver{store: store, led: led}
}

// SetAutoBid registers or updates the bidder's ceiling on a lot.
//
// With a live proxy bid already standing, only its ceiling changes; no
// new bid is placed. Otherwise a fresh proxy bid enters at the current
// minimum acceptable amount through normal admission, so it becomes the
// winning bid and updates the lot like any other accepted bid.
func (r *Resolver) SetAutoBid(ctx context.Context, lotID, bidderID string, maxAmount float64) (*models.Bid, error) {
	bids, err := r.store.LoadBidsForLot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	for _, b := range bids {
		if b.BidderID != bidderID || !b.IsProxy() || !b.Live() {
			continue
		}
		if maxAmount < b.Amount {
			return nil, &ledger.ValidationError{Rule: "ceiling below standing bid", Minimum: b.Amount}
		}
		b.MaxBid = maxAmount
		if err := r.store.SaveBid(ctx, b); err != nil {
			return nil, fmt.Errorf("update ceiling: %w", err)
		}
		return b, nil
	}

	lot, err := r.store.LoadLot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("load lot: %w", err)
	}
	if lot == nil {
		return nil, ledger.ErrLotNotFound
	}
	minimum := ledger.MinimumBid(lot)
	if maxAmount < minimum {
		return nil, &ledger.ValidationError{Rule: "ceiling below minimum bid", Minimum: minimum}
	}

	adm, err := r.led.AdmitBid(ctx, lotID, bidderID, minimum, models.BidTypeProxy, maxAmount)
	if err != nil {
		return nil, err
	}
	return adm.Accepted, nil
}
