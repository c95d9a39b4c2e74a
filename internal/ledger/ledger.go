// Package ledger owns the ordered bid history of a lot and the state
// transitions applied to it: admission of new bids, demotion of the
// previous leader, and cancellation with promotion of the runner-up.
// It enforces the invariant that at most one bid per lot is winning.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"antiquebid/internal/fraud"
	"antiquebid/internal/models"
)

// Config tunes ledger behaviour. Zero values fall back to defaults.
type Config struct {
	// BidValidFor is the advisory validity window stamped on new bids.
	BidValidFor time.Duration

	// CancelWindow is how long after placement a non-proxy bid may be
	// cancelled.
	CancelWindow time.Duration

	// Extend, when set, is applied to the lot after a bid is accepted and
	// before the lot is persisted. It returns whether the end time moved.
	Extend func(lot *models.Lot, now time.Time) bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultBidValidFor  = 24 * time.Hour
	defaultCancelWindow = 5 * time.Minute
)

type Ledger struct {
	store Store
	cfg   Config
}

func New(store Store, cfg Config) *Ledger {
	if cfg.BidValidFor <= 0 {
		cfg.BidValidFor = defaultBidValidFor
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = defaultCancelWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{store: store, cfg: cfg}
}

// Admission is the outcome of an accepted bid.
type Admission struct {
	Accepted   *models.Bid
	Superseded *models.Bid // previous winning bid, now outbid; nil on first bid
	Lot        *models.Lot
	Extended   bool // whether the anti-snipe rule moved the end time
}

// Cancellation is the outcome of a cancelled bid.
type Cancellation struct {
	Cancelled *models.Bid
	Promoted  *models.Bid // runner-up promoted to winning; nil if none
	Lot       *models.Lot
}

// MinimumBid computes the least acceptable next bid on the lot: the
// higher of current bid and starting price, plus one increment.
func MinimumBid(lot *models.Lot) float64 {
	base := decimal.NewFromFloat(lot.StartingPrice)
	if cur := decimal.NewFromFloat(lot.CurrentBid); lot.TotalBids > 0 && cur.GreaterThan(base) {
		base = cur
	}
	return base.Add(decimal.NewFromFloat(lot.BidIncrement)).InexactFloat64()
}

// AdmitBid validates and commits a new bid on the lot as one atomic unit.
// On acceptance the previous winning bid (if any) is demoted to outbid,
// the new bid becomes winning with its fraud score computed from the
// bidder's prior timing on this lot, and the lot's cached price/counters
// are updated in the same transaction.
//
// Rejections (ErrAuctionNotActive, ErrSelfBid, *ValidationError) are
// detected before any mutation. ErrConcurrencyConflict means the lot
// moved under us; the caller should re-attempt.
func (l *Ledger) AdmitBid(ctx context.Context, lotID, bidderID string, amount float64, bidType models.BidType, maxBid float64) (*Admission, error) {
	now := l.cfg.Now()

	var adm *Admission
	err := l.store.InTx(ctx, func(tx Store) error {
		lot, err := tx.LoadLot(ctx, lotID)
		if err != nil {
			return fmt.Errorf("load lot: %w", err)
		}
		if lot == nil {
			return ErrLotNotFound
		}

		if !lot.BiddingOpen(now) {
			return ErrAuctionNotActive
		}
		if bidderID == lot.SellerID {
			return ErrSelfBid
		}
		minimum := MinimumBid(lot)
		if amount < minimum {
			return &ValidationError{Rule: "bid below minimum", Minimum: minimum}
		}

		history, err := tx.LoadBidsForLot(ctx, lotID)
		if err != nil {
			return fmt.Errorf("load bids: %w", err)
		}
		var own []*models.Bid
		for _, b := range history {
			if b.BidderID == bidderID {
				own = append(own, b)
			}
		}
		assessment := fraud.Evaluate(amount, now, own, lot.AuctionEnd)

		superseded, err := tx.FindWinningBid(ctx, lotID)
		if err != nil {
			return fmt.Errorf("find winning bid: %w", err)
		}
		if superseded != nil {
			superseded.Status = models.BidStatusOutbid
			if err := tx.SaveBid(ctx, superseded); err != nil {
				return fmt.Errorf("demote bid: %w", err)
			}
		}

		accepted := &models.Bid{
			ID:         uuid.NewString(),
			LotID:      lotID,
			BidderID:   bidderID,
			Amount:     amount,
			MaxBid:     maxBid,
			Type:       bidType,
			Status:     models.BidStatusWinning,
			PlacedAt:   now,
			ValidUntil: now.Add(l.cfg.BidValidFor),
			FraudScore: assessment.Score,
			FraudFlags: assessment.Flags,
			Pattern:    assessment.Pattern,
		}
		if err := tx.SaveBid(ctx, accepted); err != nil {
			return fmt.Errorf("save bid: %w", err)
		}

		lot.CurrentBid = amount
		lot.TotalBids++
		lot.AddUniqueBidder(bidderID)

		extended := false
		if l.cfg.Extend != nil {
			extended = l.cfg.Extend(lot, now)
		}

		if err := tx.SaveLot(ctx, lot); err != nil {
			return err
		}

		adm = &Admission{Accepted: accepted, Superseded: superseded, Lot: lot, Extended: extended}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adm, nil
}

// CancelBid withdraws a bid. Only proxy bids, or bids younger than the
// cancel window, may be cancelled; bids already settled as won or lost
// are immutable. Cancelling the winning bid promotes the next-highest
// live bid (ties broken by earliest placement) or, with none left,
// resets the lot's current bid to its starting price.
func (l *Ledger) CancelBid(ctx context.Context, bidID string) (*Cancellation, error) {
	now := l.cfg.Now()

	var cn *Cancellation
	err := l.store.InTx(ctx, func(tx Store) error {
		bid, err := tx.LoadBid(ctx, bidID)
		if err != nil {
			return fmt.Errorf("load bid: %w", err)
		}
		if bid == nil {
			return ErrBidNotFound
		}
		if !bid.Live() {
			return ErrCancellationNotAllowed
		}
		if !bid.IsProxy() && now.Sub(bid.PlacedAt) >= l.cfg.CancelWindow {
			return ErrCancellationNotAllowed
		}

		lot, err := tx.LoadLot(ctx, bid.LotID)
		if err != nil {
			return fmt.Errorf("load lot: %w", err)
		}
		if lot == nil {
			return ErrLotNotFound
		}

		wasWinning := bid.IsWinning()
		bid.Status = models.BidStatusCancelled
		if err := tx.SaveBid(ctx, bid); err != nil {
			return fmt.Errorf("cancel bid: %w", err)
		}

		var promoted *models.Bid
		if wasWinning {
			promoted, err = tx.FindNextHighestBid(ctx, bid.LotID, bid.ID)
			if err != nil {
				return fmt.Errorf("find next highest: %w", err)
			}
			if promoted != nil {
				promoted.Status = models.BidStatusWinning
				if err := tx.SaveBid(ctx, promoted); err != nil {
					return fmt.Errorf("promote bid: %w", err)
				}
				lot.CurrentBid = promoted.Amount
			} else {
				lot.CurrentBid = lot.StartingPrice
			}
		}

		lot.TotalBids--
		if err := tx.SaveLot(ctx, lot); err != nil {
			return err
		}

		cn = &Cancellation{Cancelled: bid, Promoted: promoted, Lot: lot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cn, nil
}
