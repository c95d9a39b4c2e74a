package models

import "time"

// LotStatus is the lifecycle state of an auction lot.
type LotStatus string

const (
	LotStatusDraft     LotStatus = "draft"
	LotStatusPending   LotStatus = "pending"
	LotStatusApproved  LotStatus = "approved"
	LotStatusActive    LotStatus = "active"
	LotStatusEnded     LotStatus = "ended"
	LotStatusSold      LotStatus = "sold"
	LotStatusUnsold    LotStatus = "unsold"
	LotStatusCancelled LotStatus = "cancelled"
)

// Lot is a single antique lot put up for auction.
//
// CurrentBid and TotalBids are a materialized cache over the bids table;
// the reconciler recomputes them from source when they drift.
type Lot struct {
	ID            string        `json:"id"`
	SellerID      string        `json:"seller_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	StartingPrice float64       `json:"starting_price"`
	CurrentBid    float64       `json:"current_bid"`
	BidIncrement  float64       `json:"bid_increment"`
	ReservePrice  float64       `json:"reserve_price,omitempty"` // 0 = no reserve
	AuctionStart  time.Time     `json:"auction_start"`
	AuctionEnd    time.Time     `json:"auction_end"`
	ExtendOnBid   bool          `json:"extend_on_bid"`
	ExtensionTime time.Duration `json:"extension_time"`
	Status        LotStatus     `json:"status"`
	TotalBids     int           `json:"total_bids"`
	UniqueBidders []string      `json:"unique_bidders,omitempty"`
	Revision      int64         `json:"revision"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BiddingOpen reports whether the lot accepts bids at the given instant.
func (l *Lot) BiddingOpen(now time.Time) bool {
	return l.Status == LotStatusActive &&
		!now.Before(l.AuctionStart) &&
		!now.After(l.AuctionEnd)
}

// HasReserve reports whether the seller set a reserve price.
func (l *Lot) HasReserve() bool { return l.ReservePrice > 0 }

// ReserveMet reports whether the current bid satisfies the reserve, if any.
func (l *Lot) ReserveMet() bool {
	return !l.HasReserve() || l.CurrentBid >= l.ReservePrice
}

// AddUniqueBidder records the bidder in the unique-bidder set.
func (l *Lot) AddUniqueBidder(bidderID string) {
	for _, id := range l.UniqueBidders {
		if id == bidderID {
			return
		}
	}
	l.UniqueBidders = append(l.UniqueBidders, bidderID)
}
