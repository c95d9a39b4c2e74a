package models

import "time"

// BidStatus is the lifecycle state of a bid.
type BidStatus string

const (
	BidStatusActive    BidStatus = "active"
	BidStatusOutbid    BidStatus = "outbid"
	BidStatusWinning   BidStatus = "winning"
	BidStatusWon       BidStatus = "won"
	BidStatusLost      BidStatus = "lost"
	BidStatusCancelled BidStatus = "cancelled"
	BidStatusInvalid   BidStatus = "invalid"
)

// BidType distinguishes manual bids from system-assisted ones.
type BidType string

const (
	BidTypeStandard BidType = "standard"
	BidTypeProxy    BidType = "proxy"
	BidTypeReserve  BidType = "reserve"
	BidTypeMystery  BidType = "mystery"
)

// FraudSeverity grades a fraud flag.
type FraudSeverity string

const (
	SeverityLow      FraudSeverity = "low"
	SeverityMedium   FraudSeverity = "medium"
	SeverityHigh     FraudSeverity = "high"
	SeverityCritical FraudSeverity = "critical"
)

// FraudFlag is one recorded suspicion on a bid.
type FraudFlag struct {
	Type      string        `json:"type"`
	Reason    string        `json:"reason"`
	Severity  FraudSeverity `json:"severity"`
	FlaggedAt time.Time     `json:"flagged_at"`
}

// BidPattern holds rolling timing/amount statistics for a bidder on one lot.
// Both windows keep at most the 10 most recent entries, oldest evicted first.
type BidPattern struct {
	TimeBetweenBids    []time.Duration `json:"time_between_bids,omitempty"`
	BidIncreasePattern []float64       `json:"bid_increase_pattern,omitempty"`
	AvgBidTime         time.Duration   `json:"avg_bid_time,omitempty"`
	QuickBids          int             `json:"quick_bids,omitempty"`
	LastMinuteBids     int             `json:"last_minute_bids,omitempty"`
}

// Bid is a single offer on a lot. Exactly one bid per lot may hold
// BidStatusWinning at any instant; the ledger enforces that.
type Bid struct {
	ID         string      `json:"id"`
	LotID      string      `json:"lot_id"`
	BidderID   string      `json:"bidder_id"`
	Amount     float64     `json:"amount"`
	MaxBid     float64     `json:"max_bid,omitempty"` // proxy ceiling, 0 for non-proxy bids
	Type       BidType     `json:"type"`
	Status     BidStatus   `json:"status"`
	PlacedAt   time.Time   `json:"placed_at"`
	ValidUntil time.Time   `json:"valid_until"`
	FraudScore int         `json:"fraud_score"`
	FraudFlags []FraudFlag `json:"fraud_flags,omitempty"`
	Pattern    BidPattern  `json:"bid_pattern"`
}

// IsWinning reports whether the bid currently leads its lot.
// Derived from Status so the two can never disagree.
func (b *Bid) IsWinning() bool { return b.Status == BidStatusWinning }

// IsProxy reports whether the bid carries an auto-bid ceiling.
func (b *Bid) IsProxy() bool { return b.Type == BidTypeProxy }

// IsValid reports whether the bid is still inside its advisory validity
// window. Expiry is not swept in the background; callers check on read.
func (b *Bid) IsValid(now time.Time) bool {
	return now.Before(b.ValidUntil)
}

// Live reports whether the bid still participates in ranking.
func (b *Bid) Live() bool {
	switch b.Status {
	case BidStatusActive, BidStatusOutbid, BidStatusWinning:
		return true
	}
	return false
}
