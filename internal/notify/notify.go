// Package notify fans bidding events out over Redis pub/sub. Delivery is
// fire-and-forget: publish failures are logged and never fail or roll
// back the admission that produced them.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventBidUpdate     = "bid_update"
	EventOutbid        = "outbid"
	EventNewBid        = "new_bid"
	EventAuctionClosed = "auction_closed"
)

// LotTopic is the channel lot watchers subscribe to.
func LotTopic(lotID string) string { return "lot:" + lotID + ":events" }

// UserTopic is the channel for events addressed to a single user.
func UserTopic(userID string) string { return "user:" + userID + ":events" }

// BidUpdate goes to everyone watching the lot.
type BidUpdate struct {
	Event           string  `json:"event"`
	LotID           string  `json:"lot_id"`
	Amount          float64 `json:"amount"`
	BidderID        string  `json:"bidder_id"`
	TotalBids       int     `json:"total_bids"`
	TimeRemainingMs int64   `json:"time_remaining_ms"`
}

// Outbid goes to the bidder who just lost the lead.
type Outbid struct {
	Event  string  `json:"event"`
	LotID  string  `json:"lot_id"`
	Amount float64 `json:"amount"`
}

// NewBid goes to the seller.
type NewBid struct {
	Event    string  `json:"event"`
	LotID    string  `json:"lot_id"`
	Amount   float64 `json:"amount"`
	BidderID string  `json:"bidder_id"`
}

// AuctionClosed goes to lot watchers when the clock or an admin closes
// the auction.
type AuctionClosed struct {
	Event      string  `json:"event"`
	LotID      string  `json:"lot_id"`
	Status     string  `json:"status"`
	FinalPrice float64 `json:"final_price"`
	WinnerID   string  `json:"winner_id,omitempty"`
}

// Publisher is the outbound event capability the bidding core needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// RedisPublisher publishes JSON payloads to Redis channels.
type RedisPublisher struct {
	rdc *redis.Client
}

func NewRedisPublisher(rdc *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdc: rdc}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("notify_marshal", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := p.rdc.Publish(ctx, topic, body).Err(); err != nil {
		zap.L().Warn("notify_publish", zap.String("topic", topic), zap.Error(err))
	}
}
