package lothandler

import "time"

type CreateLotBody struct {
	SellerID      string    `json:"seller_id"      binding:"required"       example:"seller123"`
	Title         string    `json:"title"          binding:"required"       example:"Louis XV walnut commode"`
	Description   string    `json:"description"    example:"Mid-18th century, restored 1998"`
	StartingPrice float64   `json:"starting_price" binding:"gte=0"          example:"100"`
	BidIncrement  float64   `json:"bid_increment"  binding:"required,gt=0"  example:"10"`
	ReservePrice  float64   `json:"reserve_price"  binding:"gte=0"          example:"250"`
	AuctionStart  time.Time `json:"auction_start"  binding:"required"       example:"2025-07-27T16:05:05Z"`
	AuctionEnd    time.Time `json:"auction_end"    binding:"required"       example:"2025-07-28T16:05:05Z"`
	ExtendOnBid   bool      `json:"extend_on_bid"  example:"true"`
	ExtensionMs   int64     `json:"extension_ms"   binding:"gte=0"          example:"300000"`
} // @name CreateLotRequest

type PlaceBidBody struct {
	BidderID string  `json:"bidder_id" binding:"required"      example:"user123"`
	Amount   float64 `json:"amount"    binding:"required,gt=0" example:"110"`
} // @name PlaceBidRequest

type AutoBidBody struct {
	BidderID  string  `json:"bidder_id"  binding:"required"      example:"user123"`
	MaxAmount float64 `json:"max_amount" binding:"required,gt=0" example:"500"`
} // @name AutoBidRequest

type BidPlacedResponse struct {
	BidID      string    `json:"bid_id"`
	Amount     float64   `json:"amount"`
	FraudScore int       `json:"fraud_score"`
	CurrentBid float64   `json:"current_bid"`
	TotalBids  int       `json:"total_bids"`
	AuctionEnd time.Time `json:"auction_end"`
	Extended   bool      `json:"extended"`
} // @name BidPlacedResponse

type ErrorResponse struct {
	Error   string  `json:"error"`
	Minimum float64 `json:"minimum,omitempty"`
} // @name ErrorResponse

type ListLotsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=draft pending approved active ended sold unsold cancelled"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListLotsQuery
