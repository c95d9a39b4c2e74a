package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotActive       = errors.New("auction not active")
	ErrSelfBid                = errors.New("seller cannot bid on own lot")
	ErrCancellationNotAllowed = errors.New("bid cancellation not allowed")
	ErrConcurrencyConflict    = errors.New("lot changed concurrently, retry admission")
	ErrLotNotFound            = errors.New("lot not found")
	ErrBidNotFound            = errors.New("bid not found")
)

// ValidationError rejects a below-minimum bid and carries the computed
// minimum so the caller can surface it. Admission never mutates state
// before returning one, so retrying with a corrected amount is safe.
type ValidationError struct {
	Rule    string  `json:"rule"`
	Minimum float64 `json:"minimum"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: minimum acceptable bid is %.2f", e.Rule, e.Minimum)
}
