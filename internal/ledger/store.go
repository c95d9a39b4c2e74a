package ledger

import (
	"context"

	"antiquebid/internal/models"
)

// Store is the persistence collaborator the ledger drives its state
// transitions through. The ledger owns no storage itself; it is a view
// over the bids of one lot.
//
// SaveLot must compare-and-swap on Lot.Revision and return
// ErrConcurrencyConflict when the stored revision moved, so concurrent
// admissions on the same lot cannot both commit against stale state.
type Store interface {
	LoadLot(ctx context.Context, lotID string) (*models.Lot, error)
	SaveLot(ctx context.Context, lot *models.Lot) error

	LoadBid(ctx context.Context, bidID string) (*models.Bid, error)
	LoadBidsForLot(ctx context.Context, lotID string) ([]*models.Bid, error)
	SaveBid(ctx context.Context, bid *models.Bid) error

	// FindWinningBid returns the lot's current winning bid, or nil.
	FindWinningBid(ctx context.Context, lotID string) (*models.Bid, error)

	// FindNextHighestBid returns the highest live (active or outbid) bid
	// on the lot excluding the given bid, or nil. Ties on amount resolve
	// to the earliest placed bid.
	FindNextHighestBid(ctx context.Context, lotID, excludeBidID string) (*models.Bid, error)

	// InTx runs fn against a transactional view of the store. Either every
	// write inside fn commits or none do.
	InTx(ctx context.Context, fn func(Store) error) error
}
