// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"antiquebid/internal/ledger"
	"antiquebid/internal/models"
)

// Store keeps lots and bids in maps, hands out copies, and mimics the
// revision compare-and-swap of the Postgres store. InTx applies writes
// directly; tests that need rollback semantics are not the point here.
type Store struct {
	mu   sync.Mutex
	lots map[string]*models.Lot
	bids map[string]*models.Bid
}

var _ ledger.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		lots: make(map[string]*models.Lot),
		bids: make(map[string]*models.Bid),
	}
}

// PutLot seeds a lot, assigning revision 1 when unset.
func (s *Store) PutLot(lot *models.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lot.Revision == 0 {
		lot.Revision = 1
	}
	s.lots[lot.ID] = copyLot(lot)
}

// PutBid seeds a bid directly, bypassing admission.
func (s *Store) PutBid(bid *models.Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bid.ID] = copyBid(bid)
}

func (s *Store) LoadLot(_ context.Context, lotID string) (*models.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return nil, nil
	}
	return copyLot(lot), nil
}

func (s *Store) SaveLot(_ context.Context, lot *models.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.lots[lot.ID]
	if !ok {
		lot.Revision = 1
		s.lots[lot.ID] = copyLot(lot)
		return nil
	}
	if stored.Revision != lot.Revision {
		return ledger.ErrConcurrencyConflict
	}
	lot.Revision++
	s.lots[lot.ID] = copyLot(lot)
	return nil
}

func (s *Store) LoadBid(_ context.Context, bidID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids[bidID]
	if !ok {
		return nil, nil
	}
	return copyBid(bid), nil
}

func (s *Store) LoadBidsForLot(_ context.Context, lotID string) ([]*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Bid
	for _, b := range s.bids {
		if b.LotID == lotID {
			out = append(out, copyBid(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

func (s *Store) SaveBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bid.ID] = copyBid(bid)
	return nil
}

func (s *Store) FindWinningBid(_ context.Context, lotID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bids {
		if b.LotID == lotID && b.Status == models.BidStatusWinning {
			return copyBid(b), nil
		}
	}
	return nil, nil
}

func (s *Store) FindNextHighestBid(_ context.Context, lotID, excludeBidID string) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*models.Bid
	for _, b := range s.bids {
		if b.LotID != lotID || b.ID == excludeBidID {
			continue
		}
		if b.Status == models.BidStatusActive || b.Status == models.BidStatusOutbid {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].PlacedAt.Before(candidates[j].PlacedAt)
	})
	return copyBid(candidates[0]), nil
}

func (s *Store) InTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(s)
}

// ListLots pages through stored lots, optionally filtered by status,
// most recently ending first.
func (s *Store) ListLots(_ context.Context, status string, limit, offset int) ([]*models.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Lot
	for _, l := range s.lots {
		if status != "" && string(l.Status) != status {
			continue
		}
		out = append(out, copyLot(l))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AuctionEnd.After(out[j].AuctionEnd)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WinningBids returns every winning bid on the lot, for invariant checks.
func (s *Store) WinningBids(lotID string) []*models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Bid
	for _, b := range s.bids {
		if b.LotID == lotID && b.Status == models.BidStatusWinning {
			out = append(out, copyBid(b))
		}
	}
	return out
}

func copyLot(l *models.Lot) *models.Lot {
	c := *l
	c.UniqueBidders = append([]string(nil), l.UniqueBidders...)
	return &c
}

func copyBid(b *models.Bid) *models.Bid {
	c := *b
	c.FraudFlags = append([]models.FraudFlag(nil), b.FraudFlags...)
	c.Pattern.TimeBetweenBids = append([]time.Duration(nil), b.Pattern.TimeBetweenBids...)
	c.Pattern.BidIncreasePattern = append([]float64(nil), b.Pattern.BidIncreasePattern...)
	return &c
}
