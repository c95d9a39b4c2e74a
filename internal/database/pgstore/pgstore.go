// Package pgstore implements the ledger's persistence collaborator on
// Postgres. Lots carry a revision column; SaveLot compare-and-swaps on
// it so concurrent admissions surface as ledger.ErrConcurrencyConflict
// instead of lost updates.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"antiquebid/internal/ledger"
	"antiquebid/internal/models"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB // nil inside a transaction
	q  querier
}

var _ ledger.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// InTx runs fn against a transactional store. Nested calls reuse the
// surrounding transaction.
func (s *Store) InTx(ctx context.Context, fn func(ledger.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const lotColumns = `id, seller_id, title, description, starting_price, current_bid,
       bid_increment, reserve_price, auction_start, auction_end,
       extend_on_bid, extension_ms, status, total_bids, unique_bidders,
       revision, created_at, updated_at`

func (s *Store) LoadLot(ctx context.Context, lotID string) (*models.Lot, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = $1`, lotID)
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lot, err
}

func (s *Store) SaveLot(ctx context.Context, lot *models.Lot) error {
	bidders, err := json.Marshal(lot.UniqueBidders)
	if err != nil {
		return fmt.Errorf("marshal unique bidders: %w", err)
	}

	if lot.Revision == 0 {
		_, err := s.q.ExecContext(ctx, `
		  INSERT INTO lots (id, seller_id, title, description, starting_price,
		                    current_bid, bid_increment, reserve_price,
		                    auction_start, auction_end, extend_on_bid, extension_ms,
		                    status, total_bids, unique_bidders, revision,
		                    created_at, updated_at)
		       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1,now(),now())`,
			lot.ID, lot.SellerID, lot.Title, lot.Description, lot.StartingPrice,
			lot.CurrentBid, lot.BidIncrement, lot.ReservePrice,
			lot.AuctionStart, lot.AuctionEnd, lot.ExtendOnBid, lot.ExtensionTime.Milliseconds(),
			lot.Status, lot.TotalBids, bidders)
		if err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}
		lot.Revision = 1
		return nil
	}

	res, err := s.q.ExecContext(ctx, `
	  UPDATE lots
	     SET current_bid = $1, auction_end = $2, status = $3, total_bids = $4,
	         unique_bidders = $5, revision = revision + 1, updated_at = now()
	   WHERE id = $6 AND revision = $7`,
		lot.CurrentBid, lot.AuctionEnd, lot.Status, lot.TotalBids,
		bidders, lot.ID, lot.Revision)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	if n == 0 {
		return ledger.ErrConcurrencyConflict
	}
	lot.Revision++
	return nil
}

const bidColumns = `id, lot_id, bidder_id, amount, max_bid, type, status,
       placed_at, valid_until, fraud_score, fraud_flags, bid_pattern`

func (s *Store) LoadBid(ctx context.Context, bidID string) (*models.Bid, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE id = $1`, bidID)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bid, err
}

func (s *Store) LoadBidsForLot(ctx context.Context, lotID string) ([]*models.Bid, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE lot_id = $1 ORDER BY placed_at ASC`, lotID)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bid)
	}
	return out, rows.Err()
}

func (s *Store) SaveBid(ctx context.Context, bid *models.Bid) error {
	flags, err := json.Marshal(bid.FraudFlags)
	if err != nil {
		return fmt.Errorf("marshal fraud flags: %w", err)
	}
	pattern, err := json.Marshal(bid.Pattern)
	if err != nil {
		return fmt.Errorf("marshal bid pattern: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
	  INSERT INTO bids (id, lot_id, bidder_id, amount, max_bid, type, status,
	                    placed_at, valid_until, fraud_score, fraud_flags, bid_pattern)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	  ON CONFLICT (id) DO UPDATE
	        SET amount = EXCLUDED.amount,
	            max_bid = EXCLUDED.max_bid,
	            status = EXCLUDED.status,
	            fraud_score = EXCLUDED.fraud_score,
	            fraud_flags = EXCLUDED.fraud_flags,
	            bid_pattern = EXCLUDED.bid_pattern`,
		bid.ID, bid.LotID, bid.BidderID, bid.Amount, bid.MaxBid, bid.Type, bid.Status,
		bid.PlacedAt, bid.ValidUntil, bid.FraudScore, flags, pattern)
	if err != nil {
		return fmt.Errorf("save bid: %w", err)
	}
	return nil
}

func (s *Store) FindWinningBid(ctx context.Context, lotID string) (*models.Bid, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE lot_id = $1 AND status = 'winning' LIMIT 1`,
		lotID)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bid, err
}

// FindNextHighestBid ranks live bids by amount, ties broken by earliest
// placement, so promotion after a cancellation is deterministic.
func (s *Store) FindNextHighestBid(ctx context.Context, lotID, excludeBidID string) (*models.Bid, error) {
	row := s.q.QueryRowContext(ctx, `
	  SELECT `+bidColumns+`
	    FROM bids
	   WHERE lot_id = $1 AND id <> $2 AND status IN ('active','outbid')
	   ORDER BY amount DESC, placed_at ASC
	   LIMIT 1`, lotID, excludeBidID)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return bid, err
}

// ListLots pages through lots, optionally filtered by status, most
// recently ending first.
func (s *Store) ListLots(ctx context.Context, status string, limit, offset int) ([]*models.Lot, error) {
	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + lotColumns + ` FROM lots`
	if status != "" {
		rows, err = s.q.QueryContext(ctx,
			base+` WHERE status = $1 ORDER BY auction_end DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		rows, err = s.q.QueryContext(ctx,
			base+` ORDER BY auction_end DESC LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	var out []*models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLot(sc scanner) (*models.Lot, error) {
	var (
		lot     models.Lot
		extMs   int64
		bidders []byte
	)
	err := sc.Scan(&lot.ID, &lot.SellerID, &lot.Title, &lot.Description,
		&lot.StartingPrice, &lot.CurrentBid, &lot.BidIncrement, &lot.ReservePrice,
		&lot.AuctionStart, &lot.AuctionEnd, &lot.ExtendOnBid, &extMs,
		&lot.Status, &lot.TotalBids, &bidders, &lot.Revision,
		&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lot.ExtensionTime = time.Duration(extMs) * time.Millisecond
	if len(bidders) > 0 {
		if err := json.Unmarshal(bidders, &lot.UniqueBidders); err != nil {
			return nil, fmt.Errorf("unmarshal unique bidders: %w", err)
		}
	}
	return &lot, nil
}

func scanBid(sc scanner) (*models.Bid, error) {
	var (
		bid     models.Bid
		flags   []byte
		pattern []byte
	)
	err := sc.Scan(&bid.ID, &bid.LotID, &bid.BidderID, &bid.Amount, &bid.MaxBid,
		&bid.Type, &bid.Status, &bid.PlacedAt, &bid.ValidUntil,
		&bid.FraudScore, &flags, &pattern)
	if err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &bid.FraudFlags); err != nil {
			return nil, fmt.Errorf("unmarshal fraud flags: %w", err)
		}
	}
	if len(pattern) > 0 {
		if err := json.Unmarshal(pattern, &bid.Pattern); err != nil {
			return nil, fmt.Errorf("unmarshal bid pattern: %w", err)
		}
	}
	return &bid, nil
}
