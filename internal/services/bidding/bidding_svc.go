// Package bidding is the admission façade: it validates bid requests,
// drives the ledger, applies the anti-snipe timer, resolves auto-bids and
// emits outbound events after a successful commit.
package bidding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"antiquebid/internal/antisnipe"
	"antiquebid/internal/archival"
	"antiquebid/internal/autobid"
	"antiquebid/internal/ledger"
	"antiquebid/internal/models"
	"antiquebid/internal/notify"
)

const (
	lotTimerKeyPrefix = "lot_t:"
	lotCloseKeyPrefix = "lot_close:"

	publishTimeout = 3 * time.Second
)

var (
	ErrNotActivatable = errors.New("lot cannot be activated in its current status")
	ErrInvalidLot     = errors.New("invalid lot parameters")
)

// Store is the persistence surface the service needs: the ledger's
// collaborator plus listing for the read side.
type Store interface {
	ledger.Store
	ListLots(ctx context.Context, status string, limit, offset int) ([]*models.Lot, error)
}

type IBiddingService interface {
	CreateLot(ctx context.Context, p CreateLotParams) (*models.Lot, error)
	ActivateLot(ctx context.Context, lotID string) (*models.Lot, error)
	GetLot(ctx context.Context, lotID string) (*models.Lot, error)
	ListLots(ctx context.Context, status string, limit, offset int) ([]*models.Lot, error)
	ListBids(ctx context.Context, lotID string) ([]*models.Bid, error)
	PlaceBid(ctx context.Context, lotID, bidderID string, amount float64) (*ledger.Admission, error)
	CancelBid(ctx context.Context, bidID string) (*ledger.Cancellation, error)
	SetAutoBid(ctx context.Context, lotID, bidderID string, maxAmount float64) (*models.Bid, error)
	CloseAuction(ctx context.Context, lotID string) error
}

// Config tunes the service. Zero values fall back to ledger defaults.
type Config struct {
	BidValidFor  time.Duration
	CancelWindow time.Duration
	AdmitRetries int
	Now          func() time.Time
}

type biddingService struct {
	store    Store
	led      *ledger.Ledger
	resolver *autobid.Resolver
	rdc      *redis.Client
	pub      notify.Publisher
	arch     *archival.Publisher // nil disables archival
	locks    *lotLocks
	retries  int
	now      func() time.Time
}

func NewBiddingService(store Store, rdc *redis.Client, pub notify.Publisher, arch *archival.Publisher, cfg Config) IBiddingService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	led := ledger.New(store, ledger.Config{
		BidValidFor:  cfg.BidValidFor,
		CancelWindow: cfg.CancelWindow,
		Extend:       antisnipe.Extend,
		Now:          cfg.Now,
	})
	return &biddingService{
		store:    store,
		led:      led,
		resolver: autobid.New(store, led),
		rdc:      rdc,
		pub:      pub,
		arch:     arch,
		locks:    newLotLocks(),
		retries:  cfg.AdmitRetries,
		now:      cfg.Now,
	}
}

// CreateLotParams describes a new lot. The lot starts out pending;
// ActivateLot opens it for bidding.
type CreateLotParams struct {
	SellerID      string
	Title         string
	Description   string
	StartingPrice float64
	BidIncrement  float64
	ReservePrice  float64
	AuctionStart  time.Time
	AuctionEnd    time.Time
	ExtendOnBid   bool
	ExtensionTime time.Duration
}

func (s *biddingService) CreateLot(ctx context.Context, p CreateLotParams) (*models.Lot, error) {
	if p.SellerID == "" || p.Title == "" || p.StartingPrice < 0 || p.BidIncrement <= 0 {
		return nil, ErrInvalidLot
	}
	if !p.AuctionEnd.After(p.AuctionStart) {
		return nil, ErrInvalidLot
	}
	now := s.now()
	lot := &models.Lot{
		ID:            uuid.NewString(),
		SellerID:      p.SellerID,
		Title:         p.Title,
		Description:   p.Description,
		StartingPrice: p.StartingPrice,
		BidIncrement:  p.BidIncrement,
		ReservePrice:  p.ReservePrice,
		AuctionStart:  p.AuctionStart,
		AuctionEnd:    p.AuctionEnd,
		ExtendOnBid:   p.ExtendOnBid,
		ExtensionTime: p.ExtensionTime,
		Status:        models.LotStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveLot(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *biddingService) ActivateLot(ctx context.Context, lotID string) (*models.Lot, error) {
	unlock := s.locks.lock(lotID)
	defer unlock()

	lot, err := s.store.LoadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, ledger.ErrLotNotFound
	}
	switch lot.Status {
	case models.LotStatusPending, models.LotStatusApproved:
	default:
		return nil, ErrNotActivatable
	}
	lot.Status = models.LotStatusActive
	if err := s.store.SaveLot(ctx, lot); err != nil {
		return nil, err
	}
	s.refreshTimer(ctx, lot)
	return lot, nil
}

func (s *biddingService) GetLot(ctx context.Context, lotID string) (*models.Lot, error) {
	lot, err := s.store.LoadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, ledger.ErrLotNotFound
	}
	return lot, nil
}

func (s *biddingService) ListLots(ctx context.Context, status string, limit, offset int) ([]*models.Lot, error) {
	return s.store.ListLots(ctx, status, limit, offset)
}

func (s *biddingService) ListBids(ctx context.Context, lotID string) ([]*models.Bid, error) {
	return s.store.LoadBidsForLot(ctx, lotID)
}

// PlaceBid admits a standard bid. Admission is serialized per lot; a
// revision conflict from another instance is retried with fresh state up
// to the configured bound before surfacing to the caller.
func (s *biddingService) PlaceBid(ctx context.Context, lotID, bidderID string, amount float64) (*ledger.Admission, error) {
	unlock := s.locks.lock(lotID)
	defer unlock()

	adm, err := s.admitWithRetry(ctx, lotID, bidderID, amount, models.BidTypeStandard, 0)
	if err != nil {
		return nil, err
	}
	s.afterAdmission(adm)
	return adm, nil
}

func (s *biddingService) admitWithRetry(ctx context.Context, lotID, bidderID string, amount float64, bidType models.BidType, maxBid float64) (*ledger.Admission, error) {
	var (
		adm *ledger.Admission
		err error
	)
	for attempt := 0; ; attempt++ {
		adm, err = s.led.AdmitBid(ctx, lotID, bidderID, amount, bidType, maxBid)
		if err == nil || !errors.Is(err, ledger.ErrConcurrencyConflict) || attempt >= s.retries {
			break
		}
		zap.L().Debug("admit_retry",
			zap.String("lot_id", lotID), zap.Int("attempt", attempt+1))
	}
	return adm, err
}

// afterAdmission handles everything decoupled from the transactional
// core: timer refresh, watcher/seller/outbid notifications, archival.
// None of it can fail the already-committed admission.
func (s *biddingService) afterAdmission(adm *ledger.Admission) {
	lot, bid := adm.Lot, adm.Accepted

	if adm.Extended {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		s.refreshTimer(ctx, lot)
		cancel()
	}

	remaining := lot.AuctionEnd.Sub(s.now()).Milliseconds()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		s.pub.Publish(ctx, notify.LotTopic(lot.ID), notify.BidUpdate{
			Event:           notify.EventBidUpdate,
			LotID:           lot.ID,
			Amount:          bid.Amount,
			BidderID:        bid.BidderID,
			TotalBids:       lot.TotalBids,
			TimeRemainingMs: remaining,
		})
		if adm.Superseded != nil {
			s.pub.Publish(ctx, notify.UserTopic(adm.Superseded.BidderID), notify.Outbid{
				Event:  notify.EventOutbid,
				LotID:  lot.ID,
				Amount: bid.Amount,
			})
		}
		s.pub.Publish(ctx, notify.UserTopic(lot.SellerID), notify.NewBid{
			Event:    notify.EventNewBid,
			LotID:    lot.ID,
			Amount:   bid.Amount,
			BidderID: bid.BidderID,
		})

		if s.arch != nil {
			var prev float64
			if adm.Superseded != nil {
				prev = adm.Superseded.Amount
			}
			err := s.arch.Publish(ctx, archival.BidEvent{
				EventID:     uuid.NewString(),
				LotID:       lot.ID,
				BidID:       bid.ID,
				BidderID:    bid.BidderID,
				Amount:      bid.Amount,
				PreviousBid: prev,
				PlacedAt:    bid.PlacedAt,
			})
			if err != nil {
				zap.L().Warn("archive_bid", zap.String("bid_id", bid.ID), zap.Error(err))
			}
		}
	}()
}

func (s *biddingService) CancelBid(ctx context.Context, bidID string) (*ledger.Cancellation, error) {
	bid, err := s.store.LoadBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, ledger.ErrBidNotFound
	}

	unlock := s.locks.lock(bid.LotID)
	defer unlock()

	cn, err := s.led.CancelBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	lot := cn.Lot
	remaining := lot.AuctionEnd.Sub(s.now()).Milliseconds()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		s.pub.Publish(ctx, notify.LotTopic(lot.ID), notify.BidUpdate{
			Event:           notify.EventBidUpdate,
			LotID:           lot.ID,
			Amount:          lot.CurrentBid,
			TotalBids:       lot.TotalBids,
			TimeRemainingMs: remaining,
		})
	}()
	return cn, nil
}

func (s *biddingService) SetAutoBid(ctx context.Context, lotID, bidderID string, maxAmount float64) (*models.Bid, error) {
	unlock := s.locks.lock(lotID)
	defer unlock()

	bid, err := s.resolver.SetAutoBid(ctx, lotID, bidderID, maxAmount)
	if err != nil {
		return nil, err
	}

	// A freshly placed proxy bid changed the lot; watchers hear about it.
	if bid.IsWinning() {
		if lot, err := s.store.LoadLot(ctx, lotID); err == nil && lot != nil {
			remaining := lot.AuctionEnd.Sub(s.now()).Milliseconds()
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
				defer cancel()
				s.pub.Publish(ctx, notify.LotTopic(lot.ID), notify.BidUpdate{
					Event:           notify.EventBidUpdate,
					LotID:           lot.ID,
					Amount:          bid.Amount,
					BidderID:        bid.BidderID,
					TotalBids:       lot.TotalBids,
					TimeRemainingMs: remaining,
				})
			}()
		}
	}
	return bid, nil
}

// CloseAuction settles a lot whose clock ran out (or that an admin
// closes early). Idempotent: a lot already out of active is left alone,
// and a short distributed lock keeps multiple instances from settling
// the same lot twice.
func (s *biddingService) CloseAuction(ctx context.Context, lotID string) error {
	if s.rdc != nil {
		lockKey := lotCloseKeyPrefix + lotID
		ok, _ := s.rdc.SetNX(ctx, lockKey, 1, 5*time.Second).Result()
		if !ok {
			return nil // another instance is already settling this lot
		}
		defer s.rdc.Del(ctx, lockKey)
	}

	unlock := s.locks.lock(lotID)
	defer unlock()

	var (
		closed *models.Lot
		winner *models.Bid
	)
	err := s.store.InTx(ctx, func(tx ledger.Store) error {
		lot, err := tx.LoadLot(ctx, lotID)
		if err != nil {
			return err
		}
		if lot == nil {
			return ledger.ErrLotNotFound
		}
		if lot.Status != models.LotStatusActive {
			return nil // already settled
		}

		winning, err := tx.FindWinningBid(ctx, lotID)
		if err != nil {
			return err
		}
		bids, err := tx.LoadBidsForLot(ctx, lotID)
		if err != nil {
			return err
		}

		if winning != nil && lot.ReserveMet() {
			lot.Status = models.LotStatusSold
			winning.Status = models.BidStatusWon
			winner = winning
		} else {
			lot.Status = models.LotStatusUnsold
			if winning != nil {
				winning.Status = models.BidStatusLost
			}
		}
		if winning != nil {
			if err := tx.SaveBid(ctx, winning); err != nil {
				return err
			}
		}
		for _, b := range bids {
			if winning != nil && b.ID == winning.ID {
				continue
			}
			if b.Status == models.BidStatusActive || b.Status == models.BidStatusOutbid {
				b.Status = models.BidStatusLost
				if err := tx.SaveBid(ctx, b); err != nil {
					return err
				}
			}
		}
		if err := tx.SaveLot(ctx, lot); err != nil {
			return err
		}
		closed = lot
		return nil
	})
	if err != nil || closed == nil {
		return err
	}

	if s.rdc != nil {
		_ = s.rdc.Del(ctx, lotTimerKeyPrefix+lotID).Err()
	}

	ev := notify.AuctionClosed{
		Event:      notify.EventAuctionClosed,
		LotID:      closed.ID,
		Status:     string(closed.Status),
		FinalPrice: closed.CurrentBid,
	}
	if winner != nil {
		ev.WinnerID = winner.BidderID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		s.pub.Publish(ctx, notify.LotTopic(closed.ID), ev)
	}()

	zap.L().Info("auction_closed",
		zap.String("lot_id", closed.ID), zap.String("status", string(closed.Status)))
	return nil
}

// refreshTimer keeps the expiring Redis key aligned with the lot's end
// time; its expiry event drives the close watcher.
func (s *biddingService) refreshTimer(ctx context.Context, lot *models.Lot) {
	if s.rdc == nil {
		return
	}
	ttl := lot.AuctionEnd.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.rdc.Set(ctx, lotTimerKeyPrefix+lot.ID, 1, ttl).Err(); err != nil {
		zap.L().Warn("lot_timer_set", zap.String("lot_id", lot.ID), zap.Error(err))
	}
}
