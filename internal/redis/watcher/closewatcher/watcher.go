package closewatcher

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"antiquebid/internal/services/bidding"
)

const timerKeyPrefix = "lot_t:"

// Run listens for key-expiry events on lot timer keys and settles the
// matching auctions. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc bidding.IBiddingService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, timerKeyPrefix) {
				continue
			}
			id := strings.TrimPrefix(m.Payload, timerKeyPrefix)
			if err := svc.CloseAuction(ctx, id); err != nil {
				zap.L().Warn("close_auction", zap.String("lot_id", id), zap.Error(err))
			}
		}
	}
}
