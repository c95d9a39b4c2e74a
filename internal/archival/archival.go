// Package archival streams accepted bids through NATS JetStream and
// settles them into per-bidder counters in Postgres. The write path never
// waits on archival; publishing is best-effort from the caller's side and
// JetStream's at-least-once delivery covers the rest.
package archival

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const (
	streamName    = "LOT_BIDS"
	subjectPrefix = "lot.bids."
	consumerName  = "bidder_counters"
)

// BidEvent is the archival record of one accepted bid.
type BidEvent struct {
	EventID     string    `json:"event_id"`
	LotID       string    `json:"lot_id"`
	BidID       string    `json:"bid_id"`
	BidderID    string    `json:"bidder_id"`
	Amount      float64   `json:"amount"`
	PreviousBid float64   `json:"previous_bid"`
	PlacedAt    time.Time `json:"placed_at"`
}

// Publisher writes accepted-bid events to the archival stream.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(ctx context.Context, nc *nats.Conn) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	if _, err := ensureStream(ctx, js); err != nil {
		return nil, err
	}
	return &Publisher{js: js}, nil
}

// Publish persists the event to the stream, waiting for the server ack.
func (p *Publisher) Publish(ctx context.Context, ev BidEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal bid event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subjectPrefix+ev.LotID, data); err != nil {
		return fmt.Errorf("publish bid event: %w", err)
	}
	return nil
}

// RunConsumer starts the durable consumer that tails the stream and
// bumps bidder counters. It returns once the consumer is running; the
// context stops it.
func RunConsumer(ctx context.Context, nc *nats.Conn, db *sql.DB) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	stream, err := ensureStream(ctx, js)
	if err != nil {
		return err
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   consumerName,
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var ev BidEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			zap.L().Warn("archival.decode", zap.Error(err))
			_ = msg.Term() // malformed, redelivery won't help
			return
		}
		if err := bumpCounters(ctx, db, ev); err != nil {
			zap.L().Warn("archival.persist", zap.String("bid_id", ev.BidID), zap.Error(err))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	return nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Accepted-bid events for bidder counter settlement",
		Subjects:    []string{subjectPrefix + "*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return stream, nil
}

// bumpCounters settles one accepted bid into the bidder's running
// totals. The counters lag the ledger; the transactional core never
// waits on them.
func bumpCounters(ctx context.Context, db *sql.DB, ev BidEvent) error {
	const upsert = `
	  INSERT INTO bidders (id, total_bids, points, updated_at)
	       VALUES ($1, 1, 1, now())
	  ON CONFLICT (id) DO UPDATE
	        SET total_bids = bidders.total_bids + 1,
	            points     = bidders.points + 1,
	            updated_at = now()`
	_, err := db.ExecContext(ctx, upsert, ev.BidderID)
	return err
}
