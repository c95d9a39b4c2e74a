// Package fraud computes heuristic risk scores for bids from timing and
// amount patterns. Everything here is a pure function over the candidate
// bid and the bidder's prior bids on the same lot; no I/O, no errors.
package fraud

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"antiquebid/internal/models"
)

const (
	// MaxScore is the ceiling every score is clamped to.
	MaxScore = 100

	// patternWindow caps both rolling pattern windows, oldest evicted first.
	patternWindow = 10

	quickBidGap     = 10 * time.Second
	lastMinuteSpan  = 60 * time.Second
	quickBidLimit   = 3
	lastMinuteLimit = 5

	quickBidPoints   = 15
	roundAmountPoints = 10
	lastMinutePoints  = 20

	roundAmountFloor = 500.0
)

var severityPoints = map[models.FraudSeverity]int{
	models.SeverityLow:      5,
	models.SeverityMedium:   15,
	models.SeverityHigh:     25,
	models.SeverityCritical: 50,
}

var roundStep = decimal.NewFromInt(100)

// Assessment is the result of scoring one candidate bid.
type Assessment struct {
	Score   int
	Flags   []models.FraudFlag
	Pattern models.BidPattern
}

// Evaluate scores a candidate bid of the given amount placed at placedAt,
// against the bidder's prior bids on the same lot. A nil or empty history
// yields an empty pattern and only the amount heuristics apply.
func Evaluate(amount float64, placedAt time.Time, history []*models.Bid, auctionEnd time.Time) Assessment {
	pattern := buildPattern(amount, placedAt, history, auctionEnd)

	a := Assessment{Pattern: pattern}

	// A run of n quick successions involves n+1 rapid-fire bids.
	quickRun := pattern.QuickBids
	if quickRun > 0 {
		quickRun++
	}
	if quickRun > quickBidLimit {
		a.addFlag("quick_bid_pattern",
			fmt.Sprintf("%d bids in rapid succession", quickRun),
			models.SeverityMedium, quickBidPoints, placedAt)
	}

	if amount > roundAmountFloor && isRoundAmount(amount) {
		a.addFlag("round_amount",
			fmt.Sprintf("suspiciously round amount %.2f", amount),
			models.SeverityLow, roundAmountPoints, placedAt)
	}

	if pattern.LastMinuteBids > lastMinuteLimit {
		a.addFlag("last_minute_pattern",
			fmt.Sprintf("%d bids inside the final minute", pattern.LastMinuteBids),
			models.SeverityHigh, lastMinutePoints, placedAt)
	}

	return a
}

// AddFlag appends a manual fraud flag to the bid and raises its score by
// the severity's point value, clamped to MaxScore.
func AddFlag(b *models.Bid, flagType, reason string, severity models.FraudSeverity, now time.Time) {
	b.FraudFlags = append(b.FraudFlags, models.FraudFlag{
		Type:      flagType,
		Reason:    reason,
		Severity:  severity,
		FlaggedAt: now,
	})
	b.FraudScore = clamp(b.FraudScore + severityPoints[severity])
}

func (a *Assessment) addFlag(flagType, reason string, severity models.FraudSeverity, points int, at time.Time) {
	a.Flags = append(a.Flags, models.FraudFlag{
		Type:      flagType,
		Reason:    reason,
		Severity:  severity,
		FlaggedAt: at,
	})
	a.Score = clamp(a.Score + points)
}

func buildPattern(amount float64, placedAt time.Time, history []*models.Bid, auctionEnd time.Time) models.BidPattern {
	prior := make([]*models.Bid, 0, len(history))
	for _, b := range history {
		if b != nil {
			prior = append(prior, b)
		}
	}
	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].PlacedAt.Before(prior[j].PlacedAt)
	})

	var p models.BidPattern

	// Gaps and amount deltas between consecutive placements, candidate last.
	for i := 1; i < len(prior); i++ {
		p.TimeBetweenBids = append(p.TimeBetweenBids, prior[i].PlacedAt.Sub(prior[i-1].PlacedAt))
		p.BidIncreasePattern = append(p.BidIncreasePattern, prior[i].Amount-prior[i-1].Amount)
	}
	if n := len(prior); n > 0 {
		p.TimeBetweenBids = append(p.TimeBetweenBids, placedAt.Sub(prior[n-1].PlacedAt))
		p.BidIncreasePattern = append(p.BidIncreasePattern, amount-prior[n-1].Amount)
	}
	p.TimeBetweenBids = capWindow(p.TimeBetweenBids)
	p.BidIncreasePattern = capWindow(p.BidIncreasePattern)

	for _, gap := range p.TimeBetweenBids {
		if gap < quickBidGap {
			p.QuickBids++
		}
	}

	if !auctionEnd.IsZero() {
		for _, b := range prior {
			if remaining := auctionEnd.Sub(b.PlacedAt); remaining >= 0 && remaining < lastMinuteSpan {
				p.LastMinuteBids++
			}
		}
		if remaining := auctionEnd.Sub(placedAt); remaining >= 0 && remaining < lastMinuteSpan {
			p.LastMinuteBids++
		}
	}

	if len(p.TimeBetweenBids) > 0 {
		var total time.Duration
		for _, gap := range p.TimeBetweenBids {
			total += gap
		}
		p.AvgBidTime = total / time.Duration(len(p.TimeBetweenBids))
	}

	return p
}

// isRoundAmount checks divisibility by 100 exactly; float modulo would
// misreport amounts like 600.00 stored as 599.999... after arithmetic.
func isRoundAmount(amount float64) bool {
	return decimal.NewFromFloat(amount).Mod(roundStep).IsZero()
}

func capWindow[T any](window []T) []T {
	if len(window) > patternWindow {
		return window[len(window)-patternWindow:]
	}
	return window
}

func clamp(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	return score
}
