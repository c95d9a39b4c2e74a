package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antiquebid/internal/models"
)

var t0 = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

func bidAt(placedAt time.Time, amount float64) *models.Bid {
	return &models.Bid{
		ID:       placedAt.Format(time.RFC3339Nano),
		BidderID: "b1",
		Amount:   amount,
		PlacedAt: placedAt,
		Status:   models.BidStatusOutbid,
	}
}

func TestEvaluateEmptyHistory(t *testing.T) {
	a := Evaluate(105, t0, nil, t0.Add(time.Hour))

	assert.Equal(t, 0, a.Score)
	assert.Empty(t, a.Flags)
	assert.Empty(t, a.Pattern.TimeBetweenBids)
	assert.Zero(t, a.Pattern.AvgBidTime)
}

func TestQuickBidRunFlagged(t *testing.T) {
	// Three priors five seconds apart, candidate five seconds after the
	// last: four rapid-fire bids in a row.
	history := []*models.Bid{
		bidAt(t0, 110),
		bidAt(t0.Add(5*time.Second), 120),
		bidAt(t0.Add(10*time.Second), 130),
	}
	a := Evaluate(145, t0.Add(15*time.Second), history, t0.Add(time.Hour))

	require.Len(t, a.Flags, 1)
	assert.Equal(t, "quick_bid_pattern", a.Flags[0].Type)
	assert.Equal(t, models.SeverityMedium, a.Flags[0].Severity)
	assert.Equal(t, 15, a.Score)
	assert.Equal(t, 3, a.Pattern.QuickBids)
}

func TestThreeQuickBidsNotFlagged(t *testing.T) {
	history := []*models.Bid{
		bidAt(t0, 110),
		bidAt(t0.Add(5*time.Second), 120),
	}
	a := Evaluate(135, t0.Add(10*time.Second), history, t0.Add(time.Hour))

	assert.Empty(t, a.Flags)
	assert.Equal(t, 0, a.Score)
}

func TestRoundAmountHeuristic(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		score  int
	}{
		{"round above floor", 600, 10},
		{"round at floor", 500, 0},
		{"round below floor", 400, 0},
		{"not round", 620, 0},
		{"large round", 1500, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Evaluate(tc.amount, t0, nil, t0.Add(time.Hour))
			assert.Equal(t, tc.score, a.Score)
		})
	}
}

func TestLastMinutePatternFlagged(t *testing.T) {
	end := t0.Add(10 * time.Minute)
	history := []*models.Bid{
		bidAt(end.Add(-59*time.Second), 110),
		bidAt(end.Add(-47*time.Second), 121),
		bidAt(end.Add(-35*time.Second), 132),
		bidAt(end.Add(-23*time.Second), 143),
		bidAt(end.Add(-11*time.Second), 154),
	}
	// Sixth bid inside the final minute; gaps are all >= 10s so the
	// quick-bid rule stays quiet.
	a := Evaluate(165, end.Add(-time.Second), history, end)

	require.Len(t, a.Flags, 1)
	assert.Equal(t, "last_minute_pattern", a.Flags[0].Type)
	assert.Equal(t, 20, a.Score)
	assert.Equal(t, 6, a.Pattern.LastMinuteBids)
}

func TestPatternWindowCapped(t *testing.T) {
	var history []*models.Bid
	for i := 0; i < 15; i++ {
		history = append(history, bidAt(t0.Add(time.Duration(i)*20*time.Second), 110+float64(i)))
	}
	a := Evaluate(200, t0.Add(15*20*time.Second), history, t0.Add(time.Hour))

	assert.Len(t, a.Pattern.TimeBetweenBids, 10)
	assert.Len(t, a.Pattern.BidIncreasePattern, 10)
	assert.Equal(t, 20*time.Second, a.Pattern.AvgBidTime)
}

func TestAvgBidTimeIsMeanOfWindow(t *testing.T) {
	history := []*models.Bid{
		bidAt(t0, 110),
		bidAt(t0.Add(10*time.Second), 120),
	}
	a := Evaluate(130, t0.Add(40*time.Second), history, t0.Add(time.Hour))

	// Gaps: 10s and 30s.
	require.Len(t, a.Pattern.TimeBetweenBids, 2)
	assert.Equal(t, 20*time.Second, a.Pattern.AvgBidTime)
}

func TestAddFlagClampsAt100(t *testing.T) {
	b := &models.Bid{FraudScore: 90}

	AddFlag(b, "shill_suspicion", "seller-linked account", models.SeverityCritical, t0)
	assert.Equal(t, 100, b.FraudScore)
	require.Len(t, b.FraudFlags, 1)
	assert.Equal(t, models.SeverityCritical, b.FraudFlags[0].Severity)

	AddFlag(b, "manual_review", "flagged by moderator", models.SeverityLow, t0)
	assert.Equal(t, 100, b.FraudScore)
	assert.Len(t, b.FraudFlags, 2)
}

func TestAddFlagSeverityPoints(t *testing.T) {
	cases := []struct {
		severity models.FraudSeverity
		want     int
	}{
		{models.SeverityLow, 5},
		{models.SeverityMedium, 15},
		{models.SeverityHigh, 25},
		{models.SeverityCritical, 50},
	}
	for _, tc := range cases {
		b := &models.Bid{}
		AddFlag(b, "test", "reason", tc.severity, t0)
		assert.Equal(t, tc.want, b.FraudScore)
	}
}
