package scoring

import (
	"fmt"
	"math"
	"time"
)

// MaxScore is the canonical ceiling of the insider score: 110 from the base
// factors plus 40 from event latency. Wallet-history bonuses are applied before
// the cap. All displayed denominators use this value.
const MaxScore = 150

// FeatureConfig holds thresholds and point weights for the base trade scorer.
type FeatureConfig struct {
	MinBetSize           float64 `json:"min_bet_size"`           // USD cash cost to count as a large bet
	NewWalletDaysHigh    int     `json:"new_wallet_days_high"`   // wallets younger than this get the high age score
	NewWalletDaysLow     int     `json:"new_wallet_days_low"`    // wallets younger than this (but >= high band) get the low age score
	LowOddsThreshold     float64 `json:"low_odds_threshold"`     // effective odds below this count as against-trend
	HighOddsThreshold    float64 `json:"high_odds_threshold"`    // effective odds above this count as extreme confidence
	TimeToResolveHours   float64 `json:"time_to_resolve_hours"`  // markets resolving within this window get timing points
	LowActivityThreshold int     `json:"low_activity_threshold"` // wallets with fewer lifetime activities get activity points

	Weights Weights `json:"weights"`
}

// Weights are the per-factor point contributions.
type Weights struct {
	WalletAgeHigh int `json:"wallet_age_high"`
	WalletAgeLow  int `json:"wallet_age_low"`
	AgainstTrend  int `json:"against_trend"`
	LargeBet      int `json:"large_bet"`
	Timing        int `json:"timing"`
	LowActivity   int `json:"low_activity"`
}

// DefaultFeatureConfig returns the production thresholds.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		MinBetSize:           10000,
		NewWalletDaysHigh:    3,
		NewWalletDaysLow:     7,
		LowOddsThreshold:     0.10,
		HighOddsThreshold:    0.95,
		TimeToResolveHours:   24,
		LowActivityThreshold: 5,
		Weights: Weights{
			WalletAgeHigh: 40,
			WalletAgeLow:  20,
			AgainstTrend:  25,
			LargeBet:      20,
			Timing:        15,
			LowActivity:   10,
		},
	}
}

// unknownWalletAgeDays is reported when a wallet has no recorded first
// activity. It reads as "very old" so the age factor contributes nothing, but
// it is a missing-data marker, not evidence of age.
const unknownWalletAgeDays = 999

// TradeFeatures is the normalized input to the base scorer.
type TradeFeatures struct {
	Size          float64
	YesPrice      float64
	Outcome       Outcome
	FirstActivity int64  // epoch seconds of the wallet's first activity, 0 if unknown
	TotalCount    int    // lifetime activity count for the wallet
	MarketEndDate string // ISO-8601 end date, "" if the market has none
	Now           time.Time
}

// Breakdown is the scored result for one trade.
type Breakdown struct {
	Score           int
	Flags           []string
	Amount          float64 // actual cash cost of the position
	EffectiveOdds   float64
	WalletAgeDays   int
	TotalActivities int
	PotentialPnl    float64
	PnlMultiplier   float64
}

// Add bumps the score by points (clamped to MaxScore) and records a flag.
// Used by the latency and wallet-history layers on top of the base factors.
func (b *Breakdown) Add(points int, flag string) {
	if points <= 0 {
		return
	}
	b.Score += points
	if b.Score > MaxScore {
		b.Score = MaxScore
	}
	if flag != "" {
		b.Flags = append(b.Flags, flag)
	}
}

// WalletAgeDays returns the wallet age in whole days, or unknownWalletAgeDays
// when no first-activity timestamp exists.
func WalletAgeDays(firstActivity int64, now time.Time) int {
	if firstActivity <= 0 {
		return unknownWalletAgeDays
	}
	age := now.Sub(time.Unix(firstActivity, 0))
	if age < 0 {
		return 0
	}
	return int(age.Hours() / 24)
}

// WalletAgeScore returns the age factor points. Missing first-activity data
// contributes zero.
func (cfg FeatureConfig) WalletAgeScore(firstActivity int64, now time.Time) int {
	if firstActivity <= 0 {
		return 0
	}
	ageDays := WalletAgeDays(firstActivity, now)
	switch {
	case ageDays < cfg.NewWalletDaysHigh:
		return cfg.Weights.WalletAgeHigh
	case ageDays < cfg.NewWalletDaysLow:
		return cfg.Weights.WalletAgeLow
	}
	return 0
}

// AgainstTrendScore returns points when the effective odds sit in either
// extremity band. Both bands score the same: a longshot backer and an
// extreme-confidence backer are equally interesting.
func (cfg FeatureConfig) AgainstTrendScore(effectiveOdds float64) int {
	if effectiveOdds < cfg.LowOddsThreshold || effectiveOdds > cfg.HighOddsThreshold {
		return cfg.Weights.AgainstTrend
	}
	return 0
}

// TimingScore returns points when the market resolves within the configured
// window. An unparsable or missing end date contributes zero, silently.
func (cfg FeatureConfig) TimingScore(endDate string, now time.Time) (int, float64) {
	hours, ok := hoursUntil(endDate, now)
	if !ok {
		return 0, 0
	}
	if hours > 0 && hours < cfg.TimeToResolveHours {
		return cfg.Weights.Timing, hours
	}
	return 0, hours
}

func hoursUntil(endDate string, now time.Time) (float64, bool) {
	if endDate == "" {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, endDate)
	if err != nil {
		return 0, false
	}
	return end.Sub(now).Hours(), true
}

// Score runs all base factors and assembles the breakdown.
func (cfg FeatureConfig) Score(in TradeFeatures) Breakdown {
	e := EffectiveOdds(in.YesPrice, in.Outcome)
	amount := CashCost(in.Size, in.YesPrice, in.Outcome)

	b := Breakdown{
		Amount:          amount,
		EffectiveOdds:   e,
		WalletAgeDays:   WalletAgeDays(in.FirstActivity, in.Now),
		TotalActivities: in.TotalCount,
		PnlMultiplier:   PayoutMultiplier(e),
		PotentialPnl:    PotentialPnl(in.Size, in.YesPrice, in.Outcome),
	}

	if pts := cfg.WalletAgeScore(in.FirstActivity, in.Now); pts > 0 {
		b.Score += pts
		b.Flags = append(b.Flags, fmt.Sprintf("New wallet (%dd old)", b.WalletAgeDays))
	}

	if pts := cfg.AgainstTrendScore(e); pts > 0 {
		b.Score += pts
		if e > cfg.HighOddsThreshold {
			b.Flags = append(b.Flags, fmt.Sprintf("Extreme confidence (%.1f%% odds)", e*100))
		} else {
			b.Flags = append(b.Flags, fmt.Sprintf("Against trend (%.1f%% odds)", e*100))
		}
	}

	if amount >= cfg.MinBetSize {
		b.Score += cfg.Weights.LargeBet
		b.Flags = append(b.Flags, fmt.Sprintf("Large bet ($%s)", formatAmount(amount)))
	}

	if pts, hours := cfg.TimingScore(in.MarketEndDate, in.Now); pts > 0 {
		b.Score += pts
		b.Flags = append(b.Flags, fmt.Sprintf("Close to deadline (%.0fh)", hours))
	}

	if in.TotalCount < cfg.LowActivityThreshold {
		b.Score += cfg.Weights.LowActivity
		b.Flags = append(b.Flags, fmt.Sprintf("Low activity (%d txns)", in.TotalCount))
	}

	return b
}

// formatAmount renders a USD amount with thousands separators, no cents.
func formatAmount(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-" + formatAmount(-v)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
