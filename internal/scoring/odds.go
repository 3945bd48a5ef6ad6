package scoring

import "strings"

// Outcome is the side of a binary market a trade is backing.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// EffectiveOdds converts a raw YES-token price into the probability the bettor
// is actually backing. A NO position at a YES price of 0.07 is a bet at 0.93.
// Every downstream consumer (feature scoring, filters, PnL) must use effective
// odds, never the raw price.
func EffectiveOdds(yesPrice float64, outcome Outcome) float64 {
	if outcome == OutcomeNo {
		return 1 - yesPrice
	}
	return yesPrice
}

// CashCost returns the USD cost of the position. NO tokens are purchased at
// 1 - yesPrice.
func CashCost(size, yesPrice float64, outcome Outcome) float64 {
	return size * EffectiveOdds(yesPrice, outcome)
}

// PayoutMultiplier returns the profit multiple if the position resolves in the
// bettor's favor: (1-e)/e. Returns 0 for e <= 0; odds of exactly zero are
// invalid data and rejected upstream, this guard just keeps the function total.
func PayoutMultiplier(effectiveOdds float64) float64 {
	if effectiveOdds <= 0 {
		return 0
	}
	return (1 - effectiveOdds) / effectiveOdds
}

// PotentialPnl returns the profit in USD if the position wins: tokens are
// redeemed at $1 each, so profit = cost * (1-e)/e.
func PotentialPnl(size, yesPrice float64, outcome Outcome) float64 {
	e := EffectiveOdds(yesPrice, outcome)
	return CashCost(size, yesPrice, outcome) * PayoutMultiplier(e)
}

// ParseOutcome normalizes an outcome string from the Data API ("Yes", "no",
// "YES"...). Unrecognized values fall back to a price-implied estimate, which
// callers should treat as low-confidence.
func ParseOutcome(raw string, yesPrice float64) (outcome Outcome, estimated bool) {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "yes"):
		return OutcomeYes, false
	case strings.Contains(lower, "no"):
		return OutcomeNo, false
	}
	if yesPrice > 0.5 {
		return OutcomeYes, true
	}
	return OutcomeNo, true
}
