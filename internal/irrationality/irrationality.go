package irrationality

import (
	"fmt"
	"math"
	"strings"
)

// irrationalThreshold is the score at which a market counts as emotionally
// priced.
const irrationalThreshold = 30

// longshotThreshold returns the category-dependent price below which a YES
// price counts as a longshot. Fear-driven categories stay "longshots" at much
// higher prices.
func longshotThreshold(cat Category) float64 {
	switch cat {
	case CategoryGeopolitics, CategoryMacro:
		return 0.30
	case CategoryMeme, CategoryConspiracy:
		return 0.25
	}
	return 0.15
}

var (
	memeBoosters   = []string{"meme", "viral", "trending", "hype", "moon", "crazy"}
	crisisBoosters = []string{"war", "strike", "attack", "invasion", "nuclear", "collapse", "crash"}
)

// MarketSnapshot is the market-level input to irrationality scoring.
type MarketSnapshot struct {
	Question       string
	YesPrice       float64
	Volume24h      float64
	AvgVolume30d   float64
	PriceChange24h float64
}

// Assessment is the result of one irrationality pass.
type Assessment struct {
	Score      int
	Flags      []string
	Category   Category
	Bias       BiasProfile
	Irrational bool
}

// scoreMarket runs one irrationality pass. edgePercent is zero on the first
// pass; the second pass feeds the mispricing edge back in, since a large
// statistical edge is itself evidence the crowd is not pricing rationally.
func (e *Engine) scoreMarket(m MarketSnapshot, cat Category, edgePercent float64) Assessment {
	tables := e.tables()
	bias := tables.Bias(cat)

	score := 0
	var flags []string

	if m.YesPrice < longshotThreshold(cat) {
		switch bias.Strength {
		case BiasVeryHigh:
			score += 35
			flags = append(flags, fmt.Sprintf("Longshot (%.0f%%) in very high bias category (%s)", m.YesPrice*100, cat))
		case BiasHigh:
			score += 25
			flags = append(flags, fmt.Sprintf("Longshot (%.0f%%) in high bias category (%s)", m.YesPrice*100, cat))
		case BiasMedium:
			score += 15
			flags = append(flags, fmt.Sprintf("Longshot (%.0f%%) in medium bias category (%s)", m.YesPrice*100, cat))
		default:
			score += 5
			flags = append(flags, fmt.Sprintf("Longshot (%.0f%%) in low bias category", m.YesPrice*100))
		}
	}

	if m.AvgVolume30d > 0 && m.Volume24h > 0 {
		ratio := m.Volume24h / m.AvgVolume30d
		if ratio > 3.0 {
			score += 25
			flags = append(flags, fmt.Sprintf("Volume spike %.1fx above average", ratio))
		} else if ratio > 2.0 {
			score += 15
			flags = append(flags, fmt.Sprintf("Elevated volume %.1fx", ratio))
		}
	}

	biasPoints := staticBiasPoints(bias.Strength)
	score += biasPoints
	if biasPoints >= 15 {
		flags = append(flags, "Category structurally prone to longshot bias")
	}

	if math.Abs(m.PriceChange24h) > 0.10 {
		score += 15
		direction := "up"
		if m.PriceChange24h < 0 {
			direction = "down"
		}
		flags = append(flags, fmt.Sprintf("Extreme price move (%+.0f%% %s)", m.PriceChange24h*100, direction))
	} else if math.Abs(m.PriceChange24h) > 0.05 {
		score += 8
	}

	lower := strings.ToLower(m.Question)
	for _, booster := range memeBoosters {
		if strings.Contains(lower, booster) {
			score += 5
			flags = append(flags, fmt.Sprintf("Meme language detected (%q)", booster))
			break
		}
	}
	for _, booster := range crisisBoosters {
		if strings.Contains(lower, booster) {
			score += 10
			flags = append(flags, fmt.Sprintf("Crisis keyword detected (%q)", booster))
			break
		}
	}

	if edgePercent > 0 {
		switch {
		case edgePercent >= 15:
			score += 25
			flags = append(flags, fmt.Sprintf("Large mispricing edge (+%.1f%%)", edgePercent))
		case edgePercent >= 10:
			score += 15
			flags = append(flags, fmt.Sprintf("Significant mispricing edge (+%.1f%%)", edgePercent))
		case edgePercent >= 5:
			score += 8
			flags = append(flags, fmt.Sprintf("Moderate mispricing edge (+%.1f%%)", edgePercent))
		}
	}

	if score > 100 {
		score = 100
	}

	return Assessment{
		Score:      score,
		Flags:      flags,
		Category:   cat,
		Bias:       bias,
		Irrational: score >= irrationalThreshold,
	}
}

func staticBiasPoints(s BiasStrength) int {
	switch s {
	case BiasVeryHigh:
		return 20
	case BiasHigh:
		return 15
	case BiasMedium:
		return 10
	}
	return 5
}
