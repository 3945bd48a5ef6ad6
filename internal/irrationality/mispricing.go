package irrationality

// Base-rate classes assigned by factor estimation.
const (
	BaseRateNearZero   = "historically_near_zero"
	BaseRateRare       = "rare"
	BaseRateOccasional = "occasional"
	BaseRateCommon     = "common"
)

// Confidence levels of a factor analysis.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Factors is a structural decomposition of a market question. The estimator
// never outputs a probability; it classifies the base rate and counts the
// independent conditions the outcome requires.
type Factors struct {
	BaseRateClass      string   `json:"base_rate_class"`
	ConditionsRequired int      `json:"independent_conditions_required"`
	Conditions         []string `json:"conditions"`
	WeakestLink        string   `json:"weakest_link"`
	Category           Category `json:"category"`
	NarrativeDrivers   []string `json:"narrative_drivers"`
	Confidence         string   `json:"confidence_in_analysis"`
}

// HeuristicFactors is the deterministic fallback when no factor estimator is
// available. It keys the base rate off current price, tightened for categories
// whose outcomes almost never resolve YES, and is always marked low
// confidence.
func HeuristicFactors(yesPrice float64, cat Category) Factors {
	var class string
	switch {
	case yesPrice < 0.05:
		class = BaseRateNearZero
	case yesPrice < 0.12:
		class = BaseRateRare
	case yesPrice < 0.25:
		class = BaseRateOccasional
	default:
		class = BaseRateCommon
	}

	if (cat == CategoryMeme || cat == CategoryConspiracy) && class != BaseRateCommon {
		class = BaseRateNearZero
	}

	return Factors{
		BaseRateClass:      class,
		ConditionsRequired: 2,
		Conditions:         []string{"Unknown"},
		WeakestLink:        "Unknown",
		Category:           cat,
		NarrativeDrivers:   []string{"Unknown"},
		Confidence:         ConfidenceLow,
	}
}

// EdgeQuality grades a mispricing edge against the category threshold.
type EdgeQuality string

const (
	EdgeStrong   EdgeQuality = "STRONG"
	EdgeModerate EdgeQuality = "MODERATE"
	EdgeWeak     EdgeQuality = "WEAK"
	EdgeNone     EdgeQuality = "NONE"
)

// Mispricing is the outcome of comparing market price to a rational estimate.
type Mispricing struct {
	RationalEstimate float64
	MarketPrice      float64
	Edge             float64 // market price minus rational estimate
	EdgePercent      float64
	MinEdgeRequired  float64
	Mispriced        bool
	Quality          EdgeQuality
	BaseRateClass    string
	Confidence       string
}

// maxRationalEstimate caps the estimate; the engine only reasons about
// longshot overpricing, never favorites.
const maxRationalEstimate = 0.50

// computeMispricing derives the rational estimate from factor analysis and
// measures the deviation of the market price from it.
func (e *Engine) computeMispricing(yesPrice float64, f Factors) Mispricing {
	tables := e.tables()
	base := tables.BaseRate(f.BaseRateClass)

	// Each independent unlikely condition compounds improbability.
	if f.ConditionsRequired >= 3 {
		base *= 0.5
	} else if f.ConditionsRequired == 2 {
		base *= 0.75
	}

	base *= tables.Mult(f.Category)

	// Low-confidence analysis is pulled toward market consensus so the
	// estimate cannot diverge wildly on a weak read.
	switch f.Confidence {
	case ConfidenceLow:
		base = base*0.6 + yesPrice*0.4
	case ConfidenceMedium:
		base = base*0.8 + yesPrice*0.2
	}

	estimate := base
	if estimate > maxRationalEstimate {
		estimate = maxRationalEstimate
	}

	edge := yesPrice - estimate
	minEdge := tables.Bias(f.Category).MinEdge

	var quality EdgeQuality
	switch {
	case edge > minEdge*2:
		quality = EdgeStrong
	case edge > minEdge:
		quality = EdgeModerate
	case edge > 0:
		quality = EdgeWeak
	default:
		quality = EdgeNone
	}

	return Mispricing{
		RationalEstimate: estimate,
		MarketPrice:      yesPrice,
		Edge:             edge,
		EdgePercent:      edge * 100,
		MinEdgeRequired:  minEdge,
		Mispriced:        edge > minEdge,
		Quality:          quality,
		BaseRateClass:    f.BaseRateClass,
		Confidence:       f.Confidence,
	}
}
