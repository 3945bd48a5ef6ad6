package irrationality

import "polyradar/internal/scoring"

// SignalType classifies the combination of insider activity and mispricing.
type SignalType string

const (
	// SignalAlpha: smart money on NO while YES is statistically overpriced.
	SignalAlpha SignalType = "ALPHA"
	// SignalConflict: insider buying YES despite overpricing; do not compound
	// contradictory evidence.
	SignalConflict SignalType = "CONFLICT"
	// SignalInsiderConfirmed: insider buying YES on an underpriced market.
	SignalInsiderConfirmed SignalType = "INSIDER_CONFIRMED"
	// SignalContrarianInsider: insider on NO while the market looks
	// underpriced. Unusual, verify by hand.
	SignalContrarianInsider SignalType = "CONTRARIAN_INSIDER"
	// SignalInsiderOnly: insider activity with no statistical corroboration.
	SignalInsiderOnly SignalType = "INSIDER_ONLY"
)

var signalEmoji = map[SignalType]string{
	SignalAlpha:             "\U0001F525",
	SignalConflict:          "⚠️",
	SignalInsiderConfirmed:  "\U0001F6A8",
	SignalContrarianInsider: "❓",
	SignalInsiderOnly:       "\U0001F441️",
}

// Signal is the fused recommendation.
type Signal struct {
	Type               SignalType
	Emoji              string
	Strength           int
	Interpretation     string
	Action             string
	InsiderScore       int
	InsiderPosition    scoring.Outcome
	IrrationalityScore int
	Irrational         bool
	Mispriced          bool
	Edge               float64
	EdgePercent        float64
}

// Fuse combines an insider score with the irrationality and mispricing
// verdicts. Pure and exhaustive over (position, mispriced, edge sign).
func Fuse(insiderScore int, position scoring.Outcome, irr Assessment, mis Mispricing) Signal {
	s := Signal{
		InsiderScore:       insiderScore,
		InsiderPosition:    position,
		IrrationalityScore: irr.Score,
		Irrational:         irr.Irrational,
		Mispriced:          mis.Mispriced,
		Edge:               mis.Edge,
		EdgePercent:        mis.EdgePercent,
	}

	switch {
	case position == scoring.OutcomeNo && mis.Mispriced:
		s.Type = SignalAlpha
		s.Strength = insiderScore + irr.Score
		s.Interpretation = "Smart money (NO) confirms YES is overpriced"
		s.Action = "High conviction: insider and statistics aligned"

	case position == scoring.OutcomeYes && mis.Mispriced:
		s.Type = SignalConflict
		s.Strength = insiderScore
		s.Interpretation = "Insider buying YES despite statistical overpricing"
		s.Action = "Requires manual analysis: insider may have real info or is part of the irrational crowd"

	case position == scoring.OutcomeYes && mis.Edge < 0:
		s.Type = SignalInsiderConfirmed
		s.Strength = insiderScore + 20
		s.Interpretation = "Insider and underpricing aligned, likely real information"
		s.Action = "Follow the insider: market may be underpricing the event"

	case position == scoring.OutcomeNo && mis.Edge < 0:
		s.Type = SignalContrarianInsider
		s.Strength = insiderScore
		s.Interpretation = "Insider buying NO on a potentially underpriced market"
		s.Action = "Unusual, verify: insider may see risk not reflected in price"

	default:
		s.Type = SignalInsiderOnly
		s.Strength = insiderScore
		s.Interpretation = "Insider activity detected, no clear mispricing"
		s.Action = "Monitor: insider signal only, no statistical edge"
	}

	s.Emoji = signalEmoji[s.Type]
	return s
}
