package irrationality

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"polyradar/internal/scoring"
)

// FactorSource decomposes a market question into structural factors. The
// engine treats it as optional: any failure activates the heuristic fallback.
type FactorSource interface {
	EstimateFactors(ctx context.Context, question string, yesPrice float64, endDate string) (Factors, error)
}

// Engine runs the full analysis pipeline: irrationality, factor analysis,
// mispricing, signal fusion. Rule tables are swappable at runtime.
type Engine struct {
	mu         sync.RWMutex
	tbl        Tables
	classifier *Classifier

	factors FactorSource // nil means heuristic-only
	logger  *zap.Logger
}

// NewEngine builds an engine over the given rule tables. factors may be nil.
func NewEngine(t Tables, factors FactorSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tbl:        t,
		classifier: NewClassifier(t),
		factors:    factors,
		logger:     logger,
	}
}

// UpdateTables swaps in reloaded rule tables.
func (e *Engine) UpdateTables(t Tables) {
	e.mu.Lock()
	e.tbl = t
	e.classifier = NewClassifier(t)
	e.mu.Unlock()
	e.logger.Info("irrationality tables updated")
}

func (e *Engine) tables() Tables {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tbl
}

// Classify returns the market's category under the current keyword tables.
func (e *Engine) Classify(question string) Category {
	e.mu.RLock()
	c := e.classifier
	e.mu.RUnlock()
	return c.Classify(question)
}

// Analysis bundles the outputs of one full market analysis.
type Analysis struct {
	Irrationality Assessment
	Factors       Factors
	Mispricing    Mispricing
	Signal        Signal
}

// Analyze runs the two-pass pipeline. The first irrationality pass knows
// nothing about edge; mispricing is computed from its category; the second
// pass folds the edge back in when it is positive.
func (e *Engine) Analyze(ctx context.Context, m MarketSnapshot, endDate string, insiderScore int, position scoring.Outcome) Analysis {
	cat := e.Classify(m.Question)

	initial := e.scoreMarket(m, cat, 0)

	factors := e.estimateFactors(ctx, m.Question, m.YesPrice, endDate, cat)

	mis := e.computeMispricing(m.YesPrice, factors)

	assessment := initial
	if mis.EdgePercent > 0 {
		assessment = e.scoreMarket(m, cat, mis.EdgePercent)
	}

	return Analysis{
		Irrationality: assessment,
		Factors:       factors,
		Mispricing:    mis,
		Signal:        Fuse(insiderScore, position, assessment, mis),
	}
}

func (e *Engine) estimateFactors(ctx context.Context, question string, yesPrice float64, endDate string, cat Category) Factors {
	if e.factors == nil {
		return HeuristicFactors(yesPrice, cat)
	}
	f, err := e.factors.EstimateFactors(ctx, question, yesPrice, endDate)
	if err != nil {
		e.logger.Warn("factor estimation failed, using heuristic fallback",
			zap.Error(err))
		return HeuristicFactors(yesPrice, cat)
	}
	if f.Category == "" {
		f.Category = cat
	}
	if f.Confidence == "" {
		f.Confidence = ConfidenceMedium
	}
	return f
}
