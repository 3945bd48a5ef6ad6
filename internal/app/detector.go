package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"polyradar/clients/notifier"
	"polyradar/clients/polymarketapi"
	"polyradar/config"
	"polyradar/internal/filter"
	"polyradar/internal/irrationality"
	"polyradar/internal/scoring"
	"polyradar/internal/store"

	"go.uber.org/zap"
)

// MarketSource provides the active market set.
type MarketSource interface {
	GetActiveMarkets(ctx context.Context, limit int) ([]polymarketapi.Market, error)
}

// TradeSource provides recent platform-wide trades, newest first.
type TradeSource interface {
	GetRecentTrades(ctx context.Context, limit int) ([]polymarketapi.Trade, error)
}

// ActivitySource provides per-wallet history snapshots.
type ActivitySource interface {
	GetWalletSnapshot(ctx context.Context, wallet string, limit int) (polymarketapi.WalletSnapshot, error)
}

// Ledger is the durable-store surface the detector needs.
type Ledger interface {
	RecordTrade(rec *store.TradeRecord) (bool, error)
	ApplyTrade(wallet string, u store.TradeUpdate) (*store.WalletStats, error)
	MarkAlertSent(rec *store.AlertRecord) (bool, error)
	RecentAlertsForMarket(marketID string, window time.Duration) ([]store.AlertRecord, error)
}

// walletStripes bounds in-process same-wallet serialization. The DB row lock
// is the real guard; the stripes just keep workers from piling onto it.
const walletStripes = 64

// DetectorConfig holds the scan loop settings that come from the environment
// rather than the rules file.
type DetectorConfig struct {
	Workers         int
	TradesPerPoll   int
	TopMarketsCount int
	ActivityLimit   int

	MaxConsecutiveErrors int

	CoordinationWindow time.Duration
	MaxAlertsPerMarket int
}

// Detector runs the per-cycle scoring pipeline: validate, pre-filter, join to
// markets, prefetch wallet snapshots, then score each candidate through the
// feature scorer, latency detector, wallet history, filter cascade, and
// irrationality engine.
type Detector struct {
	logger   *zap.Logger
	markets  MarketSource
	trades   TradeSource
	activity ActivitySource
	ledger   Ledger
	filter   *filter.Filter
	engine   *irrationality.Engine
	events   *scoring.EventDetector
	notifier notifier.Notifier

	cfg DetectorConfig

	rulesMu   sync.RWMutex
	features  scoring.FeatureConfig
	threshold int

	marketMu    sync.RWMutex
	marketIndex map[string]polymarketapi.Market

	walletLocks [walletStripes]sync.Mutex

	totalsMu sync.Mutex
	totals   Totals
}

// CycleStats counts the outcomes of one scan cycle.
type CycleStats struct {
	Fetched        int
	Processed      int
	InvalidData    int
	BelowMinBet    int
	NoMarket       int
	Duplicates     int
	BelowThreshold int
	Filtered       int
	Suppressed     int
	AlertsSent     int
	Errors         int

	FilterReasons map[filter.Reason]int

	mu sync.Mutex
}

// Totals are cumulative detector counters for the stats endpoint.
type Totals struct {
	Cycles         int       `json:"cycles"`
	TradesFetched  int       `json:"trades_fetched"`
	Processed      int       `json:"processed"`
	InvalidData    int       `json:"invalid_data"`
	BelowMinBet    int       `json:"below_min_bet"`
	NoMarket       int       `json:"no_market"`
	Duplicates     int       `json:"duplicates"`
	BelowThreshold int       `json:"below_threshold"`
	Filtered       int       `json:"filtered"`
	Suppressed     int       `json:"suppressed"`
	AlertsSent     int       `json:"alerts_sent"`
	Errors         int       `json:"errors"`
	LastAlertAt    time.Time `json:"last_alert_at"`
}

// NewDetector wires the pipeline. rules seeds the tunables; subsequent updates
// arrive through OnRulesUpdate.
func NewDetector(
	logger *zap.Logger,
	markets MarketSource,
	trades TradeSource,
	activity ActivitySource,
	ledger Ledger,
	f *filter.Filter,
	engine *irrationality.Engine,
	events *scoring.EventDetector,
	notif notifier.Notifier,
	cfg DetectorConfig,
	rules *config.RuleSet,
) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if rules == nil {
		rules = config.DefaultRuleSet()
	}

	return &Detector{
		logger:      logger,
		markets:     markets,
		trades:      trades,
		activity:    activity,
		ledger:      ledger,
		filter:      f,
		engine:      engine,
		events:      events,
		notifier:    notif,
		cfg:         cfg,
		features:    rules.Scoring,
		threshold:   rules.ScoreThreshold,
		marketIndex: make(map[string]polymarketapi.Market),
	}
}

// OnRulesUpdate swaps in a reloaded rule set and propagates the filter and
// irrationality tables. Implements config.RulesObserver.
func (d *Detector) OnRulesUpdate(rs *config.RuleSet) {
	d.rulesMu.Lock()
	d.features = rs.Scoring
	d.threshold = rs.ScoreThreshold
	d.rulesMu.Unlock()

	if d.filter != nil {
		d.filter.Update(rs.Filter)
	}
	if d.engine != nil {
		d.engine.UpdateTables(rs.Tables)
	}
	d.logger.Info("detection rules updated",
		zap.Int("scoreThreshold", rs.ScoreThreshold),
		zap.Float64("minBetSize", rs.Scoring.MinBetSize),
	)
}

func (d *Detector) featureConfig() (scoring.FeatureConfig, int) {
	d.rulesMu.RLock()
	defer d.rulesMu.RUnlock()
	return d.features, d.threshold
}

// RefreshMarkets fetches the active market set and rebuilds the condition-ID
// index used to join trades.
func (d *Detector) RefreshMarkets(ctx context.Context) error {
	markets, err := d.markets.GetActiveMarkets(ctx, d.cfg.TopMarketsCount)
	if err != nil {
		return fmt.Errorf("refresh markets: %w", err)
	}

	index := make(map[string]polymarketapi.Market, len(markets))
	for _, m := range markets {
		if m.ConditionID == "" || !m.Active || m.Closed {
			continue
		}
		index[m.ConditionID] = m
	}

	d.marketMu.Lock()
	d.marketIndex = index
	d.marketMu.Unlock()

	d.logger.Info("refreshed market index", zap.Int("markets", len(index)))
	return nil
}

// MarketFor looks up a market by condition ID in the current index.
func (d *Detector) MarketFor(conditionID string) (polymarketapi.Market, bool) {
	d.marketMu.RLock()
	defer d.marketMu.RUnlock()
	m, ok := d.marketIndex[conditionID]
	return m, ok
}

// TokenIDs returns the CLOB asset IDs across all indexed markets, for
// WebSocket subscriptions.
func (d *Detector) TokenIDs() []string {
	d.marketMu.RLock()
	defer d.marketMu.RUnlock()
	var ids []string
	for _, m := range d.marketIndex {
		ids = append(ids, m.TokenIDs...)
	}
	return ids
}

// MarketCount returns the size of the current market index.
func (d *Detector) MarketCount() int {
	d.marketMu.RLock()
	defer d.marketMu.RUnlock()
	return len(d.marketIndex)
}

// candidate is a trade that survived validation and the min-bet pre-filter.
type candidate struct {
	trade   polymarketapi.Trade
	market  polymarketapi.Market
	outcome scoring.Outcome
	cost    float64
}

// RunCycle fetches the latest trades and runs the full pipeline over them.
// Per-trade failures are isolated; the cycle aborts only after
// MaxConsecutiveErrors failures in a row.
func (d *Detector) RunCycle(ctx context.Context) (*CycleStats, error) {
	trades, err := d.trades.GetRecentTrades(ctx, d.cfg.TradesPerPoll)
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}

	cs := &CycleStats{
		Fetched:       len(trades),
		FilterReasons: make(map[filter.Reason]int),
	}

	features, _ := d.featureConfig()

	// First pass: validate, pre-filter on bet size, join markets. The min-bet
	// check runs before any wallet lookup so a cycle full of dust trades
	// costs zero activity fetches.
	var candidates []candidate
	wallets := make(map[string]struct{})
	for _, t := range trades {
		if t.Price < 0 || t.Price > 1 || t.Size <= 0 || t.Wallet == "" || t.Hash == "" {
			cs.InvalidData++
			continue
		}

		outcome, _ := scoring.ParseOutcome(t.Outcome, t.Price)
		cost := scoring.CashCost(t.Size, t.Price, outcome)
		if cost < features.MinBetSize {
			cs.BelowMinBet++
			continue
		}

		market, ok := d.MarketFor(t.ConditionID)
		if !ok {
			cs.NoMarket++
			continue
		}

		candidates = append(candidates, candidate{trade: t, market: market, outcome: outcome, cost: cost})
		wallets[t.Wallet] = struct{}{}
	}

	snapshots := d.prefetchSnapshots(ctx, wallets)

	// Second pass: score candidates on a bounded worker pool. A run of
	// consecutive failures cancels the pool; a dead store or API must not
	// spin through the whole batch.
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var consecutive int64
	jobs := make(chan candidate)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if err := d.processCandidate(cycleCtx, c, snapshots[c.trade.Wallet], cs); err != nil {
					cs.mu.Lock()
					cs.Errors++
					cs.mu.Unlock()
					d.logger.Warn("trade processing failed",
						zap.String("tradeHash", shortID(c.trade.Hash)),
						zap.Error(err),
					)
					if atomic.AddInt64(&consecutive, 1) > int64(d.cfg.MaxConsecutiveErrors) {
						cancel()
					}
					continue
				}
				atomic.StoreInt64(&consecutive, 0)
			}
		}()
	}

feed:
	for _, c := range candidates {
		select {
		case jobs <- c:
		case <-cycleCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	d.accumulate(cs)

	if int(atomic.LoadInt64(&consecutive)) > d.cfg.MaxConsecutiveErrors {
		return cs, fmt.Errorf("cycle aborted after %d consecutive errors", d.cfg.MaxConsecutiveErrors)
	}
	return cs, nil
}

// ProcessTrade runs one externally sourced trade (the WebSocket feed) through
// the same pipeline as a polled batch.
func (d *Detector) ProcessTrade(ctx context.Context, t polymarketapi.Trade) error {
	cs := &CycleStats{FilterReasons: make(map[filter.Reason]int)}
	defer d.accumulate(cs)

	features, _ := d.featureConfig()

	if t.Price < 0 || t.Price > 1 || t.Size <= 0 || t.Wallet == "" || t.Hash == "" {
		cs.InvalidData++
		return nil
	}

	outcome, _ := scoring.ParseOutcome(t.Outcome, t.Price)
	cost := scoring.CashCost(t.Size, t.Price, outcome)
	if cost < features.MinBetSize {
		cs.BelowMinBet++
		return nil
	}

	market, ok := d.MarketFor(t.ConditionID)
	if !ok {
		cs.NoMarket++
		return nil
	}

	snap, err := d.activity.GetWalletSnapshot(ctx, t.Wallet, d.cfg.ActivityLimit)
	if err != nil {
		// Missing history degrades to zero-scoring age/activity factors.
		d.logger.Debug("wallet snapshot fetch failed",
			zap.String("wallet", shortID(t.Wallet)),
			zap.Error(err),
		)
		snap = polymarketapi.WalletSnapshot{Wallet: t.Wallet}
	}

	return d.processCandidate(ctx, candidate{trade: t, market: market, outcome: outcome, cost: cost}, snap, cs)
}

// prefetchSnapshots fetches one activity snapshot per unique wallet on a small
// pool. Failures degrade to an empty snapshot rather than dropping the trade.
func (d *Detector) prefetchSnapshots(ctx context.Context, wallets map[string]struct{}) map[string]polymarketapi.WalletSnapshot {
	out := make(map[string]polymarketapi.WalletSnapshot, len(wallets))
	if len(wallets) == 0 {
		return out
	}

	var mu sync.Mutex
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range jobs {
				snap, err := d.activity.GetWalletSnapshot(ctx, w, d.cfg.ActivityLimit)
				if err != nil {
					d.logger.Debug("wallet snapshot fetch failed",
						zap.String("wallet", shortID(w)),
						zap.Error(err),
					)
					snap = polymarketapi.WalletSnapshot{Wallet: w}
				}
				mu.Lock()
				out[w] = snap
				mu.Unlock()
			}
		}()
	}

	for w := range wallets {
		select {
		case jobs <- w:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return out
		}
	}
	close(jobs)
	wg.Wait()
	return out
}

func (d *Detector) processCandidate(ctx context.Context, c candidate, snap polymarketapi.WalletSnapshot, cs *CycleStats) error {
	features, threshold := d.featureConfig()
	now := time.Now().UTC()
	t := c.trade

	b := features.Score(scoring.TradeFeatures{
		Size:          t.Size,
		YesPrice:      t.Price,
		Outcome:       c.outcome,
		FirstActivity: snap.FirstActivity,
		TotalCount:    snap.TotalCount,
		MarketEndDate: c.market.EndDate,
		Now:           now,
	})

	lat, hasLat := d.events.Detect(c.market.Question, c.market.EndDate, t.Timestamp, now)
	if hasLat {
		b.Add(scoring.LatencyScore(lat.Seconds),
			fmt.Sprintf("Pre-event trade (%.0fm lead, %s)", lat.Minutes, lat.Severity))
	}

	// Insert before touching wallet aggregates: a re-polled trade must not
	// double-count history.
	inserted, err := d.ledger.RecordTrade(&store.TradeRecord{
		TradeHash:      t.Hash,
		Wallet:         t.Wallet,
		MarketID:       t.ConditionID,
		Title:          c.market.Question,
		Outcome:        string(c.outcome),
		Size:           t.Size,
		YesPrice:       t.Price,
		CashCost:       c.cost,
		Score:          b.Score,
		PreEvent:       hasLat && lat.PreEvent,
		LatencySeconds: lat.Seconds,
		TradedAt:       time.Unix(t.Timestamp, 0).UTC(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		cs.mu.Lock()
		cs.Duplicates++
		cs.mu.Unlock()
		return nil
	}

	stats, err := d.applyTradeSerialized(t.Wallet, store.TradeUpdate{
		Size:           t.Size,
		PreEvent:       hasLat && lat.PreEvent,
		LatencySeconds: lat.Seconds,
		HasLatency:     hasLat,
	})
	if err != nil {
		return err
	}

	classification := stats.Classification
	if classification == store.ClassNew {
		classification = ""
	}
	if pts := historyBonus(stats.Classification); pts > 0 {
		b.Add(pts, "Wallet history: "+stats.Classification)
	}

	cs.mu.Lock()
	cs.Processed++
	cs.mu.Unlock()

	if b.Score < threshold {
		cs.mu.Lock()
		cs.BelowThreshold++
		cs.mu.Unlock()
		return nil
	}

	hours, hasHorizon := hoursToResolve(c.market.EndDate, now)
	verdict := d.filter.Evaluate(filter.Input{
		Title:          c.market.Question,
		EffectiveOdds:  b.EffectiveOdds,
		LeadMinutes:    lat.Minutes,
		HasLead:        hasLat,
		HoursToResolve: hours,
		HasHorizon:     hasHorizon,
	})
	if verdict.Skip {
		cs.mu.Lock()
		cs.Filtered++
		cs.FilterReasons[verdict.Reason]++
		cs.mu.Unlock()
		d.logger.Debug("alert vetoed",
			zap.String("reason", string(verdict.Reason)),
			zap.String("detail", verdict.Detail),
			zap.String("market", shortID(t.ConditionID)),
		)
		return nil
	}

	// Many distinct wallets alerting on one market inside the window looks
	// like coordination or a news leak already public; stay silent.
	recent, err := d.ledger.RecentAlertsForMarket(t.ConditionID, d.cfg.CoordinationWindow)
	if err != nil {
		return err
	}
	if len(recent) >= d.cfg.MaxAlertsPerMarket {
		cs.mu.Lock()
		cs.Suppressed++
		cs.mu.Unlock()
		return nil
	}

	analysis := d.engine.Analyze(ctx, irrationality.MarketSnapshot{
		Question:       c.market.Question,
		YesPrice:       t.Price,
		Volume24h:      c.market.Volume24h,
		AvgVolume30d:   c.market.AvgVolume30d,
		PriceChange24h: c.market.PriceChange24h,
	}, c.market.EndDate, b.Score, c.outcome)

	inserted, err = d.ledger.MarkAlertSent(&store.AlertRecord{
		Wallet:         t.Wallet,
		TradeHash:      t.Hash,
		MarketID:       t.ConditionID,
		Title:          c.market.Question,
		Score:          b.Score,
		SignalType:     string(analysis.Signal.Type),
		LatencySeconds: lat.Seconds,
	})
	if err != nil {
		return err
	}
	if !inserted {
		cs.mu.Lock()
		cs.Duplicates++
		cs.mu.Unlock()
		return nil
	}

	alert := notifier.InsiderAlert{
		Wallet:         t.Wallet,
		WalletAgeDays:  b.WalletAgeDays,
		Activities:     b.TotalActivities,
		Classification: classification,
		WalletScore:    stats.InsiderScore,

		Size:          t.Size,
		YesPrice:      t.Price,
		Outcome:       c.outcome,
		CashCost:      b.Amount,
		EffectiveOdds: b.EffectiveOdds,
		PotentialPnl:  b.PotentialPnl,
		PnlMultiplier: b.PnlMultiplier,
		TradeHash:     t.Hash,

		MarketID:  t.ConditionID,
		Title:     c.market.Question,
		Slug:      c.market.Slug,
		EndDate:   c.market.EndDate,
		MarketURL: marketURL(c.market.Slug),

		Score:    b.Score,
		MaxScore: scoring.MaxScore,
		Flags:    b.Flags,

		HasLatency: hasLat,
		Latency:    lat,

		HasAnalysis: true,
		Analysis:    analysis,

		Timestamp: time.Unix(t.Timestamp, 0).UTC(),
	}

	d.logger.Info("INSIDER ALERT",
		zap.String("wallet", shortID(t.Wallet)),
		zap.String("market", c.market.Question),
		zap.Int("score", b.Score),
		zap.String("signal", string(analysis.Signal.Type)),
		zap.Float64("cashCost", b.Amount),
		zap.Float64("effectiveOdds", b.EffectiveOdds),
		zap.Bool("preEvent", hasLat),
	)
	if d.notifier != nil {
		d.notifier.SendInsiderAlert(alert)
	}

	cs.mu.Lock()
	cs.AlertsSent++
	cs.mu.Unlock()
	return nil
}

// applyTradeSerialized serializes same-wallet aggregate updates in process.
func (d *Detector) applyTradeSerialized(wallet string, u store.TradeUpdate) (*store.WalletStats, error) {
	lock := &d.walletLocks[stripeFor(wallet)]
	lock.Lock()
	defer lock.Unlock()
	return d.ledger.ApplyTrade(wallet, u)
}

func stripeFor(wallet string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(wallet))
	return h.Sum32() % walletStripes
}

// historyBonus converts the wallet's aggregate classification into score
// points layered on top of the per-trade factors.
func historyBonus(classification string) int {
	switch classification {
	case store.ClassProbableInsider:
		return 20
	case store.ClassSyndicateWhale:
		return 10
	}
	return 0
}

func hoursToResolve(endDate string, now time.Time) (float64, bool) {
	if endDate == "" {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339, endDate)
	if err != nil {
		return 0, false
	}
	return end.Sub(now).Hours(), true
}

func marketURL(slug string) string {
	if slug == "" {
		return ""
	}
	return "https://polymarket.com/event/" + slug
}

func (d *Detector) accumulate(cs *CycleStats) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	d.totalsMu.Lock()
	defer d.totalsMu.Unlock()
	d.totals.Cycles++
	d.totals.TradesFetched += cs.Fetched
	d.totals.Processed += cs.Processed
	d.totals.InvalidData += cs.InvalidData
	d.totals.BelowMinBet += cs.BelowMinBet
	d.totals.NoMarket += cs.NoMarket
	d.totals.Duplicates += cs.Duplicates
	d.totals.BelowThreshold += cs.BelowThreshold
	d.totals.Filtered += cs.Filtered
	d.totals.Suppressed += cs.Suppressed
	d.totals.AlertsSent += cs.AlertsSent
	d.totals.Errors += cs.Errors
	if cs.AlertsSent > 0 {
		d.totals.LastAlertAt = time.Now().UTC()
	}
}

// Stats returns a copy of the cumulative counters.
func (d *Detector) Stats() Totals {
	d.totalsMu.Lock()
	defer d.totalsMu.Unlock()
	return d.totals
}
