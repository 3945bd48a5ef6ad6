package app

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	clts "polyradar/clients"
	"polyradar/clients/polymarketevents"
	"polyradar/config"
	"polyradar/internal/filter"
	"polyradar/internal/irrationality"
	"polyradar/internal/scoring"
	"polyradar/internal/store"

	"go.uber.org/zap"
)

// ensure Detector implements RulesObserver
var _ config.RulesObserver = (*Detector)(nil)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Runner wires the detector to its feeds and runs the scan loops until the
// context is canceled.
type Runner struct {
	clients   *clts.Clients
	cfg       *config.Config
	liveRules *config.LiveRules
	store     *store.Store

	detector     *Detector
	healthServer *http.Server
	startTime    time.Time
	wsConnected  atomic.Bool
}

func NewRunner(clients *clts.Clients, cfg *config.Config, liveRules *config.LiveRules, st *store.Store) *Runner {
	return &Runner{
		clients:   clients,
		cfg:       cfg,
		liveRules: liveRules,
		store:     st,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()
	logger := r.clients.Logger
	rules := r.liveRules.Get()

	logger.Info("starting insider detector",
		zap.Int("scoreThreshold", rules.ScoreThreshold),
		zap.Duration("pollInterval", r.cfg.Detector.PollInterval),
		zap.Int("topMarketsCount", r.cfg.Detector.TopMarketsCount),
		zap.Duration("marketRefreshInterval", r.cfg.Detector.MarketRefresh),
		zap.Bool("useWebSocket", r.cfg.Detector.UseWebSocket),
	)

	var factorSource irrationality.FactorSource
	if r.clients.Factors != nil {
		factorSource = r.clients.Factors
		logger.Info("factor estimation enabled")
	} else {
		logger.Info("factor estimation disabled, using heuristics")
	}

	r.detector = NewDetector(
		logger,
		r.clients.Polymarket,
		r.clients.Polymarket,
		r.clients.Polymarket,
		r.store,
		filter.New(rules.Filter),
		irrationality.NewEngine(rules.Tables, factorSource, logger),
		scoring.NewEventDetector(1024),
		r.clients.Notifier,
		DetectorConfig{
			Workers:              r.cfg.Detector.Workers,
			TradesPerPoll:        r.cfg.Detector.TradesPerPoll,
			TopMarketsCount:      r.cfg.Detector.TopMarketsCount,
			ActivityLimit:        r.cfg.Detector.ActivityLimit,
			MaxConsecutiveErrors: r.cfg.Detector.MaxConsecutiveErrors,
			CoordinationWindow:   r.cfg.Detector.CoordinationWindow,
			MaxAlertsPerMarket:   r.cfg.Detector.MaxAlertsPerMarket,
		},
		rules,
	)

	// Register for rules hot-reload
	r.liveRules.AddObserver(r.detector)
	if r.cfg.Rules.Path != "" {
		go r.liveRules.WatchFile(logger, r.cfg.Rules.Path, r.cfg.Rules.ReloadInterval, ctx.Done())
	}

	// Initial market fetch; without a market index nothing can be scored.
	fetchCtx, fetchCancel := context.WithTimeout(ctx, 30*time.Second)
	err := r.detector.RefreshMarkets(fetchCtx)
	fetchCancel()
	if err != nil {
		return fmt.Errorf("initial market fetch failed: %w", err)
	}

	// Connect WebSocket if configured; the poller is the fallback feed.
	usePolling := true
	if r.clients.PolymarketEvents != nil {
		if err := r.connectWebSocket(ctx); err != nil {
			logger.Warn("failed to connect WebSocket, falling back to polling", zap.Error(err))
		} else {
			usePolling = false
			go r.runWSConsumer(ctx)
			go r.runWSReconnector(ctx)
		}
	}
	if usePolling {
		go r.runPoller(ctx)
	}

	go r.runMarketRefresher(ctx)

	if r.cfg.HealthServer.Enabled {
		r.startHealthServer(r.cfg.HealthServer.Port)
		logger.Info("health server started", zap.Int("port", r.cfg.HealthServer.Port))
	}

	<-ctx.Done()
	logger.Info("runner shutting down")

	if r.clients.PolymarketEvents != nil {
		_ = r.clients.PolymarketEvents.Close()
	}

	if r.healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.healthServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	return nil
}

// runPoller drives the batch pipeline on a fixed interval.
func (r *Runner) runPoller(ctx context.Context) {
	logger := r.clients.Logger
	ticker := time.NewTicker(r.cfg.Detector.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, r.cfg.Detector.PollInterval*2)
			cs, err := r.detector.RunCycle(cycleCtx)
			cancel()
			if err != nil {
				logger.Warn("scan cycle failed", zap.Error(err))
				continue
			}
			logger.Debug("scan cycle complete",
				zap.Int("fetched", cs.Fetched),
				zap.Int("processed", cs.Processed),
				zap.Int("belowMinBet", cs.BelowMinBet),
				zap.Int("noMarket", cs.NoMarket),
				zap.Int("duplicates", cs.Duplicates),
				zap.Int("filtered", cs.Filtered),
				zap.Int("alertsSent", cs.AlertsSent),
			)
		}
	}
}

// connectWebSocket connects the market channel and subscribes to the current
// market set's asset IDs.
func (r *Runner) connectWebSocket(ctx context.Context) error {
	tokenIDs := r.detector.TokenIDs()
	if len(tokenIDs) == 0 {
		return fmt.Errorf("no token IDs to subscribe to")
	}

	// Pass the parent context, not a timeout context.
	// ConnectMarket uses ctx for both dialing AND for a goroutine that closes
	// the connection when ctx is canceled. If we use a timeout context here,
	// the connection gets closed as soon as this function returns.
	if err := r.clients.PolymarketEvents.ConnectMarket(ctx, tokenIDs); err != nil {
		return fmt.Errorf("connect market WebSocket: %w", err)
	}

	r.wsConnected.Store(true)
	r.clients.Logger.Info("WebSocket connected",
		zap.Int("subscribedTokens", len(tokenIDs)),
	)
	return nil
}

// runWSConsumer feeds trade frames from the WebSocket into the detector.
func (r *Runner) runWSConsumer(ctx context.Context) {
	logger := r.clients.Logger
	events := r.clients.PolymarketEvents

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events.Messages():
			if !ok {
				return
			}
			ev := polymarketevents.ParseTradeEvent(msg)
			if ev == nil {
				continue
			}
			trade := ev.Normalize()
			if err := r.detector.ProcessTrade(ctx, trade); err != nil {
				logger.Warn("ws trade processing failed",
					zap.String("tradeHash", shortID(trade.Hash)),
					zap.Error(err),
				)
			}
		case err := <-events.Errors():
			logger.Warn("WebSocket error", zap.Error(err))
		}
	}
}

// runWSReconnector monitors WebSocket health and reconnects if needed.
func (r *Runner) runWSReconnector(ctx context.Context) {
	logger := r.clients.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := r.clients.PolymarketEvents.Stats()
			if stats.MessageCount > 0 && time.Since(stats.LastMessageAt) > 2*time.Minute {
				logger.Warn("WebSocket appears stale, attempting reconnect",
					zap.Duration("timeSinceLastMessage", time.Since(stats.LastMessageAt)),
				)
				r.attemptReconnect(ctx)
			}
		}
	}
}

func (r *Runner) attemptReconnect(ctx context.Context) {
	logger := r.clients.Logger

	_ = r.clients.PolymarketEvents.Close()
	r.wsConnected.Store(false)

	time.Sleep(5 * time.Second)

	if err := r.connectWebSocket(ctx); err != nil {
		logger.Error("failed to reconnect WebSocket", zap.Error(err))
	}
}

// runMarketRefresher periodically refreshes the monitored market index.
func (r *Runner) runMarketRefresher(ctx context.Context) {
	logger := r.clients.Logger
	ticker := time.NewTicker(r.cfg.Detector.MarketRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := r.detector.RefreshMarkets(refreshCtx)
			cancel()
			if err != nil {
				logger.Warn("failed to refresh markets", zap.Error(err))
				continue
			}

			// Resubscribe so new markets get live coverage.
			if r.clients.PolymarketEvents != nil && r.wsConnected.Load() {
				if ids := r.detector.TokenIDs(); len(ids) > 0 {
					if err := r.clients.PolymarketEvents.SubscribeAssets(ids); err != nil {
						logger.Warn("failed to update WebSocket subscriptions", zap.Error(err))
					}
				}
			}

			totals := r.detector.Stats()
			logger.Info("refreshed monitored markets",
				zap.Int("marketCount", r.detector.MarketCount()),
				zap.Int("cycles", totals.Cycles),
				zap.Int("tradesFetched", totals.TradesFetched),
				zap.Int("processed", totals.Processed),
				zap.Int("filtered", totals.Filtered),
				zap.Int("suppressed", totals.Suppressed),
				zap.Int("alertsSent", totals.AlertsSent),
				zap.Bool("wsConnected", r.wsConnected.Load()),
			)
		}
	}
}
