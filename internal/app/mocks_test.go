package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"polyradar/clients/notifier"
	"polyradar/clients/polymarketapi"
	"polyradar/internal/store"
)

type mockMarketSource struct {
	mu      sync.Mutex
	markets []polymarketapi.Market
	err     error
	calls   int
}

func (m *mockMarketSource) GetActiveMarkets(_ context.Context, _ int) ([]polymarketapi.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.markets, nil
}

type mockTradeSource struct {
	mu     sync.Mutex
	trades []polymarketapi.Trade
	err    error
}

func (m *mockTradeSource) GetRecentTrades(_ context.Context, _ int) ([]polymarketapi.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.trades, nil
}

type mockActivitySource struct {
	mu        sync.Mutex
	snapshots map[string]polymarketapi.WalletSnapshot
	err       error
	calls     int
}

func (m *mockActivitySource) GetWalletSnapshot(_ context.Context, wallet string, _ int) (polymarketapi.WalletSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return polymarketapi.WalletSnapshot{}, m.err
	}
	snap, ok := m.snapshots[wallet]
	if !ok {
		return polymarketapi.WalletSnapshot{Wallet: wallet}, nil
	}
	return snap, nil
}

// memLedger is an in-memory Ledger with the same dedup and aggregate semantics
// as the Postgres store.
type memLedger struct {
	mu        sync.Mutex
	trades    map[string]store.TradeRecord
	alerts    []store.AlertRecord
	alertKeys map[string]bool
	stats     map[string]*store.WalletStats

	recordErr error
	applyErr  error
}

func newMemLedger() *memLedger {
	return &memLedger{
		trades:    make(map[string]store.TradeRecord),
		alertKeys: make(map[string]bool),
		stats:     make(map[string]*store.WalletStats),
	}
}

func (l *memLedger) RecordTrade(rec *store.TradeRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return false, l.recordErr
	}
	if _, exists := l.trades[rec.TradeHash]; exists {
		return false, nil
	}
	l.trades[rec.TradeHash] = *rec
	return true, nil
}

func (l *memLedger) ApplyTrade(wallet string, u store.TradeUpdate) (*store.WalletStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applyErr != nil {
		return nil, l.applyErr
	}

	stats, ok := l.stats[wallet]
	if !ok {
		stats = &store.WalletStats{Wallet: wallet, FirstSeen: time.Now().UTC()}
		l.stats[wallet] = stats
	}

	stats.TotalTrades++
	if u.PreEvent {
		stats.PreEventTrades++
	}
	stats.TotalVolume += u.Size
	if u.HasLatency && u.LatencySeconds > 0 {
		n := stats.LatencySamples
		stats.AvgLatencySeconds += (u.LatencySeconds - stats.AvgLatencySeconds) / float64(n+1)
		stats.LatencySamples = n + 1
	}
	stats.InsiderScore = store.ComputeInsiderScore(stats.PreEventTrades, stats.TotalTrades, stats.AvgLatencySeconds)
	stats.Classification = store.ClassifyWallet(stats.TotalTrades, stats.InsiderScore)

	out := *stats
	return &out, nil
}

func (l *memLedger) MarkAlertSent(rec *store.AlertRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := rec.Wallet + "|" + rec.TradeHash
	if l.alertKeys[key] {
		return false, nil
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	l.alertKeys[key] = true
	l.alerts = append(l.alerts, *rec)
	return true, nil
}

func (l *memLedger) RecentAlertsForMarket(marketID string, window time.Duration) ([]store.AlertRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().UTC().Add(-window)
	var out []store.AlertRecord
	for _, a := range l.alerts {
		if a.MarketID == marketID && !a.SentAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *memLedger) seedAlert(wallet, marketID string, sentAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hash := fmt.Sprintf("seed-%s-%d", wallet, len(l.alerts))
	l.alertKeys[wallet+"|"+hash] = true
	l.alerts = append(l.alerts, store.AlertRecord{
		Wallet:    wallet,
		TradeHash: hash,
		MarketID:  marketID,
		SentAt:    sentAt,
	})
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.InsiderAlert
}

func (m *mockNotifier) SendInsiderAlert(alert notifier.InsiderAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *mockNotifier) Close() error { return nil }

func (m *mockNotifier) sent() []notifier.InsiderAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notifier.InsiderAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
