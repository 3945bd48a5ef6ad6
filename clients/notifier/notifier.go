package notifier

import (
	"time"

	"polyradar/internal/irrationality"
	"polyradar/internal/scoring"
)

// InsiderAlert carries everything a sink needs to render one alert.
type InsiderAlert struct {
	// Wallet
	Wallet         string
	WalletAgeDays  int
	Activities     int
	Classification string
	WalletScore    float64

	// Trade
	Size          float64
	YesPrice      float64
	Outcome       scoring.Outcome
	CashCost      float64
	EffectiveOdds float64
	PotentialPnl  float64
	PnlMultiplier float64
	TradeHash     string

	// Market
	MarketID  string
	Title     string
	Slug      string
	EndDate   string
	MarketURL string

	// Scoring
	Score    int
	MaxScore int
	Flags    []string

	// Latency
	HasLatency bool
	Latency    scoring.Latency

	// Analysis
	HasAnalysis bool
	Analysis    irrationality.Analysis

	Timestamp time.Time
}

// Notifier is the interface for delivering alerts to a channel.
type Notifier interface {
	// SendInsiderAlert delivers one alert. Implementations swallow transport
	// errors after logging; a broken channel must not stall the detector.
	SendInsiderAlert(alert InsiderAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier over the non-nil arguments.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendInsiderAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendInsiderAlert(alert InsiderAlert) {
	for _, n := range m.notifiers {
		n.SendInsiderAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
