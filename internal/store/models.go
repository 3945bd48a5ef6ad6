package store

import "time"

// WalletStats is the per-wallet aggregate, one row per wallet, updated on
// every attributable trade whether or not it alerts.
type WalletStats struct {
	Wallet            string  `gorm:"primaryKey;size:64"`
	TotalTrades       int64   `gorm:"not null;default:0"`
	PreEventTrades    int64   `gorm:"not null;default:0"`
	TotalVolume       float64 `gorm:"not null;default:0"`
	AvgLatencySeconds float64 `gorm:"not null;default:0"`
	// LatencySamples counts the trades folded into AvgLatencySeconds; the
	// running mean is defined over this counter, not TotalTrades.
	LatencySamples int64  `gorm:"not null;default:0"`
	InsiderScore   float64 `gorm:"not null;default:0;index"`
	Classification string  `gorm:"size:32"`
	FirstSeen      time.Time
	UpdatedAt      time.Time
}

// TradeRecord is one observed trade. TradeHash is unique so a re-polled trade
// inserts as a no-op.
type TradeRecord struct {
	ID             uint   `gorm:"primaryKey"`
	TradeHash      string `gorm:"uniqueIndex;size:80;not null"`
	Wallet         string `gorm:"index;size:64"`
	MarketID       string `gorm:"index;size:80"`
	Title          string
	Outcome        string `gorm:"size:8"`
	Size           float64
	YesPrice       float64
	CashCost       float64
	Score          int
	PreEvent       bool
	LatencySeconds float64
	TradedAt       time.Time
	CreatedAt      time.Time
}

// AlertRecord marks a sent alert. The composite unique index on
// (wallet, trade_hash) makes the dedup check-then-insert a single atomic
// upsert.
type AlertRecord struct {
	ID             uint   `gorm:"primaryKey"`
	Wallet         string `gorm:"size:64;uniqueIndex:idx_alerts_wallet_trade,priority:1"`
	TradeHash      string `gorm:"size:80;uniqueIndex:idx_alerts_wallet_trade,priority:2"`
	MarketID       string `gorm:"index;size:80"`
	Title          string
	Score          int
	SignalType     string `gorm:"size:24"`
	LatencySeconds float64
	SentAt         time.Time `gorm:"index"`
}
