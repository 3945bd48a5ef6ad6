package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Wallet classifications derived from the aggregate insider score.
const (
	ClassNew             = "New"
	ClassProbableInsider = "Probable Insider"
	ClassSyndicateWhale  = "Syndicate/Whale"
	ClassProfessional    = "Professional"
	ClassRetail          = "Retail"
)

// latencyScaleSeconds is the lead time treated as a maximal latency signal
// when scoring a wallet's average.
const latencyScaleSeconds = 1800

// TradeUpdate is the per-trade delta folded into a wallet's aggregate.
type TradeUpdate struct {
	Size           float64
	PreEvent       bool
	LatencySeconds float64
	HasLatency     bool
}

// ComputeInsiderScore recomputes the wallet score from the full aggregate:
// half the pre-event trade ratio, half the average latency relative to the
// 30-minute scale, each capped at 100.
func ComputeInsiderScore(preEvent, totalTrades int64, avgLatencySeconds float64) float64 {
	if totalTrades == 0 {
		return 0
	}
	ratio := float64(preEvent) / float64(totalTrades) * 100
	if ratio > 100 {
		ratio = 100
	}
	latency := 0.0
	if avgLatencySeconds > 0 {
		latency = avgLatencySeconds / latencyScaleSeconds * 100
		if latency > 100 {
			latency = 100
		}
	}
	return 0.5*ratio + 0.5*latency
}

// ClassifyWallet maps an aggregate onto a behavior class. Wallets with under
// three trades are "New" regardless of score.
func ClassifyWallet(totalTrades int64, insiderScore float64) string {
	switch {
	case totalTrades < 3:
		return ClassNew
	case insiderScore >= 80:
		return ClassProbableInsider
	case insiderScore >= 60:
		return ClassSyndicateWhale
	case insiderScore >= 30:
		return ClassProfessional
	}
	return ClassRetail
}

// GetWalletStats returns the wallet aggregate, or nil when the wallet has
// never been seen.
func (s *Store) GetWalletStats(wallet string) (*WalletStats, error) {
	var stats WalletStats
	err := s.db.First(&stats, "wallet = ?", wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetWalletStats: %w", err)
	}
	return &stats, nil
}

// ApplyTrade folds one trade into the wallet aggregate and returns the updated
// row. The read-modify-write runs in a transaction with a row lock: updates to
// the same wallet serialize, distinct wallets proceed independently.
func (s *Store) ApplyTrade(wallet string, u TradeUpdate) (*WalletStats, error) {
	var out WalletStats

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var stats WalletStats
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&stats, "wallet = ?", wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = WalletStats{Wallet: wallet, FirstSeen: time.Now().UTC()}
			if err := tx.Create(&stats).Error; err != nil {
				return fmt.Errorf("create wallet row: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lock wallet row: %w", err)
		}

		stats.TotalTrades++
		if u.PreEvent {
			stats.PreEventTrades++
		}
		stats.TotalVolume += u.Size

		// Incremental mean over latency samples only; trades without a
		// latency signal leave the average untouched.
		if u.HasLatency && u.LatencySeconds > 0 {
			n := stats.LatencySamples
			stats.AvgLatencySeconds += (u.LatencySeconds - stats.AvgLatencySeconds) / float64(n+1)
			stats.LatencySamples = n + 1
		}

		stats.InsiderScore = ComputeInsiderScore(stats.PreEventTrades, stats.TotalTrades, stats.AvgLatencySeconds)
		stats.Classification = ClassifyWallet(stats.TotalTrades, stats.InsiderScore)
		stats.UpdatedAt = time.Now().UTC()

		if err := tx.Save(&stats).Error; err != nil {
			return fmt.Errorf("save wallet row: %w", err)
		}
		out = stats
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApplyTrade: %w", err)
	}
	return &out, nil
}

// TopInsiders returns the highest-scoring wallets with enough history to be
// classified.
func (s *Store) TopInsiders(limit int) ([]WalletStats, error) {
	if limit <= 0 {
		limit = 10
	}
	var wallets []WalletStats
	err := s.db.
		Where("total_trades >= ?", 3).
		Order("insider_score DESC").
		Limit(limit).
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("TopInsiders: %w", err)
	}
	return wallets, nil
}
