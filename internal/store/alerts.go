package store

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// RecordTrade persists an observed trade. A duplicate trade hash is a benign
// no-op; the bool reports whether the row was actually inserted.
func (s *Store) RecordTrade(rec *TradeRecord) (bool, error) {
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_hash"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("RecordTrade: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// IsAlertSent reports whether an alert for this (wallet, trade) pair already
// went out.
func (s *Store) IsAlertSent(wallet, tradeHash string) (bool, error) {
	var n int64
	err := s.db.Model(&AlertRecord{}).
		Where("wallet = ? AND trade_hash = ?", wallet, tradeHash).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("IsAlertSent: %w", err)
	}
	return n > 0, nil
}

// MarkAlertSent inserts the alert record atomically against the composite
// unique key. Returns false when another worker already claimed the pair; the
// caller must then not send a duplicate notification.
func (s *Store) MarkAlertSent(rec *AlertRecord) (bool, error) {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "trade_hash"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("MarkAlertSent: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecentAlertsForMarket lists alerts sent for a market inside the trailing
// window, used for coordinated-attack suppression.
func (s *Store) RecentAlertsForMarket(marketID string, window time.Duration) ([]AlertRecord, error) {
	cutoff := time.Now().UTC().Add(-window)
	var alerts []AlertRecord
	err := s.db.
		Where("market_id = ? AND sent_at >= ?", marketID, cutoff).
		Order("sent_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("RecentAlertsForMarket: %w", err)
	}
	return alerts, nil
}
