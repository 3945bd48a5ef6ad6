package scoring

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func epochDaysAgo(days float64) int64 {
	return testNow.Add(-time.Duration(days * 24 * float64(time.Hour))).Unix()
}

func TestWalletAgeScore(t *testing.T) {
	cfg := DefaultFeatureConfig()

	tests := []struct {
		name          string
		firstActivity int64
		expected      int
	}{
		{"two day old wallet", epochDaysAgo(2), 40},
		{"five day old wallet", epochDaysAgo(5), 20},
		{"just under three days", epochDaysAgo(2.9), 40},
		{"exactly seven days", epochDaysAgo(7), 0},
		{"old wallet", epochDaysAgo(400), 0},
		{"missing first activity", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.WalletAgeScore(tt.firstActivity, testNow)
			if got != tt.expected {
				t.Errorf("WalletAgeScore = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWalletAgeDays_MissingDataMarker(t *testing.T) {
	if got := WalletAgeDays(0, testNow); got != unknownWalletAgeDays {
		t.Errorf("WalletAgeDays(0) = %d, want %d", got, unknownWalletAgeDays)
	}
}

func TestAgainstTrendScore(t *testing.T) {
	cfg := DefaultFeatureConfig()

	tests := []struct {
		name     string
		odds     float64
		expected int
	}{
		{"deep longshot", 0.05, 25},
		{"extreme confidence", 0.96, 25},
		{"boundary low not scored", 0.10, 0},
		{"boundary high not scored", 0.95, 0},
		{"middling odds", 0.50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.AgainstTrendScore(tt.odds)
			if got != tt.expected {
				t.Errorf("AgainstTrendScore(%v) = %d, want %d", tt.odds, got, tt.expected)
			}
		})
	}
}

func TestTimingScore(t *testing.T) {
	cfg := DefaultFeatureConfig()

	tests := []struct {
		name     string
		endDate  string
		expected int
	}{
		{"resolves in six hours", testNow.Add(6 * time.Hour).Format(time.RFC3339), 15},
		{"resolves in two days", testNow.Add(48 * time.Hour).Format(time.RFC3339), 0},
		{"already resolved", testNow.Add(-time.Hour).Format(time.RFC3339), 0},
		{"no end date", "", 0},
		{"garbage end date", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := cfg.TimingScore(tt.endDate, testNow)
			if got != tt.expected {
				t.Errorf("TimingScore(%q) = %d, want %d", tt.endDate, got, tt.expected)
			}
		})
	}
}

func TestScore_AllFactorsStack(t *testing.T) {
	cfg := DefaultFeatureConfig()

	// Fresh wallet, longshot, big bet, near deadline, barely any history:
	// 40 + 25 + 20 + 15 + 10 = 110, the full base score.
	b := cfg.Score(TradeFeatures{
		Size:          300000,
		YesPrice:      0.05,
		Outcome:       OutcomeYes,
		FirstActivity: epochDaysAgo(1),
		TotalCount:    2,
		MarketEndDate: testNow.Add(6 * time.Hour).Format(time.RFC3339),
		Now:           testNow,
	})

	if b.Score != 110 {
		t.Errorf("Score = %d, want 110", b.Score)
	}
	if len(b.Flags) != 5 {
		t.Errorf("got %d flags, want 5: %v", len(b.Flags), b.Flags)
	}
	if b.Amount != 15000 {
		t.Errorf("Amount = %v, want 15000", b.Amount)
	}
}

func TestScore_NoPositionUsesEffectiveOdds(t *testing.T) {
	cfg := DefaultFeatureConfig()

	// NO at a YES price of 0.07 is a bet at 0.93 effective odds, inside the
	// normal band: no against-trend points. Cash cost is size * 0.93.
	b := cfg.Score(TradeFeatures{
		Size:       20000,
		YesPrice:   0.07,
		Outcome:    OutcomeNo,
		TotalCount: 50,
		Now:        testNow,
	})

	for _, f := range b.Flags {
		if strings.Contains(f, "trend") || strings.Contains(f, "confidence") {
			t.Errorf("unexpected odds flag for 0.93 effective odds: %q", f)
		}
	}
	if b.EffectiveOdds != 0.93 {
		t.Errorf("EffectiveOdds = %v, want 0.93", b.EffectiveOdds)
	}
	if b.Amount != 18600 {
		t.Errorf("Amount = %v, want 18600", b.Amount)
	}
}

func TestScore_UnknownWalletContributesNothing(t *testing.T) {
	cfg := DefaultFeatureConfig()

	b := cfg.Score(TradeFeatures{
		Size:       1000,
		YesPrice:   0.5,
		Outcome:    OutcomeYes,
		TotalCount: 100,
		Now:        testNow,
	})

	if b.Score != 0 {
		t.Errorf("Score = %d, want 0", b.Score)
	}
	if b.WalletAgeDays != unknownWalletAgeDays {
		t.Errorf("WalletAgeDays = %d, want %d", b.WalletAgeDays, unknownWalletAgeDays)
	}
}

func TestBreakdownAdd_CapsAtMaxScore(t *testing.T) {
	b := Breakdown{Score: 140}
	b.Add(40, "Pre-event trade")
	if b.Score != MaxScore {
		t.Errorf("Score = %d, want %d", b.Score, MaxScore)
	}
	if len(b.Flags) != 1 {
		t.Errorf("flag not recorded: %v", b.Flags)
	}

	b.Add(0, "ignored")
	if len(b.Flags) != 1 {
		t.Error("zero-point add must not record a flag")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{950, "950"},
		{15000, "15,000"},
		{1234567.4, "1,234,567"},
		{999.6, "1,000"},
	}

	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.expected {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
