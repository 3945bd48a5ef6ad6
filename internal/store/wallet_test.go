package store

import (
	"math"
	"testing"
)

func TestComputeInsiderScore(t *testing.T) {
	tests := []struct {
		name       string
		preEvent   int64
		total      int64
		avgLatency float64
		expected   float64
	}{
		{"no trades", 0, 0, 0, 0},
		{"no pre-event no latency", 0, 10, 0, 0},
		{"all pre-event max latency", 10, 10, 1800, 100},
		{"half ratio no latency", 5, 10, 0, 25},
		{"latency above scale capped", 0, 10, 5000, 50},
		{"quarter ratio half latency", 1, 4, 900, 0.5*25 + 0.5*50},
		{"negative latency ignored", 5, 10, -100, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeInsiderScore(tt.preEvent, tt.total, tt.avgLatency)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ComputeInsiderScore(%d, %d, %v) = %v, want %v",
					tt.preEvent, tt.total, tt.avgLatency, got, tt.expected)
			}
		})
	}
}

func TestClassifyWallet(t *testing.T) {
	tests := []struct {
		name     string
		trades   int64
		score    float64
		expected string
	}{
		{"fresh wallet outranks score", 2, 95, ClassNew},
		{"probable insider", 10, 85, ClassProbableInsider},
		{"probable insider boundary", 3, 80, ClassProbableInsider},
		{"syndicate", 10, 65, ClassSyndicateWhale},
		{"professional", 10, 35, ClassProfessional},
		{"retail", 10, 10, ClassRetail},
		{"retail at zero", 3, 0, ClassRetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyWallet(tt.trades, tt.score); got != tt.expected {
				t.Errorf("ClassifyWallet(%d, %v) = %q, want %q", tt.trades, tt.score, got, tt.expected)
			}
		})
	}
}

// The fold of trades without latency into an aggregate must commute: count and
// volume are order-free, and the latency mean is untouched.
func TestTradeFold_CommutesWithoutLatency(t *testing.T) {
	fold := func(stats WalletStats, updates []TradeUpdate) WalletStats {
		for _, u := range updates {
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
		}
		return stats
	}

	updates := []TradeUpdate{
		{Size: 100},
		{Size: 250},
		{Size: 9000},
	}
	reversed := []TradeUpdate{updates[2], updates[1], updates[0]}

	a := fold(WalletStats{}, updates)
	b := fold(WalletStats{}, reversed)

	if a.TotalTrades != b.TotalTrades || a.TotalVolume != b.TotalVolume {
		t.Errorf("fold not commutative: %+v vs %+v", a, b)
	}
	if a.AvgLatencySeconds != 0 || b.AvgLatencySeconds != 0 {
		t.Error("latency mean moved without latency samples")
	}
}

// With latency samples the incremental mean must equal the plain mean of the
// samples regardless of feed order.
func TestIncrementalLatencyMean(t *testing.T) {
	want := (120 + 1800 + 600 + 45) / 4.0

	orders := [][]float64{
		{120, 1800, 600, 45},
		{45, 600, 1800, 120},
		{1800, 120, 45, 600},
	}
	for _, order := range orders {
		avg, n := 0.0, int64(0)
		for _, x := range order {
			avg += (x - avg) / float64(n+1)
			n++
		}
		if math.Abs(avg-want) > 1e-9 {
			t.Errorf("order %v mean = %v, want %v", order, avg, want)
		}
	}
}
