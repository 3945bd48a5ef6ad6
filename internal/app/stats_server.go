package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader for real-time stats
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServiceStats is the JSON shape served by /stats.
type ServiceStats struct {
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	WebSocket struct {
		Enabled        bool   `json:"enabled"`
		Connected      bool   `json:"connected"`
		MessageCount   uint64 `json:"message_count"`
		LastMessageAt  string `json:"last_message_at,omitempty"`
		LastMessageAgo string `json:"last_message_ago,omitempty"`
	} `json:"websocket"`

	Markets struct {
		Count int `json:"count"`
	} `json:"markets"`

	Detector Totals `json:"detector"`

	AlertRate float64 `json:"alert_rate"`

	TopInsiders []InsiderInfo `json:"top_insiders"`

	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc"`
		NumGC      uint32 `json:"num_gc"`
		GoVersion  string `json:"go_version"`
	} `json:"runtime"`
}

// InsiderInfo is one row of the top-insiders leaderboard.
type InsiderInfo struct {
	Wallet         string  `json:"wallet"`
	TotalTrades    int64   `json:"total_trades"`
	PreEventTrades int64   `json:"pre_event_trades"`
	InsiderScore   float64 `json:"insider_score"`
	Classification string  `json:"classification"`
}

// GetStats assembles the service statistics snapshot.
func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	uptime := time.Since(r.startTime)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	stats.WebSocket.Enabled = r.clients.PolymarketEvents != nil
	if r.clients.PolymarketEvents != nil {
		wsStats := r.clients.PolymarketEvents.Stats()
		stats.WebSocket.Connected = r.wsConnected.Load()
		stats.WebSocket.MessageCount = wsStats.MessageCount
		if !wsStats.LastMessageAt.IsZero() {
			stats.WebSocket.LastMessageAt = wsStats.LastMessageAt.UTC().Format(time.RFC3339)
			stats.WebSocket.LastMessageAgo = time.Since(wsStats.LastMessageAt).Round(time.Second).String()
		}
	}

	if r.detector != nil {
		stats.Markets.Count = r.detector.MarketCount()
		stats.Detector = r.detector.Stats()
		if uptime.Hours() > 0 {
			stats.AlertRate = float64(stats.Detector.AlertsSent) / uptime.Hours()
		}
	}

	if r.store != nil {
		if wallets, err := r.store.TopInsiders(10); err == nil {
			stats.TopInsiders = make([]InsiderInfo, 0, len(wallets))
			for _, w := range wallets {
				stats.TopInsiders = append(stats.TopInsiders, InsiderInfo{
					Wallet:         w.Wallet,
					TotalTrades:    w.TotalTrades,
					PreEventTrades: w.PreEventTrades,
					InsiderScore:   w.InsiderScore,
					Classification: w.Classification,
				})
			}
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = memStats.HeapAlloc
	stats.Runtime.NumGC = memStats.NumGC
	stats.Runtime.GoVersion = runtime.Version()

	return stats
}

// startHealthServer starts an HTTP server for health checks and stats.
func (r *Runner) startHealthServer(port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	// WebSocket endpoint for real-time stats
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, req, nil)
		if err != nil {
			r.clients.Logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if err := conn.WriteJSON(r.GetStats()); err != nil {
				return // Client disconnected
			}
		}
	})

	r.healthServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := r.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.clients.Logger.Error("health server error", zap.Error(err))
		}
	}()
}
