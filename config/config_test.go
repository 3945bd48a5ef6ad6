package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"STAGE", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"DATABASE_DSN", "REDIS_ADDR", "REDIS_PASSWORD",
		"FACTOR_CACHE_TTL", "FACTOR_COOLDOWN",
		"FACTORS_API_URL", "FACTORS_API_KEY", "FACTORS_MODEL",
		"POLL_INTERVAL", "TRADES_PER_POLL", "TOP_MARKETS_COUNT",
		"MARKET_REFRESH_INTERVAL", "SCORE_THRESHOLD", "DETECTOR_WORKERS",
		"WALLET_ACTIVITY_LIMIT", "MAX_CONSECUTIVE_ERRORS",
		"COORDINATION_WINDOW", "MAX_ALERTS_PER_MARKET", "USE_WEBSOCKET",
		"RULES_FILE", "RULES_RELOAD_INTERVAL",
		"POLYMARKET_GAMMA_API_URL", "POLYMARKET_DATA_API_URL", "POLYMARKET_MARKET_WS_URL",
		"HEALTH_SERVER_ENABLED", "HEALTH_SERVER_PORT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.IsProd {
		t.Error("expected IsProd false when STAGE unset")
	}
	if cfg.Discord.BotToken != "" {
		t.Error("expected empty Discord bot token by default")
	}
	if cfg.Database.DSN == "" {
		t.Error("expected a default database DSN")
	}
	if cfg.Redis.FactorTTL != 6*time.Hour {
		t.Errorf("FactorTTL = %v, want 6h", cfg.Redis.FactorTTL)
	}
	if cfg.Factors.Model != "gpt-4o-mini" {
		t.Errorf("Factors.Model = %q", cfg.Factors.Model)
	}
	if cfg.Detector.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Detector.PollInterval)
	}
	if cfg.Detector.TradesPerPoll != 500 {
		t.Errorf("TradesPerPoll = %d, want 500", cfg.Detector.TradesPerPoll)
	}
	if cfg.Detector.ScoreThreshold != 80 {
		t.Errorf("ScoreThreshold = %d, want 80", cfg.Detector.ScoreThreshold)
	}
	if cfg.Detector.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Detector.Workers)
	}
	if cfg.Detector.MaxAlertsPerMarket != 3 {
		t.Errorf("MaxAlertsPerMarket = %d, want 3", cfg.Detector.MaxAlertsPerMarket)
	}
	if cfg.Detector.UseWebSocket {
		t.Error("expected UseWebSocket false by default")
	}
	if cfg.Polymarket.GammaAPIURL != "https://gamma-api.polymarket.com" {
		t.Errorf("GammaAPIURL = %q", cfg.Polymarket.GammaAPIURL)
	}
	if !cfg.HealthServer.Enabled || cfg.HealthServer.Port != 8080 {
		t.Errorf("health server = %+v, want enabled on 8080", cfg.HealthServer)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STAGE", "PROD")
	t.Setenv("DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("SCORE_THRESHOLD", "95")
	t.Setenv("USE_WEBSOCKET", "true")
	t.Setenv("COORDINATION_WINDOW", "2h")

	cfg := Load()

	if !cfg.IsProd {
		t.Error("expected IsProd true for STAGE=PROD")
	}
	if cfg.Discord.BotToken != "token-123" {
		t.Errorf("BotToken = %q", cfg.Discord.BotToken)
	}
	if cfg.Detector.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Detector.PollInterval)
	}
	if cfg.Detector.ScoreThreshold != 95 {
		t.Errorf("ScoreThreshold = %d, want 95", cfg.Detector.ScoreThreshold)
	}
	if !cfg.Detector.UseWebSocket {
		t.Error("expected UseWebSocket true")
	}
	if cfg.Detector.CoordinationWindow != 2*time.Hour {
		t.Errorf("CoordinationWindow = %v, want 2h", cfg.Detector.CoordinationWindow)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRADES_PER_POLL", "not-a-number")
	t.Setenv("POLL_INTERVAL", "garbage")

	cfg := Load()

	if cfg.Detector.TradesPerPoll != 500 {
		t.Errorf("TradesPerPoll = %d, want default 500", cfg.Detector.TradesPerPoll)
	}
	if cfg.Detector.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want default 30s", cfg.Detector.PollInterval)
	}
}

func TestEnvBoolDefault(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"no", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.value)
			if got := envBoolDefault("TEST_BOOL_VAR", tt.def); got != tt.want {
				t.Errorf("envBoolDefault(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	if result := cfg.Validate(); !result.Valid {
		t.Errorf("default config invalid: %+v", result.Errors)
	}

	cfg.Detector.PollInterval = 0
	cfg.Database.DSN = ""
	result := cfg.Validate()
	if result.Valid {
		t.Fatal("expected invalid config")
	}
	if len(result.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %+v", len(result.Errors), result.Errors)
	}
}

func TestDefaultRuleSet(t *testing.T) {
	rs := DefaultRuleSet()

	if rs.ScoreThreshold != 80 {
		t.Errorf("ScoreThreshold = %d, want 80", rs.ScoreThreshold)
	}
	if rs.Scoring.MinBetSize != 10000 {
		t.Errorf("MinBetSize = %v, want 10000", rs.Scoring.MinBetSize)
	}
	if rs.Filter.MaxLeadMinutes != 10080 {
		t.Errorf("MaxLeadMinutes = %v, want 10080", rs.Filter.MaxLeadMinutes)
	}
	if len(rs.Tables.BaseRates) == 0 {
		t.Error("expected default base rates")
	}
	if result := rs.Validate(); !result.Valid {
		t.Errorf("default rule set invalid: %+v", result.Errors)
	}
}

func TestRuleSetFromJSON_PartialOverride(t *testing.T) {
	data := []byte(`{
		"score_threshold": 100,
		"scoring": {"min_bet_size": 25000},
		"filter": {"max_lead_minutes": 4320}
	}`)

	rs, err := RuleSetFromJSON(data, nil)
	if err != nil {
		t.Fatalf("RuleSetFromJSON: %v", err)
	}

	if rs.ScoreThreshold != 100 {
		t.Errorf("ScoreThreshold = %d, want 100", rs.ScoreThreshold)
	}
	if rs.Scoring.MinBetSize != 25000 {
		t.Errorf("MinBetSize = %v, want 25000", rs.Scoring.MinBetSize)
	}
	if rs.Filter.MaxLeadMinutes != 4320 {
		t.Errorf("MaxLeadMinutes = %v, want 4320", rs.Filter.MaxLeadMinutes)
	}

	// Untouched fields keep their defaults.
	def := DefaultRuleSet()
	if rs.Scoring.Weights.WalletAgeHigh != def.Scoring.Weights.WalletAgeHigh {
		t.Error("partial override clobbered scoring weights")
	}
	if rs.Filter.LowROIOdds != def.Filter.LowROIOdds {
		t.Error("partial override clobbered filter defaults")
	}
}

func TestRuleSetFromJSON_Invalid(t *testing.T) {
	if _, err := RuleSetFromJSON([]byte("{not json"), nil); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestRuleSetClone_DeepCopy(t *testing.T) {
	rs := DefaultRuleSet()
	clone := rs.Clone()

	clone.ScoreThreshold = 999
	clone.Filter.HFTPatterns[0] = "mutated"
	clone.Tables.BaseRates["historically_near_zero"] = 0.5

	if rs.ScoreThreshold == 999 {
		t.Error("scalar leaked through clone")
	}
	if rs.Filter.HFTPatterns[0] == "mutated" {
		t.Error("filter slice shared between clone and original")
	}
	if rs.Tables.BaseRates["historically_near_zero"] == 0.5 {
		t.Error("base rate map shared between clone and original")
	}
}

func TestRuleSetValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuleSet)
		field  string
	}{
		{
			name:   "threshold above ceiling",
			mutate: func(rs *RuleSet) { rs.ScoreThreshold = 200 },
			field:  "score_threshold",
		},
		{
			name:   "negative threshold",
			mutate: func(rs *RuleSet) { rs.ScoreThreshold = -1 },
			field:  "score_threshold",
		},
		{
			name: "odds bands inverted",
			mutate: func(rs *RuleSet) {
				rs.Scoring.LowOddsThreshold = 0.95
				rs.Scoring.HighOddsThreshold = 0.10
			},
			field: "scoring.low_odds_threshold",
		},
		{
			name:   "age bands inverted",
			mutate: func(rs *RuleSet) { rs.Scoring.NewWalletDaysHigh = 30 },
			field:  "scoring.new_wallet_days_high",
		},
		{
			name:   "zero lead window",
			mutate: func(rs *RuleSet) { rs.Filter.MaxLeadMinutes = 0 },
			field:  "filter.max_lead_minutes",
		},
		{
			name:   "base rate out of range",
			mutate: func(rs *RuleSet) { rs.Tables.BaseRates["historically_near_zero"] = 1.5 },
			field:  "tables.base_rates.historically_near_zero",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := DefaultRuleSet()
			tt.mutate(rs)
			result := rs.Validate()
			if result.Valid {
				t.Fatal("expected validation failure")
			}
			found := false
			for _, e := range result.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q in %+v", tt.field, result.Errors)
			}
		})
	}
}

func TestLoadRuleSet(t *testing.T) {
	rs, err := LoadRuleSet("")
	if err != nil {
		t.Fatalf("LoadRuleSet(\"\"): %v", err)
	}
	if rs.ScoreThreshold != 80 {
		t.Errorf("empty path should return defaults, got threshold %d", rs.ScoreThreshold)
	}

	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(`{"score_threshold": 110}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, err = LoadRuleSet(path)
	if err != nil {
		t.Fatalf("LoadRuleSet: %v", err)
	}
	if rs.ScoreThreshold != 110 {
		t.Errorf("ScoreThreshold = %d, want 110", rs.ScoreThreshold)
	}

	if _, err := LoadRuleSet(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"score_threshold": 500}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRuleSet(bad); err == nil {
		t.Error("expected validation error for out-of-range threshold")
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	updates []*RuleSet
}

func (o *recordingObserver) OnRulesUpdate(rs *RuleSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, rs)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.updates)
}

func TestLiveRules_UpdateNotifiesObservers(t *testing.T) {
	lr := NewLiveRules(nil)
	obs := &recordingObserver{}
	lr.AddObserver(obs)

	rs := DefaultRuleSet()
	rs.ScoreThreshold = 90
	if err := lr.Update(rs); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := lr.Get().ScoreThreshold; got != 90 {
		t.Errorf("Get().ScoreThreshold = %d, want 90", got)
	}
	if obs.count() != 1 {
		t.Fatalf("observer called %d times, want 1", obs.count())
	}

	// The observer got its own copy.
	obs.mu.Lock()
	obs.updates[0].ScoreThreshold = 1
	obs.mu.Unlock()
	if lr.Get().ScoreThreshold != 90 {
		t.Error("observer copy shared state with the holder")
	}
}

func TestLiveRules_RejectsInvalidUpdate(t *testing.T) {
	lr := NewLiveRules(nil)
	before := lr.Get().ScoreThreshold

	rs := DefaultRuleSet()
	rs.ScoreThreshold = 500
	if err := lr.Update(rs); err == nil {
		t.Fatal("expected validation error")
	}
	if lr.Get().ScoreThreshold != before {
		t.Error("invalid update replaced the rule set")
	}
}

func TestLiveRules_GetReturnsCopy(t *testing.T) {
	lr := NewLiveRules(nil)
	got := lr.Get()
	got.ScoreThreshold = 1
	got.Filter.HFTPatterns[0] = "mutated"

	fresh := lr.Get()
	if fresh.ScoreThreshold == 1 || fresh.Filter.HFTPatterns[0] == "mutated" {
		t.Error("Get returned shared state")
	}
}

func TestLiveRules_WatchFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	lr := NewLiveRules(nil)

	stop := make(chan struct{})
	defer close(stop)
	go lr.WatchFile(nil, path, 10*time.Millisecond, stop)

	// Let the watcher take its initial stat before the file appears.
	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"score_threshold": 120}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lr.Get().ScoreThreshold == 120 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("rules not reloaded, threshold = %d", lr.Get().ScoreThreshold)
}
