package config

import (
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of a validation pass.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	if c.Detector.PollInterval < time.Second {
		errors = append(errors, ValidationError{
			Field:   "detector.poll_interval",
			Message: "must be at least 1 second",
		})
	}
	if c.Detector.TradesPerPoll < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.trades_per_poll",
			Message: "must be at least 1",
		})
	}
	if c.Detector.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.workers",
			Message: "must be at least 1",
		})
	}
	if c.Detector.MaxConsecutiveErrors < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.max_consecutive_errors",
			Message: "must be at least 1",
		})
	}
	if c.Detector.MaxAlertsPerMarket < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.max_alerts_per_market",
			Message: "must be at least 1",
		})
	}
	if c.Database.DSN == "" {
		errors = append(errors, ValidationError{
			Field:   "database.dsn",
			Message: "must not be empty",
		})
	}
	if c.HealthServer.Enabled && (c.HealthServer.Port < 1 || c.HealthServer.Port > 65535) {
		errors = append(errors, ValidationError{
			Field:   "health_server.port",
			Message: "must be a valid port",
		})
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Validate checks the rule set for values that would break detection.
func (r *RuleSet) Validate() ValidationResult {
	var errors []ValidationError

	if r.ScoreThreshold < 0 || r.ScoreThreshold > 150 {
		errors = append(errors, ValidationError{
			Field:   "score_threshold",
			Message: "must be between 0 and 150",
		})
	}
	if r.Scoring.MinBetSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "scoring.min_bet_size",
			Message: "must be non-negative",
		})
	}
	if r.Scoring.LowOddsThreshold < 0 || r.Scoring.LowOddsThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "scoring.low_odds_threshold",
			Message: "must be between 0 and 1",
		})
	}
	if r.Scoring.HighOddsThreshold < 0 || r.Scoring.HighOddsThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "scoring.high_odds_threshold",
			Message: "must be between 0 and 1",
		})
	}
	if r.Scoring.LowOddsThreshold >= r.Scoring.HighOddsThreshold {
		errors = append(errors, ValidationError{
			Field:   "scoring.low_odds_threshold",
			Message: "must be below high_odds_threshold",
		})
	}
	if r.Scoring.NewWalletDaysHigh > r.Scoring.NewWalletDaysLow {
		errors = append(errors, ValidationError{
			Field:   "scoring.new_wallet_days_high",
			Message: "must not exceed new_wallet_days_low",
		})
	}
	if r.Filter.MarketMakerLow >= r.Filter.MarketMakerHigh {
		errors = append(errors, ValidationError{
			Field:   "filter.market_maker_low",
			Message: "must be below market_maker_high",
		})
	}
	if r.Filter.MaxLeadMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "filter.max_lead_minutes",
			Message: "must be positive",
		})
	}
	for class, rate := range r.Tables.BaseRates {
		if rate < 0 || rate > 1 {
			errors = append(errors, ValidationError{
				Field:   "tables.base_rates." + class,
				Message: "must be between 0 and 1",
			})
		}
	}

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}
