package config

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RulesObserver is notified when the rule set changes. The detector registers
// one per component that compiles rules (filter, irrationality engine).
type RulesObserver interface {
	OnRulesUpdate(rs *RuleSet)
}

// LiveRules is a thread-safe holder for the rule set with hot-reload support.
type LiveRules struct {
	mu    sync.RWMutex
	rules *RuleSet

	obsMu     sync.RWMutex
	observers []RulesObserver

	lastUpdated time.Time
}

// NewLiveRules creates a LiveRules with the given initial rule set.
func NewLiveRules(initial *RuleSet) *LiveRules {
	if initial == nil {
		initial = DefaultRuleSet()
	}
	return &LiveRules{
		rules:       initial.Clone(),
		lastUpdated: time.Now(),
	}
}

// Get returns a copy of the current rule set.
func (lr *LiveRules) Get() *RuleSet {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.rules.Clone()
}

// Update atomically replaces the rule set after validation and notifies
// observers.
func (lr *LiveRules) Update(rs *RuleSet) error {
	if rs == nil {
		return nil
	}

	result := rs.Validate()
	if !result.Valid {
		return &RulesValidationError{Errors: result.Errors}
	}

	cloned := rs.Clone()

	lr.mu.Lock()
	lr.rules = cloned
	lr.lastUpdated = time.Now()
	lr.mu.Unlock()

	// Observers run outside the lock; a slow observer must not block Get.
	lr.notifyObservers(cloned)
	return nil
}

// AddObserver registers an observer to be notified of rule changes.
func (lr *LiveRules) AddObserver(obs RulesObserver) {
	if obs == nil {
		return
	}
	lr.obsMu.Lock()
	defer lr.obsMu.Unlock()
	lr.observers = append(lr.observers, obs)
}

func (lr *LiveRules) notifyObservers(rs *RuleSet) {
	lr.obsMu.RLock()
	observers := make([]RulesObserver, len(lr.observers))
	copy(observers, lr.observers)
	lr.obsMu.RUnlock()

	for _, obs := range observers {
		obs.OnRulesUpdate(rs.Clone())
	}
}

// LastUpdated returns when the rule set last changed.
func (lr *LiveRules) LastUpdated() time.Time {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.lastUpdated
}

// WatchFile polls the rules file and applies it when its mtime moves. Blocks
// until stop is closed; meant to run in its own goroutine.
func (lr *LiveRules) WatchFile(logger *zap.Logger, path string, interval time.Duration, stop <-chan struct{}) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			rs, err := LoadRuleSet(path)
			if err != nil {
				logger.Warn("rules file reload failed, keeping current rules",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}
			if err := lr.Update(rs); err != nil {
				logger.Warn("rules file rejected", zap.Error(err))
				continue
			}
			logger.Info("rules file reloaded", zap.String("path", path))
		}
	}
}

// RulesValidationError is returned when rule validation fails.
type RulesValidationError struct {
	Errors []ValidationError
}

func (e *RulesValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "rules validation failed"
	}
	return "rules validation failed: " + e.Errors[0].Field + ": " + e.Errors[0].Message
}
