package config

import (
	"encoding/json"
	"fmt"
	"os"

	"polyradar/internal/filter"
	"polyradar/internal/irrationality"
	"polyradar/internal/scoring"
)

// RuleSet bundles every detection tunable into one hot-reloadable document:
// scorer weights, filter cascade rules, and the irrationality tables. The
// rules file holds a partial JSON override of this structure; anything not
// set falls back to the compiled-in defaults.
type RuleSet struct {
	ScoreThreshold int `json:"score_threshold"`

	Scoring scoring.FeatureConfig `json:"scoring"`
	Filter  filter.Rules          `json:"filter"`
	Tables  irrationality.Tables  `json:"tables"`
}

// DefaultRuleSet returns the production defaults.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		ScoreThreshold: 80,
		Scoring:        scoring.DefaultFeatureConfig(),
		Filter:         filter.DefaultRules(),
		Tables:         irrationality.DefaultTables(),
	}
}

// RuleSetFromJSON deserializes JSON over base. base is not modified.
func RuleSetFromJSON(data []byte, base *RuleSet) (*RuleSet, error) {
	if base == nil {
		base = DefaultRuleSet()
	}
	rs := base.Clone()
	if err := json.Unmarshal(data, rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return rs, nil
}

// LoadRuleSet reads the rules file and merges it over the defaults. An empty
// path returns the defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	rs := DefaultRuleSet()
	if path == "" {
		return rs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	rs, err = RuleSetFromJSON(data, rs)
	if err != nil {
		return nil, err
	}

	result := rs.Validate()
	if !result.Valid {
		return nil, &RulesValidationError{Errors: result.Errors}
	}
	return rs, nil
}

// Clone creates a deep copy of the rule set.
func (r *RuleSet) Clone() *RuleSet {
	if r == nil {
		return nil
	}
	clone := *r

	clone.Filter.HFTPatterns = cloneStrings(r.Filter.HFTPatterns)
	clone.Filter.CryptoAssetKeywords = cloneStrings(r.Filter.CryptoAssetKeywords)
	clone.Filter.PriceComparisonKeywords = cloneStrings(r.Filter.PriceComparisonKeywords)
	clone.Filter.BlacklistPatterns = cloneStrings(r.Filter.BlacklistPatterns)
	clone.Filter.WeakContenders = cloneStrings(r.Filter.WeakContenders)
	clone.Filter.ContestKeywords = cloneStrings(r.Filter.ContestKeywords)

	if r.Tables.CategoryKeywords != nil {
		clone.Tables.CategoryKeywords = make(map[irrationality.Category][]string, len(r.Tables.CategoryKeywords))
		for k, v := range r.Tables.CategoryKeywords {
			clone.Tables.CategoryKeywords[k] = cloneStrings(v)
		}
	}
	if r.Tables.CategoryBias != nil {
		clone.Tables.CategoryBias = make(map[irrationality.Category]irrationality.BiasProfile, len(r.Tables.CategoryBias))
		for k, v := range r.Tables.CategoryBias {
			clone.Tables.CategoryBias[k] = v
		}
	}
	if r.Tables.BaseRates != nil {
		clone.Tables.BaseRates = make(map[string]float64, len(r.Tables.BaseRates))
		for k, v := range r.Tables.BaseRates {
			clone.Tables.BaseRates[k] = v
		}
	}
	if r.Tables.ProbabilityMult != nil {
		clone.Tables.ProbabilityMult = make(map[irrationality.Category]float64, len(r.Tables.ProbabilityMult))
		for k, v := range r.Tables.ProbabilityMult {
			clone.Tables.ProbabilityMult[k] = v
		}
	}

	return &clone
}

// ToJSON serializes the rule set.
func (r *RuleSet) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
