// Package filter implements the alert veto cascade. Every rule is a reason to
// stay silent: trades reaching this point already scored above threshold, and
// the cascade strips out the ones that look like noise, arbitrage, or markets
// where insider knowledge cannot exist.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Reason identifies which veto rule fired.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonLongLeadTime   Reason = "LONG_LEAD_TIME"
	ReasonHFTMarket      Reason = "HFT_MARKET"
	ReasonShortCrypto    Reason = "SHORT_CRYPTO_PRICE"
	ReasonShortTerm      Reason = "SHORT_TERM_MARKET"
	ReasonBlacklisted    Reason = "BLACKLISTED_MARKET"
	ReasonMarketMaker    Reason = "MARKET_MAKER"
	ReasonLowROI         Reason = "LOW_ROI"
	ReasonImpossibleOdds Reason = "IMPOSSIBLE_ODDS"
)

// Rules is the tunable data behind the cascade. Like the category tables, it
// ships with compiled-in defaults and can be hot-reloaded from the rules file.
type Rules struct {
	// MaxLeadMinutes vetoes trades placed further ahead of the event than
	// this; a week of lead is speculation, not insider timing.
	MaxLeadMinutes float64 `json:"max_lead_minutes"`

	// HFTPatterns match interval-market titles ("5:15-5:30", "up or down").
	HFTPatterns []string `json:"hft_patterns"`

	// ShortHorizonHours vetoes markets resolving sooner than this.
	ShortHorizonHours float64 `json:"short_horizon_hours"`
	// CryptoShortHorizonHours is the wider veto window for crypto-price
	// markets, which recognize by asset keyword plus price-comparison keyword.
	CryptoShortHorizonHours float64 `json:"crypto_short_horizon_hours"`
	CryptoAssetKeywords     []string `json:"crypto_asset_keywords"`
	PriceComparisonKeywords []string `json:"price_comparison_keywords"`

	// BlacklistPatterns are regexes for structurally impossible markets.
	BlacklistPatterns []string `json:"blacklist_patterns"`

	// LowROIOdds and MinReturnPct implement the safe-bet veto: effective odds
	// at or above LowROIOdds with potential return under MinReturnPct percent.
	LowROIOdds   float64 `json:"low_roi_odds"`
	MinReturnPct float64 `json:"min_return_pct"`

	// MarketMakerHigh/Low bound the odds band treated as liquidity activity.
	MarketMakerHigh float64 `json:"market_maker_high"`
	MarketMakerLow  float64 `json:"market_maker_low"`

	// ImpossibleOdds plus a weak-contender name vetoes extreme confidence in
	// structurally hopeless championship/nomination claims.
	ImpossibleOdds  float64  `json:"impossible_odds"`
	WeakContenders  []string `json:"weak_contenders"`
	ContestKeywords []string `json:"contest_keywords"`
}

// DefaultRules returns the compiled-in cascade tuning.
func DefaultRules() Rules {
	return Rules{
		MaxLeadMinutes: 10080, // 7 days

		HFTPatterns: []string{
			`\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}`,
			`up or down`,
			`\b15 min`,
			`\b5 min`,
			`hourly`,
		},

		ShortHorizonHours:       24,
		CryptoShortHorizonHours: 72,
		CryptoAssetKeywords: []string{
			"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "doge", "xrp",
		},
		PriceComparisonKeywords: []string{
			"above", "below", "reach", "hit", "dip", "price", "$",
		},

		BlacklistPatterns: []string{
			`(kanye|kim kardashian|mrbeast|rapper|singer|actor).*(president|nominee)`,
			`(president|nominee).*(kanye|kim kardashian|mrbeast)`,
			`(relegated|bottom.of.the.table).*(champion|title)`,
			`(san marino|gibraltar|faroe).*(world cup|win the cup)`,
			`(nomination|nominee).*20(3[0-9]|29)`,
			`20(3[0-9]|29).*(nomination|nominee)`,
			`(ramaswamy|gabbard).*(president.*2028)`,
		},

		LowROIOdds:   0.90,
		MinReturnPct: 10,

		MarketMakerHigh: 0.97,
		MarketMakerLow:  0.03,

		ImpossibleOdds: 0.95,
		WeakContenders: []string{
			"san marino", "gibraltar", "faroe islands", "american samoa",
		},
		ContestKeywords: []string{"world cup", "championship", "nomination", "title"},
	}
}

// Input is everything the cascade evaluates. Lead and horizon carry explicit
// presence flags: missing data disables a rule instead of tripping it.
type Input struct {
	Title         string
	EffectiveOdds float64

	LeadMinutes float64
	HasLead     bool

	HoursToResolve float64
	HasHorizon     bool
}

// Verdict is the cascade outcome. Reason is empty when the alert passes.
type Verdict struct {
	Skip   bool
	Reason Reason
	Detail string
}

// Filter evaluates the veto cascade over compiled rules.
type Filter struct {
	mu        sync.RWMutex
	rules     Rules
	hft       []*regexp.Regexp
	blacklist []*regexp.Regexp
}

// New compiles a filter from rules. Invalid regexes are skipped.
func New(r Rules) *Filter {
	f := &Filter{}
	f.apply(r)
	return f
}

// Update swaps in reloaded rules.
func (f *Filter) Update(r Rules) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(r)
}

func (f *Filter) apply(r Rules) {
	f.rules = r
	f.hft = compileAll(r.HFTPatterns)
	f.blacklist = compileAll(r.BlacklistPatterns)
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// Evaluate runs the ordered cascade; the first matching rule wins. All odds
// rules operate on effective odds, never raw YES price.
func (f *Filter) Evaluate(in Input) Verdict {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r := f.rules
	title := strings.ToLower(in.Title)

	// 1. Lead time far beyond insider range.
	if in.HasLead && in.LeadMinutes > r.MaxLeadMinutes {
		return skip(ReasonLongLeadTime,
			fmt.Sprintf("trade %.0f min before event, beyond %.0f min", in.LeadMinutes, r.MaxLeadMinutes))
	}

	// 2. High-frequency interval markets.
	for _, re := range f.hft {
		if re.MatchString(title) {
			return skip(ReasonHFTMarket, "interval market: "+re.String())
		}
	}

	// 3. Short-horizon markets. Crypto-price markets get the wider window.
	if in.HasHorizon && in.HoursToResolve > 0 {
		if f.isCryptoPriceMarket(title) {
			if in.HoursToResolve < r.CryptoShortHorizonHours {
				return skip(ReasonShortCrypto,
					fmt.Sprintf("crypto price market resolving in %.0fh", in.HoursToResolve))
			}
		} else if in.HoursToResolve < r.ShortHorizonHours {
			return skip(ReasonShortTerm,
				fmt.Sprintf("market resolving in %.0fh", in.HoursToResolve))
		}
	}

	// 4. Structurally impossible markets.
	for _, re := range f.blacklist {
		if re.MatchString(title) {
			return skip(ReasonBlacklisted, "blacklisted pattern: "+re.String())
		}
	}

	// 5. Market-maker odds band. Checked before low-ROI so extreme odds
	// report as liquidity activity rather than a cheap safe bet.
	if in.EffectiveOdds >= r.MarketMakerHigh || in.EffectiveOdds <= r.MarketMakerLow {
		return skip(ReasonMarketMaker,
			fmt.Sprintf("effective odds %.3f in market-maker band", in.EffectiveOdds))
	}

	// 6. Safe bets with trivial return.
	if in.EffectiveOdds >= r.LowROIOdds {
		returnPct := (1 - in.EffectiveOdds) / in.EffectiveOdds * 100
		if returnPct < r.MinReturnPct {
			return skip(ReasonLowROI,
				fmt.Sprintf("%.1f%% potential return at %.2f odds", returnPct, in.EffectiveOdds))
		}
	}

	// 7. Extreme confidence in a structurally hopeless contender.
	if in.EffectiveOdds > r.ImpossibleOdds && f.mentionsWeakContender(title) {
		return skip(ReasonImpossibleOdds,
			fmt.Sprintf("%.2f odds on a structurally weak contender", in.EffectiveOdds))
	}

	return Verdict{}
}

func (f *Filter) isCryptoPriceMarket(title string) bool {
	return containsAny(title, f.rules.CryptoAssetKeywords) &&
		containsAny(title, f.rules.PriceComparisonKeywords)
}

func (f *Filter) mentionsWeakContender(title string) bool {
	return containsAny(title, f.rules.WeakContenders) &&
		containsAny(title, f.rules.ContestKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func skip(reason Reason, detail string) Verdict {
	return Verdict{Skip: true, Reason: reason, Detail: detail}
}
