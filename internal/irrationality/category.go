package irrationality

import (
	"regexp"
	"strings"
)

// Category buckets a market by the crowd psychology that drives its pricing.
type Category string

const (
	CategoryMeme         Category = "meme"
	CategoryConspiracy   Category = "conspiracy"
	CategoryPoliticsFar  Category = "politics_far"
	CategoryPoliticsNear Category = "politics_near"
	CategoryGeopolitics  Category = "geopolitics"
	CategoryMacro        Category = "macro"
	CategorySports       Category = "sports"
	CategoryCrypto       Category = "crypto"
	CategoryOther        Category = "other"
)

// BiasStrength grades how strongly a category's longshots are overpriced.
type BiasStrength string

const (
	BiasVeryHigh BiasStrength = "very_high"
	BiasHigh     BiasStrength = "high"
	BiasMedium   BiasStrength = "medium"
	BiasLow      BiasStrength = "low"
)

// BiasProfile is the static per-category pricing-bias model.
type BiasProfile struct {
	Strength           BiasStrength `json:"strength"`
	TypicalOverpricing float64      `json:"typical_overpricing"`
	MinEdge            float64      `json:"min_edge"`
}

// Tables holds the keyword and bias rule tables. They are data, not code:
// the default set ships compiled in but deployments hot-reload tuned tables
// from the rules file.
type Tables struct {
	// CategoryKeywords maps each category to regex patterns matched against
	// the lowercased market question.
	CategoryKeywords map[Category][]string `json:"category_keywords"`
	// CategoryBias must cover every category that can be classified, plus
	// "other" as the fallback profile.
	CategoryBias map[Category]BiasProfile `json:"category_bias"`
	// BaseRates maps base-rate classes to prior probabilities.
	BaseRates map[string]float64 `json:"base_rates"`
	// ProbabilityMult scales the rational estimate per category.
	ProbabilityMult map[Category]float64 `json:"probability_mult"`
}

// DefaultTables returns the compiled-in rule tables.
func DefaultTables() Tables {
	return Tables{
		CategoryKeywords: map[Category][]string{
			CategoryMeme: {
				"kanye", "elon", "trump.*tweet", "kardashian", "pewdiepie", "mr beast",
				"doge", "shiba", "pepe", "meme", "viral", "tiktok", "influencer",
				"celebrity", "rapper", "actor.*president", "singer.*president",
			},
			CategoryConspiracy: {
				"epstein", "alien", "ufo", "disclosure", "coverup", "deep state",
				"illuminati", "flat earth", "simulation", "cia.*admit", "fbi.*admit",
				"secret", "classified.*release", "whistleblow",
			},
			CategoryPoliticsFar: {
				"2028", "2029", "2030", "2032", "next.*president", "future.*election",
				"nomination.*202[89]", "presidential.*202[89]",
			},
			CategoryPoliticsNear: {
				"2025", "2026", "midterm", "senate.*race", "governor.*race",
				"special election", "recall", "impeach",
			},
			CategoryGeopolitics: {
				"war", "invasion", "military", "strike", "attack", "nato", "nuclear",
				"ceasefire", "treaty", "sanction", "china.*taiwan", "russia.*ukraine",
				"israel", "iran", "north korea", "missile",
			},
			CategoryMacro: {
				"collapse", "hyperinflation", "depression", "default", "dollar.*crash",
				"fed.*rate", "recession", "bank.*fail", "currency.*crisis", "debt ceiling",
			},
			CategorySports: {
				"nba", "nfl", "mlb", "nhl", "fifa", "world cup", "super bowl",
				"championship", "playoffs", "finals", "mvp", " vs ", ` vs\.`,
			},
			CategoryCrypto: {
				"bitcoin", "ethereum", "btc", "eth", "crypto", "solana", `price.*\$`,
				"all.time.high", "ath",
			},
		},
		CategoryBias: map[Category]BiasProfile{
			CategoryMeme:         {Strength: BiasVeryHigh, TypicalOverpricing: 0.07, MinEdge: 0.03},
			CategoryConspiracy:   {Strength: BiasVeryHigh, TypicalOverpricing: 0.06, MinEdge: 0.04},
			CategoryPoliticsFar:  {Strength: BiasHigh, TypicalOverpricing: 0.05, MinEdge: 0.05},
			CategoryPoliticsNear: {Strength: BiasMedium, TypicalOverpricing: 0.02, MinEdge: 0.03},
			CategoryGeopolitics:  {Strength: BiasHigh, TypicalOverpricing: 0.05, MinEdge: 0.05},
			CategoryMacro:        {Strength: BiasHigh, TypicalOverpricing: 0.04, MinEdge: 0.06},
			CategorySports:       {Strength: BiasMedium, TypicalOverpricing: 0.03, MinEdge: 0.05},
			CategoryCrypto:       {Strength: BiasMedium, TypicalOverpricing: 0.03, MinEdge: 0.05},
			CategoryOther:        {Strength: BiasMedium, TypicalOverpricing: 0.03, MinEdge: 0.05},
		},
		BaseRates: map[string]float64{
			BaseRateNearZero:   0.01,
			BaseRateRare:       0.05,
			BaseRateOccasional: 0.15,
			BaseRateCommon:     0.35,
		},
		ProbabilityMult: map[Category]float64{
			CategoryMeme:         0.8,
			CategoryConspiracy:   0.7,
			CategoryPoliticsFar:  1.0,
			CategoryPoliticsNear: 1.0,
			CategoryGeopolitics:  1.2,
			CategoryMacro:        1.3,
			CategorySports:       1.0,
			CategoryCrypto:       1.0,
			CategoryOther:        1.0,
		},
	}
}

// categoryOrder fixes tie-breaking: the earlier category wins an equal
// keyword-hit count.
var categoryOrder = []Category{
	CategoryMeme, CategoryConspiracy, CategoryPoliticsFar, CategoryPoliticsNear,
	CategoryGeopolitics, CategoryMacro, CategorySports, CategoryCrypto,
}

// Classifier matches market questions against compiled category keyword
// patterns.
type Classifier struct {
	patterns map[Category][]*regexp.Regexp
}

// NewClassifier compiles the keyword tables. Invalid patterns are skipped
// rather than failing the whole table; a rules file typo must not take the
// engine down.
func NewClassifier(t Tables) *Classifier {
	c := &Classifier{patterns: make(map[Category][]*regexp.Regexp)}
	for cat, keywords := range t.CategoryKeywords {
		for _, kw := range keywords {
			re, err := regexp.Compile(kw)
			if err != nil {
				continue
			}
			c.patterns[cat] = append(c.patterns[cat], re)
		}
	}
	return c
}

// Classify returns the category with the most keyword hits, or CategoryOther
// when nothing matches.
func (c *Classifier) Classify(question string) Category {
	if question == "" {
		return CategoryOther
	}
	lower := strings.ToLower(question)

	best := CategoryOther
	bestHits := 0
	for _, cat := range categoryOrder {
		hits := 0
		for _, re := range c.patterns[cat] {
			if re.MatchString(lower) {
				hits++
			}
		}
		if hits > bestHits {
			best = cat
			bestHits = hits
		}
	}
	return best
}

// Bias returns the bias profile for a category, falling back to the "other"
// profile for unknown categories.
func (t Tables) Bias(cat Category) BiasProfile {
	if p, ok := t.CategoryBias[cat]; ok {
		return p
	}
	return t.CategoryBias[CategoryOther]
}

// BaseRate returns the prior for a base-rate class, with a conservative 0.10
// default for unknown classes.
func (t Tables) BaseRate(class string) float64 {
	if r, ok := t.BaseRates[class]; ok {
		return r
	}
	return 0.10
}

// Mult returns the category probability multiplier, 1.0 for unknown.
func (t Tables) Mult(cat Category) float64 {
	if m, ok := t.ProbabilityMult[cat]; ok {
		return m
	}
	return 1.0
}
