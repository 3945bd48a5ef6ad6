package irrationality

import "testing"

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultTables())

	tests := []struct {
		question string
		expected Category
	}{
		{"Will Kanye run for president?", CategoryMeme},
		{"Will Epstein files be released this year?", CategoryConspiracy},
		{"Who wins the presidential nomination in 2028?", CategoryPoliticsFar},
		{"Will the 2026 midterm flip the senate?", CategoryPoliticsNear},
		{"Russia Ukraine ceasefire before summer?", CategoryGeopolitics},
		{"Will the Fed rate decision trigger a recession?", CategoryMacro},
		{"Lakers vs Celtics: who takes the finals?", CategorySports},
		{"Bitcoin all time high by December?", CategoryCrypto},
		{"Will it rain in Paris tomorrow?", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := c.Classify(tt.question); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.question, got, tt.expected)
			}
		})
	}
}

func TestClassify_MostHitsWins(t *testing.T) {
	c := NewClassifier(DefaultTables())

	// Two geopolitics hits ("war", "nuclear") beat one crypto hit ("bitcoin").
	got := c.Classify("Will a nuclear war crash bitcoin?")
	if got != CategoryGeopolitics {
		t.Errorf("Classify = %v, want geopolitics", got)
	}
}

func TestNewClassifier_SkipsInvalidPatterns(t *testing.T) {
	tbl := DefaultTables()
	tbl.CategoryKeywords[CategoryMeme] = []string{"([bad", "doge"}

	c := NewClassifier(tbl)
	if got := c.Classify("doge to the moon"); got != CategoryMeme {
		t.Errorf("Classify = %v, want meme despite invalid sibling pattern", got)
	}
}

func TestTables_Fallbacks(t *testing.T) {
	tbl := DefaultTables()

	if got := tbl.Bias("nonsense"); got != tbl.CategoryBias[CategoryOther] {
		t.Errorf("Bias fallback = %+v, want other profile", got)
	}
	if got := tbl.BaseRate("nonsense"); got != 0.10 {
		t.Errorf("BaseRate fallback = %v, want 0.10", got)
	}
	if got := tbl.Mult("nonsense"); got != 1.0 {
		t.Errorf("Mult fallback = %v, want 1.0", got)
	}
}

func TestDefaultTables_CoverAllCategories(t *testing.T) {
	tbl := DefaultTables()
	all := append([]Category{CategoryOther}, categoryOrder...)
	for _, cat := range all {
		if _, ok := tbl.CategoryBias[cat]; !ok {
			t.Errorf("missing bias profile for %v", cat)
		}
		if _, ok := tbl.ProbabilityMult[cat]; !ok {
			t.Errorf("missing probability multiplier for %v", cat)
		}
	}
}
