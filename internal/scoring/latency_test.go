package scoring

import (
	"testing"
	"time"
)

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected Severity
	}{
		{3600, SeverityCritical},
		{1800, SeverityCritical},
		{1799, SeverityHigh},
		{600, SeverityHigh},
		{599, SeverityMedium},
		{300, SeverityMedium},
		{299, SeverityLow},
		{1, SeverityLow},
		{0, SeverityNone},
		{-100, SeverityNone},
	}

	for _, tt := range tests {
		if got := SeverityFor(tt.seconds); got != tt.expected {
			t.Errorf("SeverityFor(%v) = %v, want %v", tt.seconds, got, tt.expected)
		}
	}
}

func TestLatencyScore(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected int
	}{
		{45 * 60, 40},
		{30 * 60, 40},
		{25 * 60, 35},
		{15 * 60, 30},
		{7 * 60, 20},
		{3 * 60, 10},
		{90, 0},
		{0, 0},
		{-60, 0},
	}

	for _, tt := range tests {
		if got := LatencyScore(tt.seconds); got != tt.expected {
			t.Errorf("LatencyScore(%v) = %d, want %d", tt.seconds, got, tt.expected)
		}
	}
}

func TestEventTime_PrefersEndDate(t *testing.T) {
	d := NewEventDetector(0)
	end := "2026-03-20T18:00:00Z"

	got, ok := d.EventTime("Will X happen on 2026-01-01?", end, testNow)
	if !ok {
		t.Fatal("expected an event time")
	}
	want := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EventTime = %v, want end date %v", got, want)
	}
}

func TestEventTime_TitleDates(t *testing.T) {
	d := NewEventDetector(0)

	tests := []struct {
		name     string
		question string
		expected time.Time
	}{
		{
			"iso date",
			"Fed decision on 2026-06-17?",
			time.Date(2026, 6, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			"iso date with slashes",
			"Election result by 2026/11/03?",
			time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			"reversed dotted date",
			"Ceasefire by 19.06.2026?",
			time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			"month name this year",
			"Will the launch happen by June 19?",
			time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			"month name rolls to next year",
			"Rate cut announced January 19?",
			time.Date(2027, 1, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			"day before month",
			"Summit held on 19 August?",
			time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			"abbreviated month",
			"Shutdown ends by Sep 30?",
			time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.EventTime(tt.question, "", testNow)
			if !ok {
				t.Fatal("expected an event time")
			}
			if !got.Equal(tt.expected) {
				t.Errorf("EventTime(%q) = %v, want %v", tt.question, got, tt.expected)
			}
		})
	}
}

func TestEventTime_RealtimeLanguage(t *testing.T) {
	d := NewEventDetector(0)

	got, ok := d.EventTime("Bitcoin above $105k right now?", "", testNow)
	if !ok {
		t.Fatal("expected an event time")
	}
	if !got.Equal(testNow) {
		t.Errorf("EventTime = %v, want now (%v)", got, testNow)
	}
}

func TestEventTime_NoSignal(t *testing.T) {
	d := NewEventDetector(0)

	tests := []string{
		"Will something eventually happen?",
		"",
		"Champion decided at day 45 of round 3?", // numbers but no date
	}
	for _, q := range tests {
		if _, ok := d.EventTime(q, "", testNow); ok {
			t.Errorf("EventTime(%q) produced a time, want none", q)
		}
	}
}

func TestEventTime_RejectsImpossibleDates(t *testing.T) {
	d := NewEventDetector(0)

	if _, ok := d.EventTime("Decision by 2026-02-31?", "", testNow); ok {
		t.Error("Feb 31 must not parse")
	}
}

func TestDetect(t *testing.T) {
	d := NewEventDetector(0)
	end := testNow.Add(25 * time.Minute).Format(time.RFC3339)

	lat, ok := d.Detect("Will X happen?", end, testNow.Unix(), testNow)
	if !ok {
		t.Fatal("expected a latency signal")
	}
	if lat.Severity != SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", lat.Severity)
	}
	if !lat.PreEvent {
		t.Error("expected pre-event")
	}
	if lat.Minutes < 24.9 || lat.Minutes > 25.1 {
		t.Errorf("Minutes = %v, want ~25", lat.Minutes)
	}
}

func TestDetect_PostEventYieldsNoSignal(t *testing.T) {
	d := NewEventDetector(0)
	end := testNow.Add(-time.Hour).Format(time.RFC3339)

	if _, ok := d.Detect("Will X happen?", end, testNow.Unix(), testNow); ok {
		t.Error("post-event trade must yield no signal, not a zero record")
	}
}

func TestDetect_MissingTradeTimestamp(t *testing.T) {
	d := NewEventDetector(0)
	end := testNow.Add(time.Hour).Format(time.RFC3339)

	if _, ok := d.Detect("Will X happen?", end, 0, testNow); ok {
		t.Error("missing trade timestamp must yield no signal")
	}
}

func TestTitleDateCache_SurvivesYearBoundary(t *testing.T) {
	d := NewEventDetector(0)
	question := "Rate cut announced December 10?"

	dec := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	got, ok := d.EventTime(question, "", dec)
	if !ok || got.Year() != 2026 {
		t.Fatalf("EventTime in December = %v (%v), want 2026", got, ok)
	}

	// Same cached title resolved after new year rolls forward.
	jan := time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC)
	got, ok = d.EventTime(question, "", jan)
	if !ok || got.Year() != 2027 {
		t.Fatalf("EventTime in January = %v (%v), want 2027", got, ok)
	}
}

func TestTitleDateCache_Bounded(t *testing.T) {
	d := NewEventDetector(2)

	d.EventTime("A on 2026-01-01?", "", testNow)
	d.EventTime("B on 2026-01-02?", "", testNow)
	d.EventTime("C on 2026-01-03?", "", testNow)

	d.mu.Lock()
	n := len(d.cache)
	d.mu.Unlock()
	if n > 2 {
		t.Errorf("cache grew to %d entries, bound is 2", n)
	}
}

func TestIsRealtimeMarket(t *testing.T) {
	tests := []struct {
		question string
		expected bool
	}{
		{"Bitcoin price right now", true},
		{"Current weather in NYC", false}, // "currently" not "current"
		{"Live game score above 100?", true},
		{"Will X happen by June?", false},
	}

	for _, tt := range tests {
		if got := IsRealtimeMarket(tt.question); got != tt.expected {
			t.Errorf("IsRealtimeMarket(%q) = %v, want %v", tt.question, got, tt.expected)
		}
	}
}
