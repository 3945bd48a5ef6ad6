package scoring

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Severity grades how far ahead of the event a trade landed.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL" // 30+ minutes before the event
	SeverityHigh     Severity = "HIGH"     // 10+ minutes
	SeverityMedium   Severity = "MEDIUM"   // 5+ minutes
	SeverityLow      Severity = "LOW"      // any positive lead
	SeverityNone     Severity = "NONE"     // at or after the event
)

// Latency describes a trade's lead over its market's event time.
type Latency struct {
	Seconds   float64
	Minutes   float64
	PreEvent  bool
	Severity  Severity
	TradeTime time.Time
	EventTime time.Time
}

// SeverityFor grades a lead time in seconds.
func SeverityFor(seconds float64) Severity {
	switch {
	case seconds <= 0:
		return SeverityNone
	case seconds >= 1800:
		return SeverityCritical
	case seconds >= 600:
		return SeverityHigh
	case seconds >= 300:
		return SeverityMedium
	}
	return SeverityLow
}

// LatencyScore converts a pre-event lead into score points, a monotonic step
// function of minutes before the event. Post-event trades score zero.
func LatencyScore(seconds float64) int {
	if seconds < 0 {
		return 0
	}
	minutes := seconds / 60
	switch {
	case minutes >= 30:
		return 40
	case minutes >= 20:
		return 35
	case minutes >= 10:
		return 30
	case minutes >= 5:
		return 20
	case minutes >= 2:
		return 10
	}
	return 0
}

var (
	isoDateRe     = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	reverseDateRe = regexp.MustCompile(`(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})`)

	monthDayRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})\b`)
	dayMonthRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// titleDate is a parsed date from a market title. Year 0 means the title names
// only a month and day; the calendar year is resolved at lookup time so cached
// entries stay correct across a year boundary.
type titleDate struct {
	month time.Month
	day   int
	year  int
}

func (d titleDate) resolve(now time.Time) (time.Time, bool) {
	year := d.year
	if year == 0 {
		year = now.Year()
		// A month already behind us means next year's occurrence.
		if d.month < now.Month() {
			year++
		}
	}
	t := time.Date(year, d.month, d.day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 31 -> Mar 2); reject those.
	if t.Month() != d.month || t.Day() != d.day {
		return time.Time{}, false
	}
	return t, true
}

// EventDetector extracts event timestamps from market metadata and grades
// trade latency against them. Title parsing results are memoized in a bounded
// cache since the market set repeats heavily across polling cycles.
type EventDetector struct {
	mu       sync.Mutex
	cache    map[string]titleDateResult
	maxCache int
}

type titleDateResult struct {
	date titleDate
	ok   bool
}

// NewEventDetector returns a detector with a cache bound of maxCache titles.
func NewEventDetector(maxCache int) *EventDetector {
	if maxCache <= 0 {
		maxCache = 256
	}
	return &EventDetector{
		cache:    make(map[string]titleDateResult),
		maxCache: maxCache,
	}
}

// realtimeEventKeywords mark titles whose event time is "now".
var realtimeEventKeywords = []string{"right now", "currently", "at the moment", "as of now"}

// realtimeMarketKeywords is the wider set used to recognize live markets where
// the pre-event concept does not apply at all.
var realtimeMarketKeywords = []string{
	"right now", "currently", "at the moment", "live",
	"real-time", "real time", "as of now", "instant",
}

// IsRealtimeMarket reports whether a market tracks a live quantity rather than
// a future event.
func IsRealtimeMarket(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range realtimeMarketKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// EventTime determines the event timestamp for a market. Preference order:
// the market end date, a date parsed from the title, then explicit "right now"
// language meaning the event is now. Returns false when no event time exists.
func (d *EventDetector) EventTime(question, endDate string, now time.Time) (time.Time, bool) {
	if endDate != "" {
		if t, err := time.Parse(time.RFC3339, endDate); err == nil {
			return t, true
		}
	}

	if date, ok := d.titleDate(question); ok {
		if t, ok := date.resolve(now); ok {
			return t, true
		}
	}

	lower := strings.ToLower(question)
	for _, kw := range realtimeEventKeywords {
		if strings.Contains(lower, kw) {
			return now, true
		}
	}

	return time.Time{}, false
}

// Detect grades a trade against its market's event time. The second return is
// false when there is no latency signal at all: no event time, missing trade
// timestamp, or a post-event trade. "No signal" is distinct from a zero score.
func (d *EventDetector) Detect(question, endDate string, tradeTimestamp int64, now time.Time) (Latency, bool) {
	eventTime, ok := d.EventTime(question, endDate, now)
	if !ok || tradeTimestamp <= 0 {
		return Latency{}, false
	}

	tradeTime := time.Unix(tradeTimestamp, 0).UTC()
	seconds := eventTime.Sub(tradeTime).Seconds()

	lat := Latency{
		Seconds:   seconds,
		Minutes:   seconds / 60,
		PreEvent:  seconds > 0,
		Severity:  SeverityFor(seconds),
		TradeTime: tradeTime,
		EventTime: eventTime,
	}
	if !lat.PreEvent {
		return Latency{}, false
	}
	return lat, true
}

func (d *EventDetector) titleDate(title string) (titleDate, bool) {
	if title == "" {
		return titleDate{}, false
	}

	d.mu.Lock()
	if res, hit := d.cache[title]; hit {
		d.mu.Unlock()
		return res.date, res.ok
	}
	d.mu.Unlock()

	date, ok := parseTitleDate(title)

	d.mu.Lock()
	if len(d.cache) >= d.maxCache {
		d.cache = make(map[string]titleDateResult)
	}
	d.cache[title] = titleDateResult{date: date, ok: ok}
	d.mu.Unlock()

	return date, ok
}

func parseTitleDate(title string) (titleDate, bool) {
	if m := isoDateRe.FindStringSubmatch(title); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := validDate(year, month, day); ok {
			return d, true
		}
	}

	if m := reverseDateRe.FindStringSubmatch(title); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if d, ok := validDate(year, month, day); ok {
			return d, true
		}
	}

	if m := monthDayRe.FindStringSubmatch(title); m != nil {
		month := monthsByPrefix[strings.ToLower(m[1])[:3]]
		day, _ := strconv.Atoi(m[2])
		if day >= 1 && day <= 31 {
			return titleDate{month: month, day: day}, true
		}
	}

	if m := dayMonthRe.FindStringSubmatch(title); m != nil {
		day, _ := strconv.Atoi(m[1])
		month := monthsByPrefix[strings.ToLower(m[2])[:3]]
		if day >= 1 && day <= 31 {
			return titleDate{month: month, day: day}, true
		}
	}

	return titleDate{}, false
}

func validDate(year, month, day int) (titleDate, bool) {
	if year < 2000 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return titleDate{}, false
	}
	d := titleDate{month: time.Month(month), day: day, year: year}
	if _, ok := d.resolve(time.Time{}); !ok {
		return titleDate{}, false
	}
	return d, true
}

// Insight renders a one-line human summary of a latency advantage for alert
// messages.
func (l Latency) Insight() string {
	if !l.PreEvent {
		return ""
	}
	minutes := int(l.Minutes)
	switch l.Severity {
	case SeverityCritical:
		return "EXTREME PRE-EVENT: trade placed " + strconv.Itoa(minutes) + " minutes before event"
	case SeverityHigh:
		return "HIGH PRE-EVENT: trade placed " + strconv.Itoa(minutes) + " minutes before event"
	case SeverityMedium:
		return "MEDIUM PRE-EVENT: trade placed " + strconv.Itoa(minutes) + " minutes before event"
	}
	return "Trade placed " + strconv.Itoa(minutes) + " minutes before event"
}
