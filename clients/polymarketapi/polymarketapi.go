package polymarketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PolymarketApiClient talks to the Gamma API (markets) and the Data API
// (trades, wallet activity). Everything it returns is normalized: downstream
// code never sees the raw payload shapes, which vary across API versions.
type PolymarketApiClient struct {
	logger       *zap.Logger
	httpClient   *http.Client
	gammaBaseURL string
	dataBaseURL  string
}

func NewPolymarketApiClient(logger *zap.Logger, gammaBaseURL, dataBaseURL string) *PolymarketApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PolymarketApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		gammaBaseURL: gammaBaseURL,
		dataBaseURL:  dataBaseURL,
	}
}

// ---- Normalized record types ----

// Market is the normalized market record.
type Market struct {
	ID          string
	ConditionID string
	Slug        string
	Question    string
	EndDate     string // RFC3339, "" when the market has none
	YesPrice    float64

	Volume24h      float64
	AvgVolume30d   float64
	PriceChange24h float64

	Active bool
	Closed bool
	Image  string

	// TokenIDs are the CLOB asset IDs for the market's outcomes, used for
	// WebSocket subscriptions.
	TokenIDs []string
}

// Trade is the normalized trade record.
type Trade struct {
	Hash         string
	Wallet       string
	ConditionID  string
	Side         string // BUY or SELL
	Outcome      string
	OutcomeIndex int
	Size         float64
	Price        float64
	Timestamp    int64
	Title        string
	Slug         string
}

// WalletSnapshot summarizes a wallet's on-platform history from one activity
// page. FirstActivity is zero when the wallet has no visible activity.
type WalletSnapshot struct {
	Wallet        string
	FirstActivity int64
	TotalCount    int
}

// ---- Raw Gamma payloads ----

type gammaMarket struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Question    string `json:"question"`
	ConditionID string `json:"conditionId"`
	EndDate     string `json:"endDate"`

	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	ClobTokenIds  json.RawMessage `json:"clobTokenIds"`

	Volume24hr        float64 `json:"volume24hr"`
	Volume1mo         float64 `json:"volume1mo"`
	OneDayPriceChange float64 `json:"oneDayPriceChange"`

	Active bool `json:"active"`
	Closed bool `json:"closed"`

	Image string `json:"image"`
}

// normalize maps the raw Gamma record onto the normalized Market. The YES
// price is the first outcome price; the Gamma API encodes prices in three
// different shapes, all handled here and nowhere else.
func (m *gammaMarket) normalize() Market {
	out := Market{
		ID:             m.ID,
		ConditionID:    m.ConditionID,
		Slug:           m.Slug,
		Question:       m.Question,
		EndDate:        m.EndDate,
		Volume24h:      m.Volume24hr,
		PriceChange24h: m.OneDayPriceChange,
		Active:         m.Active,
		Closed:         m.Closed,
		Image:          m.Image,
	}
	if m.Volume1mo > 0 {
		out.AvgVolume30d = m.Volume1mo / 30
	}
	if prices := parsePriceList(m.OutcomePrices); len(prices) > 0 {
		out.YesPrice = prices[0]
	}
	out.TokenIDs = parseStringList(m.ClobTokenIds)
	return out
}

// parseStringList handles both observed encodings of clobTokenIds: a JSON
// array and a JSON string containing an array.
func parseStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var strs []string
	if err := json.Unmarshal(raw, &strs); err == nil {
		return strs
	}

	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err == nil {
		if err := json.Unmarshal([]byte(jsonStr), &strs); err == nil {
			return strs
		}
	}

	return nil
}

// parsePriceList handles the three observed encodings of outcomePrices:
// [0.1, 0.9], ["0.1", "0.9"], and "[\"0.1\", \"0.9\"]".
func parsePriceList(raw json.RawMessage) []float64 {
	if len(raw) == 0 {
		return nil
	}

	var prices []float64
	if err := json.Unmarshal(raw, &prices); err == nil {
		return prices
	}

	parseStrings := func(strs []string) []float64 {
		out := make([]float64, 0, len(strs))
		for _, s := range strs {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	}

	var priceStrs []string
	if err := json.Unmarshal(raw, &priceStrs); err == nil {
		return parseStrings(priceStrs)
	}

	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err == nil {
		if err := json.Unmarshal([]byte(jsonStr), &prices); err == nil {
			return prices
		}
		if err := json.Unmarshal([]byte(jsonStr), &priceStrs); err == nil {
			return parseStrings(priceStrs)
		}
	}

	return nil
}

// ---- Raw Data API payloads ----

// rawTrade carries both observed wallet locations: top-level proxyWallet and
// the nested user object from older payloads.
type rawTrade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	TransactionHash string  `json:"transactionHash"`

	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Outcome      string `json:"outcome"`
	OutcomeIndex int    `json:"outcomeIndex"`

	User struct {
		ProxyWallet string `json:"proxyWallet"`
	} `json:"user"`
}

func (t *rawTrade) normalize() Trade {
	wallet := t.ProxyWallet
	if wallet == "" {
		wallet = t.User.ProxyWallet
	}
	return Trade{
		Hash:         t.TransactionHash,
		Wallet:       wallet,
		ConditionID:  t.ConditionID,
		Side:         t.Side,
		Outcome:      t.Outcome,
		OutcomeIndex: t.OutcomeIndex,
		Size:         t.Size,
		Price:        t.Price,
		Timestamp:    t.Timestamp,
		Title:        t.Title,
		Slug:         t.Slug,
	}
}

type rawActivity struct {
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// ---- Gamma API calls ----

// GetActiveMarkets fetches the top active markets ordered by 24h volume.
func (c *PolymarketApiClient) GetActiveMarkets(ctx context.Context, limit int) ([]Market, error) {
	if limit <= 0 {
		limit = 50
	}

	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/markets"

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	u.RawQuery = q.Encode()

	var raw []gammaMarket
	if err := c.doGet(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("get active markets: %w", err)
	}

	markets := make([]Market, 0, len(raw))
	for i := range raw {
		markets = append(markets, raw[i].normalize())
	}
	c.logger.Debug("fetched active markets", zap.Int("count", len(markets)))
	return markets, nil
}

// GetMarketByConditionID fetches a single market by condition ID. Returns nil
// when the market does not exist.
func (c *PolymarketApiClient) GetMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, fmt.Errorf("conditionID is empty")
	}

	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/markets"

	q := u.Query()
	q.Set("condition_id", conditionID)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	var raw []gammaMarket
	if err := c.doGet(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("get market by condition: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	m := raw[0].normalize()
	return &m, nil
}

// ---- Data API calls ----

// GetRecentTrades fetches the most recent trades platform-wide, newest first.
func (c *PolymarketApiClient) GetRecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/trades"

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "DESC")
	u.RawQuery = q.Encode()

	var raw []rawTrade
	if err := c.doGet(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}

	trades := make([]Trade, 0, len(raw))
	for i := range raw {
		trades = append(trades, raw[i].normalize())
	}
	c.logger.Debug("fetched recent trades", zap.Int("count", len(trades)))
	return trades, nil
}

// GetWalletSnapshot fetches one ascending activity page for a wallet and
// summarizes it. A wallet with no visible activity returns a zero snapshot,
// not an error.
func (c *PolymarketApiClient) GetWalletSnapshot(ctx context.Context, wallet string, limit int) (WalletSnapshot, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return WalletSnapshot{}, fmt.Errorf("wallet is empty")
	}
	if limit <= 0 {
		limit = 100
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return WalletSnapshot{}, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/activity"

	q := u.Query()
	q.Set("user", wallet)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "ASC")
	u.RawQuery = q.Encode()

	var activity []rawActivity
	if err := c.doGet(ctx, u.String(), &activity); err != nil {
		return WalletSnapshot{}, fmt.Errorf("get wallet activity: %w", err)
	}

	snap := WalletSnapshot{Wallet: wallet, TotalCount: len(activity)}
	if len(activity) > 0 {
		snap.FirstActivity = activity[0].Timestamp
		// Ascending sort should make the first record the earliest, but the
		// API has returned unsorted pages before.
		for _, a := range activity[1:] {
			if a.Timestamp > 0 && a.Timestamp < snap.FirstActivity {
				snap.FirstActivity = a.Timestamp
			}
		}
	}
	return snap, nil
}

// doGet is a helper that performs a GET request and decodes JSON response.
func (c *PolymarketApiClient) doGet(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
