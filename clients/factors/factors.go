package factors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"polyradar/internal/irrationality"

	"go.uber.org/zap"
)

// factorPrompt asks the model for a structural decomposition, never a
// probability. The response must be the bare JSON object described below.
const factorPrompt = `You are a prediction market analyst.
Do NOT output a probability number.
Instead, decompose the question into structural factors.

Market: %s
Current YES price: %.0f¢
End date: %s

Analyze this market and return ONLY valid JSON (no markdown, no explanation):
{
  "base_rate_class": "historically_near_zero | rare | occasional | common",
  "structural_feasibility": {
    "independent_conditions_required": <number 1-5>,
    "conditions": ["condition 1", "condition 2"],
    "weakest_link": "description of least likely condition"
  },
  "category": "meme | conspiracy | politics_far | politics_near | geopolitics | macro | sports | crypto | other",
  "narrative_drivers": ["driver 1", "driver 2"],
  "confidence_in_analysis": "high | medium | low"
}

Rules:
- "historically_near_zero": events that essentially never happen (celebrity becomes president, dead person alive)
- "rare": unusual but has precedent (~5%% base rate)
- "occasional": plausible but unlikely (~15%% base rate)
- "common": genuine uncertainty (~35%%+ base rate)
- Be conservative: if uncertain, use higher base_rate_class`

// Client calls an OpenAI-compatible chat completions endpoint to decompose
// market questions. Implements irrationality.FactorSource.
type Client struct {
	logger   *zap.Logger
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	cache    *Cache
}

// NewClient creates a factor estimation client. cache may be nil, in which
// case every call hits the API.
func NewClient(logger *zap.Logger, endpoint, apiKey, model string, cache *Cache) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger:   logger,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		cache:    cache,
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an OpenAI chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse represents an OpenAI chat completion response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
		Finish  string  `json:"finish_reason"`
	} `json:"choices"`
}

// wireFactors is the JSON shape the model is asked to produce. It is flattened
// into irrationality.Factors after validation.
type wireFactors struct {
	BaseRateClass         string `json:"base_rate_class"`
	StructuralFeasibility struct {
		IndependentConditionsRequired int      `json:"independent_conditions_required"`
		Conditions                    []string `json:"conditions"`
		WeakestLink                   string   `json:"weakest_link"`
	} `json:"structural_feasibility"`
	Category             string   `json:"category"`
	NarrativeDrivers     []string `json:"narrative_drivers"`
	ConfidenceInAnalysis string   `json:"confidence_in_analysis"`
}

// EstimateFactors returns the structural decomposition for a market question.
// Results are cached per market; a cooldown guards against hammering the API
// for a market whose factors could not be cached.
// Implements irrationality.FactorSource.
func (c *Client) EstimateFactors(ctx context.Context, question string, yesPrice float64, endDate string) (irrationality.Factors, error) {
	key := FactorKey(question, yesPrice)

	if f, ok := c.cache.GetFactors(ctx, key); ok {
		c.logger.Debug("factor cache hit", zap.String("key", key))
		return f, nil
	}
	if c.cache.InCooldown(ctx, key) {
		return irrationality.Factors{}, fmt.Errorf("factor estimation in cooldown for %q", question)
	}

	f, err := c.estimate(ctx, question, yesPrice, endDate)
	if err != nil {
		// Cooldown even on failure so a broken market doesn't retry every poll.
		c.cache.SetCooldown(ctx, key)
		return irrationality.Factors{}, err
	}

	c.cache.SetFactors(ctx, key, f)
	c.cache.SetCooldown(ctx, key)
	return f, nil
}

func (c *Client) estimate(ctx context.Context, question string, yesPrice float64, endDate string) (irrationality.Factors, error) {
	if endDate == "" {
		endDate = "Unknown"
	}
	prompt := fmt.Sprintf(factorPrompt, question, yesPrice*100, endDate)

	content, err := c.chatCompletion(ctx, []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return irrationality.Factors{}, fmt.Errorf("estimate factors: %w", err)
	}

	return parseFactors(content)
}

func (c *Client) chatCompletion(ctx context.Context, messages []Message) (string, error) {
	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   500,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// parseFactors validates the model output and flattens it. Models wrap JSON in
// markdown fences despite instructions, so those are stripped first.
func parseFactors(content string) (irrationality.Factors, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = fenceOpenRe.ReplaceAllString(content, "")
		content = fenceCloseRe.ReplaceAllString(content, "")
	}

	var wire wireFactors
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return irrationality.Factors{}, fmt.Errorf("parse factors: %w", err)
	}

	if wire.BaseRateClass == "" {
		return irrationality.Factors{}, fmt.Errorf("factor response missing base_rate_class")
	}
	if wire.ConfidenceInAnalysis == "" {
		return irrationality.Factors{}, fmt.Errorf("factor response missing confidence_in_analysis")
	}
	conditions := wire.StructuralFeasibility.IndependentConditionsRequired
	if conditions < 1 {
		conditions = 1
	}

	return irrationality.Factors{
		BaseRateClass:      wire.BaseRateClass,
		ConditionsRequired: conditions,
		Conditions:         wire.StructuralFeasibility.Conditions,
		WeakestLink:        wire.StructuralFeasibility.WeakestLink,
		Category:           irrationality.Category(wire.Category),
		NarrativeDrivers:   wire.NarrativeDrivers,
		Confidence:         wire.ConfidenceInAnalysis,
	}, nil
}
