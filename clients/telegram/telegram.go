package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"polyradar/clients/notifier"
	"polyradar/internal/irrationality"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// maxMessageLen keeps messages under the Telegram 4096-char limit.
const maxMessageLen = 4000

// TelegramClient sends alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, botToken, chatID string) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	if botToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
		}
	}

	logger.Info("telegram bot initialized", zap.String("chatID", chatID))

	return &TelegramClient{
		logger:   logger,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendInsiderAlert sends one insider alert.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendInsiderAlert(alert notifier.InsiderAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := buildAlertMessage(alert)

	if err := tc.sendMessage(message, true); err != nil {
		// Markdown parse failures come back as 400; retry as plain text so a
		// stray underscore in a market title never drops an alert.
		tc.logger.Warn("markdown send failed, retrying as plain text", zap.Error(err))
		if err := tc.sendMessage(message, false); err != nil {
			tc.logger.Error("failed to send telegram message", zap.Error(err))
			return
		}
	}

	tc.logger.Info("sent telegram insider alert",
		zap.String("wallet", alert.Wallet),
		zap.String("market", alert.Title),
		zap.Int("score", alert.Score),
	)
}

func buildAlertMessage(alert notifier.InsiderAlert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(alertHeader(alert))))
	if alert.HasAnalysis {
		sb.WriteString(fmt.Sprintf("Category: %s\n", categoryDisplay(alert.Analysis.Irrationality.Category)))
	}
	sb.WriteString("\n")

	if alert.MarketURL != "" {
		sb.WriteString(fmt.Sprintf("*Market:* [%s](%s)\n", escapeMarkdown(alert.Title), alert.MarketURL))
	} else {
		sb.WriteString(fmt.Sprintf("*Market:* %s\n", escapeMarkdown(alert.Title)))
	}
	sb.WriteString(fmt.Sprintf("YES: %.0f¢ | NO: %.0f¢\n", alert.YesPrice*100, (1-alert.YesPrice)*100))

	sb.WriteString("\n*INSIDER ACTIVITY*\n")
	sb.WriteString(fmt.Sprintf("Wallet: `%s`\n", shortAddress(alert.Wallet)))
	sb.WriteString(fmt.Sprintf("Bet: %s %s @ %.1f¢\n",
		formatUSD(alert.CashCost), alert.Outcome, alert.EffectiveOdds*100))
	sb.WriteString(fmt.Sprintf("Payout if win: %s profit (%s)\n",
		formatUSD(alert.PotentialPnl), formatMultiplier(alert.PnlMultiplier)))
	sb.WriteString(fmt.Sprintf("Lead Time: %s\n", leadTimeDisplay(alert)))
	sb.WriteString(fmt.Sprintf("Profile: %s\n", escapeMarkdown(walletProfile(alert))))
	sb.WriteString(fmt.Sprintf("Score: %d/%d\n", alert.Score, alert.MaxScore))

	if alert.HasAnalysis {
		writeAnalysis(&sb, alert)
	}

	if len(alert.Flags) > 0 {
		sb.WriteString("\n*INSIDER FLAGS*\n")
		for i, flag := range alert.Flags {
			if i == 3 {
				break
			}
			sb.WriteString(fmt.Sprintf("• %s\n", escapeMarkdown(flag)))
		}
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n_polyradar • %s UTC_", ts.UTC().Format("2006-01-02 15:04")))

	msg := sb.String()
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "\n\n[Truncated]"
	}
	return msg
}

func writeAnalysis(sb *strings.Builder, alert notifier.InsiderAlert) {
	irr := alert.Analysis.Irrationality
	mis := alert.Analysis.Mispricing
	sig := alert.Analysis.Signal

	sb.WriteString("\n*IRRATIONALITY ANALYSIS*\n")
	sb.WriteString(fmt.Sprintf("Score: %d/100\n", irr.Score))
	for i, flag := range irr.Flags {
		if i == 3 {
			break
		}
		sb.WriteString(fmt.Sprintf("• %s\n", escapeMarkdown(flag)))
	}

	sb.WriteString("\n*MISPRICING ANALYSIS*\n")
	if mis.Mispriced {
		sb.WriteString("✅ CONFIRMED\n")
	} else {
		sb.WriteString("❌ NOT CONFIRMED\n")
	}
	sb.WriteString(fmt.Sprintf("Rational estimate: ~%.0f%%\n", mis.RationalEstimate*100))
	sb.WriteString(fmt.Sprintf("Market price: %.0f%%\n", mis.MarketPrice*100))
	sb.WriteString(fmt.Sprintf("Edge: %+.1f%% (%s)\n", mis.EdgePercent, mis.Quality))

	sb.WriteString("\n*SIGNAL*\n")
	sb.WriteString(fmt.Sprintf("Type: %s\n", sig.Type))
	sb.WriteString(fmt.Sprintf("Strength: %d/250\n", sig.Strength))
	sb.WriteString(escapeMarkdown(sig.Interpretation) + "\n")
	if sig.Action != "" {
		sb.WriteString(fmt.Sprintf("\n💡 %s\n", escapeMarkdown(sig.Action)))
	}
}

func alertHeader(alert notifier.InsiderAlert) string {
	if !alert.HasAnalysis {
		return "👁️ INSIDER ACTIVITY"
	}

	sig := alert.Analysis.Signal
	switch sig.Type {
	case irrationality.SignalAlpha:
		return sig.Emoji + " ALPHA SIGNAL — Insider + Mispricing Aligned"
	case irrationality.SignalConflict:
		return sig.Emoji + " CONFLICT — Insider vs Statistics"
	case irrationality.SignalInsiderConfirmed:
		return sig.Emoji + " INSIDER CONFIRMED — Real Information Likely"
	case irrationality.SignalContrarianInsider:
		return sig.Emoji + " CONTRARIAN — Unusual Insider Behavior"
	default:
		return sig.Emoji + " INSIDER ACTIVITY"
	}
}

func categoryDisplay(cat irrationality.Category) string {
	words := strings.Split(string(cat), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func walletProfile(alert notifier.InsiderAlert) string {
	if alert.Classification == "" {
		return "New Participant"
	}
	return fmt.Sprintf("%s (%.0f/100)", alert.Classification, alert.WalletScore)
}

func leadTimeDisplay(alert notifier.InsiderAlert) string {
	if !alert.HasLatency || !alert.Latency.PreEvent {
		return "N/A"
	}
	minutes := alert.Latency.Minutes
	switch {
	case minutes < 120:
		return fmt.Sprintf("%.0fm", minutes)
	case minutes < 1440:
		return fmt.Sprintf("%.0fh", minutes/60)
	default:
		return fmt.Sprintf("%.1fd", minutes/1440)
	}
}

func formatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return "$" + s
}

// formatMultiplier renders the payout multiple with precision scaled to its
// magnitude: 0.04x, 5.7x, 200x.
func formatMultiplier(m float64) string {
	switch {
	case m < 0.1:
		return fmt.Sprintf("%.2fx", m)
	case m < 100:
		return fmt.Sprintf("%.1fx", m)
	default:
		return fmt.Sprintf("%.0fx", m)
	}
}

func (tc *TelegramClient) sendMessage(text string, markdown bool) error {
	url := fmt.Sprintf(telegramAPIURL, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id": tc.chatID,
		"text":    text,
	}
	if markdown {
		payload["parse_mode"] = "Markdown"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

func shortAddress(addr string) string {
	if len(addr) <= 18 {
		return addr
	}
	return addr[:10] + "…" + addr[len(addr)-8:]
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
