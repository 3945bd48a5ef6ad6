package discord

import (
	"fmt"
	"polyradar/clients/notifier"
	"polyradar/internal/irrationality"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
}

func NewDiscordClient(logger *zap.Logger, botToken, channelID string) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	if botToken == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
		}
	}

	logger.Info("discord bot initialized", zap.String("channelID", channelID))

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
	}
}

// SendMessage sends a plain text message.
func (dc *DiscordClient) SendMessage(message string) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping message")
		return
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, message)
	if err != nil {
		dc.logger.Error("failed to send discord message", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord message")
}

// SendInsiderAlert sends a rich embedded insider alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendInsiderAlert(alert notifier.InsiderAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := buildInsiderEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord insider alert",
		zap.String("wallet", alert.Wallet),
		zap.String("market", alert.Title),
	)
}

// signalColors maps signal types to embed accent colors.
var signalColors = map[irrationality.SignalType]int{
	irrationality.SignalAlpha:             0xE74C3C,
	irrationality.SignalConflict:          0xF39C12,
	irrationality.SignalInsiderConfirmed:  0xC0392B,
	irrationality.SignalContrarianInsider: 0x9B59B6,
	irrationality.SignalInsiderOnly:       0x3498DB,
}

func buildInsiderEmbed(alert notifier.InsiderAlert) *discordgo.MessageEmbed {
	color := 0x3498DB
	title := "👁️ Insider Activity"
	if alert.HasAnalysis {
		sig := alert.Analysis.Signal
		if c, ok := signalColors[sig.Type]; ok {
			color = c
		}
		title = fmt.Sprintf("%s %s Signal", sig.Emoji, sig.Type)
	}

	walletDisplay := fmt.Sprintf("[`%s`](https://polymarket.com/profile/%s)", shortAddress(alert.Wallet), alert.Wallet)
	profile := "New Participant"
	if alert.Classification != "" {
		profile = fmt.Sprintf("%s (%.0f/100)", alert.Classification, alert.WalletScore)
	}

	leadTime := "N/A"
	if alert.HasLatency && alert.Latency.PreEvent {
		leadTime = fmt.Sprintf("%.0fm before event (%s)", alert.Latency.Minutes, alert.Latency.Severity)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Wallet",
			Value:  walletDisplay,
			Inline: true,
		},
		{
			Name:   "Profile",
			Value:  profile,
			Inline: true,
		},
		{
			Name:   "Score",
			Value:  fmt.Sprintf("%d/%d", alert.Score, alert.MaxScore),
			Inline: true,
		},
		{
			Name:   "Bet",
			Value:  fmt.Sprintf("$%.0f %s @ %.1f¢", alert.CashCost, alert.Outcome, alert.EffectiveOdds*100),
			Inline: true,
		},
		{
			Name:   "Payout if Win",
			Value:  fmt.Sprintf("$%.0f (%.2fx)", alert.PotentialPnl, alert.PnlMultiplier),
			Inline: true,
		},
		{
			Name:   "Lead Time",
			Value:  leadTime,
			Inline: true,
		},
	}

	if alert.HasAnalysis {
		mis := alert.Analysis.Mispricing
		misValue := "❌ not confirmed"
		if mis.Mispriced {
			misValue = fmt.Sprintf("✅ edge %+.1f%% (%s)", mis.EdgePercent, mis.Quality)
		}
		fields = append(fields,
			&discordgo.MessageEmbedField{
				Name:   "Irrationality",
				Value:  fmt.Sprintf("%d/100", alert.Analysis.Irrationality.Score),
				Inline: true,
			},
			&discordgo.MessageEmbedField{
				Name:   "Mispricing",
				Value:  misValue,
				Inline: true,
			},
			&discordgo.MessageEmbedField{
				Name:   "Strength",
				Value:  fmt.Sprintf("%d/250", alert.Analysis.Signal.Strength),
				Inline: true,
			},
		)
	}

	description := fmt.Sprintf("**%s**\nYES: %.0f¢ | NO: %.0f¢",
		alert.Title, alert.YesPrice*100, (1-alert.YesPrice)*100)

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		URL:         alert.MarketURL,
		Description: description,
		Color:       color,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("polyradar • %s UTC", ts.UTC().Format("2006-01-02 15:04")),
		},
		Timestamp: ts.Format(time.RFC3339),
	}

	return embed
}

func shortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
