package clients

import (
	"polyradar/clients/discord"
	"polyradar/clients/factors"
	"polyradar/clients/notifier"
	"polyradar/clients/polymarketapi"
	"polyradar/clients/polymarketevents"
	"polyradar/clients/telegram"
	"polyradar/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord          *discord.DiscordClient
	Telegram         *telegram.TelegramClient
	Notifier         notifier.Notifier // fan-out over all configured channels
	Polymarket       *polymarketapi.PolymarketApiClient
	PolymarketEvents *polymarketevents.PolymarketEventsClient
	Factors          *factors.Client
	FactorCache      *factors.Cache
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg.Discord.BotToken, cfg.Discord.ChannelID)
	telegramClient := telegram.NewTelegramClient(logger, cfg.Telegram.BotToken, cfg.Telegram.ChatID)

	factorCache := factors.NewCache(logger, cfg.Redis.Addr, cfg.Redis.Password,
		cfg.Redis.FactorTTL, cfg.Redis.FactorCooldown)

	c := &Clients{
		Logger:      logger,
		Discord:     discordClient,
		Telegram:    telegramClient,
		Notifier:    notifier.NewMultiNotifier(discordClient, telegramClient),
		Polymarket:  polymarketapi.NewPolymarketApiClient(logger, cfg.Polymarket.GammaAPIURL, cfg.Polymarket.DataAPIURL),
		FactorCache: factorCache,
	}

	// No API key means no factor estimation; the heuristic fallback covers it.
	if cfg.Factors.APIKey != "" {
		c.Factors = factors.NewClient(logger, cfg.Factors.Endpoint, cfg.Factors.APIKey,
			cfg.Factors.Model, factorCache)
	}

	if cfg.Detector.UseWebSocket {
		c.PolymarketEvents = polymarketevents.NewPolymarketEventsClient(logger, cfg.Polymarket.MarketWSURL)
	}

	return c
}

// Close releases client-held connections. Safe to call on a partially
// constructed set.
func (c *Clients) Close() {
	if c.PolymarketEvents != nil {
		c.PolymarketEvents.Close()
	}
	if c.FactorCache != nil {
		c.FactorCache.Close()
	}
	if c.Discord != nil {
		c.Discord.Close()
	}
}
