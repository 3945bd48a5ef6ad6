package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clts "polyradar/clients"
	"polyradar/config"
	"polyradar/internal/app"
	"polyradar/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine in production where everything comes from the
	// environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("starting polyradar", zap.Bool("isProd", cfg.IsProd))

	if result := cfg.Validate(); !result.Valid {
		for _, e := range result.Errors {
			logger.Error("invalid configuration", zap.String("field", e.Field), zap.String("message", e.Message))
		}
		os.Exit(1)
	}

	st, err := store.Open(cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	logger.Info("instantiating clients")
	clients := clts.NewClients(logger, cfg)
	defer clients.Close()

	rules, err := config.LoadRuleSet(cfg.Rules.Path)
	if err != nil {
		logger.Fatal("failed to load rules", zap.String("path", cfg.Rules.Path), zap.Error(err))
	}
	liveRules := config.NewLiveRules(rules)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(clients, cfg, liveRules, st)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner failed", zap.Error(err))
	}
}
