// Package app wires configuration into the logger, store and simulation
// service shared by the server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/debatecards/debate-server-go/internal/bot"
	"github.com/debatecards/debate-server-go/internal/config"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/debatecards/debate-server-go/internal/match"
	"github.com/debatecards/debate-server-go/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the logging section.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// OpenStore opens the configured storage driver. The returned close function
// releases its resources.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (match.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, games are lost on exit")
		return repository.NewMemory(), func() {}, nil
	case config.DriverPostgres:
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		stats := db.Stats()
		logger.Info("database connected",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		return repository.NewPostgres(db, logger), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewService assembles the simulation service. bus may be nil.
func NewService(cfg *config.Config, repo match.Repository, bus *rules.EventBus, logger *zap.Logger) *match.Service {
	botOpts := []bot.Option{
		bot.WithDepth(cfg.Bot.Depth),
		bot.WithMaxNodes(cfg.Bot.MaxNodes),
		bot.WithTimeout(cfg.Bot.Timeout),
		bot.WithLogger(logger),
	}
	opts := []match.Option{
		match.WithLogger(logger),
		match.WithDeckSpec(cfg.Engine.DeckSpec()),
	}
	if cfg.Engine.Seed != 0 {
		botOpts = append(botOpts, bot.WithSeed(cfg.Engine.Seed))
		opts = append(opts, match.WithSeed(cfg.Engine.Seed))
	}
	opts = append(opts, match.WithBot(bot.New(botOpts...)))
	if bus != nil {
		opts = append(opts, match.WithEventBus(bus))
	}
	if cfg.Engine.ReplayDir != "" {
		opts = append(opts, match.WithReplay(game.NewReplayRecorder(logger, cfg.Engine.ReplayDir)))
	}
	return match.NewService(repo, opts...)
}
