package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/debatecards/debate-server-go/internal/app"
	"github.com/debatecards/debate-server-go/internal/config"
	"go.uber.org/zap"
)

const usage = `usage: cardgame [-config path] <command> [flags]

commands:
  generate-cards   replace the card catalog with the standard definitions
  clear-sims       delete every simulated game
  simulate         step simulated games (-steps N, 0 plays the current game to the end)
`

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, command string, args []string) error {
	repo, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	svc := app.NewService(cfg, repo, nil, logger)

	switch command {
	case "generate-cards":
		defs, err := svc.GenerateCatalog(ctx)
		if err != nil {
			return err
		}
		logger.Info("catalog generated",
			zap.Int("cards", defs.Len()),
			zap.Int("abilities", len(defs.Abilities())),
		)
	case "clear-sims":
		n, err := svc.ClearSimulations(ctx)
		if err != nil {
			return err
		}
		logger.Info("simulations cleared", zap.Int64("games", n))
	case "simulate":
		fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "number of steps, 0 plays the current game to the end")
		if err := fs.Parse(args); err != nil {
			return err
		}
		last, done, err := svc.Run(ctx, *steps)
		if last != nil {
			fields := []zap.Field{
				zap.String("game_id", last.GameID),
				zap.Int("steps", done),
				zap.String("status", last.State.Status.String()),
				zap.Int("round", last.State.Round),
				zap.String("checksum", last.Checksum),
			}
			if winner, ok := last.State.Winner(); ok {
				fields = append(fields, zap.String("winner", winner.ID))
			}
			logger.Info("simulation finished", fields...)
		}
		return err
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
