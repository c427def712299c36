package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotspotctl/internal/bot"
	"hotspotctl/internal/cards"
	"hotspotctl/internal/config"
	"hotspotctl/internal/store"
)

const usage = `hotspotctl - Telegram bot for managing RouterOS hotspot devices

Usage:
  hotspotctl init --config <path>
  hotspotctl bot --config <path> [--debug]
  hotspotctl cards --config <path> --count <n> [--prefix user] [--profile default]
                   [--data-mb 0] [--hours 0] [--days 30] [--out cards.csv]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "init":
		handleInit(os.Args[2:])
	case "bot":
		handleBot(os.Args[2:])
	case "cards":
		handleCards(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "hotspotctl.yaml", "path to YAML config")
	_ = fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite existing %s\n", *configPath)
		os.Exit(1)
	}

	key, err := config.NewVaultKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate vault key: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Config{}
	cfg.Storage.VaultKey = key
	config.ApplyDefaults(&cfg)
	if err := config.Save(*configPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s; set bot.token before running `hotspotctl bot`\n", *configPath)
}

func handleBot(args []string) {
	fs := flag.NewFlagSet("bot", flag.ExitOnError)
	configPath := fs.String("config", "hotspotctl.yaml", "path to YAML config")
	debug := fs.Bool("debug", false, "verbose logging")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(*debug || cfg.Bot.Debug)

	key, err := cfg.Storage.VaultKeyBytes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	vault, err := store.NewVault(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vault: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Storage.DatabasePath, vault)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	b, err := bot.New(cfg, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("bot exited")
		os.Exit(1)
	}
}

func handleCards(args []string) {
	fs := flag.NewFlagSet("cards", flag.ExitOnError)
	configPath := fs.String("config", "hotspotctl.yaml", "path to YAML config")
	count := fs.Int("count", 0, "number of cards to generate")
	prefix := fs.String("prefix", "user", "username prefix")
	profile := fs.String("profile", "default", "hotspot profile")
	dataMB := fs.Int("data-mb", 0, "data quota in MB (0 = unlimited)")
	hours := fs.Int("hours", 0, "time quota in hours (0 = unlimited)")
	days := fs.Int("days", 30, "validity in days")
	out := fs.String("out", "cards.csv", "output CSV path")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Offline generation works without a config file.
		config.ApplyDefaults(&cfg)
	}
	setupLogging(false)

	g := cards.NewGenerator(cfg.Cards.MaxBatchSize)
	batch, err := g.Generate(cards.BatchSpec{
		Count:          *count,
		Prefix:         *prefix,
		Profile:        *profile,
		DataQuotaMB:    *dataMB,
		TimeQuotaHours: *hours,
		ValidityDays:   *days,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	defer f.Close()
	if err := cards.WriteCSV(f, batch.Cards); err != nil {
		fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s -> %s\n", batch.Summary(), *out)
}
