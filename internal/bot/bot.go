// Package bot is the Telegram front end: it owns the long-polling loop,
// per-user authorization, and the mapping from chat commands to device and
// store operations.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotspotctl/internal/cards"
	"hotspotctl/internal/config"
	"hotspotctl/internal/registry"
	"hotspotctl/internal/store"
)

// Bot wires the Telegram API to the session registry and the store.
type Bot struct {
	api       *tgbotapi.BotAPI
	cfg       config.Config
	store     *store.Store
	sessions  *registry.Registry
	generator *cards.Generator
	log       zerolog.Logger
}

// New authenticates against the Telegram API and assembles the bot.
func New(cfg config.Config, st *store.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Bot.Debug

	return &Bot{
		api:       api,
		cfg:       cfg,
		store:     st,
		sessions:  registry.New(),
		generator: cards.NewGenerator(cfg.Cards.MaxBatchSize),
		log:       log.With().Str("component", "bot").Logger(),
	}, nil
}

// Run polls for updates until the context is canceled, then disconnects all
// live device sessions. Updates are handled one at a time per user through
// the session's internal lock, but different users do not block each other.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Str("username", b.api.Self.UserName).Msg("bot started")

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	defer b.sessions.Shutdown()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("bot stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}
