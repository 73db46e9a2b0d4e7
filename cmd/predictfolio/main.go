// Predictfolio - Position reconciliation & PnL engine for on-chain
// prediction markets.
//
// Reconciles two weakly-correlated sources of truth into one view:
// 1. Live token balances on the ledger (what is held now)
// 2. The internal trade ledger (what was paid, what was realized)
// then values the result against live market quotes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wagmibets/predictfolio/internal/bot"
	"github.com/wagmibets/predictfolio/internal/chain"
	"github.com/wagmibets/predictfolio/internal/config"
	"github.com/wagmibets/predictfolio/internal/database"
	"github.com/wagmibets/predictfolio/internal/feeds"
	"github.com/wagmibets/predictfolio/internal/markets"
	"github.com/wagmibets/predictfolio/internal/positions"
	"github.com/wagmibets/predictfolio/internal/server"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("rpc", cfg.RPCURL).
		Str("metadata", cfg.MetadataAPIURL).
		Msg("🚀 Predictfolio starting")

	// Ledgers
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	rpcClient := chain.NewClient(cfg.RPCURL, cfg.RPCTimeout)
	scanner := chain.NewScanner(rpcClient, cfg.TokenProgramID, cfg.Token2022ProgramID)

	metaClient := markets.NewClient(cfg.MetadataAPIURL, cfg.MetadataTimeout)

	// Optional live quote stream
	var quotes positions.QuoteSource
	if cfg.QuoteWSURL != "" {
		feed := feeds.NewQuoteFeed(cfg.QuoteWSURL)
		feed.Start()
		defer feed.Stop()
		quotes = feed
	}

	engine := positions.NewAggregator(scanner, metaClient, db, quotes)

	// Optional Telegram reporting
	if cfg.TelegramToken != "" {
		tg, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, engine)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram bot disabled")
		} else {
			tg.Start()
			defer tg.Stop()
		}
	}

	// HTTP surface
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(engine).Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
