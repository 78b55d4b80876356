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

	"github.com/robalobadob/guess-sentence/internal/config"
	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/httpserver"
	"github.com/robalobadob/guess-sentence/internal/retention"
	"github.com/robalobadob/guess-sentence/internal/sentences"
	"github.com/robalobadob/guess-sentence/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	entries, err := sentences.Load(cfg.SentencesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load sentences")
	}
	added, err := st.SeedSentences(ctx, entries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed sentences")
	}
	logged, anon := sentences.Counts(entries)
	log.Info().Int("logged", logged).Int("anon", anon).Int("added", added).Msg("sentences seeded")

	anonCoins := cfg.AnonCoins
	engine := game.NewEngine(game.Dependencies{
		Matches:   st,
		Sentences: st,
		Wallets:   st,
		AnonCoins: &anonCoins,
	})

	sweeper := retention.New(st, cfg.RetentionTTL, cfg.RetentionInterval, nil)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start retention sweeper")
	}
	defer sweeper.Stop()

	srv := httpserver.New(engine, st, httpserver.Options{
		JWTSecret:    cfg.JWTSecret,
		JWTTTL:       cfg.JWTTTL,
		CookieName:   cfg.CookieName,
		ClientOrigin: cfg.ClientOrigin,
		Production:   cfg.Production,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Str("anonCoins", cfg.AnonCoins.String()).Msg("starting server")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
}
