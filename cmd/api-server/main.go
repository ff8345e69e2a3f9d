package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mangashelf/internal/auth"
	"mangashelf/internal/bookstore"
	"mangashelf/internal/recommend"
	synchub "mangashelf/internal/sync"
	"mangashelf/pkg/database"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/utils"
)

func main() {
	utils.LoadDotEnv()
	srvCfg := utils.LoadServerConfig()
	logging.Init(logging.Config{Level: srvCfg.LogLevel, Format: srvCfg.LogFormat, Output: os.Stderr})

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	authCfg := utils.LoadAuthConfig()
	keys, err := auth.NewKeyVerifier(authCfg.AdminKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid admin key")
	}
	if !keys.Enabled() {
		logging.Warn().Msg("MANGASHELF_ADMIN_KEY not set, mutating routes are open")
	}

	bsCfg := utils.LoadBookstoreConfig()
	catalog := bookstore.NewClient(bookstore.Config{AppID: bsCfg.AppID, BaseURL: bsCfg.BaseURL})
	if !catalog.Configured() {
		logging.Warn().Msg("RAKUTEN_APP_ID not set, ingestion and verification are unavailable")
	}

	llmCfg := utils.LoadCompletionConfig()
	llm := recommend.NewCompletionClient(recommend.CompletionConfig{
		APIKey:  llmCfg.APIKey,
		BaseURL: llmCfg.BaseURL,
		Model:   llmCfg.Model,
	})
	if !llm.Configured() {
		logging.Warn().Msg("GROQ_API_KEY not set, recommendations are unavailable")
	}

	hub := synchub.NewHub()
	app := newApp(appDeps{
		DB:      db,
		DBPath:  cfg.Path,
		Hub:     hub,
		Catalog: catalog,
		LLM:     llm,
		Keys:    keys,
		Tokens: auth.TokenService{
			Secret:   []byte(authCfg.JWTSecret),
			Issuer:   authCfg.JWTIssuer,
			Duration: authCfg.JWTDuration,
		},
		RateRPS:   srvCfg.RateRPS,
		RateBurst: srvCfg.RateBurst,
	})

	// Start TCP sync first (so you notice binding errors early)
	tcpSrv := synchub.NewServer(srvCfg.TCPAddr, hub)

	httpSrv := &http.Server{
		Addr:              srvCfg.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info().Str("addr", srvCfg.HTTPAddr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.ingest.Schedule(ctx, srvCfg.UpdateInterval)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logging.Error().Err(err).Msg("server error")
	}

	logging.Info().Msg("shutting down servers")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown error")
	}
	if err := tcpSrv.Close(); err != nil {
		logging.Error().Err(err).Msg("tcp shutdown error")
	}

	wg.Wait()
	logging.Info().Msg("servers stopped")
}
