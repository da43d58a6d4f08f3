package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/listing"
	"github.com/debemdeboas/backoffice/internal/logger"
	"github.com/debemdeboas/backoffice/internal/render"
	"github.com/debemdeboas/backoffice/internal/repository"
	"github.com/debemdeboas/backoffice/internal/repository/editor"
	"github.com/debemdeboas/backoffice/internal/upload"
)

//go:embed static/* templates/*
var content embed.FS

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	api.SetLogger(l.With().Str("component", "api").Logger())
	auth.SetLogger(l.With().Str("component", "auth").Logger())
	form.SetLogger(l.With().Str("component", "form").Logger())
	listedit.SetLogger(l.With().Str("component", "listedit").Logger())
	listing.SetLogger(l.With().Str("component", "listing").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	editor.SetLogger(l.With().Str("component", "editor").Logger())
	upload.SetLogger(l.With().Str("component", "upload").Logger())
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	bootLogger := logger.New("info")
	config.SetLogger(bootLogger)
	if err := config.LoadConfig(*configPath); err != nil {
		bootLogger.Fatal().Err(err).Str("path", *configPath).Msg("Invalid configuration")
	}
	cfg := config.AppConfig

	l := logger.New(cfg.Logging.Level)
	setLoggers(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.New(api.OptionsFrom(cfg.Backend))
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create backend client")
	}
	gateway, err := upload.New(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Str("gateway", cfg.Upload.Gateway).Msg("Failed to create upload gateway")
	}

	var database db.DB
	if cfg.Drafts.Store == config.StoreSQLite || cfg.Features.Authentication.Type == config.AuthClerk {
		sqlite := db.NewSQLite(cfg.Drafts.Path)
		if err := sqlite.InitDB(); err != nil {
			l.Fatal().Err(err).Msgf(config.ErrInitializeDatabaseFmt, err)
		}
		defer sqlite.Close()
		database = sqlite
	}

	store, err := repository.New(cfg.Drafts, database)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create draft store")
	}
	provider, err := auth.New(cfg.Features.Authentication, database)
	if err != nil {
		l.Fatal().Err(err).Msgf(config.ErrCreateProviderFmt, err)
	}

	a, err := newApp(cfg, content, client, gateway, store, provider)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to set up routes")
	}
	go a.drafts.Run(ctx, cfg.Drafts.TTL)
	go a.pruneSnapshots(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           logger.Middleware(l)(a.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	l.Info().
		Str("addr", srv.Addr).
		Str("backend", client.BaseURL()).
		Str("gateway", gateway.Name()).
		Str("drafts", cfg.Drafts.Store).
		Str("auth", cfg.Features.Authentication.Type).
		Msg("Console listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal().Err(err).Msg("Server failed")
	}
}
