package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mruedinger/game-club/audit"
	"github.com/mruedinger/game-club/auth"
	"github.com/mruedinger/game-club/cookie"
	"github.com/mruedinger/game-club/games"
	"github.com/mruedinger/game-club/internal/config"
	"github.com/mruedinger/game-club/members"
	"github.com/mruedinger/game-club/metadata"
	"github.com/mruedinger/game-club/polls"
	"github.com/mruedinger/game-club/server"
	"github.com/mruedinger/game-club/session"
	"github.com/mruedinger/game-club/settings"
	"github.com/mruedinger/game-club/store"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	metadataTimeout = 15 * time.Second
	metadataRetries = 2
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(log zerolog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	displayAppname(cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := store.Open(startCtx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("store.Open: %w", err)
	}
	defer db.Close()

	codec, err := cookie.NewCodec(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("cookie.NewCodec: %w", err)
	}

	memberRepo := members.NewSQLRepo(db)
	gameRepo := games.NewSQLRepo(db)
	pollRepo := polls.NewSQLRepo(db)
	settingsRepo := settings.NewSQLRepo(db)
	auditLog := audit.NewLog(audit.NewSQLRepo(db), log)

	sessions := session.NewManager(codec, memberRepo, session.Options{
		CookieName:        cfg.SessionCookieName,
		IdleTTL:           cfg.SessionIdleTTL,
		AbsoluteTTL:       cfg.SessionAbsoluteTTL,
		MembershipRecheck: cfg.SessionMembershipRecheck,
		ActivityTouch:     cfg.SessionActivityTouch,
		LegacyTTL:         config.DefaultLegacySessionTTL,
	}, log)

	flow := auth.NewFlow(codec, config.DefaultOAuthCookieName, cfg.OAuthPendingTTL, nil)
	google, err := auth.NewGoogleClient(startCtx, auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	})
	if err != nil {
		return fmt.Errorf("auth.NewGoogleClient: %w", err)
	}

	httpClient := metadata.NewHTTPClient(metadataTimeout, metadataRetries)
	steam := metadata.NewSteamClient("", httpClient, log)
	itad := metadata.NewITADClient(cfg.ITADAPIKey, "", httpClient, log)
	igdb := metadata.NewIGDBClient(metadata.IGDBConfig{
		ClientID:     cfg.IGDBClientID,
		ClientSecret: cfg.IGDBClientSecret,
		AccessToken:  cfg.IGDBAccessToken,
	}, httpClient, log)
	hltb := metadata.NewHLTBClient("", httpClient, log)
	fetcher := metadata.NewFetcher(steam, igdb, itad, hltb, log)

	if cfg.ITADAPIKey != "" {
		priceSync := metadata.NewPriceSync(gameRepo, itad, log)
		go priceSync.Run(ctx)
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.New(*cfg, server.Deps{
			Members:  memberRepo,
			Games:    gameRepo,
			Polls:    pollRepo,
			Settings: settingsRepo,
			Audit:    auditLog,
			Sessions: sessions,
			Flow:     flow,
			Google:   google,
			Steam:    steam,
			Enricher: fetcher,
		}, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server.ListenAndServe: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return <-errCh
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
