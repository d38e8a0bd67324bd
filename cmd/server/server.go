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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	authHandler "github.com/quipper/poc/spotify-auth/be/internal/controller/http/auth"
	memoryState "github.com/quipper/poc/spotify-auth/be/internal/repositories/state/memory"
	redisState "github.com/quipper/poc/spotify-auth/be/internal/repositories/state/redis"
	sqliteState "github.com/quipper/poc/spotify-auth/be/internal/repositories/state/sqlite"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/config"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/keys"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/metrics"
	staterepo "github.com/quipper/poc/spotify-auth/be/pkg/repositories/state"
	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
)

var (
	envFile  string
	port     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "spotify-auth",
	Short:        "Spotify OAuth authorization code relay",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&envFile, "env-file", "e", ".env", "env file loaded before reading the environment")
	flags.StringVarP(&port, "port", "p", "", "listen port, overrides PORT")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStateRepo returns the configured state ledger, or nil for cookie-only mode.
func openStateRepo(ctx context.Context, cfg config.Config) (staterepo.Repository, error) {
	switch cfg.StateStore {
	case config.StoreMemory:
		return memoryState.NewRepo(cfg.StateTTL), nil
	case config.StoreSQLite:
		return sqliteState.NewSQLiteRepo(cfg.StateSQLitePath)
	case config.StoreRedis:
		return redisState.NewRepo(ctx, cfg.RedisURL)
	default:
		return nil, nil
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger.Initialize(cfg.LogLevel, cfg.LogFile)
	logger.Info("starting server")

	signer, err := keys.NewSigner(cfg.CookieSecret)
	if err != nil {
		return fmt.Errorf("init cookie signer: %w", err)
	}

	states, err := openStateRepo(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init state store %s: %w", cfg.StateStore, err)
	}
	if states != nil {
		defer states.Disconnect()
	}
	logger.Info("state store: %s", cfg.StateStore)

	m := metrics.New()
	httpClient := &http.Client{
		Timeout:   cfg.UpstreamTimeout,
		Transport: m.RoundTripper(http.DefaultTransport),
	}
	tokens := spotify.NewClient(cfg.ClientID, cfg.ClientSecret, spotify.Endpoint(cfg.AuthURL, cfg.TokenURL), httpClient)

	h := authHandler.NewHandler(cfg, tokens, signer, states, m)
	router := chi.NewRouter()
	const maxBodySize = 64 << 10
	router.Use(middleware.RequestSize(maxBodySize))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(logger.Middleware)

	router.Handle("/metrics", m.Handler())
	router.Mount("/", h.Router())

	listenPort := cfg.Port
	if listenPort == "" {
		listenPort = "8080"
	}
	addr := ":" + listenPort
	server := &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	logger.Info("server stopped")
	return nil
}
