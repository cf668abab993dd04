package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxdraft/internal/config"
	"github.com/teemow/inboxdraft/internal/gmail"
	"github.com/teemow/inboxdraft/internal/google"
	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/logging"
	"github.com/teemow/inboxdraft/internal/reply"
	"github.com/teemow/inboxdraft/internal/server"
	"github.com/teemow/inboxdraft/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		debugMode          bool
		httpAddr           string
		baseURL            string
		googleClientID     string
		googleClientSecret string
		dbPath             string
		metricsEnabled     bool
		metricsAddr        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the email assistant HTTP server",
		Long: `Start the email assistant HTTP server.

The server exposes the Google OAuth consent flow under /oauth, a JSON API
under /api for unread mail, summaries, generated replies and drafts, and
health probes under /healthz and /readyz. Prometheus metrics are served
on a dedicated port.

Configuration is read from the environment (a .env file is honored);
flags override it. GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are
required. Without COMPLETIONS_API_KEY the generate endpoint returns
placeholder text instead of model output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Flags win over environment values.
			if cmd.Flags().Changed("http-addr") {
				conf.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("base-url") {
				conf.BaseURL = baseURL
			}
			if cmd.Flags().Changed("google-client-id") {
				conf.GoogleClientID = googleClientID
			}
			if cmd.Flags().Changed("google-client-secret") {
				conf.GoogleClientSecret = googleClientSecret
			}
			if cmd.Flags().Changed("db-path") {
				conf.DBPath = dbPath
			}
			if cmd.Flags().Changed("metrics-enabled") {
				conf.MetricsEnabled = metricsEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				conf.MetricsAddr = metricsAddr
			}

			if err := conf.Validate(); err != nil {
				return err
			}

			return runServe(conf, debugMode)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address. Can also use INBOXDRAFT_HTTP_ADDR env var.")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL used to build the OAuth redirect URL. Can also use INBOXDRAFT_BASE_URL env var. Example: https://mail.example.com")
	cmd.Flags().StringVar(&googleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&dbPath, "db-path", "inboxdraft.db", "SQLite database file for stored credentials. Can also use INBOXDRAFT_DB_PATH env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use INBOXDRAFT_METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use INBOXDRAFT_METRICS_ADDR env var.")

	return cmd
}

func runServe(conf *config.Config, debugMode bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(debugMode)
	slog.SetDefault(logger)

	provider, err := instrumentation.NewProvider(shutdownCtx, instrumentation.Config{
		ServiceName:    "inboxdraft",
		ServiceVersion: version,
		Enabled:        conf.MetricsEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	st, err := store.New(shutdownCtx, logger, conf.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("credential store close failed", logging.Err(err))
		}
	}()

	oauthConf := google.OAuthConfig(conf.GoogleClientID, conf.GoogleClientSecret, conf.BaseURL+"/oauth/callback")
	mailbox := gmail.NewService(oauthConf, st, logger, provider.Metrics())
	generator := reply.NewGenerator(conf.CompletionsAPIURL, conf.CompletionsAPIKey, conf.CompletionsModel, logger, provider.Metrics())

	srv := server.New(server.Config{
		Addr:           conf.HTTPAddr,
		SessionTimeout: conf.SessionTimeout,
		Logger:         logger,
		Metrics:        provider.Metrics(),
		OAuthConf:      oauthConf,
		Store:          st,
		Mailbox:        mailbox,
		Generator:      generator,
	})

	var metricsServer *server.MetricsServer
	if conf.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    conf.MetricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}
	defer func() {
		if metricsServer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}()

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
