package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightcore-app/lightcore/internal/auth"
	"github.com/lightcore-app/lightcore/internal/brain"
	"github.com/lightcore-app/lightcore/internal/config"
	"github.com/lightcore-app/lightcore/internal/database"
	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/lightcore-app/lightcore/internal/integrations"
	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/lightcore-app/lightcore/internal/llm"
	"github.com/lightcore-app/lightcore/internal/logging"
	"github.com/lightcore-app/lightcore/internal/server"
	"github.com/lightcore-app/lightcore/internal/streaks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "lightcore-api",
		Short: "LightCore health-journal backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("llm-endpoint", defaults.GetString("llm.endpoint"), "LLM API endpoint")
	cmd.PersistentFlags().String("llm-model", defaults.GetString("llm.model"), "LLM model name")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "llm.endpoint", "llm-endpoint")
	bindFlag(cmd, "llm.model", "llm-model")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "lightcore-auth",
		Audience:      "lightcore-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience: appConfig.GoogleClientID,
		JWKSURL:  appConfig.GoogleJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	llmClient, err := llm.NewGeminiClient(llm.GeminiConfig{
		Endpoint: appConfig.LLMEndpoint,
		APIKey:   appConfig.LLMAPIKey,
		Model:    appConfig.LLMModel,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	streakService, err := streaks.NewService(streaks.ServiceConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	brainService, err := brain.NewService(brain.ServiceConfig{
		Database: db,
		LLM:      llmClient,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	idProvider := journal.NewUUIDProvider()

	journalService, err := journal.NewService(journal.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		LLM:        llmClient,
		Streaks:    streakService,
		Brain:      brainService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	goalService, err := goals.NewService(goals.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	insightService, err := insights.NewService(insights.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		LLM:        llmClient,
		Series:     journalService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var integrationService *integrations.Service
	if appConfig.FitSyncClientID != "" {
		integrationService, err = integrations.NewService(integrations.ServiceConfig{
			Database: db,
			Provider: integrations.ProviderConfig{
				ClientID:     appConfig.FitSyncClientID,
				ClientSecret: appConfig.FitSyncClientSecret,
				AuthURL:      appConfig.FitSyncAuthURL,
				TokenURL:     appConfig.FitSyncTokenURL,
				APIBase:      appConfig.FitSyncAPIBase,
				RedirectURL:  appConfig.FitSyncRedirectURL,
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		TokenManager:   tokenManager,
		Journal:        journalService,
		Streaks:        streakService,
		Goals:          goalService,
		Insights:       insightService,
		Brain:          brainService,
		Integrations:   integrationService,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
