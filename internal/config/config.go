package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "LIGHTCORE"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "lightcore.db"
	defaultLogLevel     = "info"
	defaultTokenTTL     = 60
	defaultGoogleJWKS   = "https://www.googleapis.com/oauth2/v3/certs"
	defaultLLMEndpoint  = "https://generativelanguage.googleapis.com/v1beta"
	defaultLLMModel     = "gemini-2.0-flash"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	SigningSecret string
	TokenTTL      time.Duration

	GoogleClientID string
	GoogleJWKSURL  string

	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string

	FitSyncClientID     string
	FitSyncClientSecret string
	FitSyncAuthURL      string
	FitSyncTokenURL     string
	FitSyncAPIBase      string
	FitSyncRedirectURL  string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKS)
	configViper.SetDefault("llm.endpoint", defaultLLMEndpoint)
	configViper.SetDefault("llm.model", defaultLLMModel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),

		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:      time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,

		GoogleClientID: configViper.GetString("google.client_id"),
		GoogleJWKSURL:  configViper.GetString("google.jwks_url"),

		LLMEndpoint: configViper.GetString("llm.endpoint"),
		LLMAPIKey:   configViper.GetString("llm.api_key"),
		LLMModel:    configViper.GetString("llm.model"),

		FitSyncClientID:     configViper.GetString("fitsync.client_id"),
		FitSyncClientSecret: configViper.GetString("fitsync.client_secret"),
		FitSyncAuthURL:      configViper.GetString("fitsync.auth_url"),
		FitSyncTokenURL:     configViper.GetString("fitsync.token_url"),
		FitSyncAPIBase:      configViper.GetString("fitsync.api_base"),
		FitSyncRedirectURL:  configViper.GetString("fitsync.redirect_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}
