// Package integrations links user accounts to the FitSync fitness-data
// provider over the standard OAuth2 authorization-code flow.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	errMissingConfig   = errors.New("provider client id, secret, and urls are required")
	// ErrInvalidState indicates an unknown or expired OAuth state token.
	ErrInvalidState = errors.New("integrations: invalid or expired state token")
	// ErrNotConnected indicates the user has no provider link.
	ErrNotConnected = errors.New("integrations: user has no fitsync connection")
	noOpLogger      = zap.NewNop()
)

const (
	opServiceNew   = "integrations.service.new"
	opBeginAuth    = "integrations.begin_auth"
	opCallback     = "integrations.callback"
	opFetchMetrics = "integrations.fetch_metrics"
	opDisconnect   = "integrations.disconnect"

	stateTTL          = 10 * time.Minute
	pollAttempts      = 3
	defaultPollDelay  = 2 * time.Second
	defaultHTTPExpiry = 30 * time.Second
)

// ServiceError carries a dotted operation code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error { return e.err }

// Code returns the dotted operation code.
func (e *ServiceError) Code() string { return e.code }

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ProviderConfig holds the FitSync OAuth endpoints and credentials.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIBase      string
	RedirectURL  string
}

func (c ProviderConfig) validate() error {
	if strings.TrimSpace(c.ClientID) == "" ||
		strings.TrimSpace(c.ClientSecret) == "" ||
		strings.TrimSpace(c.AuthURL) == "" ||
		strings.TrimSpace(c.TokenURL) == "" ||
		strings.TrimSpace(c.APIBase) == "" {
		return errMissingConfig
	}
	return nil
}

// ServiceConfig describes the dependencies for the FitSync integration.
type ServiceConfig struct {
	Database   *gorm.DB
	Provider   ProviderConfig
	Clock      func() time.Time
	HTTPClient *http.Client
	PollDelay  time.Duration
	Logger     *zap.Logger
}

// Service manages the OAuth state registry, token lifecycle, and the retried
// metrics poll against the provider API.
type Service struct {
	db        *gorm.DB
	provider  ProviderConfig
	clock     func() time.Time
	client    *http.Client
	pollDelay time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	states map[string]pendingState
}

type pendingState struct {
	userID    string
	createdAt time.Time
}

// NewService constructs the integration service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if err := cfg.Provider.validate(); err != nil {
		return nil, newServiceError(opServiceNew, "invalid_provider_config", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPExpiry}
	}
	pollDelay := cfg.PollDelay
	if pollDelay <= 0 {
		pollDelay = defaultPollDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:        cfg.Database,
		provider:  cfg.Provider,
		clock:     clock,
		client:    client,
		pollDelay: pollDelay,
		logger:    logger,
		states:    make(map[string]pendingState),
	}, nil
}

// BeginAuth issues a CSRF state token and returns the provider authorization
// URL the browser should be sent to.
func (s *Service) BeginAuth(userID string) (string, error) {
	if userID == "" {
		return "", newServiceError(opBeginAuth, "missing_user_id", errMissingUserID)
	}

	state := uuid.NewString()
	now := s.clock()

	s.mu.Lock()
	for token, pending := range s.states {
		if now.Sub(pending.createdAt) > stateTTL {
			delete(s.states, token)
		}
	}
	s.states[state] = pendingState{userID: userID, createdAt: now}
	s.mu.Unlock()

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", s.provider.ClientID)
	query.Set("redirect_uri", s.provider.RedirectURL)
	query.Set("scope", "activity sleep heartrate")
	query.Set("state", state)
	return s.provider.AuthURL + "?" + query.Encode(), nil
}

// consumeState validates and burns a state token, returning its user.
func (s *Service) consumeState(state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.states[state]
	if !ok {
		return "", ErrInvalidState
	}
	delete(s.states, state)
	if s.clock().Sub(pending.createdAt) > stateTTL {
		return "", ErrInvalidState
	}
	return pending.userID, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Callback completes the authorization-code flow: the state is validated and
// burned, the code exchanged, and the resulting tokens persisted.
func (s *Service) Callback(ctx context.Context, state, code string) (string, error) {
	userID, err := s.consumeState(state)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		return "", newServiceError(opCallback, "missing_code", errors.New("authorization code is required"))
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.provider.RedirectURL)
	token, err := s.requestToken(ctx, form)
	if err != nil {
		return "", newServiceError(opCallback, "exchange_failed", err)
	}

	connection := Connection{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    tokenTypeOrBearer(token.TokenType),
		ExpiresAt:    s.clock().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_type", "expires_at", "updated_at",
		}),
	}).Create(&connection).Error; err != nil {
		return "", newServiceError(opCallback, "persist_failed", err)
	}
	return userID, nil
}

func tokenTypeOrBearer(tokenType string) string {
	if strings.TrimSpace(tokenType) == "" {
		return "Bearer"
	}
	return tokenType
}

func (s *Service) requestToken(ctx context.Context, form url.Values) (tokenResponse, error) {
	form.Set("client_id", s.provider.ClientID)
	form.Set("client_secret", s.provider.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return tokenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return tokenResponse{}, fmt.Errorf("token endpoint returned status %d: %s",
			resp.StatusCode, string(payload))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return tokenResponse{}, err
	}
	if token.AccessToken == "" {
		return tokenResponse{}, errors.New("token endpoint returned no access token")
	}
	return token, nil
}

// connection loads the user's link, refreshing the access token when expired.
func (s *Service) connection(ctx context.Context, userID string) (Connection, error) {
	var link Connection
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Connection{}, ErrNotConnected
	}
	if err != nil {
		return Connection{}, err
	}

	if s.clock().UTC().Before(link.ExpiresAt) {
		return link, nil
	}
	if link.RefreshToken == "" {
		return Connection{}, ErrNotConnected
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", link.RefreshToken)
	token, err := s.requestToken(ctx, form)
	if err != nil {
		return Connection{}, fmt.Errorf("token refresh failed: %w", err)
	}

	link.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		link.RefreshToken = token.RefreshToken
	}
	link.TokenType = tokenTypeOrBearer(token.TokenType)
	link.ExpiresAt = s.clock().UTC().Add(time.Duration(token.ExpiresIn) * time.Second)
	if err := s.db.WithContext(ctx).Save(&link).Error; err != nil {
		return Connection{}, err
	}
	return link, nil
}

// Connected reports whether the user has a provider link.
func (s *Service) Connected(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, newServiceError(opFetchMetrics, "missing_user_id", errMissingUserID)
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Connection{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FetchDailyMetrics polls the provider's daily summary endpoint. The request
// is retried up to three times with a fixed delay, but only on 502/503/504 or
// transport failure; other statuses fail immediately.
func (s *Service) FetchDailyMetrics(ctx context.Context, userID string) (DailyMetrics, error) {
	if userID == "" {
		return DailyMetrics{}, newServiceError(opFetchMetrics, "missing_user_id", errMissingUserID)
	}

	link, err := s.connection(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return DailyMetrics{}, err
		}
		return DailyMetrics{}, newServiceError(opFetchMetrics, "connection_failed", err)
	}

	endpoint := strings.TrimRight(s.provider.APIBase, "/") + "/v1/daily-summary"
	var lastErr error
	for attempt := 1; attempt <= pollAttempts; attempt++ {
		metrics, retryable, err := s.pollOnce(ctx, endpoint, link)
		if err == nil {
			return metrics, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		s.logger.Warn("fitsync poll failed",
			zap.String("user_id", userID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < pollAttempts {
			select {
			case <-time.After(s.pollDelay):
			case <-ctx.Done():
				return DailyMetrics{}, ctx.Err()
			}
		}
	}
	return DailyMetrics{}, newServiceError(opFetchMetrics, "poll_failed", lastErr)
}

func (s *Service) pollOnce(ctx context.Context, endpoint string, link Connection) (DailyMetrics, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DailyMetrics{}, false, err
	}
	req.Header.Set("Authorization", link.TokenType+" "+link.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return DailyMetrics{}, true, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return DailyMetrics{}, true, fmt.Errorf("provider returned status %d", resp.StatusCode)
	default:
		payload, _ := io.ReadAll(resp.Body)
		return DailyMetrics{}, false, fmt.Errorf("provider returned status %d: %s",
			resp.StatusCode, string(payload))
	}

	var metrics DailyMetrics
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		return DailyMetrics{}, false, fmt.Errorf("decode daily summary: %w", err)
	}
	return metrics, false, nil
}

// Disconnect removes the user's provider link. Used by account deletion too.
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opDisconnect, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Connection{}).Error
}
