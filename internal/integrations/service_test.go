package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Connection{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

func testProvider(tokenURL, apiBase string) ProviderConfig {
	return ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://fitsync.example/oauth/authorize",
		TokenURL:     tokenURL,
		APIBase:      apiBase,
		RedirectURL:  "https://api.lightcore.example/integrations/fitsync/callback",
	}
}

func newTestService(t *testing.T, provider ProviderConfig, clock func() time.Time) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:  openTestDB(t),
		Provider:  provider,
		Clock:     clock,
		PollDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return service
}

func tokenHandler(t *testing.T, accessToken string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse token form: %v", err)
		}
		if r.PostFormValue("client_id") != "client-id" {
			t.Fatalf("missing client credentials in token request")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}
}

func TestBeginAuthEmbedsStateAndClientID(t *testing.T) {
	service := newTestService(t, testProvider("https://fitsync.example/oauth/token", "https://api.fitsync.example"), nil)

	authURL, err := service.BeginAuth("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("auth url did not parse: %v", err)
	}
	query := parsed.Query()
	if query.Get("client_id") != "client-id" {
		t.Fatalf("expected client id in auth url, got %s", authURL)
	}
	if query.Get("response_type") != "code" {
		t.Fatalf("expected authorization-code flow, got %s", authURL)
	}
	if query.Get("state") == "" {
		t.Fatalf("expected state token in auth url, got %s", authURL)
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	service := newTestService(t, testProvider("https://fitsync.example/oauth/token", "https://api.fitsync.example"), nil)

	_, err := service.Callback(context.Background(), "never-issued", "code-1")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCallbackRejectsExpiredState(t *testing.T) {
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	service := newTestService(t,
		testProvider("https://fitsync.example/oauth/token", "https://api.fitsync.example"),
		func() time.Time { return current })

	authURL, err := service.BeginAuth("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := stateFromAuthURL(t, authURL)

	current = current.Add(11 * time.Minute)
	_, err = service.Callback(context.Background(), state, "code-1")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected expired state to be rejected, got %v", err)
	}
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()
	service := newTestService(t, testProvider(tokenServer.URL, "https://api.fitsync.example"), nil)

	authURL, err := service.BeginAuth("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := stateFromAuthURL(t, authURL)

	userID, err := service.Callback(context.Background(), state, "code-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected state bound to user-1, got %s", userID)
	}

	if _, err := service.Callback(context.Background(), state, "code-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected burned state to be rejected, got %v", err)
	}
}

func TestCallbackPersistsConnection(t *testing.T) {
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()
	service := newTestService(t, testProvider(tokenServer.URL, "https://api.fitsync.example"), nil)

	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	connected, err := service.Connected(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !connected {
		t.Fatalf("expected connection after callback")
	}
}

func TestFetchDailyMetricsReturnsSummary(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/daily-summary" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Fatalf("expected bearer authorization, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DailyMetrics{
			Date: "2026-06-01", Steps: 8421, RestingHR: 58, SleepMinutes: 432, ActiveKcal: 512,
		})
	}))
	defer apiServer.Close()
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()

	service := newTestService(t, testProvider(tokenServer.URL, apiServer.URL), nil)
	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	metrics, err := service.FetchDailyMetrics(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.Steps != 8421 || metrics.SleepMinutes != 432 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestFetchDailyMetricsRetriesOnGatewayErrors(t *testing.T) {
	attempts := 0
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DailyMetrics{Date: "2026-06-01", Steps: 100})
	}))
	defer apiServer.Close()
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()

	service := newTestService(t, testProvider(tokenServer.URL, apiServer.URL), nil)
	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	metrics, err := service.FetchDailyMetrics(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected retries to succeed: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected three attempts, got %d", attempts)
	}
	if metrics.Steps != 100 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestFetchDailyMetricsDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer apiServer.Close()
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()

	service := newTestService(t, testProvider(tokenServer.URL, apiServer.URL), nil)
	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.FetchDailyMetrics(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected 401 to fail the fetch")
	}
	if attempts != 1 {
		t.Fatalf("expected no retries on client error, got %d attempts", attempts)
	}
}

func TestFetchDailyMetricsRequiresConnection(t *testing.T) {
	service := newTestService(t, testProvider("https://fitsync.example/oauth/token", "https://api.fitsync.example"), nil)

	_, err := service.FetchDailyMetrics(context.Background(), "user-1")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	current := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tokenCalls := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		_ = r.ParseForm()
		access := "access-1"
		if r.PostFormValue("grant_type") == "refresh_token" {
			if r.PostFormValue("refresh_token") != "refresh-1" {
				t.Fatalf("expected stored refresh token, got %q", r.PostFormValue("refresh_token"))
			}
			access = "access-2"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenServer.Close()

	var seenAccess string
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccess = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DailyMetrics{Date: "2026-06-02", Steps: 1})
	}))
	defer apiServer.Close()

	service := newTestService(t, testProvider(tokenServer.URL, apiServer.URL),
		func() time.Time { return current })
	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, err := service.FetchDailyMetrics(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokenCalls != 2 {
		t.Fatalf("expected exchange plus refresh, got %d token calls", tokenCalls)
	}
	if seenAccess != "Bearer access-2" {
		t.Fatalf("expected refreshed token on the API call, got %q", seenAccess)
	}
}

func TestDisconnectRemovesConnection(t *testing.T) {
	tokenServer := httptest.NewServer(tokenHandler(t, "access-1"))
	defer tokenServer.Close()
	service := newTestService(t, testProvider(tokenServer.URL, "https://api.fitsync.example"), nil)

	authURL, _ := service.BeginAuth("user-1")
	if _, err := service.Callback(context.Background(), stateFromAuthURL(t, authURL), "code-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := service.Disconnect(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	connected, err := service.Connected(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if connected {
		t.Fatalf("expected connection removed")
	}
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("auth url did not parse: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatalf("auth url missing state: %s", authURL)
	}
	return state
}
