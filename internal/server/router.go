package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lightcore-app/lightcore/internal/auth"
	"github.com/lightcore-app/lightcore/internal/brain"
	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/lightcore-app/lightcore/internal/integrations"
	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/lightcore-app/lightcore/internal/streaks"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "lightcore_user_id"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingJournalService = errors.New("journal service dependency required")
	errMissingStreakService  = errors.New("streak service dependency required")
	errMissingGoalService    = errors.New("goal service dependency required")
	errMissingInsightService = errors.New("insight service dependency required")
	errMissingBrainService   = errors.New("brain service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// GoogleVerifier validates upstream identity tokens during sign-in.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// BackendTokenManager issues and validates LightCore bearer tokens.
type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.GoogleClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the services behind the HTTP surface.
type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   BackendTokenManager
	Journal        *journal.Service
	Streaks        *streaks.Service
	Goals          *goals.Service
	Insights       *insights.Service
	Brain          *brain.Service
	Integrations   *integrations.Service
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the LightCore API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Journal == nil {
		return nil, errMissingJournalService
	}
	if deps.Streaks == nil {
		return nil, errMissingStreakService
	}
	if deps.Goals == nil {
		return nil, errMissingGoalService
	}
	if deps.Insights == nil {
		return nil, errMissingInsightService
	}
	if deps.Brain == nil {
		return nil, errMissingBrainService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:     deps.GoogleVerifier,
		tokens:       deps.TokenManager,
		journal:      deps.Journal,
		streaks:      deps.Streaks,
		goals:        deps.Goals,
		insights:     deps.Insights,
		brain:        deps.Brain,
		integrations: deps.Integrations,
		logger:       logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)
	// The provider redirects the browser here; the state token, not a bearer
	// token, binds the callback to a user.
	router.GET("/integrations/fitsync/callback", handler.handleFitSyncCallback)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/logs", handler.handleCreateLog)
	protected.GET("/logs", handler.handleListLogs)
	protected.GET("/charts/daily", handler.handleDailyChart)
	protected.GET("/dashboard", handler.handleDashboard)
	protected.POST("/goals", handler.handleSetGoal)
	protected.GET("/goals", handler.handleListGoals)
	protected.GET("/nudges", handler.handleListNudges)
	protected.POST("/nudges/:id/ack", handler.handleAcknowledgeNudge)
	protected.GET("/guidance", handler.handleGuidance)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile/preferences", handler.handleUpdatePreferences)
	protected.GET("/integrations/fitsync/connect", handler.handleFitSyncConnect)
	protected.GET("/integrations/fitsync/metrics", handler.handleFitSyncMetrics)
	protected.DELETE("/account", handler.handleDeleteAccount)

	return router, nil
}

type httpHandler struct {
	verifier     GoogleVerifier
	tokens       BackendTokenManager
	journal      *journal.Service
	streaks      *streaks.Service
	goals        *goals.Service
	insights     *insights.Service
	brain        *brain.Service
	integrations *integrations.Service
	logger       *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) userID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
