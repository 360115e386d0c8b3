package server

import (
	"errors"
	"net/http"

	"github.com/lightcore-app/lightcore/internal/integrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleFitSyncConnect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if h.integrations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fitsync_not_configured"})
		return
	}

	authURL, err := h.integrations.BeginAuth(userID)
	if err != nil {
		h.logger.Error("failed to begin fitsync auth", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

func (h *httpHandler) handleFitSyncCallback(c *gin.Context) {
	if h.integrations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fitsync_not_configured"})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID, err := h.integrations.Callback(c.Request.Context(), state, code)
	if errors.Is(err, integrations.ErrInvalidState) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_state"})
		return
	}
	if err != nil {
		h.logger.Error("fitsync callback failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("fitsync linked", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

func (h *httpHandler) handleFitSyncMetrics(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if h.integrations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fitsync_not_configured"})
		return
	}

	metrics, err := h.integrations.FetchDailyMetrics(c.Request.Context(), userID)
	if errors.Is(err, integrations.ErrNotConnected) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_connected"})
		return
	}
	if err != nil {
		h.logger.Error("fitsync metrics fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// handleDeleteAccount is the service-role path: it removes every row the user
// owns across all tables.
func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	steps := []struct {
		name string
		run  func() error
	}{
		{"journal", func() error { return h.journal.DeleteUserData(ctx, userID) }},
		{"goals", func() error { return h.goals.DeleteUserData(ctx, userID) }},
		{"insights", func() error { return h.insights.DeleteUserData(ctx, userID) }},
		{"brain", func() error { return h.brain.DeleteUserData(ctx, userID) }},
		{"streaks", func() error { return h.streaks.DeleteProfile(ctx, userID) }},
	}
	if h.integrations != nil {
		steps = append(steps, struct {
			name string
			run  func() error
		}{"integrations", func() error { return h.integrations.Disconnect(ctx, userID) }})
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			h.logger.Error("account deletion step failed",
				zap.String("user_id", userID), zap.String("step", step.name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
