package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type nudgePayload struct {
	ID               string    `json:"id"`
	Metric           string    `json:"metric"`
	Headline         string    `json:"headline"`
	BodyText         string    `json:"body_text"`
	SuggestedActions []string  `json:"suggested_actions"`
	IsAcknowledged   bool      `json:"is_acknowledged"`
	CreatedAt        time.Time `json:"created_at"`
}

func toNudgePayload(nudge insights.Nudge) nudgePayload {
	var actions []string
	if err := json.Unmarshal([]byte(nudge.SuggestedActionsJSON), &actions); err != nil || actions == nil {
		actions = []string{}
	}
	return nudgePayload{
		ID:               nudge.ID,
		Metric:           nudge.Metric,
		Headline:         nudge.Headline,
		BodyText:         nudge.BodyText,
		SuggestedActions: actions,
		IsAcknowledged:   nudge.IsAcknowledged,
		CreatedAt:        nudge.CreatedAt,
	}
}

func (h *httpHandler) handleListNudges(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	nudges, err := h.insights.ListNudges(c.Request.Context(), userID, parseLimit(c.Query("limit"), 10))
	if err != nil {
		h.logger.Error("failed to list nudges", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payloads := make([]nudgePayload, 0, len(nudges))
	for _, nudge := range nudges {
		payloads = append(payloads, toNudgePayload(nudge))
	}
	c.JSON(http.StatusOK, gin.H{"nudges": payloads})
}

func (h *httpHandler) handleAcknowledgeNudge(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	nudgeID := c.Param("id")
	err := h.insights.Acknowledge(c.Request.Context(), userID, nudgeID)
	if errors.Is(err, insights.ErrNudgeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "nudge_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to acknowledge nudge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *httpHandler) handleGuidance(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	guidance, err := h.brain.Guidance(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to produce guidance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, guidance)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	profile, err := h.streaks.GetOrCreateProfile(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      profile.UserID,
		"streak_count": profile.StreakCount,
		"last_log_at":  profile.LastLogAt,
		"timezone":     profile.Timezone,
		"preferred_ui": profile.PreferredUI,
	})
}

type preferencesPayload struct {
	Timezone    string `json:"timezone"`
	PreferredUI string `json:"preferred_ui"`
}

func (h *httpHandler) handleUpdatePreferences(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var request preferencesPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		(request.Timezone == "" && request.PreferredUI == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.streaks.UpdatePreferences(c.Request.Context(), userID, request.Timezone, request.PreferredUI); err != nil {
		h.logger.Error("failed to update preferences", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
