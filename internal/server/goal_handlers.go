package server

import (
	"net/http"
	"strings"

	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type setGoalPayload struct {
	GoalType   string `json:"goal_type"`
	GoalValue  string `json:"goal_value"`
	TimePeriod string `json:"time_period"`
}

type goalPayload struct {
	ID         string `json:"id"`
	GoalType   string `json:"goal_type"`
	GoalValue  string `json:"goal_value"`
	TimePeriod string `json:"time_period"`
	IsActive   bool   `json:"is_active"`
}

func toGoalPayload(goal goals.Goal) goalPayload {
	return goalPayload{
		ID:         goal.ID,
		GoalType:   goal.GoalType,
		GoalValue:  goal.GoalValue,
		TimePeriod: goal.TimePeriod,
		IsActive:   goal.IsActive,
	}
}

func (h *httpHandler) handleSetGoal(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var request setGoalPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.GoalType) == "" ||
		strings.TrimSpace(request.GoalValue) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	goal, err := h.goals.SetGoal(c.Request.Context(), userID, goals.SetGoalRequest{
		GoalType:   request.GoalType,
		GoalValue:  request.GoalValue,
		TimePeriod: request.TimePeriod,
	})
	if err != nil {
		h.logger.Error("failed to set goal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toGoalPayload(goal))
}

func (h *httpHandler) handleListGoals(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	active, err := h.goals.ActiveGoals(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list goals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payloads := make([]goalPayload, 0, len(active))
	for _, goal := range active {
		payloads = append(payloads, toGoalPayload(goal))
	}
	c.JSON(http.StatusOK, gin.H{"goals": payloads})
}
