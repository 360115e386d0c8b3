package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createLogPayload struct {
	Text         string   `json:"text"`
	SleepHours   *float64 `json:"sleep_hours"`
	SleepQuality *int     `json:"sleep_quality"`
}

type entryPayload struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Text         string        `json:"text"`
	SleepHours   *float64      `json:"sleep_hours,omitempty"`
	SleepQuality *int          `json:"sleep_quality,omitempty"`
	Clarity      scorePayload  `json:"clarity"`
	Immune       scorePayload  `json:"immune"`
	Physical     scorePayload  `json:"physical"`
	AINotes      string        `json:"ai_notes"`
	Tags         []string      `json:"tags"`
	StreakCount  *int          `json:"streak_count,omitempty"`
}

type scorePayload struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	ColorHex string  `json:"color_hex"`
}

func toEntryPayload(entry journal.Entry) entryPayload {
	var tags []string
	if err := json.Unmarshal([]byte(entry.TagsJSON), &tags); err != nil || tags == nil {
		tags = []string{}
	}
	return entryPayload{
		ID:           entry.ID,
		CreatedAt:    entry.CreatedAt,
		Text:         entry.Text,
		SleepHours:   entry.SleepHours,
		SleepQuality: entry.SleepQuality,
		Clarity:      scorePayload{entry.ClarityScore, entry.ClarityLabel, entry.ClarityColor},
		Immune:       scorePayload{entry.ImmuneScore, entry.ImmuneLabel, entry.ImmuneColor},
		Physical:     scorePayload{entry.PhysicalScore, entry.PhysicalLabel, entry.PhysicalColor},
		AINotes:      entry.AINotes,
		Tags:         tags,
	}
}

func (h *httpHandler) handleCreateLog(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var request createLogPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.journal.CreateEntry(c.Request.Context(), userID, journal.CreateEntryRequest{
		Text:         request.Text,
		SleepHours:   request.SleepHours,
		SleepQuality: request.SleepQuality,
	})
	if err != nil {
		h.logger.Error("failed to create log entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Trend check rides on the submit path; its cooldown keeps it cheap and
	// its failures never block the response.
	if _, err := h.insights.Scan(c.Request.Context(), userID); err != nil {
		h.logger.Warn("trend scan failed after log creation",
			zap.String("user_id", userID), zap.Error(err))
	}

	payload := toEntryPayload(result.Entry)
	payload.StreakCount = &result.StreakCount
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleListLogs(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	limit := parseLimit(c.Query("limit"), 30)
	entries, err := h.journal.ListEntries(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list log entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payloads := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, toEntryPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": payloads})
}

func (h *httpHandler) handleDailyChart(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	days := parseLimit(c.Query("days"), 30)
	points, err := h.journal.DailySeries(c.Request.Context(), userID, days)
	if err != nil {
		h.logger.Error("failed to aggregate daily series", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
