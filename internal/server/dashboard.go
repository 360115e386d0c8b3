package server

import (
	"net/http"
	"sync"

	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/lightcore-app/lightcore/internal/llm"
	"github.com/lightcore-app/lightcore/internal/streaks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type dashboardPayload struct {
	Series   []journal.DailyPoint `json:"series"`
	Goals    []goalPayload        `json:"goals"`
	Nudges   []nudgePayload       `json:"nudges"`
	Streak   int                  `json:"streak"`
	Guidance llm.GuidanceReply    `json:"guidance"`
}

// handleDashboard composes the landing view. The reads have no ordering
// dependency, so they run concurrently and are awaited jointly.
func (h *httpHandler) handleDashboard(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// The sentinel runs before the nudge read so a fresh alert appears in the
	// same response; its own cooldown bounds the cost.
	if _, err := h.insights.Scan(ctx, userID); err != nil {
		h.logger.Warn("trend scan failed during dashboard load",
			zap.String("user_id", userID), zap.Error(err))
	}

	var (
		wg sync.WaitGroup

		series    []journal.DailyPoint
		seriesErr error

		activeGoals []goalPayload
		goalsErr    error

		nudges    []nudgePayload
		nudgesErr error

		profile    streaks.Profile
		profileErr error

		guidance    llm.GuidanceReply
		guidanceErr error
	)

	wg.Add(5)
	go func() {
		defer wg.Done()
		series, seriesErr = h.journal.DailySeries(ctx, userID, 30)
	}()
	go func() {
		defer wg.Done()
		found, err := h.goals.ActiveGoals(ctx, userID)
		if err != nil {
			goalsErr = err
			return
		}
		activeGoals = make([]goalPayload, 0, len(found))
		for _, goal := range found {
			activeGoals = append(activeGoals, toGoalPayload(goal))
		}
	}()
	go func() {
		defer wg.Done()
		found, err := h.insights.ListNudges(ctx, userID, 5)
		if err != nil {
			nudgesErr = err
			return
		}
		nudges = make([]nudgePayload, 0, len(found))
		for _, nudge := range found {
			nudges = append(nudges, toNudgePayload(nudge))
		}
	}()
	go func() {
		defer wg.Done()
		profile, profileErr = h.streaks.GetOrCreateProfile(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		guidance, guidanceErr = h.brain.Guidance(ctx, userID)
	}()
	wg.Wait()

	for _, err := range []error{seriesErr, goalsErr, nudgesErr, profileErr, guidanceErr} {
		if err != nil {
			h.logger.Error("dashboard read failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, dashboardPayload{
		Series:   series,
		Goals:    activeGoals,
		Nudges:   nudges,
		Streak:   profile.StreakCount,
		Guidance: guidance,
	})
}
