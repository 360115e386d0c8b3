package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lightcore-app/lightcore/internal/llm"
	"github.com/lightcore-app/lightcore/internal/scores"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingLLM        = errors.New("llm client is required")
	errMissingUserID     = errors.New("user identifier is required")
	errEmptyText         = errors.New("log text must not be empty")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew   = "journal.service.new"
	opCreateEntry  = "journal.create_entry"
	opListEntries  = "journal.list_entries"
	opDailySeries  = "journal.daily_series"
	opScoreSeries  = "journal.score_series"
	opDeleteUser   = "journal.delete_user_data"
	opListEvents   = "journal.list_events"
	analysisNotice = "Could not generate analysis for this entry."
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

// StreakRecorder advances the consecutive-day counter after a log lands.
type StreakRecorder interface {
	RecordLog(ctx context.Context, userID string) (int, error)
}

// ContextRefresher rebuilds the cached prompt context after a log lands.
type ContextRefresher interface {
	Refresh(ctx context.Context, userID string) error
}

// ServiceConfig describes the dependencies for the journal service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	LLM        llm.Client
	Streaks    StreakRecorder
	Brain      ContextRefresher
	Logger     *zap.Logger
}

// Service persists scored journal entries and their derived events.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	llmClient  llm.Client
	streaks    StreakRecorder
	brain      ContextRefresher
	logger     *zap.Logger
}

// NewService constructs the journal service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.LLM == nil {
		return nil, newServiceError(opServiceNew, "missing_llm_client", errMissingLLM)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		llmClient:  cfg.LLM,
		streaks:    cfg.Streaks,
		brain:      cfg.Brain,
		logger:     logger,
	}, nil
}

// CreateEntryRequest is the validated input for one log submission.
type CreateEntryRequest struct {
	Text         string
	SleepHours   *float64
	SleepQuality *int
}

// CreateEntryResult reports the persisted entry and the streak it produced.
type CreateEntryResult struct {
	Entry       Entry
	StreakCount int
}

const analysisPromptTemplate = `You are a health-journal analyst. Score the log below on three dimensions:
mental clarity, immune resilience, and physical readiness. Each dimension is
an object {"score": 0-10, "label": short phrase, "color_hex": "#RRGGBB"}.
Reply with JSON only, shaped as:
{"clarity": {...}, "immune": {...}, "physical": {...}, "notes": "one-paragraph observation", "tags": ["tag", ...]}

Sleep hours: %s
Sleep quality (1-10): %s

Log:
%s`

const eventPromptTemplate = `Extract timed events from the health log below. Allowed event types:
Workout, Meal, Snack, Caffeine, Sleep, Nap, Meditation.
Reply with a JSON array only: [{"event_type": "...", "event_time": "RFC3339 timestamp"}, ...]
Assume the log was written at %s. Reply [] when nothing matches.

Log:
%s`

// CreateEntry analyzes the submitted text, persists the scored entry, then
// runs the post-insert steps: event extraction, streak advance, and context
// refresh. The entry survives even when a later step fails; those steps are
// independent writes with no atomicity guarantee.
func (s *Service) CreateEntry(ctx context.Context, userID string, req CreateEntryRequest) (CreateEntryResult, error) {
	if userID == "" {
		return CreateEntryResult{}, newServiceError(opCreateEntry, "missing_user_id", errMissingUserID)
	}
	if strings.TrimSpace(req.Text) == "" {
		return CreateEntryResult{}, newServiceError(opCreateEntry, "empty_text", errEmptyText)
	}

	reply, err := s.llmClient.Generate(ctx, s.analysisPrompt(req))
	if err != nil {
		s.logger.Error("log analysis request failed", zap.String("user_id", userID), zap.Error(err))
		return CreateEntryResult{}, newServiceError(opCreateEntry, "llm_failed", err)
	}

	entry, parseErr := s.buildEntry(userID, req, reply)
	if parseErr != nil {
		// A reply we cannot parse still produces an entry; the dashboard shows
		// the placeholder notice instead of scores.
		s.logger.Warn("log analysis reply unparsable",
			zap.String("user_id", userID), zap.Error(parseErr))
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Error("entry insert failed", zap.String("user_id", userID), zap.Error(err))
		return CreateEntryResult{}, newServiceError(opCreateEntry, "insert_failed", err)
	}

	s.extractEvents(ctx, entry)

	streakCount := 0
	if s.streaks != nil {
		streakCount, err = s.streaks.RecordLog(ctx, userID)
		if err != nil {
			s.logger.Warn("streak advance failed after entry insert",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	if s.brain != nil {
		if err := s.brain.Refresh(ctx, userID); err != nil {
			s.logger.Warn("context refresh failed after entry insert",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	return CreateEntryResult{Entry: entry, StreakCount: streakCount}, nil
}

func (s *Service) analysisPrompt(req CreateEntryRequest) string {
	sleepHours := "not reported"
	if req.SleepHours != nil {
		sleepHours = fmt.Sprintf("%.1f", *req.SleepHours)
	}
	sleepQuality := "not reported"
	if req.SleepQuality != nil {
		sleepQuality = fmt.Sprintf("%d", *req.SleepQuality)
	}
	return fmt.Sprintf(analysisPromptTemplate, sleepHours, sleepQuality, req.Text)
}

func (s *Service) buildEntry(userID string, req CreateEntryRequest, reply string) (Entry, error) {
	entryID, err := s.idProvider.NewID()
	if err != nil {
		entryID = fmt.Sprintf("entry-%d", s.clock().UnixNano())
	}

	entry := Entry{
		ID:           entryID,
		UserID:       userID,
		CreatedAt:    s.clock().UTC(),
		Text:         req.Text,
		SleepHours:   req.SleepHours,
		SleepQuality: req.SleepQuality,
		TagsJSON:     "[]",
	}

	var analysis llm.AnalysisReply
	parseErr := llm.DecodeJSON(reply, &analysis)
	if parseErr == nil {
		parseErr = analysis.Validate()
	}
	if parseErr != nil {
		entry.applyReadings(scores.Normalize(nil), scores.Normalize(nil), scores.Normalize(nil))
		entry.AINotes = analysisNotice
		return entry, parseErr
	}

	entry.applyReadings(
		scores.Normalize(analysis.Clarity),
		scores.Normalize(analysis.Immune),
		scores.Normalize(analysis.Physical),
	)
	entry.AINotes = analysis.Notes
	if len(analysis.Tags) > 0 {
		if tags, err := json.Marshal(analysis.Tags); err == nil {
			entry.TagsJSON = string(tags)
		}
	}
	return entry, nil
}

func (e *Entry) applyReadings(clarity, immune, physical scores.Reading) {
	e.ClarityScore, e.ClarityLabel, e.ClarityColor = clarity.Score, clarity.Label, clarity.ColorHex
	e.ImmuneScore, e.ImmuneLabel, e.ImmuneColor = immune.Score, immune.Label, immune.ColorHex
	e.PhysicalScore, e.PhysicalLabel, e.PhysicalColor = physical.Score, physical.Label, physical.ColorHex
}

// extractEvents runs the second analysis pass. Failures are logged and
// swallowed; the entry already landed.
func (s *Service) extractEvents(ctx context.Context, entry Entry) {
	prompt := fmt.Sprintf(eventPromptTemplate, entry.CreatedAt.Format(time.RFC3339), entry.Text)
	reply, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("event extraction request failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	var extracted []llm.EventReply
	if err := llm.DecodeJSON(reply, &extracted); err != nil {
		s.logger.Warn("event extraction reply unparsable",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	for _, candidate := range extracted {
		eventType, err := ParseEventType(candidate.EventType)
		if err != nil {
			s.logger.Debug("skipping extracted event",
				zap.String("entry_id", entry.ID), zap.String("event_type", candidate.EventType))
			continue
		}
		eventTime, err := time.Parse(time.RFC3339, candidate.EventTime)
		if err != nil {
			s.logger.Debug("skipping event with bad timestamp",
				zap.String("entry_id", entry.ID), zap.String("event_time", candidate.EventTime))
			continue
		}
		eventID, err := s.idProvider.NewID()
		if err != nil {
			continue
		}
		event := Event{
			ID:        eventID,
			UserID:    entry.UserID,
			LogID:     entry.ID,
			EventType: eventType,
			EventTime: eventTime.UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
			s.logger.Warn("event insert failed",
				zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}
}

// ListEntries returns the user's entries, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if userID == "" {
		return nil, newServiceError(opListEntries, "missing_user_id", errMissingUserID)
	}
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, newServiceError(opListEntries, "query_failed", err)
	}
	return entries, nil
}

// ListEvents returns the user's extracted events, newest first.
func (s *Service) ListEvents(ctx context.Context, userID string, limit int) ([]Event, error) {
	if userID == "" {
		return nil, newServiceError(opListEvents, "missing_user_id", errMissingUserID)
	}
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("event_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []Event
	if err := query.Find(&events).Error; err != nil {
		return nil, newServiceError(opListEvents, "query_failed", err)
	}
	return events, nil
}

// DailySeries aggregates the trailing window of entries into one chart point
// per UTC calendar day.
func (s *Service) DailySeries(ctx context.Context, userID string, days int) ([]DailyPoint, error) {
	if userID == "" {
		return nil, newServiceError(opDailySeries, "missing_user_id", errMissingUserID)
	}
	if days <= 0 {
		days = 30
	}
	cutoff := s.clock().UTC().AddDate(0, 0, -days)

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, cutoff).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, newServiceError(opDailySeries, "query_failed", err)
	}

	samples := make([]Sample, 0, len(entries))
	for i := range entries {
		samples = append(samples, Sample{
			At:       entries[i].CreatedAt,
			Clarity:  &entries[i].ClarityScore,
			Immune:   &entries[i].ImmuneScore,
			Physical: &entries[i].PhysicalScore,
		})
	}
	return AggregateDaily(samples), nil
}

// MetricSeries returns the per-metric score sequences for the user's trailing
// entries, ordered oldest to newest. Keys are clarity, immune, physical.
func (s *Service) MetricSeries(ctx context.Context, userID string, limit int) (map[string][]float64, error) {
	if userID == "" {
		return nil, newServiceError(opScoreSeries, "missing_user_id", errMissingUserID)
	}
	if limit <= 0 {
		limit = 14
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, newServiceError(opScoreSeries, "query_failed", err)
	}

	series := map[string][]float64{
		"clarity":  make([]float64, 0, len(entries)),
		"immune":   make([]float64, 0, len(entries)),
		"physical": make([]float64, 0, len(entries)),
	}
	// Entries were fetched newest-first; reverse into time order.
	for i := len(entries) - 1; i >= 0; i-- {
		series["clarity"] = append(series["clarity"], entries[i].ClarityScore)
		series["immune"] = append(series["immune"], entries[i].ImmuneScore)
		series["physical"] = append(series["physical"], entries[i].PhysicalScore)
	}
	return series, nil
}

// DeleteUserData removes all entries and events for the user. Used by account
// deletion.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opDeleteUser, "missing_user_id", errMissingUserID)
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Event{}).Error; err != nil {
		return newServiceError(opDeleteUser, "events_delete_failed", err)
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Entry{}).Error; err != nil {
		return newServiceError(opDeleteUser, "entries_delete_failed", err)
	}
	return nil
}
