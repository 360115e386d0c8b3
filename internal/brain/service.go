package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/lightcore-app/lightcore/internal/journal"
	"github.com/lightcore-app/lightcore/internal/llm"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingLLM      = errors.New("llm client is required")
	errMissingUserID   = errors.New("user identifier is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew = "brain.service.new"
	opRefresh    = "brain.refresh"
	opGuidance   = "brain.guidance"
	opDeleteUser = "brain.delete_user_data"
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

// ServiceConfig describes the dependencies for the context cache and guidance.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	LLM      llm.Client
	Logger   *zap.Logger
}

// Service maintains the per-user prompt-context cache and produces guidance.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	llmClient llm.Client
	logger    *zap.Logger
}

// NewService constructs the brain service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
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
	return &Service{db: cfg.Database, clock: clock, llmClient: cfg.LLM, logger: logger}, nil
}

type cachedLog struct {
	Date     string   `json:"date"`
	Clarity  float64  `json:"clarity"`
	Immune   float64  `json:"immune"`
	Physical float64  `json:"physical"`
	Notes    string   `json:"notes"`
	Tags     []string `json:"tags,omitempty"`
}

// Refresh recomputes the user's cached context from the journal and rewrites
// the row wholesale.
func (s *Service) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opRefresh, "missing_user_id", errMissingUserID)
	}

	entries, err := s.recentEntries(ctx, userID)
	if err != nil {
		return newServiceError(opRefresh, "entries_query_failed", err)
	}

	cached := make([]cachedLog, 0, len(entries))
	for _, entry := range entries {
		var tags []string
		_ = json.Unmarshal([]byte(entry.TagsJSON), &tags)
		cached = append(cached, cachedLog{
			Date:     entry.CreatedAt.UTC().Format("2006-01-02"),
			Clarity:  entry.ClarityScore,
			Immune:   entry.ImmuneScore,
			Physical: entry.PhysicalScore,
			Notes:    entry.AINotes,
			Tags:     tags,
		})
	}
	recentJSON, err := json.Marshal(cached)
	if err != nil {
		return newServiceError(opRefresh, "marshal_failed", err)
	}

	latestEntryID := ""
	if len(entries) > 0 {
		latestEntryID = entries[0].ID
	}

	row := Context{
		UserID:         userID,
		RecentLogsJSON: string(recentJSON),
		UserSummary:    summarize(entries),
		PersonaMemo:    personaMemo(entries),
		LatestEntryID:  latestEntryID,
		UpdatedAt:      s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"recent_logs_json", "user_summary", "persona_memo", "latest_entry_id", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return newServiceError(opRefresh, "upsert_failed", err)
	}
	return nil
}

// summarize derives a compact profile line without a model round trip.
func summarize(entries []journal.Entry) string {
	if len(entries) == 0 {
		return "No logs recorded yet."
	}
	var clarity, immune, physical float64
	for _, entry := range entries {
		clarity += entry.ClarityScore
		immune += entry.ImmuneScore
		physical += entry.PhysicalScore
	}
	n := float64(len(entries))
	return fmt.Sprintf("%d recent logs; average clarity %.1f, immune %.1f, physical %.1f.",
		len(entries), clarity/n, immune/n, physical/n)
}

// personaMemo distills the recurring tags across recent entries into a short
// theme line for the guidance prompt. Empty when no tags repeat.
func personaMemo(entries []journal.Entry) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, entry := range entries {
		var tags []string
		if err := json.Unmarshal([]byte(entry.TagsJSON), &tags); err != nil {
			continue
		}
		for _, tag := range tags {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	themes := make([]string, 0, 3)
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	for _, tag := range order {
		if counts[tag] < 2 {
			continue
		}
		themes = append(themes, tag)
		if len(themes) == 3 {
			break
		}
	}
	if len(themes) == 0 {
		return ""
	}
	return "Often logs about: " + strings.Join(themes, ", ") + "."
}

const guidancePromptTemplate = `You are a measured personal health coach. Using the context below, give the
user practical guidance for today. Reply with JSON only:
{"guidance": "2-4 sentences", "focus": "one short focus area", "summary": "one-line recap of their recent state"}

USER SUMMARY: %s
PERSONA: %s

%s`

// FallbackGuidance is returned when the model call or its parsing fails.
var FallbackGuidance = llm.GuidanceReply{
	Guidance: "Guidance is unavailable right now. Keep logging daily and check back soon.",
	Focus:    "consistency",
	Summary:  "Could not generate guidance for this request.",
}

// Guidance returns AI guidance for the user. The cache is recomputed first
// when its latest-entry marker no longer matches the journal. Model failures
// degrade to FallbackGuidance rather than an error.
func (s *Service) Guidance(ctx context.Context, userID string) (llm.GuidanceReply, error) {
	if userID == "" {
		return llm.GuidanceReply{}, newServiceError(opGuidance, "missing_user_id", errMissingUserID)
	}

	row, err := s.freshContext(ctx, userID)
	if err != nil {
		return llm.GuidanceReply{}, err
	}

	prompt, err := s.buildGuidancePrompt(ctx, userID, row)
	if err != nil {
		return llm.GuidanceReply{}, err
	}

	reply, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("guidance request failed", zap.String("user_id", userID), zap.Error(err))
		return FallbackGuidance, nil
	}

	var guidance llm.GuidanceReply
	if err := llm.DecodeJSON(reply, &guidance); err == nil {
		err = guidance.Validate()
	} else {
		s.logger.Warn("guidance reply unparsable", zap.String("user_id", userID), zap.Error(err))
		return FallbackGuidance, nil
	}
	return guidance, nil
}

// freshContext loads the cache row, recomputing it when stale or absent.
func (s *Service) freshContext(ctx context.Context, userID string) (Context, error) {
	var newest journal.Entry
	newestID := ""
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&newest).Error
	if err == nil {
		newestID = newest.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Context{}, newServiceError(opGuidance, "entries_query_failed", err)
	}

	var row Context
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	stale := errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && row.LatestEntryID != newestID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Context{}, newServiceError(opGuidance, "context_query_failed", err)
	}

	if stale {
		if err := s.Refresh(ctx, userID); err != nil {
			return Context{}, err
		}
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
			return Context{}, newServiceError(opGuidance, "context_reload_failed", err)
		}
	}
	return row, nil
}

func (s *Service) buildGuidancePrompt(ctx context.Context, userID string, row Context) (string, error) {
	entries, err := s.recentEntries(ctx, userID)
	if err != nil {
		return "", newServiceError(opGuidance, "entries_query_failed", err)
	}

	var activeGoals []goals.Goal
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Limit(maxPromptGoals).
		Find(&activeGoals).Error; err != nil {
		return "", newServiceError(opGuidance, "goals_query_failed", err)
	}

	var recentNudges []insights.Nudge
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(maxPromptNudges).
		Find(&recentNudges).Error; err != nil {
		return "", newServiceError(opGuidance, "nudges_query_failed", err)
	}

	var recentEvents []journal.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("event_time DESC").
		Limit(maxPromptEvents).
		Find(&recentEvents).Error; err != nil {
		return "", newServiceError(opGuidance, "events_query_failed", err)
	}

	block := PromptContext{
		Entries: entries,
		Goals:   activeGoals,
		Nudges:  recentNudges,
		Events:  recentEvents,
	}.Format()
	memo := row.PersonaMemo
	if memo == "" {
		memo = "No recurring themes yet."
	}
	return fmt.Sprintf(guidancePromptTemplate, row.UserSummary, memo, block), nil
}

func (s *Service) recentEntries(ctx context.Context, userID string) ([]journal.Entry, error) {
	var entries []journal.Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(maxPromptLogs).
		Find(&entries).Error
	return entries, err
}

// DeleteUserData removes the user's cache row. Used by account deletion.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opDeleteUser, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Context{}).Error
}
