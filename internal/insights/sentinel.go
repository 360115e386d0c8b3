package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lightcore-app/lightcore/internal/llm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingLLM        = errors.New("llm client is required")
	errMissingSeries     = errors.New("metric series source is required")
	errMissingUserID     = errors.New("user identifier is required")
	// ErrNudgeNotFound indicates the acknowledged nudge does not belong to the user.
	ErrNudgeNotFound = errors.New("insights: nudge not found")
	noOpLogger       = zap.NewNop()
)

const (
	opServiceNew  = "insights.service.new"
	opScan        = "insights.scan"
	opListNudges  = "insights.list_nudges"
	opAcknowledge = "insights.acknowledge"
	opDeleteUser  = "insights.delete_user_data"

	nudgeCooldown   = 24 * time.Hour
	trendWindowSize = 14
)

// metricOrder fixes the evaluation order; the first alerting metric wins and
// evaluation stops.
var metricOrder = []string{"clarity", "immune", "physical"}

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

// IDProvider issues identifiers for newly persisted rows.
type IDProvider interface {
	NewID() (string, error)
}

// MetricSeriesSource supplies the ordered per-metric score sequences the
// sentinel evaluates.
type MetricSeriesSource interface {
	MetricSeries(ctx context.Context, userID string, limit int) (map[string][]float64, error)
}

// ServiceConfig describes the dependencies for trend detection.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	LLM        llm.Client
	Series     MetricSeriesSource
	Logger     *zap.Logger
}

// Service runs the trend sentinel and manages nudges.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	llmClient  llm.Client
	series     MetricSeriesSource
	logger     *zap.Logger
}

// NewService constructs the insights service.
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
	if cfg.Series == nil {
		return nil, newServiceError(opServiceNew, "missing_series_source", errMissingSeries)
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
		series:     cfg.Series,
		logger:     logger,
	}, nil
}

const nudgePromptTemplate = `A user's %s score has been steadily declining over their recent health logs
(least-squares slope %.2f across %d entries). Write a short, supportive nudge.
Reply with JSON only:
{"headline": "...", "body": "2-3 sentences", "suggested_actions": ["...", "..."]}`

// Scan evaluates the user's recent score sequences and creates at most one
// nudge. The 24-hour cooldown is per user, not per metric; when several
// metrics alert at once only the first in the fixed order produces a nudge.
// LLM failures are swallowed: no nudge, no error.
func (s *Service) Scan(ctx context.Context, userID string) (*Nudge, error) {
	if userID == "" {
		return nil, newServiceError(opScan, "missing_user_id", errMissingUserID)
	}

	now := s.clock().UTC()
	var recent int64
	if err := s.db.WithContext(ctx).Model(&Nudge{}).
		Where("user_id = ? AND created_at > ?", userID, now.Add(-nudgeCooldown)).
		Count(&recent).Error; err != nil {
		return nil, newServiceError(opScan, "cooldown_query_failed", err)
	}
	if recent > 0 {
		return nil, nil
	}

	series, err := s.series.MetricSeries(ctx, userID, trendWindowSize)
	if err != nil {
		return nil, newServiceError(opScan, "series_query_failed", err)
	}

	for _, metric := range metricOrder {
		values := series[metric]
		if !Alerting(values) {
			continue
		}
		nudge := s.phraseAndPersist(ctx, userID, metric, values, now)
		return nudge, nil
	}
	return nil, nil
}

func (s *Service) phraseAndPersist(ctx context.Context, userID, metric string, values []float64, now time.Time) *Nudge {
	prompt := fmt.Sprintf(nudgePromptTemplate, metric, Slope(values), len(values))
	reply, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("nudge phrasing request failed",
			zap.String("user_id", userID), zap.String("metric", metric), zap.Error(err))
		return nil
	}

	var phrased llm.NudgeReply
	if err := llm.DecodeJSON(reply, &phrased); err == nil {
		err = phrased.Validate()
	} else {
		s.logger.Warn("nudge phrasing reply unparsable",
			zap.String("user_id", userID), zap.String("metric", metric), zap.Error(err))
		return nil
	}

	nudgeID, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Warn("nudge id generation failed", zap.Error(err))
		return nil
	}

	actionsJSON := "[]"
	if len(phrased.SuggestedActions) > 0 {
		if encoded, err := json.Marshal(phrased.SuggestedActions); err == nil {
			actionsJSON = string(encoded)
		}
	}

	nudge := Nudge{
		ID:                   nudgeID,
		UserID:               userID,
		Metric:               metric,
		Headline:             phrased.Headline,
		BodyText:             phrased.Body,
		SuggestedActionsJSON: actionsJSON,
		CreatedAt:            now,
	}
	if err := s.db.WithContext(ctx).Create(&nudge).Error; err != nil {
		s.logger.Error("nudge insert failed",
			zap.String("user_id", userID), zap.String("metric", metric), zap.Error(err))
		return nil
	}
	return &nudge
}

// ListNudges returns the user's nudges, newest first.
func (s *Service) ListNudges(ctx context.Context, userID string, limit int) ([]Nudge, error) {
	if userID == "" {
		return nil, newServiceError(opListNudges, "missing_user_id", errMissingUserID)
	}
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var results []Nudge
	if err := query.Find(&results).Error; err != nil {
		return nil, newServiceError(opListNudges, "query_failed", err)
	}
	return results, nil
}

// Acknowledge marks the user's nudge as seen.
func (s *Service) Acknowledge(ctx context.Context, userID, nudgeID string) error {
	if userID == "" {
		return newServiceError(opAcknowledge, "missing_user_id", errMissingUserID)
	}
	result := s.db.WithContext(ctx).Model(&Nudge{}).
		Where("id = ? AND user_id = ?", nudgeID, userID).
		Update("is_acknowledged", true)
	if result.Error != nil {
		return newServiceError(opAcknowledge, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNudgeNotFound
	}
	return nil
}

// DeleteUserData removes all nudges for the user. Used by account deletion.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opDeleteUser, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Nudge{}).Error
}
