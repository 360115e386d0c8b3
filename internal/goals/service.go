package goals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingGoalType   = errors.New("goal type is required")
	errMissingGoalValue  = errors.New("goal value is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew  = "goals.service.new"
	opSetGoal     = "goals.set_goal"
	opActiveGoals = "goals.active_goals"
	opDeleteUser  = "goals.delete_user_data"
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

// IDProvider issues identifiers for newly persisted rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for goal management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns per-user goals and the single-active-goal invariant.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the goal service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// SetGoalRequest is the validated input for activating a goal.
type SetGoalRequest struct {
	GoalType   string
	GoalValue  string
	TimePeriod string
}

// SetGoal deactivates any prior goal of the same type and activates the new
// one inside a single transaction, so the invariant holds even across
// concurrent calls.
func (s *Service) SetGoal(ctx context.Context, userID string, req SetGoalRequest) (Goal, error) {
	if userID == "" {
		return Goal{}, newServiceError(opSetGoal, "missing_user_id", errMissingUserID)
	}
	goalType := strings.TrimSpace(req.GoalType)
	if goalType == "" {
		return Goal{}, newServiceError(opSetGoal, "missing_goal_type", errMissingGoalType)
	}
	goalValue := strings.TrimSpace(req.GoalValue)
	if goalValue == "" {
		return Goal{}, newServiceError(opSetGoal, "missing_goal_value", errMissingGoalValue)
	}
	timePeriod := strings.TrimSpace(req.TimePeriod)
	if timePeriod == "" {
		timePeriod = "daily"
	}

	goalID, err := s.idProvider.NewID()
	if err != nil {
		return Goal{}, newServiceError(opSetGoal, "id_generation_failed", err)
	}

	goal := Goal{
		ID:         goalID,
		UserID:     userID,
		GoalType:   goalType,
		GoalValue:  goalValue,
		TimePeriod: timePeriod,
		IsActive:   true,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Goal{}).
			Where("user_id = ? AND goal_type = ? AND is_active = ?", userID, goalType, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(&goal).Error
	})
	if txErr != nil {
		s.logger.Error("goal activation failed",
			zap.String("user_id", userID), zap.String("goal_type", goalType), zap.Error(txErr))
		return Goal{}, newServiceError(opSetGoal, "transaction_failed", txErr)
	}
	return goal, nil
}

// ActiveGoals lists the user's currently active goals, newest first.
func (s *Service) ActiveGoals(ctx context.Context, userID string) ([]Goal, error) {
	if userID == "" {
		return nil, newServiceError(opActiveGoals, "missing_user_id", errMissingUserID)
	}
	var results []Goal
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, newServiceError(opActiveGoals, "query_failed", err)
	}
	return results, nil
}

// DeleteUserData removes all goals for the user. Used by account deletion.
func (s *Service) DeleteUserData(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opDeleteUser, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Goal{}).Error
}
