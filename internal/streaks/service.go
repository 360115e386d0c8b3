package streaks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingUserID   = errors.New("user identifier is required")
	noOpLogger         = zap.NewNop()
)

const (
	opServiceNew        = "streaks.service.new"
	opGetProfile        = "streaks.get_profile"
	opRecordLog         = "streaks.record_log"
	opUpdatePreferences = "streaks.update_preferences"
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

// ServiceConfig describes the dependencies for streak bookkeeping.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the per-user profile row and the streak state machine.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the streak service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// GetOrCreateProfile returns the user's profile, creating the default row on
// first contact.
func (s *Service) GetOrCreateProfile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, newServiceError(opGetProfile, "missing_user_id", errMissingUserID)
	}

	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = Profile{UserID: userID, Timezone: "UTC", PreferredUI: "dashboard"}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			s.logger.Error("profile create failed", zap.String("user_id", userID), zap.Error(err))
			return Profile{}, newServiceError(opGetProfile, "create_failed", err)
		}
		return profile, nil
	}
	if err != nil {
		return Profile{}, newServiceError(opGetProfile, "query_failed", err)
	}
	return profile, nil
}

// RecordLog advances the streak for a log submitted now and persists the new
// counter together with the full UTC instant of the submission.
func (s *Service) RecordLog(ctx context.Context, userID string) (int, error) {
	profile, err := s.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return 0, err
	}

	loc, locErr := time.LoadLocation(profile.Timezone)
	if locErr != nil {
		s.logger.Warn("unknown profile timezone, falling back to UTC",
			zap.String("user_id", userID), zap.String("timezone", profile.Timezone))
		loc = time.UTC
	}

	now := s.clock().UTC()
	next := Advance(profile.LastLogAt, profile.StreakCount, now, loc)

	updates := map[string]interface{}{
		"streak_count": next,
		"last_log_at":  now,
	}
	if err := s.db.WithContext(ctx).Model(&Profile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		s.logger.Error("streak update failed", zap.String("user_id", userID), zap.Error(err))
		return 0, newServiceError(opRecordLog, "update_failed", err)
	}
	return next, nil
}

// UpdatePreferences stores the user's timezone and preferred UI. Empty fields
// are left untouched.
func (s *Service) UpdatePreferences(ctx context.Context, userID, timezone, preferredUI string) error {
	if userID == "" {
		return newServiceError(opUpdatePreferences, "missing_user_id", errMissingUserID)
	}
	if _, err := s.GetOrCreateProfile(ctx, userID); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return newServiceError(opUpdatePreferences, "invalid_timezone", err)
		}
		updates["timezone"] = timezone
	}
	if preferredUI != "" {
		updates["preferred_ui"] = preferredUI
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&Profile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		return newServiceError(opUpdatePreferences, "update_failed", err)
	}
	return nil
}

// DeleteProfile removes the user's profile row. Used by account deletion.
func (s *Service) DeleteProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return newServiceError(opGetProfile, "missing_user_id", errMissingUserID)
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Profile{}).Error
}
