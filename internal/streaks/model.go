package streaks

import "time"

// Profile is the per-user row carrying streak state and UI preferences.
// There is exactly one profile per user; it is created lazily on first access.
type Profile struct {
	UserID      string     `gorm:"column:user_id;primaryKey;size:190;not null"`
	StreakCount int        `gorm:"column:streak_count;not null;default:0"`
	LastLogAt   *time.Time `gorm:"column:last_log_at"`
	Timezone    string     `gorm:"column:timezone;size:64;not null;default:'UTC'"`
	PreferredUI string     `gorm:"column:preferred_ui;size:32;not null;default:'dashboard'"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "profiles"
}
