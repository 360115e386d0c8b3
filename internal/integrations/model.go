package integrations

import "time"

// Connection stores the OAuth tokens linking a user to the fitness provider.
// One row per user; re-linking overwrites it.
type Connection struct {
	UserID       string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	AccessToken  string    `gorm:"column:access_token;size:2048;not null"`
	RefreshToken string    `gorm:"column:refresh_token;size:2048;not null;default:''"`
	TokenType    string    `gorm:"column:token_type;size:32;not null;default:'Bearer'"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Connection) TableName() string {
	return "fitsync_connections"
}

// DailyMetrics is the provider's per-day activity summary relayed to the
// dashboard.
type DailyMetrics struct {
	Date         string  `json:"date"`
	Steps        int     `json:"steps"`
	RestingHR    int     `json:"resting_hr"`
	SleepMinutes int     `json:"sleep_minutes"`
	ActiveKcal   float64 `json:"active_kcal"`
}
