package brain

import "time"

// Context is the denormalized per-user cache injected into guidance prompts.
// LatestEntryID records the newest log the cache was computed from; a mismatch
// against the journal marks the row stale and forces a recompute on read.
type Context struct {
	UserID         string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	RecentLogsJSON string    `gorm:"column:recent_logs_json;type:text;not null;default:'[]'"`
	UserSummary    string    `gorm:"column:user_summary;type:text;not null;default:''"`
	PersonaMemo    string    `gorm:"column:persona_memo;type:text;not null;default:''"`
	LatestEntryID  string    `gorm:"column:latest_entry_id;size:190;not null;default:''"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Context) TableName() string {
	return "brain_contexts"
}
