package insights

import "time"

// Nudge is a proactive notification about a detected downward trend. At most
// one nudge is created per user per 24-hour window.
type Nudge struct {
	ID                   string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID               string    `gorm:"column:user_id;size:190;not null;index:idx_nudges_user_created,priority:1"`
	Metric               string    `gorm:"column:metric;size:32;not null"`
	Headline             string    `gorm:"column:headline;size:190;not null"`
	BodyText             string    `gorm:"column:body_text;type:text;not null"`
	SuggestedActionsJSON string    `gorm:"column:suggested_actions_json;type:text;not null;default:'[]'"`
	IsAcknowledged       bool      `gorm:"column:is_acknowledged;not null;default:false"`
	CreatedAt            time.Time `gorm:"column:created_at;not null;index:idx_nudges_user_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Nudge) TableName() string {
	return "nudges"
}
