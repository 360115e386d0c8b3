package goals

import "time"

// Goal is one user-declared target. At most one goal per user per type is
// active at a time; SetGoal enforces that atomically.
type Goal struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID     string    `gorm:"column:user_id;size:190;not null;index:idx_goals_user_active,priority:1"`
	GoalType   string    `gorm:"column:goal_type;size:64;not null"`
	GoalValue  string    `gorm:"column:goal_value;size:190;not null"`
	TimePeriod string    `gorm:"column:time_period;size:32;not null;default:'daily'"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true;index:idx_goals_user_active,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Goal) TableName() string {
	return "goals"
}
