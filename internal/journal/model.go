package journal

import (
	"errors"
	"strings"
	"time"
)

// EventType enumerates the timed events extracted from a log's text.
type EventType string

const (
	EventTypeWorkout    EventType = "Workout"
	EventTypeMeal       EventType = "Meal"
	EventTypeSnack      EventType = "Snack"
	EventTypeCaffeine   EventType = "Caffeine"
	EventTypeSleep      EventType = "Sleep"
	EventTypeNap        EventType = "Nap"
	EventTypeMeditation EventType = "Meditation"
)

// ErrUnknownEventType indicates an extracted event type outside the known set.
var ErrUnknownEventType = errors.New("journal: unknown event type")

// ParseEventType validates a raw event-type string against the known set.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(strings.TrimSpace(raw)) {
	case EventTypeWorkout, EventTypeMeal, EventTypeSnack, EventTypeCaffeine,
		EventTypeSleep, EventTypeNap, EventTypeMeditation:
		return EventType(strings.TrimSpace(raw)), nil
	default:
		return "", ErrUnknownEventType
	}
}

// Entry is one scored journal submission. Rows are immutable after analysis;
// multiple entries on the same day are kept separate and averaged at read time.
type Entry struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_entries_user_created,priority:1"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_entries_user_created,priority:2"`

	Text         string   `gorm:"column:text;type:text;not null"`
	SleepHours   *float64 `gorm:"column:sleep_hours"`
	SleepQuality *int     `gorm:"column:sleep_quality"`

	ClarityScore  float64 `gorm:"column:clarity_score;not null;default:0"`
	ClarityLabel  string  `gorm:"column:clarity_label;size:64;not null;default:''"`
	ClarityColor  string  `gorm:"column:clarity_color;size:16;not null;default:''"`
	ImmuneScore   float64 `gorm:"column:immune_score;not null;default:0"`
	ImmuneLabel   string  `gorm:"column:immune_label;size:64;not null;default:''"`
	ImmuneColor   string  `gorm:"column:immune_color;size:16;not null;default:''"`
	PhysicalScore float64 `gorm:"column:physical_score;not null;default:0"`
	PhysicalLabel string  `gorm:"column:physical_label;size:64;not null;default:''"`
	PhysicalColor string  `gorm:"column:physical_color;size:16;not null;default:''"`

	AINotes  string `gorm:"column:ai_notes;type:text;not null;default:''"`
	TagsJSON string `gorm:"column:tags_json;type:text;not null;default:'[]'"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "log_entries"
}

// Event is one timed event derived from an entry's text. Append-only.
type Event struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_events_user_time,priority:1"`
	LogID     string    `gorm:"column:log_id;size:190;not null"`
	EventType EventType `gorm:"column:event_type;size:32;not null"`
	EventTime time.Time `gorm:"column:event_time;not null;index:idx_events_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "log_events"
}
