package llm

import "fmt"

// RawReading is the loosely-typed metric object the model returns. Any field
// may be absent; normalization happens downstream.
type RawReading struct {
	Score    *float64 `json:"score"`
	Label    *string  `json:"label"`
	ColorHex *string  `json:"color_hex"`
}

// AnalysisReply is the expected shape of a log-analysis completion.
type AnalysisReply struct {
	Clarity  *RawReading `json:"clarity"`
	Immune   *RawReading `json:"immune"`
	Physical *RawReading `json:"physical"`
	Notes    string      `json:"notes"`
	Tags     []string    `json:"tags"`
}

// Validate checks the keys every analysis reply must carry.
func (r AnalysisReply) Validate() error {
	if r.Clarity == nil && r.Immune == nil && r.Physical == nil {
		return fmt.Errorf("%w: analysis reply carries no metric", ErrBadJSON)
	}
	return nil
}

// EventReply is one timed event the model extracted from a log's text.
type EventReply struct {
	EventType string `json:"event_type"`
	EventTime string `json:"event_time"`
}

// NudgeReply is the expected shape of a trend-nudge phrasing completion.
type NudgeReply struct {
	Headline         string   `json:"headline"`
	Body             string   `json:"body"`
	SuggestedActions []string `json:"suggested_actions"`
}

// Validate checks the keys every nudge reply must carry.
func (r NudgeReply) Validate() error {
	if r.Headline == "" || r.Body == "" {
		return fmt.Errorf("%w: nudge reply missing headline or body", ErrBadJSON)
	}
	return nil
}

// GuidanceReply is the expected shape of a daily-guidance completion.
type GuidanceReply struct {
	Guidance string `json:"guidance"`
	Focus    string `json:"focus"`
	Summary  string `json:"summary"`
}

// Validate checks the keys every guidance reply must carry.
func (r GuidanceReply) Validate() error {
	if r.Guidance == "" {
		return fmt.Errorf("%w: guidance reply missing guidance text", ErrBadJSON)
	}
	return nil
}
