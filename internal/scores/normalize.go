// Package scores normalizes the loosely-typed metric objects returned by the
// model into fully-populated readings the rest of the system can rely on.
package scores

import "github.com/lightcore-app/lightcore/internal/llm"

// Defaults applied when the model omits a field.
const (
	DefaultScore    = 0
	DefaultLabel    = "N/A"
	DefaultColorHex = "#6B7280"
)

// Reading is a fully-populated metric triple.
type Reading struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	ColorHex string  `json:"color_hex"`
}

// Normalize maps a possibly-partial raw reading to a complete one. Each field
// defaults independently; a nil input yields the full default triple.
func Normalize(raw *llm.RawReading) Reading {
	reading := Reading{
		Score:    DefaultScore,
		Label:    DefaultLabel,
		ColorHex: DefaultColorHex,
	}
	if raw == nil {
		return reading
	}
	if raw.Score != nil {
		reading.Score = *raw.Score
	}
	if raw.Label != nil && *raw.Label != "" {
		reading.Label = *raw.Label
	}
	if raw.ColorHex != nil && *raw.ColorHex != "" {
		reading.ColorHex = *raw.ColorHex
	}
	return reading
}
