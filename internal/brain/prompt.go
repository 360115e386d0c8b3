package brain

import (
	"fmt"
	"strings"
	"time"

	"github.com/lightcore-app/lightcore/internal/goals"
	"github.com/lightcore-app/lightcore/internal/insights"
	"github.com/lightcore-app/lightcore/internal/journal"
)

// Caps on how much of each category is serialized into a prompt.
const (
	maxPromptLogs    = 30
	maxPromptGoals   = 3
	maxPromptNudges  = 5
	maxPromptEvents  = 10
	maxLogTextLength = 280
)

// PromptContext is the bag of recent records serialized into a guidance prompt.
type PromptContext struct {
	Entries []journal.Entry
	Goals   []goals.Goal
	Nudges  []insights.Nudge
	Events  []journal.Event
}

// Format renders the bag as a deterministic natural-language block. Each
// category is capped; ordering follows the slices as given.
func (p PromptContext) Format() string {
	var b strings.Builder

	b.WriteString("RECENT LOGS:\n")
	if len(p.Entries) == 0 {
		b.WriteString("(none)\n")
	}
	for i, entry := range p.Entries {
		if i >= maxPromptLogs {
			break
		}
		fmt.Fprintf(&b, "- [%s] clarity %.1f, immune %.1f, physical %.1f: %s\n",
			entry.CreatedAt.UTC().Format("2006-01-02"),
			entry.ClarityScore, entry.ImmuneScore, entry.PhysicalScore,
			truncate(entry.Text, maxLogTextLength))
	}

	b.WriteString("\nACTIVE GOALS:\n")
	if len(p.Goals) == 0 {
		b.WriteString("(none)\n")
	}
	for i, goal := range p.Goals {
		if i >= maxPromptGoals {
			break
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", goal.GoalType, goal.GoalValue, goal.TimePeriod)
	}

	b.WriteString("\nRECENT INSIGHTS:\n")
	if len(p.Nudges) == 0 {
		b.WriteString("(none)\n")
	}
	for i, nudge := range p.Nudges {
		if i >= maxPromptNudges {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", nudge.Headline, nudge.BodyText)
	}

	b.WriteString("\nRECENT EVENTS:\n")
	if len(p.Events) == 0 {
		b.WriteString("(none)\n")
	}
	for i, event := range p.Events {
		if i >= maxPromptEvents {
			break
		}
		fmt.Fprintf(&b, "- %s at %s\n", event.EventType, event.EventTime.UTC().Format(time.RFC3339))
	}

	return b.String()
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "…"
}
