package journal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}, &Event{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

type seqIDProvider struct{ n int }

func (p *seqIDProvider) NewID() (string, error) {
	p.n++
	return fmt.Sprintf("id-%d", p.n), nil
}

// scriptedLLM returns queued replies in order; an empty queue fails the call.
type scriptedLLM struct {
	replies []string
	err     error
	calls   int
}

func (f *scriptedLLM) Generate(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

type fakeStreaks struct {
	calls int
	count int
	err   error
}

func (f *fakeStreaks) RecordLog(context.Context, string) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeBrain struct {
	calls int
	err   error
}

func (f *fakeBrain) Refresh(context.Context, string) error {
	f.calls++
	return f.err
}

const analysisReply = `{"clarity":{"score":8,"label":"Sharp","color_hex":"#22C55E"},
"immune":{"score":6,"label":"Stable","color_hex":"#EAB308"},
"physical":{"score":7,"label":"Ready","color_hex":"#3B82F6"},
"notes":"Solid day overall.","tags":["sleep","exercise"]}`

const noEventsReply = `[]`

func newTestService(t *testing.T, llmClient *scriptedLLM, streakRecorder *fakeStreaks, brainRefresher *fakeBrain, clock func() time.Time) *Service {
	t.Helper()
	cfg := ServiceConfig{
		Database:   openTestDB(t),
		IDProvider: &seqIDProvider{},
		LLM:        llmClient,
		Clock:      clock,
	}
	if streakRecorder != nil {
		cfg.Streaks = streakRecorder
	}
	if brainRefresher != nil {
		cfg.Brain = brainRefresher
	}
	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return service
}

func TestCreateEntryPersistsNormalizedScores(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{analysisReply, noEventsReply}}
	streakRecorder := &fakeStreaks{count: 3}
	brainRefresher := &fakeBrain{}
	service := newTestService(t, llmClient, streakRecorder, brainRefresher, nil)

	result, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{
		Text: "Ran 5k before work, slept well.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := result.Entry
	if entry.ClarityScore != 8 || entry.ClarityLabel != "Sharp" || entry.ClarityColor != "#22C55E" {
		t.Fatalf("unexpected clarity reading %+v", entry)
	}
	if entry.ImmuneScore != 6 || entry.PhysicalScore != 7 {
		t.Fatalf("unexpected scores %+v", entry)
	}
	if entry.AINotes != "Solid day overall." {
		t.Fatalf("unexpected notes %q", entry.AINotes)
	}
	if entry.TagsJSON != `["sleep","exercise"]` {
		t.Fatalf("unexpected tags %s", entry.TagsJSON)
	}
	if result.StreakCount != 3 {
		t.Fatalf("expected streak 3, got %d", result.StreakCount)
	}
	if streakRecorder.calls != 1 || brainRefresher.calls != 1 {
		t.Fatalf("expected streak and brain steps to run once, got %d/%d",
			streakRecorder.calls, brainRefresher.calls)
	}
}

func TestCreateEntryDefaultsMissingMetrics(t *testing.T) {
	partial := `{"clarity":{"score":7}}`
	llmClient := &scriptedLLM{replies: []string{partial, noEventsReply}}
	service := newTestService(t, llmClient, nil, nil, nil)

	result, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "tired"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := result.Entry
	if entry.ClarityScore != 7 {
		t.Fatalf("expected present score kept, got %v", entry.ClarityScore)
	}
	if entry.ClarityLabel != "N/A" || entry.ClarityColor != "#6B7280" {
		t.Fatalf("expected absent clarity fields defaulted, got %+v", entry)
	}
	if entry.ImmuneScore != 0 || entry.ImmuneLabel != "N/A" {
		t.Fatalf("expected missing immune reading defaulted, got %+v", entry)
	}
}

func TestCreateEntryKeepsEntryOnUnparsableAnalysis(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{"I am not able to score this.", noEventsReply}}
	service := newTestService(t, llmClient, nil, nil, nil)

	result, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "meh"})
	if err != nil {
		t.Fatalf("expected entry despite unparsable reply: %v", err)
	}
	if result.Entry.AINotes != analysisNotice {
		t.Fatalf("expected placeholder notes, got %q", result.Entry.AINotes)
	}
	if result.Entry.ClarityScore != 0 || result.Entry.ClarityLabel != "N/A" {
		t.Fatalf("expected default readings, got %+v", result.Entry)
	}

	entries, err := service.ListEntries(context.Background(), "user-1", 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one persisted entry: %v", err)
	}
}

func TestCreateEntryFailsWhenLLMUnavailable(t *testing.T) {
	llmClient := &scriptedLLM{err: errors.New("connection refused")}
	service := newTestService(t, llmClient, nil, nil, nil)

	_, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "hello"})
	if err == nil {
		t.Fatalf("expected error when analysis call fails")
	}

	entries, listErr := service.ListEntries(context.Background(), "user-1", 0)
	if listErr != nil {
		t.Fatalf("unexpected list error: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entry persisted, got %d", len(entries))
	}
}

func TestCreateEntryValidatesInput(t *testing.T) {
	service := newTestService(t, &scriptedLLM{}, nil, nil, nil)

	if _, err := service.CreateEntry(context.Background(), "", CreateEntryRequest{Text: "x"}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "  "}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestCreateEntryExtractsEvents(t *testing.T) {
	events := `[{"event_type":"Workout","event_time":"2026-03-10T07:30:00Z"},
{"event_type":"Caffeine","event_time":"2026-03-10T09:00:00Z"},
{"event_type":"Juggling","event_time":"2026-03-10T10:00:00Z"},
{"event_type":"Nap","event_time":"not-a-time"}]`
	llmClient := &scriptedLLM{replies: []string{analysisReply, events}}
	service := newTestService(t, llmClient, nil, nil, nil)

	if _, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "gym then coffee"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persisted, err := service.ListEvents(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Unknown type and bad timestamp are skipped.
	if len(persisted) != 2 {
		t.Fatalf("expected two valid events, got %d", len(persisted))
	}
	if persisted[0].EventType != EventTypeCaffeine || persisted[1].EventType != EventTypeWorkout {
		t.Fatalf("unexpected events %+v", persisted)
	}
}

func TestCreateEntrySurvivesEventExtractionFailure(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{analysisReply}}
	service := newTestService(t, llmClient, nil, nil, nil)

	result, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "day"})
	if err != nil {
		t.Fatalf("expected entry despite event extraction failure: %v", err)
	}
	if result.Entry.ID == "" {
		t.Fatalf("expected persisted entry")
	}
}

func TestMetricSeriesOrderedOldestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	replies := make([]string, 0, 6)
	for _, score := range []float64{9, 8, 7} {
		replies = append(replies,
			fmt.Sprintf(`{"clarity":{"score":%v},"immune":{"score":5},"physical":{"score":5}}`, score),
			noEventsReply)
	}
	llmClient := &scriptedLLM{replies: replies}
	service := newTestService(t, llmClient, nil, nil, clock)

	for i := 0; i < 3; i++ {
		current = base.AddDate(0, 0, i)
		if _, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "log"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	series, err := service.MetricSeries(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clarity := series["clarity"]
	if len(clarity) != 3 || clarity[0] != 9 || clarity[2] != 7 {
		t.Fatalf("expected oldest-first clarity [9 8 7], got %v", clarity)
	}
}

func TestDailySeriesAveragesPerUTCDay(t *testing.T) {
	base := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	llmClient := &scriptedLLM{replies: []string{
		`{"clarity":{"score":6},"immune":{"score":6},"physical":{"score":6}}`, noEventsReply,
		`{"clarity":{"score":8},"immune":{"score":8},"physical":{"score":8}}`, noEventsReply,
	}}
	service := newTestService(t, llmClient, nil, nil, clock)

	for i := 0; i < 2; i++ {
		current = base.Add(time.Duration(i) * 6 * time.Hour)
		if _, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "log"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	points, err := service.DailySeries(context.Background(), "user-1", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one aggregated point, got %d", len(points))
	}
	if points[0].Clarity != 7 {
		t.Fatalf("expected averaged clarity 7, got %v", points[0].Clarity)
	}
}

func TestDeleteUserDataRemovesEntriesAndEvents(t *testing.T) {
	events := `[{"event_type":"Meal","event_time":"2026-03-10T12:00:00Z"}]`
	llmClient := &scriptedLLM{replies: []string{analysisReply, events}}
	service := newTestService(t, llmClient, nil, nil, nil)

	if _, err := service.CreateEntry(context.Background(), "user-1", CreateEntryRequest{Text: "lunch"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.DeleteUserData(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := service.ListEntries(context.Background(), "user-1", 0)
	persisted, _ := service.ListEvents(context.Background(), "user-1", 0)
	if len(entries) != 0 || len(persisted) != 0 {
		t.Fatalf("expected all user rows removed, got %d entries %d events", len(entries), len(persisted))
	}
}
