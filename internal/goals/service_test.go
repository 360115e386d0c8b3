package goals

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&Goal{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

type seqIDProvider struct{ n int }

func (p *seqIDProvider) NewID() (string, error) {
	p.n++
	return fmt.Sprintf("goal-%d", p.n), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   openTestDB(t),
		IDProvider: &seqIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return service
}

func TestSetGoalActivatesSingleGoal(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	goal, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "sleep", GoalValue: "8h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !goal.IsActive {
		t.Fatalf("expected new goal to be active")
	}
	if goal.TimePeriod != "daily" {
		t.Fatalf("expected default time period, got %s", goal.TimePeriod)
	}
}

func TestSequentialSetGoalLeavesExactlyOneActive(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	for _, value := range []string{"7h", "7.5h", "8h"} {
		if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "sleep", GoalValue: value}); err != nil {
			t.Fatalf("unexpected error setting goal %s: %v", value, err)
		}
	}

	active, err := service.ActiveGoals(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly one active goal, got %d", len(active))
	}
	if active[0].GoalValue != "8h" {
		t.Fatalf("expected latest value to win, got %s", active[0].GoalValue)
	}
}

func TestSetGoalKeepsOtherTypesActive(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "sleep", GoalValue: "8h"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "exercise", GoalValue: "30m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := service.ActiveGoals(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected one active goal per type, got %d", len(active))
	}
}

func TestSetGoalScopedPerUser(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "sleep", GoalValue: "8h"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.SetGoal(ctx, "user-2", SetGoalRequest{GoalType: "sleep", GoalValue: "6h"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := service.ActiveGoals(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 || active[0].GoalValue != "8h" {
		t.Fatalf("expected user-1 goal untouched, got %+v", active)
	}
}

func TestSetGoalValidatesInput(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.SetGoal(ctx, "", SetGoalRequest{GoalType: "sleep", GoalValue: "8h"}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalValue: "8h"}); err == nil {
		t.Fatalf("expected error for missing goal type")
	}
	if _, err := service.SetGoal(ctx, "user-1", SetGoalRequest{GoalType: "sleep"}); err == nil {
		t.Fatalf("expected error for missing goal value")
	}
}
