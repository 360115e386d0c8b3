package journal

import (
	"testing"
	"time"
)

func float(v float64) *float64 { return &v }

func TestAggregateDailyAveragesSameDayDuplicates(t *testing.T) {
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	points := AggregateDaily([]Sample{
		{At: day.Add(8 * time.Hour), Clarity: float(6), Immune: float(4), Physical: float(2)},
		{At: day.Add(20 * time.Hour), Clarity: float(8), Immune: float(6), Physical: float(4)},
	})

	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	if points[0].Date != "2026-04-02" {
		t.Fatalf("unexpected date %s", points[0].Date)
	}
	if points[0].Clarity != 7 {
		t.Fatalf("expected clarity average 7, got %v", points[0].Clarity)
	}
	if points[0].Immune != 5 || points[0].Physical != 3 {
		t.Fatalf("unexpected averages %+v", points[0])
	}
}

func TestAggregateDailyCountsNilAsZero(t *testing.T) {
	day := time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)
	points := AggregateDaily([]Sample{
		{At: day.Add(time.Hour), Clarity: nil},
		{At: day.Add(2 * time.Hour), Clarity: float(10)},
	})

	if len(points) != 1 {
		t.Fatalf("expected one point, got %d", len(points))
	}
	if points[0].Clarity != 5 {
		t.Fatalf("expected nil to pull average to 5, got %v", points[0].Clarity)
	}
}

func TestAggregateDailyBucketsByUTCDate(t *testing.T) {
	// 23:30 UTC and 00:30 UTC the next day are distinct buckets regardless of
	// any user timezone.
	points := AggregateDaily([]Sample{
		{At: time.Date(2026, 4, 4, 23, 30, 0, 0, time.UTC), Clarity: float(4)},
		{At: time.Date(2026, 4, 5, 0, 30, 0, 0, time.UTC), Clarity: float(8)},
	})

	if len(points) != 2 {
		t.Fatalf("expected two points, got %d", len(points))
	}
	if points[0].Date != "2026-04-04" || points[1].Date != "2026-04-05" {
		t.Fatalf("unexpected bucket dates %s, %s", points[0].Date, points[1].Date)
	}
}

func TestAggregateDailySortsAscendingWithoutZeroFill(t *testing.T) {
	points := AggregateDaily([]Sample{
		{At: time.Date(2026, 4, 9, 12, 0, 0, 0, time.UTC), Clarity: float(3)},
		{At: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), Clarity: float(1)},
		{At: time.Date(2026, 4, 5, 12, 0, 0, 0, time.UTC), Clarity: float(2)},
	})

	if len(points) != 3 {
		t.Fatalf("expected three points with no gap filling, got %d", len(points))
	}
	for i, want := range []string{"2026-04-01", "2026-04-05", "2026-04-09"} {
		if points[i].Date != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, points[i].Date)
		}
	}
}

func TestAggregateDailyEmptyInput(t *testing.T) {
	if points := AggregateDaily(nil); len(points) != 0 {
		t.Fatalf("expected no points for empty input, got %d", len(points))
	}
}
