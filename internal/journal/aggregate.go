package journal

import (
	"sort"
	"time"
)

// Sample is one dated observation fed to the daily aggregation. Nil metric
// values count as zero toward that day's average rather than being excluded.
type Sample struct {
	At       time.Time
	Clarity  *float64
	Immune   *float64
	Physical *float64
}

// DailyPoint is one plotted point: the UTC calendar day and the mean of every
// sample that fell on it.
type DailyPoint struct {
	Date     string  `json:"date"`
	Clarity  float64 `json:"clarity"`
	Immune   float64 `json:"immune"`
	Physical float64 `json:"physical"`
}

// AggregateDaily groups samples by UTC calendar day and averages same-day
// duplicates into one point per day. Days with no samples are not zero-filled;
// output is sorted by date ascending.
func AggregateDaily(samples []Sample) []DailyPoint {
	type accumulator struct {
		clarity  float64
		immune   float64
		physical float64
		count    float64
	}

	buckets := make(map[string]*accumulator)
	for _, sample := range samples {
		key := sample.At.UTC().Format("2006-01-02")
		bucket, ok := buckets[key]
		if !ok {
			bucket = &accumulator{}
			buckets[key] = bucket
		}
		bucket.clarity += deref(sample.Clarity)
		bucket.immune += deref(sample.Immune)
		bucket.physical += deref(sample.Physical)
		bucket.count++
	}

	points := make([]DailyPoint, 0, len(buckets))
	for date, bucket := range buckets {
		points = append(points, DailyPoint{
			Date:     date,
			Clarity:  bucket.clarity / bucket.count,
			Immune:   bucket.immune / bucket.count,
			Physical: bucket.physical / bucket.count,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

func deref(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
