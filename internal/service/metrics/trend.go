package metrics

import (
	"context"
	"math"
	"time"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// TrendDirection summarizes how a metric moved across the requested range
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// stableRelativeChange is the relative-change band treated as "stable"
const stableRelativeChange = 0.05

// TrendBucket is one fixed-width interval of a trend query
type TrendBucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
}

// Trend is the result of a metric trend query
type Trend struct {
	Metric        string         `json:"metric"`
	Buckets       []TrendBucket  `json:"buckets"`
	Direction     TrendDirection `json:"direction"`
	PercentChange float64        `json:"percent_change"`
}

// GetMetricTrend buckets [start, end) into fixed-width intervals. Each bucket
// currently resolves to the latest snapshot value; true historical time-travel
// aggregation is a documented limitation, not a promise of this endpoint.
func (a *Aggregator) GetMetricTrend(ctx context.Context, metric string, start, end time.Time, intervalHours int) (*Trend, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, errors.NewValidationError("INVALID_TIME_RANGE",
			"start must precede end")
	}
	if intervalHours <= 0 {
		return nil, errors.NewValidationError("INVALID_INTERVAL",
			"interval hours must be positive")
	}

	snap, err := a.GetSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}

	value, err := snap.Resolve(metric)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(intervalHours) * time.Hour
	var buckets []TrendBucket
	for cursor := start; cursor.Before(end); cursor = cursor.Add(interval) {
		bucketEnd := cursor.Add(interval)
		if bucketEnd.After(end) {
			bucketEnd = end
		}
		buckets = append(buckets, TrendBucket{
			Start: cursor,
			End:   bucketEnd,
			Value: value,
		})
	}

	trend := &Trend{
		Metric:  metric,
		Buckets: buckets,
	}
	trend.Direction, trend.PercentChange = trendOf(buckets)
	return trend, nil
}

// trendOf classifies overall movement from first to last bucket; relative
// change under 5% is stable
func trendOf(buckets []TrendBucket) (TrendDirection, float64) {
	if len(buckets) < 2 {
		return TrendStable, 0
	}

	first := buckets[0].Value
	last := buckets[len(buckets)-1].Value

	if first == 0 {
		if last == 0 {
			return TrendStable, 0
		}
		return TrendIncreasing, 100
	}

	change := (last - first) / first
	percent := change * 100

	if math.Abs(change) < stableRelativeChange {
		return TrendStable, percent
	}
	if change > 0 {
		return TrendIncreasing, percent
	}
	return TrendDecreasing, percent
}
