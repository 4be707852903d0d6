package aggregate

import (
	"fmt"
	"sort"
	"time"

	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
)

// Point is one daily snapshot reduced to its flattened metrics.
type Point struct {
	Date       time.Time
	CapturedAt time.Time
	Values     map[string]float64
}

// BucketKey returns the sortable period key of date under the granularity.
// Weeks start on Monday.
func BucketKey(date time.Time, g snapshotdomain.Granularity) string {
	date = date.UTC()
	switch g {
	case snapshotdomain.GranularityWeek:
		offset := (int(date.Weekday()) + 6) % 7
		return date.AddDate(0, 0, -offset).Format(snapshotdomain.DateLayout)
	case snapshotdomain.GranularityMonth:
		return fmt.Sprintf("%04d-%02d-01", date.Year(), int(date.Month()))
	case snapshotdomain.GranularityQuarter:
		return fmt.Sprintf("%04d-Q%d", date.Year(), (int(date.Month())-1)/3+1)
	case snapshotdomain.GranularityYear:
		return fmt.Sprintf("%04d", date.Year())
	default:
		return date.Format(snapshotdomain.DateLayout)
	}
}

// Aggregate groups points into buckets, reduces each field and returns the
// newest lookback rows in ascending period order. When a date appears more
// than once the latest capture wins.
func Aggregate(points []Point, g snapshotdomain.Granularity, lookback int) []snapshotdomain.Row {
	latest := make(map[string]Point, len(points))
	for _, p := range points {
		day := p.Date.UTC().Format(snapshotdomain.DateLayout)
		if seen, ok := latest[day]; ok && !p.CapturedAt.After(seen.CapturedAt) {
			continue
		}
		latest[day] = p
	}

	buckets := map[string][]Point{}
	for _, p := range latest {
		key := BucketKey(p.Date, g)
		buckets[key] = append(buckets[key], p)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if lookback > 0 && len(keys) > lookback {
		keys = keys[len(keys)-lookback:]
	}

	rows := make([]snapshotdomain.Row, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, reduce(key, buckets[key]))
	}
	return rows
}

func reduce(period string, points []Point) snapshotdomain.Row {
	row := snapshotdomain.Row{
		Period:    period,
		Snapshots: len(points),
		Values:    make(map[string]float64, len(Fields)),
	}
	for _, field := range Fields {
		var (
			sum   float64
			count int
		)
		for _, p := range points {
			value, ok := p.Values[field.Path]
			if !ok {
				continue
			}
			sum += value
			count++
		}
		if count == 0 {
			continue
		}
		if field.Reduce == Average {
			sum /= float64(count)
		}
		row.Values[field.Key] = sum
	}
	return row
}
