package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// MaxLookback bounds the number of buckets a history request may ask for.
const MaxLookback = 366

func ParseGranularity(raw string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return GranularityDay, nil
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return g, nil
	default:
		return "", ErrInvalidGranularity
	}
}

// DefaultLookback is the bucket count used when a request omits one.
func (g Granularity) DefaultLookback() int {
	switch g {
	case GranularityWeek, GranularityMonth:
		return 12
	case GranularityQuarter:
		return 4
	case GranularityYear:
		return 2
	default:
		return 30
	}
}

// FetchDays is the number of daily snapshots read to fill lookback buckets.
func (g Granularity) FetchDays(lookback int) int {
	switch g {
	case GranularityWeek:
		return lookback * 7
	case GranularityMonth:
		return lookback * 31
	case GranularityQuarter:
		return lookback * 92
	case GranularityYear:
		return lookback * 366
	default:
		return lookback
	}
}

type HistoryRequest struct {
	CompanyID   string
	Granularity Granularity
	Lookback    int
}

// Row is one reduced bucket of the historical series. Values only holds
// fields that had data in the bucket.
type Row struct {
	Period    string
	Snapshots int
	Values    map[string]float64
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+2)
	for key, value := range r.Values {
		out[key] = value
	}
	out["period"] = r.Period
	out["snapshots"] = r.Snapshots
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Row{Values: make(map[string]float64, len(raw))}
	for key, value := range raw {
		var err error
		switch key {
		case "period":
			err = json.Unmarshal(value, &r.Period)
		case "snapshots":
			err = json.Unmarshal(value, &r.Snapshots)
		default:
			var f float64
			if err = json.Unmarshal(value, &f); err == nil {
				r.Values[key] = f
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the value keys in stable order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r.Values))
	for key := range r.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
