// Package domain contains the persisted snapshot model and history types.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	revenuedomain "github.com/smallbiznis/revlens/internal/revenue/domain"
	"gorm.io/datatypes"
)

// DateLayout is the calendar-date format of snapshot_date.
const DateLayout = "2006-01-02"

// Snapshot is one tenant's metrics document for one UTC calendar date.
type Snapshot struct {
	ID           snowflake.ID   `gorm:"primaryKey"`
	CompanyID    snowflake.ID   `gorm:"not null;uniqueIndex:ux_metric_snapshots_company_date,priority:1"`
	SnapshotDate string         `gorm:"type:varchar(10);not null;uniqueIndex:ux_metric_snapshots_company_date,priority:2"`
	Metrics      datatypes.JSON `gorm:"type:jsonb;not null"`
	RawData      []byte         `gorm:""`
	CapturedAt   time.Time      `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Snapshot) TableName() string { return "metric_snapshots" }

// FormatDate returns the snapshot_date key for an instant.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// DecodeMetrics unmarshals the stored metrics document.
func (s *Snapshot) DecodeMetrics() (revenuedomain.Metrics, error) {
	var out revenuedomain.Metrics
	if len(s.Metrics) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(s.Metrics, &out); err != nil {
		return out, fmt.Errorf("decode snapshot metrics: %w", err)
	}
	return out, nil
}

// DecodeRaw returns the dataset the snapshot was computed from, or nil when none was stored.
func (s *Snapshot) DecodeRaw() (*revenuedomain.Dataset, error) {
	if len(s.RawData) == 0 {
		return nil, nil
	}
	payload, err := snappy.Decode(nil, s.RawData)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot raw data: %w", err)
	}
	var out revenuedomain.Dataset
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot raw data: %w", err)
	}
	return &out, nil
}

// Baseline returns the movement baseline stored with the snapshot.
func (s *Snapshot) Baseline() (*revenuedomain.Baseline, error) {
	dataset, err := s.DecodeRaw()
	if err != nil || dataset == nil {
		return nil, err
	}
	return &revenuedomain.Baseline{CapturedAt: s.CapturedAt, Dataset: dataset}, nil
}

// EncodeRaw serializes and compresses a dataset for the raw_data column.
func EncodeRaw(dataset revenuedomain.Dataset) ([]byte, error) {
	payload, err := json.Marshal(dataset)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot raw data: %w", err)
	}
	return snappy.Encode(nil, payload), nil
}

// EncodeMetrics serializes a metrics document for the metrics column.
func EncodeMetrics(metrics revenuedomain.Metrics) (datatypes.JSON, error) {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot metrics: %w", err)
	}
	return datatypes.JSON(payload), nil
}

// View is the API representation of a snapshot.
type View struct {
	CompanyID  string                `json:"company_id"`
	Date       string                `json:"date"`
	CapturedAt time.Time             `json:"captured_at"`
	Metrics    revenuedomain.Metrics `json:"metrics"`
}
