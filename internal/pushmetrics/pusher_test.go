package pushmetrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/revlens/internal/clock"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"github.com/smallbiznis/revlens/internal/config"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"github.com/smallbiznis/revlens/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedDeployment(t *testing.T) *gorm.DB {
	t.Helper()
	conn := db.NewTest(t, &companydomain.Company{}, &snapshotdomain.Snapshot{})

	companies := []companydomain.Company{
		{ID: 1, Name: "Acme", Slug: "acme", SourceCompanyID: "biz_1", SourceAPIKey: "k", WebhookSecret: "s", Active: true},
		{ID: 2, Name: "Beta", Slug: "beta", SourceCompanyID: "biz_2", SourceAPIKey: "k", WebhookSecret: "s", Active: true},
		{ID: 3, Name: "Gone", Slug: "gone", SourceCompanyID: "biz_3", SourceAPIKey: "k", WebhookSecret: "s"},
	}
	require.NoError(t, conn.Create(&companies).Error)
	require.NoError(t, conn.Model(&companydomain.Company{}).Where("id = ?", 3).Update("active", false).Error)

	for i, date := range []string{"2024-03-01", "2024-03-03"} {
		require.NoError(t, conn.Create(&snapshotdomain.Snapshot{
			ID:           snowflake.ID(100 + i),
			CompanyID:    1,
			SnapshotDate: date,
			Metrics:      datatypes.JSON(`{}`),
			CapturedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}).Error)
	}
	return conn
}

func decodeWriteRequest(t *testing.T, body []byte) *prompb.WriteRequest {
	t.Helper()
	raw, err := snappy.Decode(nil, body)
	require.NoError(t, err)
	var req prompb.WriteRequest
	require.NoError(t, proto.Unmarshal(raw, protoadapt.MessageV2Of(&req)))
	return &req
}

func findSample(req *prompb.WriteRequest, name string, labels map[string]string) (float64, bool) {
	for _, ts := range req.Timeseries {
		matched := 0
		for _, label := range ts.Labels {
			if label.Name == "__name__" && label.Value == name {
				matched++
				continue
			}
			if want, ok := labels[label.Name]; ok && want == label.Value {
				matched++
			}
		}
		if matched == len(labels)+1 && len(ts.Samples) == 1 {
			return ts.Samples[0].Value, true
		}
	}
	return 0, false
}

func TestRemoteWritePushesDeploymentGauges(t *testing.T) {
	conn := seedDeployment(t)

	var got *prompb.WriteRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		got = decodeWriteRequest(t, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	pusher := NewPusher(config.Config{Push: config.PushMetricsConfig{
		Exporter:  ExporterRemoteWrite,
		Endpoint:  srv.URL,
		AuthToken: "token",
	}}, nil)
	require.NotNil(t, pusher)

	worker := NewWorker(conn, clock.NewFakeClock(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)), NewGauges(), pusher, nil)
	require.NoError(t, worker.PushOnce(context.Background()))

	require.NotNil(t, got)
	assert.Equal(t, "Bearer token", auth)

	active, ok := findSample(got, "revlens_companies", map[string]string{"state": "active"})
	require.True(t, ok)
	assert.Equal(t, 2.0, active)
	inactive, ok := findSample(got, "revlens_companies", map[string]string{"state": "inactive"})
	require.True(t, ok)
	assert.Equal(t, 1.0, inactive)

	stored, ok := findSample(got, "revlens_snapshots_stored", nil)
	require.True(t, ok)
	assert.Equal(t, 2.0, stored)

	age, ok := findSample(got, "revlens_snapshot_latest_age_days", nil)
	require.True(t, ok)
	assert.Equal(t, 2.0, age)
}

func TestRemoteWriteFailureIsCounted(t *testing.T) {
	conn := seedDeployment(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	gauges := NewGauges()
	worker := NewWorker(conn, clock.NewSystemClock(), gauges, NewRemoteWritePusher(srv.URL, ""), nil)
	require.Error(t, worker.PushOnce(context.Background()))

	families, err := gauges.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "revlens_metrics_push_failures_total" {
			assert.Equal(t, 1.0, family.GetMetric()[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatalf("push failure counter not registered")
}

func TestPushgatewayGroupsByEnvironment(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	pusher := NewPusher(config.Config{
		AppName:     "revlens",
		Environment: "staging",
		Push:        config.PushMetricsConfig{Exporter: ExporterPushgateway, Endpoint: srv.URL},
	}, nil)
	require.NotNil(t, pusher)

	gauges := NewGauges()
	require.NoError(t, pusher.Push(context.Background(), gauges.Registry()))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/revlens/environment/staging", path)
}

func TestNewPusherDisabled(t *testing.T) {
	assert.Nil(t, NewPusher(config.Config{}, nil))
	assert.Nil(t, NewPusher(config.Config{Push: config.PushMetricsConfig{Exporter: ExporterRemoteWrite}}, nil))
	assert.Nil(t, NewPusher(config.Config{Push: config.PushMetricsConfig{Exporter: "statsd", Endpoint: "http://x"}}, nil))
}
