package pushmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"gorm.io/gorm"
)

// Gauges is the deployment-level view pushed on every tick.
type Gauges struct {
	registry      *prometheus.Registry
	companies     *prometheus.GaugeVec
	snapshots     prometheus.Gauge
	latestAgeDays prometheus.Gauge
	pushesFailed  prometheus.Counter
}

func NewGauges() *Gauges {
	g := &Gauges{
		registry: prometheus.NewRegistry(),
		companies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "revlens_companies",
			Help: "Registered companies by state.",
		}, []string{"state"}),
		snapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "revlens_snapshots_stored",
			Help: "Metric snapshots currently stored.",
		}),
		latestAgeDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "revlens_snapshot_latest_age_days",
			Help: "Days since the newest stored snapshot date.",
		}),
		pushesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revlens_metrics_push_failures_total",
			Help: "Failed pushes of deployment metrics.",
		}),
	}
	g.registry.MustRegister(g.companies, g.snapshots, g.latestAgeDays, g.pushesFailed)
	return g
}

func (g *Gauges) Registry() *prometheus.Registry { return g.registry }

// Collect refreshes every gauge from the database.
func (g *Gauges) Collect(ctx context.Context, db *gorm.DB, now time.Time) error {
	var rows []struct {
		Active bool
		Total  int64
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT active, COUNT(*) AS total FROM companies GROUP BY active`,
	).Scan(&rows).Error; err != nil {
		return fmt.Errorf("count companies: %w", err)
	}
	g.companies.WithLabelValues("active").Set(0)
	g.companies.WithLabelValues("inactive").Set(0)
	for _, row := range rows {
		state := "inactive"
		if row.Active {
			state = "active"
		}
		g.companies.WithLabelValues(state).Set(float64(row.Total))
	}

	var stored int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM metric_snapshots`).Scan(&stored).Error; err != nil {
		return fmt.Errorf("count snapshots: %w", err)
	}
	g.snapshots.Set(float64(stored))

	var latest []string
	if err := db.WithContext(ctx).Raw(
		`SELECT snapshot_date FROM metric_snapshots ORDER BY snapshot_date DESC LIMIT 1`,
	).Scan(&latest).Error; err != nil {
		return fmt.Errorf("latest snapshot date: %w", err)
	}
	if len(latest) == 0 {
		g.latestAgeDays.Set(-1)
		return nil
	}
	date, err := snapshotdomain.ParseDate(latest[0])
	if err != nil {
		return err
	}
	today, _ := snapshotdomain.ParseDate(snapshotdomain.FormatDate(now))
	g.latestAgeDays.Set(today.Sub(date).Hours() / 24)
	return nil
}

func (g *Gauges) recordPushFailure() {
	g.pushesFailed.Inc()
}
