// Command revlens-recompute replays stored raw datasets and rewrites the
// metrics of every snapshot, for one company or for all of them.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/schollz/progressbar/v3"
	"github.com/smallbiznis/revlens/internal/cache"
	"github.com/smallbiznis/revlens/internal/clock"
	"github.com/smallbiznis/revlens/internal/company"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/internal/events"
	"github.com/smallbiznis/revlens/internal/lock"
	"github.com/smallbiznis/revlens/internal/observability"
	"github.com/smallbiznis/revlens/internal/revenue"
	"github.com/smallbiznis/revlens/internal/snapshot"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"github.com/smallbiznis/revlens/internal/source"
	"github.com/smallbiznis/revlens/pkg/db"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	companyID := pflag.String("company", "", "company id to recompute")
	all := pflag.Bool("all", false, "recompute every registered company")
	timeout := pflag.Duration("timeout", time.Hour, "overall timeout")
	pflag.Parse()

	if *companyID == "" && !*all {
		fmt.Fprintln(os.Stderr, "either --company or --all is required")
		pflag.Usage()
		return 2
	}

	var (
		companies companydomain.Service
		snapshots snapshotdomain.Service
		log       *zap.Logger
	)
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		lock.Module,
		cache.Module,
		events.Module,

		source.Module,
		company.Module,
		revenue.Module,
		snapshot.Module,

		fx.Populate(&companies, &snapshots, &log),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	ids := []string{*companyID}
	if *all {
		list, err := companies.List(ctx)
		if err != nil {
			log.Error("list companies failed", zap.Error(err))
			return 1
		}
		ids = ids[:0]
		for _, c := range list {
			ids = append(ids, c.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		n, err := recompute(ctx, snapshots, id)
		if err != nil {
			failed++
			log.Error("recompute failed", zap.String("company_id", id), zap.Error(err))
			continue
		}
		log.Info("recompute finished", zap.String("company_id", id), zap.Int("snapshots", n))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func recompute(ctx context.Context, snapshots snapshotdomain.Service, companyID string) (int, error) {
	var bar *progressbar.ProgressBar
	n, err := snapshots.Recompute(ctx, companyID, func(step snapshotdomain.RecomputeStep) {
		if bar == nil {
			bar = progressbar.Default(int64(step.Total), "company "+companyID)
		}
		_ = bar.Set(step.Done)
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return n, err
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
