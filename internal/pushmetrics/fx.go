package pushmetrics

import (
	"context"
	"time"

	"github.com/smallbiznis/revlens/internal/clock"
	"github.com/smallbiznis/revlens/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("push.metrics",
	fx.Provide(NewPusher),
	fx.Provide(NewGauges),
	fx.Invoke(startWorker),
)

// Worker collects deployment gauges and pushes them on an interval.
type Worker struct {
	db     *gorm.DB
	clock  clock.Clock
	gauges *Gauges
	pusher Pusher
	log    *zap.Logger
}

func NewWorker(db *gorm.DB, clk clock.Clock, gauges *Gauges, pusher Pusher, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{db: db, clock: clk, gauges: gauges, pusher: pusher, log: log.Named("pushmetrics")}
}

// PushOnce refreshes the gauges and ships them.
func (w *Worker) PushOnce(ctx context.Context) error {
	if err := w.gauges.Collect(ctx, w.db, w.clock.Now()); err != nil {
		return err
	}
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := w.pusher.Push(pushCtx, w.gauges.Registry()); err != nil {
		w.gauges.recordPushFailure()
		return err
	}
	return nil
}

func (w *Worker) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.PushOnce(ctx); err != nil {
			w.log.Warn("metrics push failed", zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			w.log.Info("stopping metrics push worker")
			return
		}
	}
}

func startWorker(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, clk clock.Clock, gauges *Gauges, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	interval := cfg.Push.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	worker := NewWorker(db, clk, gauges, pusher, log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			worker.log.Info("starting metrics push worker", zap.Duration("interval", interval))
			go worker.run(ctx, interval)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
