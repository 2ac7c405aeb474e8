package metricspush

import (
	"context"
	"time"

	"github.com/smallbiznis/tabung/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, pusher Pusher, logger *zap.Logger) *Reporter {
		if pusher == nil {
			return nil
		}
		return NewReporter(pusher, cfg.AppName, cfg.AppVersion, logger)
	}),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, cfg config.Config, reporter *Reporter, db *gorm.DB, logger *zap.Logger) {
	if reporter == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	interval := time.Duration(cfg.MetricsPush.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics push worker", zap.Duration("interval", interval))
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				reporter.Collect(ctx, db)
				if err := reporter.Push(ctx); err != nil {
					logger.Error("initial metrics push failed", zap.Error(err))
				}

				for {
					select {
					case <-ticker.C:
						reporter.Collect(ctx, db)
						if err := reporter.Push(ctx); err != nil {
							logger.Error("periodic metrics push failed", zap.Error(err))
						}
					case <-ctx.Done():
						logger.Info("stopping metrics push worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
