package lock

import (
	"github.com/smallbiznis/revlens/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(provideCaptureLocker),
)

func provideCaptureLocker(locker *Locker, cfg config.Config) CaptureLocker {
	return NewCaptureLocker(locker, cfg.Capture.LockTTL)
}
