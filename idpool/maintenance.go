package idpool

import (
	"context"
	"time"

	"github.com/ceyewan/sctid-kit/clog"
)

// RunMaintenance 以固定间隔（上一轮结束后开始计时）调用 Maintain，直到 ctx 结束
func RunMaintenance(ctx context.Context, provider Provider, interval time.Duration) {
	logger := clog.Namespace("idpool").Namespace("maintenance")
	logger.Info("pool maintenance started", clog.Duration("interval", interval))

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("pool maintenance stopped")
			return
		case <-timer.C:
			if err := provider.Maintain(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("pool maintenance sweep finished with errors", clog.Err(err))
			}
			timer.Reset(interval)
		}
	}
}
