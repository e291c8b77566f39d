package feed

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "github.com/ktmouritzen-byte/Lectioskema/internal/log"
)

// RunDaemon regenerates all feeds on the configured cron schedule until
// ctx is cancelled. One run happens immediately at startup so a fresh
// deployment serves current data right away.
func (g *Generator) RunDaemon(ctx context.Context) error {
	if err := g.RunAll(ctx); err != nil {
		// A failed run is not fatal in daemon mode; the next tick retries.
		appLog.Error("initial feed run failed", err)
	}

	c := cron.New()
	_, err := c.AddFunc(g.cfg.Refresh, func() {
		if err := g.RunAll(ctx); err != nil {
			appLog.Error("scheduled feed run failed", err)
			return
		}
		appLog.Info("scheduled feed run completed")
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", g.cfg.Refresh, err)
	}

	appLog.Info("daemon started", "refresh", g.cfg.Refresh)
	c.Start()

	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	appLog.Info("daemon stopped")
	return nil
}
