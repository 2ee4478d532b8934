package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron triggers unforced scan cycles on a fixed schedule. One cycle also runs
// immediately at startup so fresh deployments do not wait a full interval.
type Cron struct {
	cron   *cron.Cron
	runner *Runner
	spec   string
	logger *zap.Logger
}

// NewCron creates a Cron with a spec like "@every 15m".
func NewCron(runner *Runner, spec string, logger *zap.Logger) *Cron {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cron{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the job and starts the schedule.
func (c *Cron) Start(ctx context.Context) error {
	_, err := c.cron.AddFunc(c.spec, func() {
		c.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("register cron schedule %q: %w", c.spec, err)
	}

	c.cron.Start()
	c.logger.Info("scan schedule started", zap.String("spec", c.spec))

	go c.runOnce(ctx)
	return nil
}

// Stop halts the schedule. A cycle already in flight finishes on its own.
func (c *Cron) Stop() {
	c.cron.Stop()
	c.logger.Info("scan schedule stopped")
}

func (c *Cron) runOnce(ctx context.Context) {
	if _, err := c.runner.RunCycle(ctx, false); err != nil {
		c.logger.Error("scheduled scan cycle failed", zap.Error(err))
	}
}
