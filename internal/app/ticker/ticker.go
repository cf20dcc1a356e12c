// Package ticker advances the engine's block clock on a cron schedule. A
// deployment embedded in a real chain would feed heights in from the host
// instead; the ticker gives a standalone daemon a deterministic notion of
// time for pool expiry and DAO period math.
package ticker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

// BlockTicker bumps a manual clock by one block per schedule fire.
type BlockTicker struct {
	clock    *chain.ManualClock
	schedule string
	cron     *cron.Cron
	log      *logger.Logger
}

// New constructs a ticker. The schedule uses cron syntax, including the
// @every form.
func New(clock *chain.ManualClock, schedule string, log *logger.Logger) *BlockTicker {
	if log == nil {
		log = logger.NewDefault("ticker")
	}
	return &BlockTicker{clock: clock, schedule: schedule, log: log}
}

// Name implements system.Service.
func (t *BlockTicker) Name() string { return "block-ticker" }

// Start begins advancing the clock.
func (t *BlockTicker) Start(context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(t.schedule, func() {
		t.clock.Advance(1)
		t.log.WithField("height", t.clock.Current()).Debug("block advanced")
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", t.schedule, err)
	}
	t.cron = c
	c.Start()
	t.log.WithField("schedule", t.schedule).Info("block ticker started")
	return nil
}

// Stop halts the schedule and waits for an in-flight tick to finish.
func (t *BlockTicker) Stop(ctx context.Context) error {
	if t.cron == nil {
		return nil
	}
	done := t.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
