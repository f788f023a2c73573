// Package schedule arms and disarms the panel on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	"github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/logger"
)

// Controller is the part of the panel driven by the schedule.
type Controller interface {
	Arm(ctx context.Context, actor *alarm.Actor, ignored []board.ID) (bool, error)
	Disarm(ctx context.Context, actor *alarm.Actor) bool
}

// scheduleActor is recorded as the actor of scheduled changes.
//
//nolint:gochecknoglobals // Immutable sentinel actor.
var scheduleActor = alarm.Actor{Username: "schedule"}

// Scheduler runs the configured arm and disarm entries.
type Scheduler struct {
	cron       *cron.Cron
	controller Controller
	ctx        context.Context //nolint:containedctx // Jobs run outside any request.
	entries    int
}

// New parses every entry and returns a stopped scheduler.
func New(controller Controller, entries []config.ScheduleEntry, opts ...cron.Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(opts...),
		controller: controller,
		ctx:        context.Background(),
	}

	for i, entry := range entries {
		action := strings.ToLower(strings.TrimSpace(entry.Action))
		if action != config.ActionArm && action != config.ActionDisarm {
			return nil, fmt.Errorf("schedule entry %d: unknown action %q", i, entry.Action)
		}

		spec, err := cron.ParseStandard(entry.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: parse %q: %w", i, entry.Cron, err)
		}

		expression := entry.Cron

		s.cron.Schedule(spec, cron.FuncJob(func() {
			s.Fire(logger.WithKV(s.ctx, "cron", expression), action)
		}))

		s.entries++
	}

	return s, nil
}

// Len returns the number of scheduled entries.
func (s *Scheduler) Len() int {
	return s.entries
}

// Run starts the schedule and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.entries == 0 {
		return nil
	}

	s.ctx = logger.WithName(ctx, "schedule")

	logger.InfoKV(s.ctx, "Schedule started", "entries", s.entries)

	s.cron.Start()

	<-ctx.Done()

	// Wait for running jobs to finish.
	<-s.cron.Stop().Done()

	logger.Info(s.ctx, "Schedule stopped")

	return nil
}

// Fire applies an action now.
func (s *Scheduler) Fire(ctx context.Context, action string) {
	actor := scheduleActor

	switch action {
	case config.ActionArm:
		changed, err := s.controller.Arm(ctx, &actor, nil)
		if err != nil {
			logger.ErrorKV(ctx, "Scheduled arm failed", "error", err)

			return
		}

		logger.InfoKV(ctx, "Scheduled arm", "changed", changed)
	case config.ActionDisarm:
		changed := s.controller.Disarm(ctx, &actor)

		logger.InfoKV(ctx, "Scheduled disarm", "changed", changed)
	default:
		logger.WarnKV(ctx, "Unknown scheduled action", "action", action)
	}
}
