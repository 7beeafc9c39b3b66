package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule '%s': %w", expr, err)
	}
	return sched, nil
}

// RunReloadScheduler calls run at every activation of the cron expression
// until ctx is cancelled. An empty expression disables reloading and
// returns immediately.
func RunReloadScheduler(ctx context.Context, expr string, loc *time.Location, run func(context.Context)) error {
	if strings.TrimSpace(expr) == "" {
		slog.Info("scheduled reload disabled (reload_schedule not set)")
		return nil
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	slog.Info("scheduled reload enabled", "cron", expr)
	runSchedule(ctx, sched, loc, run)
	return nil
}

func runSchedule(ctx context.Context, sched cron.Schedule, loc *time.Location, run func(context.Context)) {
	if loc == nil {
		loc = time.Local
	}
	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		wait := next.Sub(now)
		slog.Debug("next scheduled reload", "at", next.Format("Mon Jan 2 15:04"), "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		run(ctx)
	}
}
