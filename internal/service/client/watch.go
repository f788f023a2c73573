package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/service/common"
)

// DefaultWatchInterval is the status polling interval of the watch action.
const DefaultWatchInterval = 1 * time.Second

// watch polls the status and prints a line whenever the state, the active
// inputs or the fault change. It returns nil when ctx is canceled.
func watch(ctx context.Context, client *common.Client, opts *Options) error {
	interval := opts.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	logger.InfoKV(ctx, "Watching panel status", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *domain.Status

	for {
		current, err := client.Status(ctx)

		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.ErrorKV(ctx, "Status check failed", "error", err)
		case changed(last, current):
			printChange(opts.Output, current)

			last = current
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}

// changed reports whether current differs from last in anything worth printing.
func changed(last, current *domain.Status) bool {
	return last == nil ||
		last.State != current.State ||
		last.Fault != current.Fault ||
		!slices.Equal(last.ActiveInputs, current.ActiveInputs)
}

// printChange writes a single status line.
func printChange(w io.Writer, current *domain.Status) {
	if w == nil {
		return
	}

	line := fmt.Sprintf("%s %-11s active=%s", time.Now().Format(time.DateTime), current.State, formatPins(current.ActiveInputs))

	if current.Fault != "" {
		line += " fault=" + current.Fault
	}

	_, _ = fmt.Fprintln(w, line)
}
