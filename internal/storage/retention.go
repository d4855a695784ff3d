package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/timmy/memebot/internal/logger"
)

// Pruner removes old materialized images.
type Pruner interface {
	Prune(keep int) (int, error)
}

// StartRetention runs pruner on the cron schedule until ctx is done.
// An empty expression disables the sweep.
func StartRetention(ctx context.Context, pruner Pruner, cronExpr string, keep int) (context.CancelFunc, error) {
	if cronExpr == "" {
		logger.Info("Retention sweep disabled")
		return func() {}, nil
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	ctx, cancel := context.WithCancel(ctx)
	go runRetention(ctx, pruner, cronExpr, keep)

	logger.Info("Retention sweep scheduled (cron=%q, keep=%d)", cronExpr, keep)
	return cancel, nil
}

func runRetention(ctx context.Context, pruner Pruner, cronExpr string, keep int) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		wait := time.Until(next)
		if err != nil {
			logger.Error("Retention next tick failed: %v", err)
			wait = 30 * time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if err != nil {
			continue
		}
		removed, err := pruner.Prune(keep)
		if err != nil {
			logger.Error("Retention sweep failed: %v", err)
			continue
		}
		if removed > 0 {
			logger.Info("Retention sweep removed %d files", removed)
		}
	}
}
