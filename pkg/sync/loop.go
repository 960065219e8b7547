package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/fswatch"
)

// Syncer runs a single reconciliation pass.
type Syncer interface {
	SyncOnce(ctx context.Context) error
}

// RunPoll runs a pass immediately, and then again every `interval` until ctx
// is cancelled. A failed or panicking pass doesn't stop the loop.
func RunPoll(ctx context.Context, syncer Syncer, interval time.Duration, clock clockwork.Clock) {
	log.WithField("interval", interval).Info("Polling for changes")
	for {
		if err := runPass(ctx, syncer); err != nil {
			log.WithError(err).Warn("Sync pass failed, retrying on the next tick")
		}

		select {
		case <-ctx.Done():
			return
		case <-clock.After(interval):
		}
	}
}

func runPass(ctx context.Context, syncer Syncer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return syncer.SyncOnce(ctx)
}

// RunEvents handles each event in order until `events` is closed or ctx is
// cancelled.
func RunEvents(ctx context.Context, events <-chan fswatch.Event, handler *EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			handler.Handle(ctx, ev)
		}
	}
}
