package sync

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/fswatch"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// EventHandler propagates individual filesystem events to the fleet. The
// targets are listed again for every event.
type EventHandler struct {
	backend target.Backend
}

// NewEventHandler returns an EventHandler that propagates events through
// `backend`.
func NewEventHandler(backend target.Backend) *EventHandler {
	return &EventHandler{backend: backend}
}

// Handle copies modified and moved files to every target, and deletes
// deleted files from every target.
func (h *EventHandler) Handle(ctx context.Context, ev fswatch.Event) {
	logger := log.WithFields(log.Fields{
		"event": ev.Op.String(),
		"path":  ev.Path,
	})
	if ev.Op == fswatch.Moved {
		logger = logger.WithField("from", ev.From)
	}
	logger.Info("Detected change")

	targets, err := h.backend.ListTargets(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to list targets, dropping event")
		return
	}

	if len(targets) == 0 {
		logger.Warn("No targets to sync to")
		return
	}

	var res target.Result
	switch ev.Op {
	case fswatch.Modified, fswatch.Moved:
		res = target.CopyAll(ctx, h.backend, targets, []string{ev.Path})
	case fswatch.Deleted:
		res = target.DeleteAll(ctx, h.backend, targets, []string{ev.Path})
	default:
		logger.Debug("Ignoring unknown event")
		return
	}

	if res.Failed() != 0 {
		logger.WithField("failed", res.Failed()).Warn("Some targets failed to sync")
	}
}
