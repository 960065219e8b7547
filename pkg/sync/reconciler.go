package sync

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/metrics"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// Reconciler copies changed files to the fleet, and brings targets that
// joined the fleet up to date. It isn't safe for concurrent use.
type Reconciler struct {
	backend    target.Backend
	root       string
	extensions []string

	digests DigestTable

	// fleetSize is the number of targets seen by the previous pass.
	fleetSize int
}

// NewReconciler returns a Reconciler that syncs the files under `root` with
// a recognized extension.
func NewReconciler(backend target.Backend, root string, exts []string) *Reconciler {
	return &Reconciler{
		backend:    backend,
		root:       root,
		extensions: exts,
		digests:    DigestTable{},
	}
}

// FleetSize returns the number of targets seen by the most recent pass.
func (r *Reconciler) FleetSize() int {
	return r.fleetSize
}

// SyncOnce runs a single reconciliation pass. Failures to copy to individual
// targets are logged, and don't fail the pass. An error is only returned if
// the pass couldn't run at all.
func (r *Reconciler) SyncOnce(ctx context.Context) (err error) {
	var changed []WatchedFile
	defer func() {
		if p := recover(); p != nil {
			// The changes may not have reached the fleet, so the next pass
			// must detect them again.
			r.digests.Forget(changed)
			metrics.ObservePass(errors.New("panic: %v", p))
			panic(p)
		}
		metrics.ObservePass(err)
	}()

	files, err := WatchedFiles(r.root, r.extensions)
	if err != nil {
		return errors.WithContext(err, "find watched files")
	}
	changed = r.digests.Update(files)

	targets, err := r.backend.ListTargets(ctx)
	if err != nil {
		// Nothing was copied, so the changes must be picked up again by the
		// next pass.
		r.digests.Forget(changed)
		return errors.WithContext(err, "list targets")
	}

	if len(changed) != 0 {
		if len(targets) == 0 {
			log.WithField("changed", len(changed)).Warn("No targets to sync changed files to")
		} else {
			log.WithFields(log.Fields{
				"changed": len(changed),
				"targets": len(targets),
			}).Info("Syncing changed files")
			r.logResult(target.CopyAll(ctx, r.backend, targets, Paths(changed)))
		}
		r.setFleetSize(len(targets))
		return nil
	}

	if len(targets) == 0 {
		log.Warn("No targets found")
	} else if len(targets) > r.fleetSize {
		log.WithFields(log.Fields{
			"previous": r.fleetSize,
			"current":  len(targets),
		}).Info("Fleet grew, syncing all files")
		r.logResult(target.CopyAll(ctx, r.backend, targets, Paths(files)))
	}
	r.setFleetSize(len(targets))
	return nil
}

func (r *Reconciler) setFleetSize(n int) {
	r.fleetSize = n
	metrics.SetFleetSize(n)
}

func (r *Reconciler) logResult(res target.Result) {
	fields := log.Fields{"copied": res.Copied, "failed": res.Failed()}
	if res.Failed() != 0 {
		log.WithFields(fields).Warn("Some files failed to sync")
		return
	}
	log.WithFields(fields).Debug("Finished syncing files")
}
