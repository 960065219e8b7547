package target

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/metrics"
)

// Result summarizes a fan-out over the fleet.
type Result struct {
	// Copied and Deleted count successful per-target operations.
	Copied  int
	Deleted int

	// Err collects every per-target failure. It's nil if all operations
	// succeeded.
	Err *multierror.Error
}

// Failed returns the number of operations that failed.
func (r Result) Failed() int {
	if r.Err == nil {
		return 0
	}
	return len(r.Err.Errors)
}

// CopyAll copies every path to every target. Targets are visited in order,
// and a failure on one target or path doesn't stop the rest.
func CopyAll(ctx context.Context, transport Transport, targets []Target, paths []string) Result {
	var res Result
	for _, t := range targets {
		for _, path := range paths {
			if ctx.Err() != nil {
				res.Err = multierror.Append(res.Err, errors.WithContext(ctx.Err(), "copy"))
				return res
			}

			logger := log.WithFields(log.Fields{"target": t.String(), "path": path})
			logger.Infof("Copying %s to %s:%s", path, t, path)
			if err := transport.CopyFile(ctx, t, path); err != nil {
				logger.WithError(err).Warn("Failed to copy file")
				metrics.ObserveTransfer(metrics.OpCopy, err)
				res.Err = multierror.Append(res.Err,
					errors.WithContext(err, fmt.Sprintf("copy %s to %s", path, t)))
				continue
			}
			metrics.ObserveTransfer(metrics.OpCopy, nil)
			res.Copied++
		}
	}
	return res
}

// DeleteAll removes every path from every target, with the same failure
// isolation as CopyAll.
func DeleteAll(ctx context.Context, transport Transport, targets []Target, paths []string) Result {
	var res Result
	for _, t := range targets {
		for _, path := range paths {
			if ctx.Err() != nil {
				res.Err = multierror.Append(res.Err, errors.WithContext(ctx.Err(), "delete"))
				return res
			}

			logger := log.WithFields(log.Fields{"target": t.String(), "path": path})
			logger.Infof("Deleting %s from %s", path, t)
			if err := transport.DeleteFile(ctx, t, path); err != nil {
				logger.WithError(err).Warn("Failed to delete file")
				metrics.ObserveTransfer(metrics.OpDelete, err)
				res.Err = multierror.Append(res.Err,
					errors.WithContext(err, fmt.Sprintf("delete %s from %s", path, t)))
				continue
			}
			metrics.ObserveTransfer(metrics.OpDelete, nil)
			res.Deleted++
		}
	}
	return res
}
