package fswatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

var fs = afero.NewOsFs()

// renameWindow is how long a rename waits for the create that completes a
// move within the tree. A rename that isn't completed in time moved the file
// out of the tree.
const renameWindow = 100 * time.Millisecond

// Op is the kind of change to a watched file.
type Op int

const (
	// Modified means that the file was written, or appeared in the tree.
	Modified Op = iota + 1

	// Moved means that the file was renamed to Path from From.
	Moved

	// Deleted means that the file was removed.
	Deleted
)

func (op Op) String() string {
	switch op {
	case Modified:
		return "modified"
	case Moved:
		return "moved"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Event is a change to a file with a recognized extension.
type Event struct {
	Op   Op
	Path string

	// From is the previous path of a moved file.
	From string
}

// Watch watches `root` recursively, and sends an event on the returned
// channel whenever a file with one of the extensions in `exts` changes. The
// channel is closed once ctx is cancelled.
func Watch(ctx context.Context, root string, exts []string) (<-chan Event, error) {
	dirs, err := getDirsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", dir))
		}
	}

	t := &translator{exts: exts, addDir: watcher.Add, clock: clockwork.NewRealClock()}
	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() {
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}
		}()

		send := func(evs []Event) bool {
			for _, ev := range evs {
				select {
				case events <- ev:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("File watcher error")
			case <-t.expiry():
				if !send(t.expire()) {
					return
				}
			case fsEvent, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !send(t.translate(fsEvent)) {
					return
				}
			}
		}
	}()
	return events, nil
}

// translator converts raw fsnotify events into Events. It pairs a rename
// with the create that follows it to detect moves.
type translator struct {
	exts   []string
	addDir func(string) error
	clock  clockwork.Clock

	// renamedFrom is the path of the most recent rename, if the next event
	// may be the other half of a move. renamedAt is when it happened.
	renamedFrom string
	renamedAt   time.Time
}

func (t *translator) translate(fsEvent fsnotify.Event) []Event {
	path := fsEvent.Name

	var events []Event
	var renamedFrom string
	if t.renamedFrom != "" {
		if fsEvent.Has(fsnotify.Create) && t.clock.Since(t.renamedAt) <= renameWindow {
			renamedFrom = t.renamedFrom
			t.renamedFrom = ""
		} else {
			events = t.expire()
		}
	}

	switch {
	case fsEvent.Has(fsnotify.Create):
		fi, err := fs.Stat(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("Failed to stat created path")
			return append(events, t.renamedAway(renamedFrom)...)
		}

		if fi.IsDir() {
			events = append(events, t.renamedAway(renamedFrom)...)
			return append(events, t.watchNewDir(path)...)
		}

		if !t.recognized(path) {
			return append(events, t.renamedAway(renamedFrom)...)
		}
		if renamedFrom != "" {
			return append(events, Event{Op: Moved, Path: path, From: renamedFrom})
		}
		return append(events, Event{Op: Modified, Path: path})
	case fsEvent.Has(fsnotify.Write):
		if t.recognized(path) {
			events = append(events, Event{Op: Modified, Path: path})
		}
	case fsEvent.Has(fsnotify.Remove):
		if t.recognized(path) {
			events = append(events, Event{Op: Deleted, Path: path})
		}
	case fsEvent.Has(fsnotify.Rename):
		t.renamedFrom = path
		t.renamedAt = t.clock.Now()
	}
	return events
}

// expiry fires once the pending rename can no longer be paired with a
// create. It's nil if no rename is pending.
func (t *translator) expiry() <-chan time.Time {
	if t.renamedFrom == "" {
		return nil
	}
	return t.clock.After(renameWindow - t.clock.Since(t.renamedAt))
}

// expire gives up on pairing the pending rename.
func (t *translator) expire() []Event {
	from := t.renamedFrom
	t.renamedFrom = ""
	return t.renamedAway(from)
}

// renamedAway returns the event for a file that was renamed to a path that
// isn't synced, such as outside the tree or to an unrecognized name.
func (t *translator) renamedAway(from string) []Event {
	if from == "" || !t.recognized(from) {
		return nil
	}
	return []Event{{Op: Deleted, Path: from}}
}

// watchNewDir starts watching a directory that was created or moved into
// the tree, and returns a Modified event for each recognized file in it.
func (t *translator) watchNewDir(dir string) (events []Event) {
	err := afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			if err := t.addDir(path); err != nil {
				return errors.WithContext(err, fmt.Sprintf("watch %q", path))
			}
			return nil
		}

		if fi.Mode().IsRegular() && t.recognized(path) {
			events = append(events, Event{Op: Modified, Path: path})
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("path", dir).Warn("Failed to watch new directory")
	}
	return events
}

func (t *translator) recognized(path string) bool {
	ext := filepath.Ext(path)
	for _, recognized := range t.exts {
		if ext == recognized {
			return true
		}
	}
	return false
}

// getDirsToWatch returns `root` and all of its subdirectories. Because
// fsnotify doesn't watch directories recursively, each one is added to the
// watcher.
func getDirsToWatch(root string) (dirs []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.New("%s is not a directory", root)
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}
