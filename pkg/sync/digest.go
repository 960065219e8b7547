package sync

import (
	"crypto/sha512"
	"encoding/base64"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

// HashFile returns the sha512 hash of the file at the given path.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// DigestTable maps each watched path to the digest it had when it was last
// examined.
type DigestTable map[string]string

// Update hashes every file, records the new digests, and returns the files
// that weren't in the table or whose digest changed. Entries for paths that
// aren't in `files` are dropped, so a file that's removed and recreated is
// treated as new.
func (table DigestTable) Update(files []WatchedFile) (changed []WatchedFile) {
	seen := map[string]struct{}{}
	for _, f := range files {
		digest, err := HashFile(f.Path)
		if err != nil {
			// The file was removed after the walk. It'll be picked up again
			// if it's recreated.
			if os.IsNotExist(errors.RootCause(err)) {
				log.WithField("path", f.Path).Debug("Skipping file that disappeared")
			} else {
				log.WithError(err).WithField("path", f.Path).Warn("Failed to hash file")
			}
			continue
		}

		seen[f.Path] = struct{}{}
		f.Digest = digest
		if prev, ok := table[f.Path]; !ok || prev != digest {
			changed = append(changed, f)
		}
		table[f.Path] = digest
	}

	for path := range table {
		if _, ok := seen[path]; !ok {
			delete(table, path)
		}
	}
	return changed
}

// Forget drops the entries for `files`, so that they're reported as changed
// by the next Update.
func (table DigestTable) Forget(files []WatchedFile) {
	for _, f := range files {
		delete(table, f.Path)
	}
}
