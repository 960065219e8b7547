package sync

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Extensions are the file extensions that are synced to the targets.
var Extensions = []string{".xml", ".config", ".xsd", ".dtd"}

// WatchedFile is a file under the watched root that's synced to the targets.
type WatchedFile struct {
	Path string

	// Digest is the hash of the file contents. It's only set once the file
	// has been hashed by a DigestTable.
	Digest string
}

// Recognized returns whether `path` has one of the extensions in `exts`.
func Recognized(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, recognized := range exts {
		if ext == recognized {
			return true
		}
	}
	return false
}

// WatchedFiles returns the regular files under `root` with a recognized
// extension, in lexical order. A missing root isn't an error, since the
// producer may not have rendered the configuration yet.
func WatchedFiles(root string, exts []string) ([]WatchedFile, error) {
	if _, err := fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			log.WithField("root", root).Warn("Watched directory doesn't exist")
			return nil, nil
		}
		return nil, errors.WithContext(err, "stat root")
	}

	var files []WatchedFile
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			// Files can disappear while the producer rewrites them.
			if os.IsNotExist(err) {
				return nil
			}
			return errors.WithContext(err, "walk error")
		}

		if !fi.Mode().IsRegular() || !Recognized(path, exts) {
			return nil
		}

		files = append(files, WatchedFile{Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Paths returns the path of each file.
func Paths(files []WatchedFile) []string {
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths
}
