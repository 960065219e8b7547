package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// EntryName returns the name `path` is stored under in the archive. It's
// relative to the filesystem root so that the archive is extracted at `/`.
func EntryName(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
}

// WriteFile writes a tar stream containing exactly one entry for the regular
// file at `path`. The mode and modification time are preserved.
func WriteFile(w io.Writer, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	if !fi.Mode().IsRegular() {
		return errors.New("%s is not a regular file", path)
	}

	header, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return errors.WithContext(err, "make header")
	}
	header.Name = EntryName(path)

	tw := tar.NewWriter(w)
	if err := tw.WriteHeader(header); err != nil {
		return errors.WithContext(err, "write header")
	}

	// The size in the header was taken from the stat, so the copy must write
	// exactly that many bytes even if the file grows underneath us.
	if _, err := io.CopyN(tw, f, header.Size); err != nil {
		return errors.WithContext(err, "write contents")
	}

	if err := tw.Close(); err != nil {
		return errors.WithContext(err, "close")
	}
	return nil
}

// FileBytes returns the archive built by WriteFile as a byte slice.
func FileBytes(path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteFile(&buf, path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
