package bundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zip"
)

// dirPermissions is used for directories expo-up creates.
const dirPermissions = 0o755

// Archive is a zipped bundle ready for upload.
type Archive struct {
	// Path is the absolute location of the zip file.
	Path string
	// Name is the file name, "<Timestamp>.zip".
	Name string
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64
}

// ArchiveError is returned when the bundle cannot be compressed.
type ArchiveError struct {
	// Err is the underlying I/O failure.
	Err error
}

// Error implements error.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("compress bundle: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Remove deletes the archive file; a missing file is not an error.
func (a *Archive) Remove() error {
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// NewArchive compresses srcDir into destDir/<now in unix millis>.zip.
// The file is complete and closed when NewArchive returns; on failure the
// partial file is removed.
func NewArchive(srcDir, destDir string, now time.Time) (*Archive, error) {
	timestamp := now.UnixMilli()
	name := strconv.FormatInt(timestamp, 10) + ".zip"

	archive := &Archive{
		Path:      filepath.Join(destDir, name),
		Name:      name,
		Timestamp: timestamp,
	}

	if err := writeZip(srcDir, archive.Path); err != nil {
		_ = archive.Remove()

		return nil, &ArchiveError{Err: err}
	}

	return archive, nil
}

// writeZip walks srcDir and stores its contents, relative to srcDir, in path.
func writeZip(srcDir, path string) (err error) {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	writer := zip.NewWriter(file)

	err = filepath.WalkDir(srcDir, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(srcDir, current)
		if relErr != nil {
			return relErr
		}

		if rel == "." {
			return nil
		}

		return addEntry(writer, current, filepath.ToSlash(rel), entry)
	})
	if err != nil {
		_ = writer.Close()

		return err
	}

	if err = writer.Close(); err != nil {
		return err
	}

	return file.Sync()
}

// addEntry writes one file or directory header into the archive.
func addEntry(writer *zip.Writer, path, name string, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name

	if entry.IsDir() {
		header.Name += "/"
		_, err = writer.CreateHeader(header)

		return err
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: unsupported file type %s", name, info.Mode().Type())
	}

	header.Method = zip.Deflate

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}

	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	_, err = io.Copy(dst, src)

	return err
}
