package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	tempSuffix   = ".part"
	lockSuffix   = ".lock"
	markerSuffix = ".done"
)

type DownloadDir string

func DownloadDirFrom(d string) DownloadDir {
	return DownloadDir(d)
}

// Destination lays out root/<owner>/[<group>/]<leaf>.<ext>, every component
// sanitized. A nil or empty group places the file directly under the owner.
func (dir DownloadDir) Destination(owner string, group *string, leaf, ext string) Destination {
	parts := []string{dir.path(), Sanitize(owner)}
	if nil != group && *group != "" {
		parts = append(parts, Sanitize(*group))
	}

	return newDestination(filepath.Join(parts...), FileName(leaf, ext))
}

// File places a single file directly under the root.
func (dir DownloadDir) File(leaf, ext string) Destination {
	return newDestination(dir.path(), FileName(leaf, ext))
}

func (dir DownloadDir) path() string {
	return string(dir)
}

func newDestination(dirPath, name string) Destination {
	p := filepath.Join(dirPath, name)

	return Destination{
		Dir:        dirPath,
		Path:       p,
		TempPath:   p + tempSuffix,
		MarkerPath: p + markerSuffix,
	}
}

// Destination is where one item is published. Partial data only ever lives
// at TempPath; Path appears through a single rename once the data is
// complete. MarkerPath records the new name when the published file was
// renamed afterwards.
type Destination struct {
	Dir        string
	Path       string
	TempPath   string
	MarkerPath string
}

// Exists is the resume gate: a file at Path, or the renamed file recorded
// in the marker, counts as done and is never downloaded again. Contents are
// not verified.
func (d Destination) Exists() (bool, error) {
	_, ok, err := d.Published()
	return ok, err
}

// Published returns the path the item was published under, following the
// marker left by MarkRenamed. A marker naming a file that is gone does not
// count.
func (d Destination) Published() (string, bool, error) {
	if ok, err := fileExists(d.Path); nil != err || ok {
		return d.Path, ok, err
	}

	data, err := os.ReadFile(d.MarkerPath)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, &Error{Op: "read", Path: d.MarkerPath, Err: err}
	}

	name := strings.TrimSpace(string(data))
	if name == "" || name != filepath.Base(name) {
		return "", false, nil
	}

	p := filepath.Join(d.Dir, name)
	ok, err := fileExists(p)
	if nil != err || !ok {
		return "", false, err
	}

	return p, true, nil
}

// MarkRenamed records that the item now lives at path, a file in the same
// directory.
func (d Destination) MarkRenamed(path string) error {
	if err := os.WriteFile(d.MarkerPath, []byte(filepath.Base(path)+"\n"), 0o644); nil != err { //nolint:gosec
		return &Error{Op: "write", Path: d.MarkerPath, Err: err}
	}

	return nil
}

func (d Destination) MkdirAll() error {
	if err := os.MkdirAll(d.Dir, 0o755); nil != err {
		return &Error{Op: "mkdir", Path: d.Dir, Err: err}
	}

	return nil
}

func (d Destination) RemoveTemp() error {
	if err := os.Remove(d.TempPath); nil != err && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "remove", Path: d.TempPath, Err: err}
	}

	return nil
}

func fileExists(path string) (bool, error) {
	if _, err := os.Stat(path); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat file: %v", err)
	}

	return true, nil
}
