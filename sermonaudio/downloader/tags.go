package downloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/xeptore/sermondl/sermonaudio/fs"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

// renameFromTags renames a published audio file to "Artist - Title (q).mp3"
// using its embedded tags. Existing files are never overwritten: a numeric
// suffix is added instead. Files without a title tag keep their name. The
// new name is recorded at the destination marker before the old name goes
// away, so the item still counts as published.
func renameFromTags(dst fs.Destination, q types.Quality) (string, error) {
	path := dst.Path

	title, artist, err := readTags(path)
	if nil != err {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return path, nil
		}

		return path, err
	}
	if title == "" {
		return path, nil
	}

	base := title
	if artist != "" {
		base = artist + " - " + title
	}
	base += " (" + string(q) + ")"

	dir := filepath.Dir(path)
	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s (%d)", base, n)
		}

		target := filepath.Join(dir, fs.FileName(name, types.MediaAudio.Ext()))
		if target == path {
			return path, nil
		}

		// Link fails on an existing target, unlike Rename.
		if err := os.Link(path, target); nil != err {
			if errors.Is(err, os.ErrExist) {
				continue
			}

			return path, &fs.Error{Op: "link", Path: target, Err: err}
		}

		if err := dst.MarkRenamed(target); nil != err {
			if rmErr := os.Remove(target); nil != rmErr {
				err = errors.Join(err, &fs.Error{Op: "remove", Path: target, Err: rmErr})
			}

			return path, err
		}

		if err := os.Remove(path); nil != err {
			return target, &fs.Error{Op: "remove", Path: path, Err: err}
		}

		return target, nil
	}
}

func readTags(path string) (title, artist string, err error) {
	f, err := os.Open(path)
	if nil != err {
		return "", "", &fs.Error{Op: "open", Path: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			err = errors.Join(err, &fs.Error{Op: "close", Path: path, Err: closeErr})
		}
	}()

	m, err := tag.ReadFrom(f)
	if nil != err {
		return "", "", fmt.Errorf("read tags: %w", err)
	}

	return strings.TrimSpace(m.Title()), strings.TrimSpace(m.Artist()), nil
}
