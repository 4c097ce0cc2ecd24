package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/config"
	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/sermonaudio/fs"
	"github.com/xeptore/sermondl/sermonaudio/types"
)

var (
	ErrDownloadFailed = errors.New("download failed")
	ErrNotMedia       = errors.New("response is not a media file")
	ErrEmptyMedia     = errors.New("empty media response")
)

// Attempt is one tier of the ladder that did not work out.
type Attempt struct {
	Quality types.Quality
	URL     string
	Err     error
}

// DownloadFailedError means every tier of the ladder failed. It matches
// ErrDownloadFailed and unwraps to the last tier's error.
type DownloadFailedError struct {
	ItemID   string
	Attempts []Attempt
}

func (e *DownloadFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, string(a.Quality)+": "+a.Err.Error())
	}

	return fmt.Sprintf("download of sermon %s failed in every quality (%s)", e.ItemID, strings.Join(parts, "; "))
}

func (e *DownloadFailedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}

	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *DownloadFailedError) Is(target error) bool {
	return target == ErrDownloadFailed
}

// Progress receives the bytes written so far and the expected total, -1
// when the server did not announce one.
type Progress func(written, total int64)

type Task struct {
	ItemID      string
	Media       types.Media
	Ladder      []types.Quality
	Destination fs.Destination
	Progress    Progress
}

type Downloader struct {
	session        httputil.Session
	mediaURL       string
	timeout        time.Duration
	chunkSize      int
	renameFromTags bool
}

func New(session httputil.Session, sa config.SermonAudio, conf config.Downloader, timeouts config.Timeouts) *Downloader {
	return &Downloader{
		session:        session,
		mediaURL:       sa.MediaURL,
		timeout:        time.Duration(timeouts.Download) * time.Second,
		chunkSize:      conf.ChunkSize,
		renameFromTags: conf.RenameFromTags,
	}
}

// MediaURL is the download URL of one quality tier of a sermon.
func MediaURL(base string, media types.Media, q types.Quality, itemID string) string {
	return httputil.JoinURL(base, "media", media.String(), string(q), itemID+"."+media.Ext()) + "?download=true"
}

// Fetch tries the ladder in order and publishes the first tier that streams
// completely. Nothing is ever written at the destination path except by the
// final rename. It returns the published path, which differs from the task
// destination only when the file was renamed from its tags.
func (d *Downloader) Fetch(ctx context.Context, logger zerolog.Logger, task Task) (string, error) {
	if err := task.Destination.MkdirAll(); nil != err {
		return "", err
	}

	attempts := make([]Attempt, 0, len(task.Ladder))
	for _, q := range task.Ladder {
		u := MediaURL(d.mediaURL, task.Media, q, task.ItemID)
		logger := logger.With().Str("quality", string(q)).Logger()
		logger.Debug().Str("url", u).Msg("Trying quality")

		err := d.stream(ctx, logger, u, task)
		if nil == err {
			if err := publish(task.Destination); nil != err {
				return "", err
			}
			logger.Info().Str("path", task.Destination.Path).Msg("Sermon downloaded")

			if d.renameFromTags && task.Media == types.MediaAudio {
				renamed, err := renameFromTags(task.Destination, q)
				if nil != err {
					logger.Warn().Err(err).Msg("Failed to rename from tags, keeping original name")
					return task.Destination.Path, nil
				}

				return renamed, nil
			}

			return task.Destination.Path, nil
		}

		if cerr := ctx.Err(); nil != cerr {
			return "", context.Cause(ctx)
		}

		var fsErr *fs.Error
		if errors.As(err, &fsErr) {
			return "", err
		}

		logger.Warn().Err(err).Msg("Quality failed")
		attempts = append(attempts, Attempt{Quality: q, URL: u, Err: err})
	}

	return "", &DownloadFailedError{ItemID: task.ItemID, Attempts: attempts}
}

func publish(dst fs.Destination) error {
	if err := os.Rename(dst.TempPath, dst.Path); nil != err {
		err = &fs.Error{Op: "rename", Path: dst.Path, Err: err}
		if removeErr := dst.RemoveTemp(); nil != removeErr {
			return errors.Join(err, removeErr)
		}

		return err
	}

	return nil
}
