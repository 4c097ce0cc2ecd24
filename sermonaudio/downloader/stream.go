package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/xeptore/sermondl/httputil"
	"github.com/xeptore/sermondl/sermonaudio/fs"
	"github.com/xeptore/sermondl/unit"
)

const sniffLen = 3 * unit.Kibibyte

// stream writes one tier to the temporary path. On any error the temporary
// file is gone when it returns.
func (d *Downloader) stream(ctx context.Context, logger zerolog.Logger, u string, task Task) (err error) {
	resp, err := d.session.Get(ctx, u, nil, d.timeout)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close media response body")
		}
	}()

	if code := resp.StatusCode; code != http.StatusOK {
		return &httputil.StatusError{URL: u, Code: code}
	}

	tmp := task.Destination.TempPath
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o0644)
	if nil != err {
		return &fs.Error{Op: "create", Path: tmp, Err: err}
	}
	closed := false
	defer func() {
		if !closed {
			if closeErr := f.Close(); nil != closeErr && nil == err {
				err = &fs.Error{Op: "close", Path: tmp, Err: closeErr}
			}
		}
		if nil != err {
			if removeErr := task.Destination.RemoveTemp(); nil != removeErr {
				err = errors.Join(err, removeErr)
			}
		}
	}()

	head, err := d.copy(f, resp.Body, resp.ContentLength, task.Progress)
	if nil != err {
		return err
	}

	if len(head) == 0 {
		return ErrEmptyMedia
	}

	if mt := mimetype.Detect(head); isText(mt) {
		return fmt.Errorf("%w: got %s", ErrNotMedia, mt.String())
	}

	if err := f.Sync(); nil != err {
		return &fs.Error{Op: "sync", Path: tmp, Err: err}
	}

	closed = true
	if err := f.Close(); nil != err {
		return &fs.Error{Op: "close", Path: tmp, Err: err}
	}

	return nil
}

// copy streams body to f in chunks, reporting progress, and returns the
// first bytes for content sniffing.
func (d *Downloader) copy(f *os.File, body io.Reader, total int64, progress Progress) ([]byte, error) {
	var (
		buf     = make([]byte, d.chunkSize)
		head    = make([]byte, 0, sniffLen)
		written int64
	)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); nil != err {
				return nil, &fs.Error{Op: "write", Path: f.Name(), Err: err}
			}
			if room := sniffLen - len(head); room > 0 {
				head = append(head, buf[:min(n, room)]...)
			}
			written += int64(n)
			if nil != progress {
				progress(written, total)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if nil != readErr {
			return nil, fmt.Errorf("read media stream: %w", readErr)
		}
	}

	if total >= 0 && written != total {
		return nil, fmt.Errorf("media stream ended after %d of %d bytes", written, total)
	}

	return head, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; nil != m; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}

	return false
}
