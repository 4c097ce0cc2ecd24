package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AuthFile holds a single API token in plain text.
type AuthFile string

func AuthFileFrom(dir, filename string) AuthFile {
	return AuthFile(filepath.Join(dir, filename))
}

// Read returns os.ErrNotExist when no token was stored yet.
func (f AuthFile) Read() (token string, err error) {
	file, err := os.OpenFile(f.Path(), os.O_RDONLY, 0o0600)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return "", os.ErrNotExist
		}

		return "", fmt.Errorf("open token file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close token file: %v", closeErr))
		}
	}()

	b, err := io.ReadAll(file)
	if nil != err {
		return "", fmt.Errorf("read token file: %v", err)
	}

	return strings.TrimSpace(string(b)), nil
}

// Write replaces the stored token.
func (f AuthFile) Write(token string) (err error) {
	file, err := os.OpenFile(f.Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o0600)
	if nil != err {
		return fmt.Errorf("open token file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close token file: %v", closeErr))
		}
	}()

	if _, err := file.WriteString(token); nil != err {
		return fmt.Errorf("write token file: %v", err)
	}

	return nil
}

func (f AuthFile) Path() string {
	return string(f)
}
