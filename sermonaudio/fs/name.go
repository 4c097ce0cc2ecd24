package fs

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameBytes bounds a single path component including its extension.
const MaxNameBytes = 255

const untitled = "untitled"

var (
	forbiddenChars = regexp.MustCompile(`[<>"/\\|?*]`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Sanitize makes name usable as a single path component on common
// filesystems. The result is never empty and never exceeds MaxNameBytes.
func Sanitize(name string) string {
	return sanitize(name, MaxNameBytes)
}

// sidecarSuffixBytes is the longest suffix appended to a published name for
// its temp, lock and marker files.
const sidecarSuffixBytes = max(len(tempSuffix), len(lockSuffix), len(markerSuffix))

// FileName is Sanitize for a leaf with an extension. Truncation leaves room
// for ext and for the sidecar suffixes, so every file derived from the name
// stays within MaxNameBytes.
func FileName(name, ext string) string {
	suffix := ""
	if ext != "" {
		suffix = "." + strings.TrimPrefix(ext, ".")
	}

	return sanitize(name, MaxNameBytes-sidecarSuffixBytes-len(suffix)) + suffix
}

func sanitize(name string, limit int) string {
	name = strings.ToValidUTF8(name, "")
	name = strings.ReplaceAll(name, ":", " -")
	name = forbiddenChars.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}

		return r
	}, name)
	name = trim(name)
	if name == "" {
		return untitled
	}

	name = trim(truncate(name, limit))
	if name == "" {
		return untitled
	}

	return name
}

func trim(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ". ")
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	for i, r := range s {
		if i+utf8.RuneLen(r) > limit {
			return s[:i]
		}
	}

	return s
}
