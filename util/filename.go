package util

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// maxFilenameLength bounds sanitized names well below common filesystem limits, leaving room
// for suffixes like " [videoid].mp4".
const maxFilenameLength = 180

// FilenameFromURL extracts the final path element of a URL as a filename.
func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// SanitizeFilename makes an arbitrary title (e.g. a video title from an upstream service) safe
// to use as a single path element: path separators and characters rejected by common
// filesystems are dropped, whitespace runs collapse to one space, and the result is trimmed
// and length-bounded. Returns ErrNoFilename if nothing usable remains.
func SanitizeFilename(name string) (string, error) {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			// dropped
		case r < 0x20 || r == 0x7f:
			// control characters (including tabs and newlines) become spaces, collapsed below
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, ". ")
	if runes := []rune(cleaned); len(runes) > maxFilenameLength {
		cleaned = strings.TrimRight(string(runes[:maxFilenameLength]), ". ")
	}
	if cleaned == "" {
		return "", ErrNoFilename
	}
	return cleaned, nil
}
