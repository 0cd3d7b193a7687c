package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFolder is returned for folders outside the allowed set.
var ErrInvalidFolder = errors.New("invalid upload folder")

// Folders media may be uploaded into.
var Folders = map[string]struct{}{
	"videos":     {},
	"thumbnails": {},
}

// UploadInput describes a single media file to store.
type UploadInput struct {
	Folder      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Object is a stored file and the URL clients fetch it from.
type Object struct {
	Key string
	URL string
}

// Service stores user supplied media in remote object storage.
type Service interface {
	Upload(ctx context.Context, in UploadInput) (Object, error)
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// ObjectKey builds a collision free key under prefix/folder, keeping only a
// sanitized extension of the client supplied name.
func ObjectKey(prefix, folder, fileName string) (string, error) {
	if _, ok := Folders[folder]; !ok {
		return "", ErrInvalidFolder
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return path.Join(strings.Trim(prefix, "/"), folder, uuid.NewString()+ext), nil
}
