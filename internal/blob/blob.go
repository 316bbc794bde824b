// Package blob uploads catalog images to the image host and discards the ones
// that no record references any more.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Folders images are grouped in.
const (
	FolderMovies    = "Movies"
	FolderDirectors = "Directors"
	FolderProducts  = "Products"
)

// ErrUnsupportedFormat rejects files that are not images.
var ErrUnsupportedFormat = errors.New("blob: unsupported file format")

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store is the image host.
type Store interface {
	// Upload stores the content under folder and returns its permanent URL.
	Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error)
	// UploadFile stores a local file under folder.
	UploadFile(ctx context.Context, folder, filePath string) (string, error)
	// Exists reports whether publicID is stored.
	Exists(ctx context.Context, publicID string) (bool, error)
	// Delete removes publicID. Deleting a missing id is not an error.
	Delete(ctx context.Context, publicID string) error
}

// PublicID derives "<folder>/<file name without extension>" from a URL.
func PublicID(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	file := path.Base(url)
	if i := strings.Index(file, "."); i >= 0 {
		file = file[:i]
	}
	folder := path.Base(path.Dir(url))
	if folder == "." || folder == "/" || folder == "" {
		return file
	}
	return folder + "/" + file
}

// CheckFormat rejects file names whose extension is not an accepted image type.
func CheckFormat(filename string) error {
	if !allowedExtensions[strings.ToLower(path.Ext(filename))] {
		return ErrUnsupportedFormat
	}
	return nil
}
