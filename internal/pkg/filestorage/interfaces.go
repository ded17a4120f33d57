package filestorage

import (
	"io"
	"mime/multipart"
)

// FileStorage defines the interface for file storage operations.
// Paths passed in and returned are relative to the storage root and use forward slashes.
type FileStorage interface {
	// SaveFileWithPath stores an uploaded file under dir, keeping its original name when free
	SaveFileWithPath(fileHeader *multipart.FileHeader, dir string) (string, error)

	// Save stores the content of r as dir/filename
	Save(r io.Reader, dir, filename string) (string, error)

	// Open opens a stored file for reading
	Open(path string) (io.ReadCloser, error)

	// DeleteFile removes a stored file. Missing files are not an error
	DeleteFile(path string) error

	// GetFullPath returns the filesystem path of a stored file
	GetFullPath(path string) string
}
