package filestorage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidPath is returned for paths that escape the storage root
var ErrInvalidPath = errors.New("invalid file path")

// LocalStorage handles saving files to the local filesystem.
type LocalStorage struct {
	basePath string
	logger   zerolog.Logger
}

// NewLocalStorage creates a new LocalStorage rooted at basePath, creating it if needed.
func NewLocalStorage(basePath string, logger zerolog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Debug().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{
		basePath: basePath,
		logger:   logger,
	}, nil
}

// SaveFileWithPath saves an uploaded multipart file under dir
func (ls *LocalStorage) SaveFileWithPath(fileHeader *multipart.FileHeader, dir string) (string, error) {
	if fileHeader == nil {
		return "", fmt.Errorf("%w: no file", ErrInvalidPath)
	}

	file, err := fileHeader.Open()
	if err != nil {
		ls.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Failed to open uploaded file")
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	return ls.Save(file, dir, fileHeader.Filename)
}

// Save writes r to dir/filename. When the name is taken a short random suffix is added.
func (ls *LocalStorage) Save(r io.Reader, dir, filename string) (string, error) {
	name := cleanFilename(filename)
	if name == "" {
		return "", fmt.Errorf("%w: empty filename", ErrInvalidPath)
	}
	relDir, err := cleanRelative(dir)
	if err != nil {
		return "", err
	}

	fullDir := filepath.Join(ls.basePath, filepath.FromSlash(relDir))
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		ls.logger.Error().Err(err).Str("path", fullDir).Msg("Failed to create subdirectory")
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	dst, finalName, err := createUnique(fullDir, name)
	if err != nil {
		ls.logger.Error().Err(err).Str("dir", fullDir).Str("filename", name).Msg("Failed to create destination file")
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		_ = os.Remove(dst.Name())
		ls.logger.Error().Err(err).Str("path", dst.Name()).Msg("Failed to copy uploaded file content")
		return "", fmt.Errorf("failed to save file content: %w", err)
	}

	stored := path.Join(relDir, finalName)
	ls.logger.Info().Str("filename", filename).Str("stored_as", stored).Msg("File saved")
	return stored, nil
}

func createUnique(dir, name string) (*os.File, string, error) {
	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		ext := filepath.Ext(name)
		candidate = strings.TrimSuffix(name, ext) + "_" + uuid.NewString()[:8] + ext
	}
	return nil, "", fmt.Errorf("could not find a free name for %s", name)
}

// Open opens a stored file for reading
func (ls *LocalStorage) Open(p string) (io.ReadCloser, error) {
	full, err := ls.resolve(p)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// DeleteFile removes a stored file. Deleting a missing file succeeds.
func (ls *LocalStorage) DeleteFile(p string) error {
	if p == "" {
		return nil
	}
	full, err := ls.resolve(p)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ls.logger.Warn().Str("path", full).Msg("File to delete does not exist")
			return nil
		}
		ls.logger.Error().Err(err).Str("path", full).Msg("Failed to delete file")
		return fmt.Errorf("failed to delete file: %w", err)
	}

	ls.logger.Info().Str("path", p).Msg("File deleted")
	return nil
}

// GetFullPath returns the filesystem path for a stored file, or "" if the path is invalid
func (ls *LocalStorage) GetFullPath(p string) string {
	full, err := ls.resolve(p)
	if err != nil {
		return ""
	}
	return full
}

func (ls *LocalStorage) resolve(p string) (string, error) {
	rel, err := cleanRelative(p)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", ErrInvalidPath
	}
	return filepath.Join(ls.basePath, filepath.FromSlash(rel)), nil
}

func cleanRelative(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return "", nil
	}
	cleaned := path.Clean("/" + p)[1:]
	if strings.HasPrefix(p, "/") || cleaned != strings.Trim(p, "/") || strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	return cleaned, nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
