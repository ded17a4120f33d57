// Package testutil provides a migrated SQLite database and fixtures for tests.
package testutil

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
)

// Password is the password of every fixture user
const Password = "correct-horse"

var (
	hashOnce sync.Once
	hash     string
)

func passwordHash(t testing.TB) string {
	hashOnce.Do(func() {
		var err error
		hash, err = auth.HashPassword(Password)
		require.NoError(t, err)
	})
	return hash
}

// NewDB opens a migrated SQLite database in a temporary directory
func NewDB(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()
	database, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "portal.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.Migrate(ctx))
	return database
}

// NewStorage returns file storage rooted in a temporary directory
func NewStorage(t testing.TB) *filestorage.LocalStorage {
	t.Helper()
	storage, err := filestorage.NewLocalStorage(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return storage
}

// Env bundles a database with its repositories
type Env struct {
	DB    *db.DB
	Repos *repositories.Repositories
}

// NewEnv opens a fresh database and its repositories
func NewEnv(t testing.TB) *Env {
	database := NewDB(t)
	return &Env{DB: database, Repos: repositories.NewRepositories(database)}
}

// User creates a user with the fixture password
func (e *Env) User(t testing.TB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Username:  username,
		Password:  passwordHash(t),
		FirstName: username,
		Role:      role,
	}
	require.NoError(t, e.Repos.UserRepository.Create(context.Background(), u))
	return u
}

// Join adds users to a course according to their role
func (e *Env) Join(t testing.TB, course *models.Course, users ...*models.User) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		switch u.Role {
		case models.RoleStudent:
			require.NoError(t, e.Repos.CourseRepository.AddStudent(ctx, course.ID, u.ID))
		case models.RoleAssistant:
			require.NoError(t, e.Repos.CourseRepository.AddAssistant(ctx, course.ID, u.ID))
		case models.RoleCoordinator:
			require.NoError(t, e.Repos.CourseRepository.SetCoordinator(ctx, course.ID, u.ID))
			course.CoordinatorID = &u.ID
		}
	}
}

// FileHeader builds a multipart file header holding content
func FileHeader(t testing.TB, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body, contentType := MultipartBody(t, "file", filename, content)

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	headers := req.MultipartForm.File["file"]
	require.Len(t, headers, 1)
	return headers[0]
}

// MultipartBody encodes a single file field as a multipart form
func MultipartBody(t testing.TB, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}
