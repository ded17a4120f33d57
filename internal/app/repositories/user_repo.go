package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/dberrors"
	"github.com/itsbooking/portal/internal/pkg/helpers"
)

var userColumns = []string{
	"id", "username", "email", "password", "first_name", "last_name", "role", "avatar_path", "created_at",
}

// UserRepository handles user database operations
type UserRepository struct {
	db *db.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(database *db.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts a user and sets its ID
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.db.Builder.Insert("users").
		Columns("username", "email", "password", "first_name", "last_name", "role", "created_at").
		Values(user.Username, user.Email, user.Password, user.FirstName, user.LastName, string(user.Role), user.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create user query: %w", err)
	}

	if err := r.db.Conn(ctx).GetContext(ctx, &user.ID, query, args...); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, where sq.Eq) (*models.User, error) {
	query, args, err := r.db.Builder.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	var user models.User
	if err := r.db.Conn(ctx).GetContext(ctx, &user, query, args...); err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, sq.Eq{"username": username})
}

// ListByRole lists users with the given role ordered by username
func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	query, args, err := r.db.Builder.Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": string(role)}).
		OrderBy("username").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list users query: %w", err)
	}

	users := []models.User{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	return r.update(ctx, userID, "password", hash)
}

// UpdateAvatarPath sets or clears the stored avatar path
func (r *UserRepository) UpdateAvatarPath(ctx context.Context, userID int64, path *string) error {
	return r.update(ctx, userID, "avatar_path", helpers.GetNullString(path))
}

func (r *UserRepository) update(ctx context.Context, userID int64, column string, value interface{}) error {
	query, args, err := r.db.Builder.Update("users").
		Set(column, value).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update user query: %w", err)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
