package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/repositories"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/pkg/validation"
)

var avatarExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// NewUserInput describes an account to create
type NewUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// UserService manages accounts and avatars
type UserService struct {
	userRepo *repositories.UserRepository
	storage  filestorage.FileStorage
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repositories.UserRepository, storage filestorage.FileStorage, m *metrics.Metrics, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		storage:  storage,
		metrics:  m,
		logger:   logger,
	}
}

// CreateUser validates the input, hashes the password and stores the account
func (s *UserService) CreateUser(ctx context.Context, in NewUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	err := validation.All(
		validation.NewStringValidation("username", in.Username).WithPattern(validation.CompiledPatterns.Username),
		validation.NewStringValidation("email", in.Email).WithPattern(validation.CompiledPatterns.Email).WithRequired(false),
		validation.NewStringValidation("password", in.Password).WithMinLength(validation.PasswordMinLength),
	)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if !in.Role.Valid() {
		return nil, apperrors.ErrUnknownRole
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  hash,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("username", user.Username).Str("role", string(user.Role)).Msg("User created")
	return user, nil
}

// ResetPassword replaces the password of username
func (s *UserService) ResetPassword(ctx context.Context, username, password string) error {
	if err := validation.NewStringValidation("password", password).WithMinLength(validation.PasswordMinLength).Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info().Int64("userID", user.ID).Msg("Password reset")
	return nil
}

// avatarDir is the storage directory of a user's avatar
func avatarDir(user *models.User) string {
	return fmt.Sprintf("avatars/user_%s_%d", user.Username, user.ID)
}

// SetAvatar stores a new avatar image for userID, replacing the previous one
func (s *UserService) SetAvatar(ctx context.Context, userID int64, fileHeader *multipart.FileHeader) (*models.User, error) {
	if fileHeader == nil {
		return nil, apperrors.NewValidationError("An avatar image is required")
	}
	if !avatarExtensions[strings.ToLower(path.Ext(fileHeader.Filename))] {
		return nil, apperrors.NewCustomError(apperrors.ErrAvatarNotSupported, "Avatar must be a PNG, JPEG, GIF or WebP image")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored, err := storeUpload(s.storage, fileHeader, avatarDir(user), "avatar")
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateAvatarPath(ctx, user.ID, &stored); err != nil {
		if delErr := s.storage.DeleteFile(stored); delErr != nil {
			s.logger.Error().Err(delErr).Str("path", stored).Msg("Failed to remove orphaned avatar")
		}
		return nil, err
	}

	if user.AvatarPath != nil && *user.AvatarPath != stored {
		if err := s.storage.DeleteFile(*user.AvatarPath); err != nil {
			s.logger.Warn().Err(err).Str("path", *user.AvatarPath).Msg("Failed to remove previous avatar")
		}
	}

	s.metrics.Upload(metrics.UploadKindAvatar)
	user.AvatarPath = &stored
	return user, nil
}

// DeleteAvatar removes the avatar of userID together with its file
func (s *UserService) DeleteAvatar(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.AvatarPath == nil {
		return apperrors.NewResourceNotFoundError("No avatar set")
	}

	if err := s.userRepo.UpdateAvatarPath(ctx, user.ID, nil); err != nil {
		return err
	}
	if err := s.storage.DeleteFile(*user.AvatarPath); err != nil {
		s.logger.Warn().Err(err).Str("path", *user.AvatarPath).Msg("Failed to remove avatar file")
	}
	return nil
}

// OpenAvatar returns the avatar image of userID and its file name
func (s *UserService) OpenAvatar(ctx context.Context, userID int64) (io.ReadCloser, string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user.AvatarPath == nil {
		return nil, "", apperrors.NewResourceNotFoundError("No avatar set")
	}

	rc, err := s.storage.Open(*user.AvatarPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperrors.NewResourceNotFoundError("Avatar file missing")
		}
		return nil, "", fmt.Errorf("failed to open avatar: %w", err)
	}
	return rc, path.Base(*user.AvatarPath), nil
}
