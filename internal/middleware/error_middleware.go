package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/pkg/logger"
)

// errorMapping binds a family of application errors to a status and code
type errorMapping struct {
	targets []error
	status  int
	code    dto.ErrorCode
	message string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{
		targets: []error{apperrors.ErrNoAssistantsAvailable},
		status:  http.StatusBadRequest,
		code:    dto.ErrorCodeNoAssistants,
		message: "No assistants available",
	},
	{
		targets: []error{apperrors.ErrPermissionDenied},
		status:  http.StatusForbidden,
		code:    dto.ErrorCodeForbidden,
		message: "Permission denied",
	},
	{
		targets: []error{apperrors.ErrValidationFailed, apperrors.ErrCapacityReached, apperrors.ErrAvatarNotSupported, apperrors.ErrUnknownRole},
		status:  http.StatusBadRequest,
		code:    dto.ErrorCodeValidationFailed,
		message: "Validation failed",
	},
	{
		targets: []error{apperrors.ErrBadRequest},
		status:  http.StatusBadRequest,
		code:    dto.ErrorCodeBadRequest,
		message: "Bad request",
	},
	{
		targets: []error{
			apperrors.ErrResourceNotFound, apperrors.ErrUserNotFound, apperrors.ErrCourseNotFound,
			apperrors.ErrBookingIntervalNotFound, apperrors.ErrReservationNotFound, apperrors.ErrConnectionNotFound,
			apperrors.ErrExerciseNotFound, apperrors.ErrAnnouncementNotFound,
		},
		status:  http.StatusNotFound,
		code:    dto.ErrorCodeResourceNotFound,
		message: "Resource not found",
	},
	{
		targets: []error{
			apperrors.ErrResourceAlreadyExists, apperrors.ErrUsernameTaken, apperrors.ErrCourseAlreadyExists,
			apperrors.ErrCoordinatorTaken, apperrors.ErrAlreadyReserved,
		},
		status:  http.StatusConflict,
		code:    dto.ErrorCodeResourceAlreadyExists,
		message: "Resource already exists",
	},
	{
		targets: []error{apperrors.ErrConflict},
		status:  http.StatusConflict,
		code:    dto.ErrorCodeConflict,
		message: "Conflict",
	},
	{
		targets: []error{apperrors.ErrInvalidCredentials},
		status:  http.StatusUnauthorized,
		code:    dto.ErrorCodeInvalidCredentials,
		message: "Invalid credentials",
	},
	{
		targets: []error{auth.ErrExpiredToken},
		status:  http.StatusUnauthorized,
		code:    dto.ErrorCodeExpiredToken,
		message: "Token expired",
	},
	{
		targets: []error{auth.ErrInvalidToken, auth.ErrInvalidFormat},
		status:  http.StatusUnauthorized,
		code:    dto.ErrorCodeInvalidToken,
		message: "Invalid token",
	},
	{
		targets: []error{apperrors.ErrUnauthorized},
		status:  http.StatusUnauthorized,
		code:    dto.ErrorCodeUnauthorized,
		message: "Authentication required",
	},
}

// StatusFor returns the HTTP status and error code err maps to
func StatusFor(err error) (int, dto.ErrorCode, string) {
	for _, m := range errorMappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				return m.status, m.code, m.message
			}
		}
	}
	return http.StatusInternalServerError, dto.ErrorCodeInternalServer, "Internal server error"
}

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, code, message := StatusFor(err)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("Unhandled error")
	} else {
		message = apperrors.Message(err)
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponse(dto.NewErrorDetail(code, message)))
}

// HandleBindError responds to a request body that could not be bound or validated
func HandleBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
}
