package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/middleware"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

// UserController handles the profile of the current user
type UserController struct {
	userService *services.UserService
	logger      zerolog.Logger
}

// NewUserController creates a new user controller
func NewUserController(userService *services.UserService, logger zerolog.Logger) *UserController {
	return &UserController{
		userService: userService,
		logger:      logger,
	}
}

// UploadAvatar replaces the avatar of the current user with the "avatar" form file
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	file, err := ctx.FormFile("avatar")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("An avatar file is required"))
		return
	}

	user, err := c.userService.SetAvatar(ctx.Request.Context(), currentUserID(ctx), file)
	if err != nil {
		c.logger.Warn().Err(err).Int64("userID", currentUserID(ctx)).Msg("Failed to update avatar")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewUserResponse(user), "Avatar updated"))
}

// GetAvatar streams the avatar of the current user
func (c *UserController) GetAvatar(ctx *gin.Context) {
	rc, name, err := c.userService.OpenAvatar(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	serveFile(ctx, rc, name, true)
}

// DeleteAvatar removes the avatar of the current user
func (c *UserController) DeleteAvatar(ctx *gin.Context) {
	if err := c.userService.DeleteAvatar(ctx.Request.Context(), currentUserID(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Avatar deleted"))
}
