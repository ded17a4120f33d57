package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/middleware"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
	"github.com/itsbooking/portal/internal/pkg/helpers"
)

// ExerciseController handles exercise uploads and reviews
type ExerciseController struct {
	exerciseService *services.ExerciseService
	logger          zerolog.Logger
}

// NewExerciseController creates a new ExerciseController
func NewExerciseController(exerciseService *services.ExerciseService, logger zerolog.Logger) *ExerciseController {
	return &ExerciseController{
		exerciseService: exerciseService,
		logger:          logger,
	}
}

// Upload stores the "file" form file as an exercise of the current student
func (c *ExerciseController) Upload(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("A file is required"))
		return
	}

	exercise, err := c.exerciseService.Upload(ctx.Request.Context(), currentUserID(ctx), ctx.Param("slug"), file)
	if err != nil {
		c.logger.Warn().Err(err).Str("slug", ctx.Param("slug")).Msg("Exercise upload failed")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(exercise, "Exercise uploaded"))
}

// List returns a page of the exercises of a course. Students only see their own.
func (c *ExerciseController) List(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	unreviewed, _ := strconv.ParseBool(ctx.Query("unreviewed"))

	result, err := c.exerciseService.List(ctx.Request.Context(), currentUserID(ctx), ctx.Param("slug"), services.ExerciseListOptions{
		UnreviewedOnly: unreviewed,
		Page:           page,
		PageSize:       size,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result, ""))
}

// Get returns one exercise
func (c *ExerciseController) Get(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	exercise, err := c.exerciseService.Get(ctx.Request.Context(), currentUserID(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(exercise, ""))
}

// Download streams the uploaded file of an exercise
func (c *ExerciseController) Download(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	rc, name, err := c.exerciseService.Open(ctx.Request.Context(), currentUserID(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	serveFile(ctx, rc, name, false)
}

// Review records the feedback and verdict of an assistant or the coordinator
func (c *ExerciseController) Review(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.ReviewExerciseRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	exercise, err := c.exerciseService.Review(ctx.Request.Context(), currentUserID(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(exercise, "Exercise reviewed"))
}

// Delete removes an exercise together with its file
func (c *ExerciseController) Delete(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.exerciseService.Delete(ctx.Request.Context(), currentUserID(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Exercise deleted"))
}
