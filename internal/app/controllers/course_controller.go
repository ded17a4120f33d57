package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/middleware"
)

// CourseController serves the course pages
type CourseController struct {
	courseService    *services.CourseService
	dashboardService *services.DashboardService
	logger           zerolog.Logger
}

// NewCourseController creates a new CourseController
func NewCourseController(courseService *services.CourseService, dashboardService *services.DashboardService, logger zerolog.Logger) *CourseController {
	return &CourseController{
		courseService:    courseService,
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Home lists the courses of the current user
func (c *CourseController) Home(ctx *gin.Context) {
	home, err := c.dashboardService.Home(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(home, ""))
}

// Landing returns the start page of a course for the role of the current user
func (c *CourseController) Landing(ctx *gin.Context) {
	landing, err := c.dashboardService.Landing(ctx.Request.Context(), currentUserID(ctx), ctx.Param("slug"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(landing, ""))
}

// Table returns the weekly booking table of a course
func (c *CourseController) Table(ctx *gin.Context) {
	table, err := c.courseService.Table(ctx.Request.Context(), currentUserID(ctx), ctx.Param("slug"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(table, ""))
}
