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
)

// BookingController handles assistant availability and student reservations
type BookingController struct {
	availabilityService *services.AvailabilityService
	reservationService  *services.ReservationService
	logger              zerolog.Logger
}

// NewBookingController creates a new BookingController
func NewBookingController(
	availabilityService *services.AvailabilityService,
	reservationService *services.ReservationService,
	logger zerolog.Logger,
) *BookingController {
	return &BookingController{
		availabilityService: availabilityService,
		reservationService:  reservationService,
		logger:              logger,
	}
}

func nkQuery(ctx *gin.Context) (string, bool) {
	nk := ctx.Query("nk")
	if nk == "" {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("Query parameter nk is required"))
		return "", false
	}
	return nk, true
}

// ToggleRegistration flips the registration of the current assistant on the
// booking interval given by ?nk=. The body is the raw toggle result.
func (c *BookingController) ToggleRegistration(ctx *gin.Context) {
	nk, ok := nkQuery(ctx)
	if !ok {
		return
	}

	result, err := c.availabilityService.Toggle(ctx.Request.Context(), currentUserID(ctx), nk)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// UpdateCapacity sets the maximum number of assistants of the booking interval
// given by ?nk= to ?num=
func (c *BookingController) UpdateCapacity(ctx *gin.Context) {
	nk, ok := nkQuery(ctx)
	if !ok {
		return
	}
	num, err := strconv.Atoi(ctx.Query("num"))
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("Query parameter num must be an integer"))
		return
	}

	result, err := c.availabilityService.UpdateCapacity(ctx.Request.Context(), currentUserID(ctx), nk, num)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// Reserve books a reservation interval of the course for the current student
func (c *BookingController) Reserve(ctx *gin.Context) {
	var req dto.ReserveRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	reservation, err := c.reservationService.Reserve(ctx.Request.Context(), currentUserID(ctx), ctx.Param("slug"), req.ReservationIntervalID)
	if err != nil {
		c.logger.Debug().Err(err).Int64("reservationIntervalID", req.ReservationIntervalID).Msg("Reservation refused")
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(reservation, "Reservation created"))
}

// Cancel deletes a reservation of the current student
func (c *BookingController) Cancel(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.reservationService.Cancel(ctx.Request.Context(), currentUserID(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(nil, "Reservation cancelled"))
}

// StudentReservations lists the reservations of the current student
func (c *BookingController) StudentReservations(ctx *gin.Context) {
	reservations, err := c.reservationService.ListForStudent(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(reservations, ""))
}

// AssistantReservations lists the booking intervals of the current assistant
// with the reservations assigned to them. ?course= limits it to one course.
func (c *BookingController) AssistantReservations(ctx *gin.Context) {
	views, err := c.reservationService.ListForAssistant(ctx.Request.Context(), currentUserID(ctx), ctx.Query("course"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(views, ""))
}

// CoordinatorReservations is the reservations page of a coordinator, who has none
func (c *BookingController) CoordinatorReservations(ctx *gin.Context) {
	middleware.HandleAPIError(ctx, apperrors.NewForbiddenError("Coordinators do not hold reservations"))
}
