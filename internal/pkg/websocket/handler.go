package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

// MembershipChecker resolves a course slug to its ID for a member of that course
type MembershipChecker interface {
	CourseIDForMember(ctx context.Context, userID int64, slug string) (int64, error)
}

// Handler for WebSocket connections
type Handler struct {
	hub     *Hub
	members MembershipChecker
	logger  zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, members MembershipChecker, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		members: members,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and subscribes the caller to the events of a course
func (h *Handler) HandleConnection(c *gin.Context) {
	slug := c.Param("slug")

	userID := c.GetInt64("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return
	}

	courseID, err := h.members.CourseIDForMember(c.Request.Context(), userID, slug)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrCourseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		case errors.Is(err, apperrors.ErrPermissionDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this course"})
		default:
			h.logger.Error().Err(err).Str("slug", slug).Int64("userID", userID).Msg("Failed to check course membership")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check course membership"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("courseID", courseID).
			Int64("userID", userID).
			Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		courseID: courseID,
		logger:   h.logger,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
