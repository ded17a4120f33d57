package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/itsbooking/portal/internal/app/controllers"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/middleware"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/pkg/websocket"
)

// Controllers groups every HTTP handler the router mounts
type Controllers struct {
	Auth         *controllers.AuthController
	User         *controllers.UserController
	Course       *controllers.CourseController
	Booking      *controllers.BookingController
	Exercise     *controllers.ExerciseController
	Announcement *controllers.AnnouncementController
	Health       *controllers.HealthController
	WebSocket    *websocket.Handler
}

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	h Controllers,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
) {
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// API version group
	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health.Health)

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.GET("/auth/me", h.Auth.Me)
		authenticated.GET("/home", h.Course.Home)

		profile := authenticated.Group("/profile")
		{
			profile.GET("/avatar", h.User.GetAvatar)
			profile.PUT("/avatar", h.User.UploadAvatar)
			profile.DELETE("/avatar", h.User.DeleteAvatar)
		}

		courses := authenticated.Group("/courses/:slug")
		{
			courses.GET("", h.Course.Landing)
			courses.GET("/table", h.Course.Table)
			courses.POST("/reservations", authMiddleware.RoleRequired(models.RoleStudent), h.Booking.Reserve)
			courses.GET("/exercises", h.Exercise.List)
			courses.POST("/exercises", authMiddleware.RoleRequired(models.RoleStudent), h.Exercise.Upload)
			courses.GET("/announcements", h.Announcement.List)
			courses.POST("/announcements", authMiddleware.RoleRequired(models.RoleCoordinator), h.Announcement.Create)
		}

		bookingRoutes := authenticated.Group("/booking")
		{
			bookingRoutes.GET("/registration-switch", authMiddleware.RoleRequired(models.RoleAssistant), h.Booking.ToggleRegistration)
			bookingRoutes.GET("/max-assistants", authMiddleware.RoleRequired(models.RoleCoordinator), h.Booking.UpdateCapacity)
		}

		// Each role has its own reservations page
		authenticated.GET("/reservations", middleware.ByRole(
			h.Booking.StudentReservations,
			h.Booking.AssistantReservations,
			h.Booking.CoordinatorReservations,
		))
		authenticated.DELETE("/reservations/:id", authMiddleware.RoleRequired(models.RoleStudent), h.Booking.Cancel)

		exercises := authenticated.Group("/exercises/:id")
		{
			exercises.GET("", h.Exercise.Get)
			exercises.GET("/file", h.Exercise.Download)
			exercises.PUT("/review", authMiddleware.RoleRequired(models.RoleAssistant, models.RoleCoordinator), h.Exercise.Review)
			exercises.DELETE("", h.Exercise.Delete)
		}

		announcements := authenticated.Group("/announcements/:id")
		{
			announcements.GET("", h.Announcement.Get)
			announcements.DELETE("", authMiddleware.RoleRequired(models.RoleCoordinator), h.Announcement.Delete)
			announcements.POST("/comments", authMiddleware.RoleRequired(models.RoleAssistant, models.RoleCoordinator), h.Announcement.Comment)
		}

		if h.WebSocket != nil {
			authenticated.GET("/ws/courses/:slug", h.WebSocket.HandleConnection)
		}
	}
}
