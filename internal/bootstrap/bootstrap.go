package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appAuth "github.com/itsbooking/portal/internal/app/auth"
	appControllers "github.com/itsbooking/portal/internal/app/controllers"
	appRepos "github.com/itsbooking/portal/internal/app/repositories"
	appRoutes "github.com/itsbooking/portal/internal/app/routes"
	appServices "github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/config"
	"github.com/itsbooking/portal/internal/db"
	appMiddleware "github.com/itsbooking/portal/internal/middleware"
	pkgAuth "github.com/itsbooking/portal/internal/pkg/auth"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
	"github.com/itsbooking/portal/internal/pkg/helpers"
	"github.com/itsbooking/portal/internal/pkg/logger"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/pkg/websocket"
)

// Services holds the application services shared by the API server and the admin CLI
type Services struct {
	Repos         *appRepos.Repositories
	Authz         *appAuth.AuthorizationService
	JWT           *pkgAuth.JWTService
	Storage       *filestorage.LocalStorage
	Metrics       *metrics.Metrics
	Auth          *appServices.AuthService
	Users         *appServices.UserService
	Courses       *appServices.CourseService
	Dashboard     *appServices.DashboardService
	Availability  *appServices.AvailabilityService
	Reservations  *appServices.ReservationService
	Exercises     *appServices.ExerciseService
	Announcements *appServices.AnnouncementService
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	*Services
	Hub            *websocket.Hub
	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath, component string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.FromSettings(cfg.Logging.Level, cfg.Logging.Format, component)
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase opens the configured database and applies pending migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.DB, error) {
	lgr.Info().Str("driver", cfg.Database.Driver).Msg("Establishing database connection...")
	database, err := db.Open(ctx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")
	return database, nil
}

// BuildServices initializes repositories and services. events may be nil.
func BuildServices(cfg *config.Config, database *db.DB, events appServices.EventPublisher, m *metrics.Metrics, lgr zerolog.Logger) (*Services, error) {
	grid, err := booking.GridFromConfig(cfg.Booking)
	if err != nil {
		return nil, fmt.Errorf("invalid booking grid: %w", err)
	}

	storage, err := filestorage.NewLocalStorage(cfg.Storage.Path, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	s := &Services{
		Repos:   appRepos.NewRepositories(database),
		Storage: storage,
		Metrics: m,
		JWT: pkgAuth.NewJWTService(pkgAuth.JWTConfig{
			SecretKey:      cfg.JWT.Secret,
			AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 12*time.Hour),
			TokenIssuer:    cfg.JWT.Issuer,
		}),
	}
	s.Authz = appAuth.NewAuthorizationService(s.Repos.UserRepository, s.Repos.CourseRepository)

	s.Auth = appServices.NewAuthService(s.Repos.UserRepository, s.JWT, lgr)
	s.Users = appServices.NewUserService(s.Repos.UserRepository, storage, m, lgr)
	s.Courses = appServices.NewCourseService(database, s.Repos, s.Authz, grid, storage, lgr)
	s.Dashboard = appServices.NewDashboardService(s.Repos, s.Authz, grid, lgr)
	s.Availability = appServices.NewAvailabilityService(database, s.Repos, s.Authz, cfg.Booking.EnforceCapacity, events, m, lgr)
	s.Reservations = appServices.NewReservationService(database, s.Repos, s.Authz, events, m, lgr)
	s.Exercises = appServices.NewExerciseService(s.Repos, s.Authz, storage, m, lgr)
	s.Announcements = appServices.NewAnnouncementService(s.Repos, s.Authz, events, lgr)
	return s, nil
}

// BuildDependencies initializes application services, the event hub and controllers.
func BuildDependencies(cfg *config.Config, database *db.DB, lgr zerolog.Logger) (*Dependencies, error) {
	m := metrics.New()
	hub := websocket.NewHub(lgr)
	hub.OnClientsChanged(m.SetWebsocketClients)

	services, err := BuildServices(cfg, database, hub, m, lgr)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Services:       services,
		Hub:            hub,
		AuthMiddleware: appMiddleware.NewAuthMiddleware(services.JWT),
		Logger:         lgr,
	}
	deps.Controllers = appRoutes.Controllers{
		Auth:         appControllers.NewAuthController(services.Auth, lgr),
		User:         appControllers.NewUserController(services.Users, lgr),
		Course:       appControllers.NewCourseController(services.Courses, services.Dashboard, lgr),
		Booking:      appControllers.NewBookingController(services.Availability, services.Reservations, lgr),
		Exercise:     appControllers.NewExerciseController(services.Exercises, lgr),
		Announcement: appControllers.NewAnnouncementController(services.Announcements, lgr),
		Health:       appControllers.NewHealthController(database),
		WebSocket:    websocket.NewHandler(hub, services.Courses, lgr),
	}
	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case "production":
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Storage.MaxUploadMB) << 20
	router.Use(
		appMiddleware.Recovery(lgr),
		appMiddleware.RequestLogger(lgr),
		deps.Metrics.Middleware(),
	)

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, deps.Metrics)
	return router
}
