package services

import (
	"context"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/itsbooking/portal/internal/app/auth"
	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/booking"
	"github.com/itsbooking/portal/internal/pkg/filestorage"
	"github.com/itsbooking/portal/internal/pkg/metrics"
	"github.com/itsbooking/portal/internal/testutil"
)

type publishedEvent struct {
	CourseID int64
	Type     string
	Payload  interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(courseID int64, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{CourseID: courseID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fixture is a course with a coordinator, two assistants and two students
type fixture struct {
	env     *testutil.Env
	storage filestorage.FileStorage
	events  *recordingPublisher
	metrics *metrics.Metrics
	authz   *auth.AuthorizationService

	courses       *CourseService
	dashboard     *DashboardService
	availability  *AvailabilityService
	reservations  *ReservationService
	exercises     *ExerciseService
	announcements *AnnouncementService
	users         *UserService

	coordinator *models.User
	assistant   *models.User
	assistant2  *models.User
	student     *models.User
	student2    *models.User
	course      *models.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	f := &fixture{
		env:     env,
		storage: testutil.NewStorage(t),
		events:  &recordingPublisher{},
		metrics: metrics.New(),
		authz:   auth.NewAuthorizationService(env.Repos.UserRepository, env.Repos.CourseRepository),
	}
	log := zerolog.Nop()

	f.courses = NewCourseService(env.DB, env.Repos, f.authz, booking.DefaultGrid, f.storage, log)
	f.dashboard = NewDashboardService(env.Repos, f.authz, booking.DefaultGrid, log)
	f.availability = NewAvailabilityService(env.DB, env.Repos, f.authz, false, f.events, f.metrics, log)
	f.reservations = NewReservationService(env.DB, env.Repos, f.authz, f.events, f.metrics, log)
	f.exercises = NewExerciseService(env.Repos, f.authz, f.storage, f.metrics, log)
	f.announcements = NewAnnouncementService(env.Repos, f.authz, f.events, log)
	f.users = NewUserService(env.Repos.UserRepository, f.storage, f.metrics, log)

	f.coordinator = env.User(t, "course_coordinator", models.RoleCoordinator)
	f.assistant = env.User(t, "assistant", models.RoleAssistant)
	f.assistant2 = env.User(t, "assistant1", models.RoleAssistant)
	f.student = env.User(t, "student", models.RoleStudent)
	f.student2 = env.User(t, "student1", models.RoleStudent)

	course, err := f.courses.CreateCourse(context.Background(), &dto.CreateCourseRequest{
		Title:       "Algoritmer og datastrukturer",
		Code:        "TDT4120",
		Coordinator: f.coordinator.Username,
	})
	require.NoError(t, err)
	f.course = course
	env.Join(t, course, f.assistant, f.assistant2, f.student, f.student2)
	return f
}

// interval returns the booking interval on day starting at hh:mm
func (f *fixture) interval(t *testing.T, day booking.Weekday, hh, mm int) *models.BookingInterval {
	t.Helper()
	start, err := booking.NewTimeOfDay(hh, mm)
	require.NoError(t, err)
	bi, err := f.env.Repos.BookingIntervalRepository.GetByNK(context.Background(), booking.IntervalKey(start, day, f.course.Code), false)
	require.NoError(t, err)
	return bi
}

// firstSlot returns the first reservation interval of bi
func (f *fixture) firstSlot(t *testing.T, bi *models.BookingInterval) *models.ReservationInterval {
	t.Helper()
	slots, err := f.env.Repos.ReservationRepository.ListIntervals(context.Background(), bi.ID)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	return &slots[0]
}

// register toggles assistants onto bi, expecting each toggle to register
func (f *fixture) register(t *testing.T, bi *models.BookingInterval, assistants ...*models.User) {
	t.Helper()
	for _, a := range assistants {
		resp, err := f.availability.Toggle(context.Background(), a.ID, bi.NK)
		require.NoError(t, err)
		require.False(t, resp.RegistrationAvailable)
	}
}

// enrolledStudent creates another student in the fixture course
func (f *fixture) enrolledStudent(t *testing.T, username string) *models.User {
	t.Helper()
	s := f.env.User(t, username, models.RoleStudent)
	f.env.Join(t, f.course, s)
	return s
}

func fileHeader(t *testing.T, name, content string) *multipart.FileHeader {
	return testutil.FileHeader(t, name, []byte(content))
}
