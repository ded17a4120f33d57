package repositories

import "github.com/itsbooking/portal/internal/db"

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository            *UserRepository
	CourseRepository          *CourseRepository
	BookingIntervalRepository *BookingIntervalRepository
	ReservationRepository     *ReservationRepository
	ExerciseRepository        *ExerciseRepository
	AnnouncementRepository    *AnnouncementRepository
}

// NewRepositories initializes all repositories
func NewRepositories(database *db.DB) *Repositories {
	return &Repositories{
		UserRepository:            NewUserRepository(database),
		CourseRepository:          NewCourseRepository(database),
		BookingIntervalRepository: NewBookingIntervalRepository(database),
		ReservationRepository:     NewReservationRepository(database),
		ExerciseRepository:        NewExerciseRepository(database),
		AnnouncementRepository:    NewAnnouncementRepository(database),
	}
}
