// Package seed fills a development database with demo users, courses and bookings.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/bootstrap"
	"github.com/itsbooking/portal/internal/pkg/apperrors"
)

// ErrProductionMode is returned when populate is asked to run against a production server config
var ErrProductionMode = errors.New("refusing to populate a database in production mode")

// DefaultPassword is the password of every generated user unless overridden
const DefaultPassword = "itsbooking"

// Options controls the generated data
type Options struct {
	Password     string
	Students     int
	Assistants   int
	Coordinators int
	// Seed makes the random capacities, registrations and reservations reproducible
	Seed uint64
}

// DefaultOptions mirrors the classic demo setup: six students, four assistants, two coordinators
func DefaultOptions() Options {
	return Options{
		Password:     DefaultPassword,
		Students:     6,
		Assistants:   4,
		Coordinators: 2,
		Seed:         1,
	}
}

// Result counts what was created
type Result struct {
	Users         int
	Courses       int
	Registrations int
	Reservations  int
}

var firstNames = []string{"Kari", "Ola", "Ingrid", "Lars", "Sofie", "Magnus", "Nora", "Henrik", "Emma", "Jonas", "Ida", "Sindre"}
var lastNames = []string{"Nordmann", "Hansen", "Johansen", "Olsen", "Larsen", "Andersen", "Pedersen", "Nilsen", "Berg", "Haugen"}

type demoCourse struct {
	title string
	code  string
}

var demoCourses = []demoCourse{
	{"Algoritmer og datastrukturer", "TDT4120"},
	{"Matematikk 1", "TMA4100"},
	{"Innføring i medisin for ikke-medisinere", "MFEL1010"},
}

type populator struct {
	svc    *bootstrap.Services
	rng    *rand.Rand
	opts   Options
	logger zerolog.Logger
	result Result
}

// Populate creates demo users and courses and fills the first course with random
// capacities, assistant registrations and student reservations. mode is the
// server mode from the configuration; production is refused.
func Populate(ctx context.Context, mode string, svc *bootstrap.Services, opts Options, logger zerolog.Logger) (*Result, error) {
	if strings.EqualFold(mode, "production") {
		return nil, ErrProductionMode
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}

	p := &populator{
		svc:    svc,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		opts:   opts,
		logger: logger,
	}

	students, err := p.users(ctx, "student", models.RoleStudent, opts.Students)
	if err != nil {
		return nil, err
	}
	assistants, err := p.users(ctx, "assistant", models.RoleAssistant, opts.Assistants)
	if err != nil {
		return nil, err
	}
	coordinators, err := p.users(ctx, "course_coordinator", models.RoleCoordinator, opts.Coordinators)
	if err != nil {
		return nil, err
	}

	courses := make([]*models.Course, 0, len(demoCourses))
	for _, dc := range demoCourses {
		course, err := svc.Courses.CreateCourse(ctx, &dto.CreateCourseRequest{Title: dc.title, Code: dc.code})
		if err != nil {
			return nil, fmt.Errorf("create course %s: %w", dc.code, err)
		}
		courses = append(courses, course)
		p.result.Courses++
	}
	algdat := courses[0]

	members := append(append([]*models.User{}, students...), assistants...)
	if len(coordinators) > 0 {
		members = append(members, coordinators[0])
	}
	for _, u := range members {
		if _, err := svc.Courses.Enroll(ctx, algdat.Code, u.Username); err != nil {
			return nil, fmt.Errorf("enroll %s in %s: %w", u.Username, algdat.Code, err)
		}
	}
	if len(students) > 0 {
		for _, course := range courses[1:] {
			if _, err := svc.Courses.Enroll(ctx, course.Code, students[0].Username); err != nil {
				return nil, fmt.Errorf("enroll %s in %s: %w", students[0].Username, course.Code, err)
			}
		}
	}

	if len(coordinators) > 0 && len(assistants) > 0 {
		if err := p.fillCourse(ctx, algdat, coordinators[0], assistants, students); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Int("users", p.result.Users).
		Int("courses", p.result.Courses).
		Int("registrations", p.result.Registrations).
		Int("reservations", p.result.Reservations).
		Msg("Database populated")
	return &p.result, nil
}

// users creates n users named prefix, prefix1, prefix2, ...
func (p *populator) users(ctx context.Context, prefix string, role models.Role, n int) ([]*models.User, error) {
	out := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		username := prefix
		if i > 0 {
			username += strconv.Itoa(i)
		}
		first := firstNames[p.rng.IntN(len(firstNames))]
		last := lastNames[p.rng.IntN(len(lastNames))]

		u, err := p.svc.Users.CreateUser(ctx, services.NewUserInput{
			Username:  username,
			Email:     strings.ToLower(first+"."+last) + strconv.Itoa(p.rng.IntN(1000)) + "@example.no",
			Password:  p.opts.Password,
			FirstName: first,
			LastName:  last,
			Role:      role,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrUsernameTaken) {
				return nil, fmt.Errorf("user %s already exists, populate needs an empty database: %w", username, err)
			}
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		out = append(out, u)
		p.result.Users++
	}
	return out, nil
}

// fillCourse gives every booking interval a random capacity of 0 to 5, registers
// some assistants and lets students reserve roughly a quarter of the free slots.
func (p *populator) fillCourse(ctx context.Context, course *models.Course, coordinator *models.User, assistants, students []*models.User) error {
	intervals, err := p.svc.Repos.BookingIntervalRepository.ListByCourse(ctx, course.ID)
	if err != nil {
		return err
	}

	for _, bi := range intervals {
		capacity := p.rng.IntN(6)
		if _, err := p.svc.Availability.UpdateCapacity(ctx, coordinator.ID, bi.NK, capacity); err != nil {
			return fmt.Errorf("set capacity of %s: %w", bi.NK, err)
		}

		registered := make(map[int64]bool)
		for i := 0; i < p.rng.IntN(capacity+1); i++ {
			a := assistants[p.rng.IntN(len(assistants))]
			if registered[a.ID] {
				continue
			}
			if _, err := p.svc.Availability.Toggle(ctx, a.ID, bi.NK); err != nil {
				return fmt.Errorf("register %s on %s: %w", a.Username, bi.NK, err)
			}
			registered[a.ID] = true
			p.result.Registrations++
			if p.rng.IntN(3) == 2 {
				break
			}
		}
		if len(registered) == 0 || len(students) == 0 {
			continue
		}

		slots, err := p.svc.Repos.ReservationRepository.ListIntervals(ctx, bi.ID)
		if err != nil {
			return err
		}
		for _, ri := range slots {
			candidates := append([]*models.User{}, students...)
			for range registered {
				if p.rng.IntN(4) != 0 || len(candidates) == 0 {
					continue
				}
				i := p.rng.IntN(len(candidates))
				student := candidates[i]
				candidates = append(candidates[:i], candidates[i+1:]...)

				if _, err := p.svc.Reservations.Reserve(ctx, student.ID, course.Slug, ri.ID); err != nil {
					return fmt.Errorf("reserve slot %d for %s: %w", ri.ID, student.Username, err)
				}
				p.result.Reservations++
			}
		}
	}
	return nil
}
