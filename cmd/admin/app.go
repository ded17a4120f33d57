package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/itsbooking/portal/internal/app/models"
	"github.com/itsbooking/portal/internal/app/models/dto"
	"github.com/itsbooking/portal/internal/app/services"
	"github.com/itsbooking/portal/internal/bootstrap"
	"github.com/itsbooking/portal/internal/config"
	"github.com/itsbooking/portal/internal/db"
	"github.com/itsbooking/portal/internal/seed"
)

// readPasswordFunc reads a line from the terminal without echo
var readPasswordFunc = term.ReadPassword

// adminEnv is what every command needs once the configuration is loaded
type adminEnv struct {
	cfg    *config.Config
	db     *db.DB
	svc    *bootstrap.Services
	logger zerolog.Logger
}

func (e *adminEnv) Close() error {
	return e.db.Close()
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "admin",
		Usage: "manage the itsBooking portal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"ITSBOOKING_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "migrate",
				Usage:     "run a migration command (up, down, status, version, redo, reset)",
				ArgsUsage: "[command] [args...]",
				Action:    migrateAction,
			},
			{
				Name:  "adduser",
				Usage: "create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Value: "student", Usage: "student, assistant or coordinator"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "password", Usage: "prompted for when empty"},
				},
				Action: addUserAction,
			},
			{
				Name:      "resetpassword",
				Usage:     "set a new password for a user",
				ArgsUsage: "<username>",
				Action:    resetPasswordAction,
			},
			{
				Name:  "addcourse",
				Usage: "create a course and its booking grid",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "code", Required: true},
					&cli.StringFlag{Name: "coordinator", Usage: "username of the course coordinator"},
				},
				Action: addCourseAction,
			},
			{
				Name:      "deletecourse",
				Usage:     "delete a course with its bookings and uploaded files",
				ArgsUsage: "<code>",
				Action:    deleteCourseAction,
			},
			{
				Name:      "enroll",
				Usage:     "add users to a course according to their role",
				ArgsUsage: "<code> <username>...",
				Action:    enrollAction,
			},
			{
				Name:   "courses",
				Usage:  "list courses",
				Action: listCoursesAction,
			},
			{
				Name:  "populate",
				Usage: "fill an empty development database with demo data",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Value: seed.DefaultPassword, Usage: "password of every generated user"},
					&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "random seed"},
				},
				Action: populateAction,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	return bootstrap.LoadConfigAndSetupLogger(c.String("config"), "admin")
}

// openEnv loads the configuration, opens and migrates the database and builds the services
func openEnv(c *cli.Context) (*adminEnv, error) {
	cfg, lgr, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	database, err := bootstrap.SetupDatabase(c.Context, cfg, lgr)
	if err != nil {
		return nil, err
	}
	svc, err := bootstrap.BuildServices(cfg, database, nil, nil, lgr)
	if err != nil {
		database.Close()
		return nil, err
	}
	return &adminEnv{cfg: cfg, db: database, svc: svc, logger: lgr}, nil
}

func withEnv(c *cli.Context, fn func(ctx context.Context, env *adminEnv) error) error {
	env, err := openEnv(c)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(c.Context, env)
}

func migrateAction(c *cli.Context) error {
	cfg, lgr, err := loadConfig(c)
	if err != nil {
		return err
	}
	database, err := db.Open(c.Context, cfg, lgr)
	if err != nil {
		return err
	}
	defer database.Close()

	command := "up"
	var args []string
	if c.NArg() > 0 {
		command = c.Args().First()
		args = c.Args().Tail()
	}
	return database.RunMigrations(c.Context, command, args...)
}

func promptPassword(c *cli.Context) (string, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(c.App.ErrWriter, "Password: ")
	first, err := readPasswordFunc(fd)
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(c.App.ErrWriter, "Password (again): ")
	second, err := readPasswordFunc(fd)
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func addUserAction(c *cli.Context) error {
	role, err := models.ParseRole(c.String("role"))
	if err != nil {
		return err
	}
	password := c.String("password")
	if password == "" {
		if password, err = promptPassword(c); err != nil {
			return err
		}
	}

	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		user, err := env.svc.Users.CreateUser(ctx, services.NewUserInput{
			Username:  c.String("username"),
			Email:     c.String("email"),
			Password:  password,
			FirstName: c.String("first-name"),
			LastName:  c.String("last-name"),
			Role:      role,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "created %s %s (id %d)\n", strings.ToLower(string(user.Role)), user.Username, user.ID)
		return nil
	})
}

func resetPasswordAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: admin resetpassword <username>", 2)
	}
	username := c.Args().First()

	password, err := promptPassword(c)
	if err != nil {
		return err
	}

	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		if err := env.svc.Users.ResetPassword(ctx, username, password); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "password of %s updated\n", username)
		return nil
	})
}

func addCourseAction(c *cli.Context) error {
	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		course, err := env.svc.Courses.CreateCourse(ctx, &dto.CreateCourseRequest{
			Title:       c.String("title"),
			Code:        c.String("code"),
			Coordinator: c.String("coordinator"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "created course %s %q (slug %s)\n", course.Code, course.Title, course.Slug)
		return nil
	})
}

func deleteCourseAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: admin deletecourse <code>", 2)
	}
	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		if err := env.svc.Courses.DeleteCourse(ctx, c.Args().First()); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted course %s\n", c.Args().First())
		return nil
	})
}

func enrollAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("usage: admin enroll <code> <username>...", 2)
	}
	code := c.Args().First()

	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		for _, username := range c.Args().Tail() {
			role, err := env.svc.Courses.Enroll(ctx, code, username)
			if err != nil {
				return fmt.Errorf("enroll %s: %w", username, err)
			}
			fmt.Fprintf(c.App.Writer, "%s joined %s as %s\n", username, code, strings.ToLower(string(role)))
		}
		return nil
	})
}

func listCoursesAction(c *cli.Context) error {
	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		courses, err := env.svc.Courses.ListCourses(ctx)
		if err != nil {
			return err
		}
		for _, course := range courses {
			fmt.Fprintf(c.App.Writer, "%-10s %s\n", course.Code, course.Title)
		}
		return nil
	})
}

func populateAction(c *cli.Context) error {
	return withEnv(c, func(ctx context.Context, env *adminEnv) error {
		opts := seed.DefaultOptions()
		opts.Password = c.String("password")
		opts.Seed = c.Uint64("seed")

		res, err := seed.Populate(ctx, env.cfg.Server.Mode, env.svc, opts, env.logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "created %d users, %d courses, %d registrations and %d reservations\n",
			res.Users, res.Courses, res.Registrations, res.Reservations)
		return nil
	})
}
