// Command admin manages users, courses and the database schema of the portal.
package main

import (
	"os"

	"github.com/itsbooking/portal/internal/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("admin command failed")
		os.Exit(1)
	}
}
