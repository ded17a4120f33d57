package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
database:
  driver: sqlite
  dsn: test.db
jwt:
  secret: from-file
booking:
  open_time: "09:00"
  close_time: "17:00"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("BOOKING_ENFORCE_CAPACITY", "true")
	t.Setenv("BOOKING_NUM_DAYS", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.True(t, cfg.Booking.EnforceCapacity)
	assert.Equal(t, 4, cfg.Booking.NumDays)
	assert.Equal(t, "09:00", cfg.Booking.OpenTime)
	// untouched defaults survive
	assert.Equal(t, 15, cfg.Booking.ReservationMinutes)
	assert.Equal(t, 120, cfg.Booking.IntervalMinutes)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  dsn: x.db\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoadConfig_BadEnvValue(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s\n")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MAX_OPEN_CONNS")
}

func TestBookingConfigValidate(t *testing.T) {
	base := Default().Booking

	tests := []struct {
		name    string
		mutate  func(b *BookingConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(b *BookingConfig) {}},
		{name: "seconds in clock", mutate: func(b *BookingConfig) { b.OpenTime = "08:00:00"; b.CloseTime = "18:00:00" }},
		{name: "late start", mutate: func(b *BookingConfig) { b.OpenTime = "17:45"; b.CloseTime = "23:45" }},
		{name: "close before open", mutate: func(b *BookingConfig) { b.CloseTime = "07:00" }, wantErr: true},
		{name: "bad clock", mutate: func(b *BookingConfig) { b.OpenTime = "8am" }, wantErr: true},
		{name: "uneven split", mutate: func(b *BookingConfig) { b.ReservationMinutes = 25 }, wantErr: true},
		{name: "zero days", mutate: func(b *BookingConfig) { b.NumDays = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("17:45")
	require.NoError(t, err)
	assert.Equal(t, 17*60+45, minutes)

	minutes, err = ParseClock("08:30:59")
	require.NoError(t, err)
	assert.Equal(t, 8*60+30, minutes)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
