package server

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies the schema migrations under dir (a go-migrate source
// URL, e.g. file://migrations) against the given Postgres DSN. Callers
// resolve the DSN through config.PostgresConfig.DSN(); nothing here
// reads the environment.
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	if dsn == "" {
		return errors.New("migrate: postgres dsn is required")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("unknown direction: %s", direction)
	}

	m, err := migrate.New(dir, dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	var migErr error
	if direction == "up" {
		if steps > 0 {
			migErr = m.Steps(steps)
		} else {
			migErr = m.Up()
		}
	} else {
		if steps > 0 {
			migErr = m.Steps(-steps)
		} else {
			migErr = m.Down()
		}
	}
	if errors.Is(migErr, migrate.ErrNoChange) {
		return nil
	}
	return migErr
}
