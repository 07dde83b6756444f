package sqlite

import (
	"fmt"

	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/sqlite/migrations"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
)

// ApplyMigrations brings the schema up to date. The sqlite set stores
// times as unix milliseconds and booleans as integers, so it is kept apart
// from the postgres one.
func (s *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}
	_, err = store.Migrate(migrations.Migrations, "sqlite", driver)
	return err
}
