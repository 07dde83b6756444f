package postgres

import (
	"fmt"

	"github.com/aussiebroadwan/quickfix/internal/auth/store"
	"github.com/aussiebroadwan/quickfix/internal/auth/store/drivers/postgres/migrations"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

func (s *Store) ApplyMigrations() error {
	driver, err := pgx.WithInstance(s.db, &pgx.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	_, err = store.Migrate(migrations.Migrations, "postgres", driver)
	return err
}
