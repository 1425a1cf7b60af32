package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_companies",
		SQL: `CREATE TABLE IF NOT EXISTS companies (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name        TEXT        NOT NULL CHECK (name <> ''),
  location    TEXT        NOT NULL CHECK (location <> ''),
  industry    TEXT        NOT NULL CHECK (industry <> ''),
  description TEXT,
  website     TEXT,
  employees   INTEGER     NOT NULL DEFAULT 0 CHECK (employees >= 0),
  founded     INTEGER     CHECK (founded >= 1600),
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_companies_name",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_companies_name ON companies (name);`,
	},
	{
		Name: "create_index_companies_location",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_companies_location ON companies (location);`,
	},
	{
		Name: "create_index_companies_industry",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_companies_industry ON companies (industry);`,
	},
	{
		Name: "create_index_companies_employees",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_companies_employees ON companies (employees);`,
	},
	{
		Name: "create_index_companies_founded",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_companies_founded ON companies (founded);`,
	},
}

// EnsureMigrated checks if the 'companies' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	start := time.Now()
	log = log.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.companies') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("reason", "schema already exists, skipping migration"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return nil
}
