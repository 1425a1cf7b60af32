package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sentinel = "SELECT to_regclass('public.companies') IS NOT NULL"

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func TestEnsureMigrated(t *testing.T) {
	t.Run("skips when schema exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinel)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		log, logs := newObserved()
		err = EnsureMigrated(context.Background(), db, log, "db.local")

		assert.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("db_migration_skip").Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("runs every step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinel)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for _, step := range steps {
			mock.ExpectExec(regexp.QuoteMeta(step.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		}

		log, logs := newObserved()
		err = EnsureMigrated(context.Background(), db, log, "db.local")

		assert.NoError(t, err)
		assert.Equal(t, len(steps), logs.FilterMessage("db_migration_step").Len())
		assert.Equal(t, 1, logs.FilterMessage("db_migration_success").Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the failing step", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinel)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(steps[0].SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(steps[1].SQL)).WillReturnError(errors.New("permission denied"))

		log, logs := newObserved()
		err = EnsureMigrated(context.Background(), db, log, "db.local")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "create_table_companies")
		failed := logs.FilterMessage("db_migration_failed").All()
		require.Len(t, failed, 1)
		assert.Equal(t, "create_table_companies", failed[0].ContextMap()["migration_step"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sentinel query error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(sentinel)).WillReturnError(errors.New("connection refused"))

		log, _ := newObserved()
		err = EnsureMigrated(context.Background(), db, log, "db.local")

		assert.ErrorContains(t, err, "sentinel")
	})
}
