package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"companydir/internal/apperror"
	"companydir/internal/config"
)

var (
	sqlOpen = sql.Open

	// registerPgx wraps the pgx driver once per process; every connect
	// attempt reuses the returned driver name.
	registerPgx = sync.OnceValues(func() (string, error) {
		return otelsql.Register("pgx",
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSQLCommenter(true),
		)
	})
)

// BuildPostgresDSN renders c as a postgres:// URL.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	if c.Host == "" || c.Port == "" || c.User == "" || c.Name == "" {
		return "", errors.New("invalid database config: host, port, user and name are required")
	}

	u := &url.URL{Scheme: "postgres", Host: c.Host + ":" + c.Port, Path: c.Name}
	if c.Password == "" {
		u.User = url.User(c.User)
	} else {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// NewPostgres opens a pooled, traced *sql.DB and pings it within timeout.
// An unreachable server yields an error wrapping apperror.ErrStoreUnavailable.
// The caller owns the handle.
func NewPostgres(ctx context.Context, c config.DatabaseConfig, timeout time.Duration) (*sql.DB, error) {
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	driverName, err := registerPgx()
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}
	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres ping: %w", apperror.ErrStoreUnavailable, err)
	}
	return db, nil
}
