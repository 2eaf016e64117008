// Package db opens the Postgres pool that backs browser sessions when
// session.backend is postgres.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/postgres"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

// Open connects to dbURL through the pgx stdlib driver and pings it.
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, errors.New("database URL is not set")
	}

	pool, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewSessionStore keeps session data in the http_sessions table of pool.
func NewSessionStore(pool *sql.DB, secret []byte) (sessions.Store, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}
	store, err := postgres.NewStore(pool, secret)
	if err != nil {
		return nil, fmt.Errorf("create postgres session store: %w", err)
	}
	return store, nil
}
