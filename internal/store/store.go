// Package store is the time-series store façade: a narrow interface over
// PostgreSQL/TimescaleDB built on sqlx and squirrel. A squirrel StmtCache
// is created on Connect and cleared on Close, but queries are built with
// the plain statement builder and run directly on the sqlx pool, not
// through that cache.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/epfl-river/river-backend/pkg/log"
)

var registerOnce sync.Once

// Store is the façade every sync and query-surface component depends on.
// A single instance is shared process-wide.
type Store struct {
	DB        *sqlx.DB
	stmtCache *sq.StmtCache
	psql      sq.StatementBuilderType
}

// Connect opens the pool and registers the hook-wrapped driver exactly
// once per process, mirroring the teacher's sync.Once-guarded Connect.
func Connect(databaseURL string) (*Store, error) {
	registerOnce.Do(func() {
		sql.Register("postgres-with-hooks", sqlhooks.Wrap(&pq.Driver{}, &Hooks{}))
	})

	db, err := sqlx.Open("postgres-with-hooks", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info("store: connected")
	return &Store{
		DB:        db,
		stmtCache: sq.NewStmtCache(db.DB),
		psql:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool and its cached prepared statements.
func (s *Store) Close() error {
	if err := s.stmtCache.Clear(); err != nil {
		log.Warnf("store: clearing statement cache: %v", err)
	}
	return s.DB.Close()
}
