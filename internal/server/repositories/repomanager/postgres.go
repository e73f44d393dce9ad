// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/verdalabs/wellspring/internal/dbx"
	"github.com/verdalabs/wellspring/internal/server/migrations"
	"github.com/verdalabs/wellspring/internal/server/repositories/conflicts"
	"github.com/verdalabs/wellspring/internal/server/repositories/feeds"
	"github.com/verdalabs/wellspring/internal/server/repositories/records"
	"github.com/verdalabs/wellspring/internal/server/repositories/refreshtokens"
	"github.com/verdalabs/wellspring/internal/server/repositories/syncstatus"
	"github.com/verdalabs/wellspring/internal/server/repositories/tombstones"
	"github.com/verdalabs/wellspring/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// Records returns a records.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Records(db dbx.DBTX) records.Repository {
	return records.NewPostgresRepository(db)
}

// SyncStatus returns a syncstatus.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SyncStatus(db dbx.DBTX) syncstatus.Repository {
	return syncstatus.NewPostgresRepository(db)
}

// Conflicts returns a conflicts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Conflicts(db dbx.DBTX) conflicts.Repository {
	return conflicts.NewPostgresRepository(db)
}

// Tombstones returns a tombstones.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Tombstones(db dbx.DBTX) tombstones.Repository {
	return tombstones.NewPostgresRepository(db)
}

// Feeds returns a feeds.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Feeds(db dbx.DBTX) feeds.Repository {
	return feeds.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
