package repomanager

import (
	"context"
	"database/sql"

	"github.com/verdalabs/wellspring/internal/dbx"
	"github.com/verdalabs/wellspring/internal/server/repositories/conflicts"
	"github.com/verdalabs/wellspring/internal/server/repositories/feeds"
	"github.com/verdalabs/wellspring/internal/server/repositories/records"
	"github.com/verdalabs/wellspring/internal/server/repositories/refreshtokens"
	"github.com/verdalabs/wellspring/internal/server/repositories/syncstatus"
	"github.com/verdalabs/wellspring/internal/server/repositories/tombstones"
	"github.com/verdalabs/wellspring/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Records(db dbx.DBTX) records.Repository
	SyncStatus(db dbx.DBTX) syncstatus.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Tombstones(db dbx.DBTX) tombstones.Repository
	Feeds(db dbx.DBTX) feeds.Repository
}
