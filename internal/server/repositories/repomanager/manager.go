package repomanager

import (
	"context"
	"database/sql"

	"github.com/avolkovs/authkeeper/internal/dbx"
	"github.com/avolkovs/authkeeper/internal/server/repositories/jobs"
	"github.com/avolkovs/authkeeper/internal/server/repositories/sentmarkers"
	"github.com/avolkovs/authkeeper/internal/server/repositories/sessions"
	"github.com/avolkovs/authkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Jobs(db dbx.DBTX) jobs.Repository
	SentMarkers(db dbx.DBTX) sentmarkers.Repository
}
