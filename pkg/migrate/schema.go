package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/db"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
)

// EnsureSchema applies every pending migration. Running it against an
// up-to-date store changes nothing.
func EnsureSchema(ctx context.Context, client *db.Client, logg *logger.Logger) error {
	if client == nil {
		return pkgerrors.New(pkgerrors.CodeStoreUnavailable, "db client is required")
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "extracting sql.DB")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	var gl goose.Logger = gooseLogger{ctx: ctx}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"path": client.Path(), "dir": DefaultDir})
		gl = gooseLogger{ctx: ctx, logg: logg}
	}
	if err := configure(gl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "configuring migrations")
	}

	if err := goose.UpContext(ctx, sqlDB, DefaultDir); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "applying schema migrations")
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "reading schema version")
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "version", version), "schema ready")
	}
	return nil
}

// Initialize runs EnsureSchema when the store was just created or auto-migrate
// is enabled.
func Initialize(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, fresh bool) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if !fresh && !cfg.DB.AutoMigrate {
		if logg != nil {
			logg.Debug(ctx, "schema auto-migrate disabled")
		}
		return nil
	}
	return EnsureSchema(ctx, client, logg)
}

// gooseLogger routes goose output through the structured logger.
type gooseLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	if g.logg == nil {
		return
	}
	g.logg.Debug(g.ctx, fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	if g.logg == nil {
		return
	}
	g.logg.Error(g.ctx, fmt.Sprintf(format, v...), nil)
}
