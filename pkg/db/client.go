package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/clubmanager/pkg/config"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
)

// Client wraps the single GORM connection to the club store.
type Client struct {
	conn *gorm.DB
	path string
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the sqlite store described by cfg, creating its directory when needed.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.Path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStoreUnavailable, "database path is required")
	}

	if err := os.MkdirAll(cfg.Dir(), 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, fmt.Sprintf("creating data directory %q", cfg.Dir()))
	}

	gormCfg := &gorm.Config{
		Logger:                 newGormLogger(logg, cfg.LogSQL),
		SkipDefaultTransaction: true,
	}

	conn, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: DriverName, DSN: dsn(cfg)}), gormCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "opening db connection")
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "getting sql db handle")
	}

	// One connection serializes every reader and writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, fmt.Sprintf("opening store %q", cfg.Path))
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "path", cfg.Path), "database connection established")
	}

	return &Client{conn: conn, path: cfg.Path}, nil
}

func dsn(cfg config.DBConfig) string {
	return fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d", cfg.Path, cfg.BusyTimeout.Milliseconds())
}

// StoreExists reports whether the store file is already on disk.
func StoreExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, pkgerrors.New(pkgerrors.CodeStoreUnavailable, fmt.Sprintf("store path %q is a directory", path))
		}
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, fmt.Sprintf("stat %q", filepath.Clean(path)))
}

func newGormLogger(logg *logger.Logger, logSQL bool) gormlogger.Interface {
	if logg != nil && logSQL {
		return &sqlLogger{logg: logg, level: gormlogger.Info}
	}
	return gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Path returns the store file location.
func (c *Client) Path() string {
	return c.path
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Exec wraps GORM's Exec with context propagation.
func (c *Client) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Exec(query, args...)
}

// Raw wraps GORM's Raw with context propagation.
func (c *Client) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return c.conn.WithContext(ctx).Raw(query, args...)
}
