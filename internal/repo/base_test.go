package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/clubmanager/pkg/pagination"
)

type row struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.db")
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	assert.Same(t, db, base.db)
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	require.NotNil(t, withCtx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, db, base.DB(nil))
}

func TestBaseBind(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	assert.Same(t, db, base.Bind(nil).db)

	tx := db.Begin()
	defer tx.Rollback()
	assert.Same(t, tx, base.Bind(tx).db)
}

func TestKeyset(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&row{}))
	for i := 1; i <= 5; i++ {
		require.NoError(t, db.Create(&row{Name: fmt.Sprintf("r%d", i)}).Error)
	}

	var first []row
	require.NoError(t, Keyset(db.Model(&row{}), "id", nil, 2).Find(&first).Error)
	require.Len(t, first, 3, "limit plus one buffered row")

	page, next := pagination.Trim(first, 2, func(r row) uint { return r.ID })
	require.Len(t, page, 2)
	cursor, err := pagination.ParseCursor(next)
	require.NoError(t, err)

	var second []row
	require.NoError(t, Keyset(db.Model(&row{}), "id", cursor, 2).Find(&second).Error)
	require.Len(t, second, 3)
	assert.Equal(t, uint(3), second[0].ID)
}

func TestExists(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&row{}))
	require.NoError(t, db.Create(&row{Name: "one"}).Error)
	base := NewBase(db)

	ok, err := base.Exists(context.Background(), &row{}, "id", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = base.Exists(context.Background(), &row{}, "id", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}
