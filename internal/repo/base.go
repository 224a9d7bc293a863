package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubmanager/pkg/pagination"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a copy of the base pointed at tx. A nil tx keeps the current handle.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Exists reports whether a row of model has column = id.
func (b Base) Exists(ctx context.Context, model any, column string, id uint) (bool, error) {
	var count int64
	if err := b.DB(ctx).Model(model).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: id}).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Keyset orders by column ascending and applies the cursor and buffered limit.
func Keyset(q *gorm.DB, column string, cursor *pagination.Cursor, limit int) *gorm.DB {
	if cursor != nil && cursor.AfterID > 0 {
		q = q.Where(clause.Gt{Column: clause.Column{Name: column}, Value: cursor.AfterID})
	}
	return q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}}).
		Limit(pagination.LimitWithBuffer(limit))
}
