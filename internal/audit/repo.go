package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
)

// Repository appends and reads audit logs. There is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.Log) error
	ListByMember(ctx context.Context, memberID uint) ([]models.Log, error)
	ListByRecord(ctx context.Context, table string, recordID uint) ([]models.Log, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.Log) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListByMember(ctx context.Context, memberID uint) ([]models.Log, error) {
	var logs []models.Log
	if err := r.DB(ctx).
		Where("id_usuario = ?", memberID).
		Order("id_log ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) ListByRecord(ctx context.Context, table string, recordID uint) ([]models.Log, error) {
	var logs []models.Log
	if err := r.DB(ctx).
		Where("tabla_afectada = ? AND id_registro_afectado = ?", table, recordID).
		Order("id_log ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
