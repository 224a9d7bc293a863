package periods

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

// Repository manages persistence for billing periods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, period *models.Period) error
	FindByID(ctx context.Context, id uint) (*models.Period, error)
	List(ctx context.Context) ([]models.Period, error)
	FindOverlapping(ctx context.Context, start, end types.Date) ([]models.Period, error)
	FindPrevious(ctx context.Context, start types.Date) (*models.Period, error)
	UpdateStatus(ctx context.Context, id uint, status enums.PeriodStatus) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a periods repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, period *models.Period) error {
	return r.DB(ctx).Create(period).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Period, error) {
	var period models.Period
	if err := r.DB(ctx).Where("id_periodo = ?", id).Take(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *repository) List(ctx context.Context) ([]models.Period, error) {
	var periods []models.Period
	if err := r.DB(ctx).Order("fecha_inicio ASC, id_periodo ASC").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

// FindOverlapping returns periods sharing at least one day with start..end.
func (r *repository) FindOverlapping(ctx context.Context, start, end types.Date) ([]models.Period, error) {
	var periods []models.Period
	if err := r.DB(ctx).
		Where("fecha_inicio <= ? AND fecha_fin >= ?", end, start).
		Order("fecha_inicio ASC").
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

// FindPrevious returns the latest period that ends before start.
func (r *repository) FindPrevious(ctx context.Context, start types.Date) (*models.Period, error) {
	var period models.Period
	if err := r.DB(ctx).
		Where("fecha_fin < ?", start).
		Order("fecha_fin DESC, id_periodo DESC").
		Take(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uint, status enums.PeriodStatus) error {
	res := r.DB(ctx).Model(&models.Period{}).Where("id_periodo = ?", id).Update("estado", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
