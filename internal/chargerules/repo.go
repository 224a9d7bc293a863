package chargerules

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
)

// Repository manages persistence for charge rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.ChargeRule) error
	List(ctx context.Context) ([]models.ChargeRule, error)
	FindByPeriod(ctx context.Context, periodID uint) (*models.ChargeRule, error)
	FindLatestUnbound(ctx context.Context) (*models.ChargeRule, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a charge rule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, rule *models.ChargeRule) error {
	return r.DB(ctx).Create(rule).Error
}

func (r *repository) List(ctx context.Context) ([]models.ChargeRule, error) {
	var rules []models.ChargeRule
	if err := r.DB(ctx).Order("id_regla ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) FindByPeriod(ctx context.Context, periodID uint) (*models.ChargeRule, error) {
	var rule models.ChargeRule
	if err := r.DB(ctx).Where("id_periodo = ?", periodID).Take(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// FindLatestUnbound returns the newest rule not tied to a period.
func (r *repository) FindLatestUnbound(ctx context.Context) (*models.ChargeRule, error) {
	var rule models.ChargeRule
	if err := r.DB(ctx).
		Where("id_periodo IS NULL").
		Order("id_regla DESC").
		Take(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}
