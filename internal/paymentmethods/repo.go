package paymentmethods

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
)

// Repository handles payment method persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, method *models.PaymentMethod) error
	FindByID(ctx context.Context, id uint) (*models.PaymentMethod, error)
	FindByName(ctx context.Context, name string) (*models.PaymentMethod, error)
	List(ctx context.Context) ([]models.PaymentMethod, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a payment method repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, method *models.PaymentMethod) error {
	return r.DB(ctx).Create(method).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := r.DB(ctx).Where("id_metodo = ?", id).Take(&method).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	if err := r.DB(ctx).Where("nombre = ?", name).Take(&method).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) List(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := r.DB(ctx).Order("nombre ASC").Find(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}
