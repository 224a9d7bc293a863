package paymentmethods

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/validators"
)

const (
	nameConstraint = "metodos_pago.nombre"
	maxNameLength  = 60
)

// ServiceParams groups dependencies for the payment method service.
type ServiceParams struct {
	Repo              Repository
	Audit             auditRecorder
	TransactionRunner txRunner
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the catalogue of accepted payment methods.
type Service struct {
	repo     Repository
	audit    auditRecorder
	txRunner txRunner
}

// NewService constructs a payment method service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method repo required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}

	return &Service{
		repo:     params.Repo,
		audit:    params.Audit,
		txRunner: params.TransactionRunner,
	}, nil
}

// Create adds a payment method. Names are unique.
func (s *Service) Create(ctx context.Context, name, actor string) (*models.PaymentMethod, error) {
	name = validators.SanitizeString(name, 0)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method name is required")
	}
	if len(name) > maxNameLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "payment method name must be at most %d characters", maxNameLength)
	}

	method := &models.PaymentMethod{Nombre: name}
	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, method); err != nil {
			if db.IsUniqueViolation(err, nameConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, fmt.Sprintf("payment method %q already exists", name))
			}
			return db.MapError(err, "create payment method")
		}
		return s.audit.Record(ctx, tx, audit.Entry{
			Actor:       actor,
			Action:      enums.AuditActionCreate,
			Table:       models.TablePaymentMethods,
			RecordID:    method.ID,
			Description: "alta metodo de pago " + name,
		})
	}); err != nil {
		return nil, err
	}

	return method, nil
}

func (s *Service) List(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.MapError(err, "list payment methods")
	}
	return methods, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.PaymentMethod, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id required")
	}
	method, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("payment method %d not found", id))
	}
	return method, nil
}

// GetByName resolves a method by its exact name.
func (s *Service) GetByName(ctx context.Context, name string) (*models.PaymentMethod, error) {
	return s.GetByNameInTx(ctx, nil, name)
}

func (s *Service) GetByNameInTx(ctx context.Context, tx *gorm.DB, name string) (*models.PaymentMethod, error) {
	name = validators.SanitizeString(name, 0)
	method, err := s.repo.WithTx(tx).FindByName(ctx, name)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("payment method %q not found", name))
	}
	return method, nil
}
