package periods

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/types"
	"github.com/angelmondragon/clubmanager/pkg/validators"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

// CreatePeriodInput describes a new billing period. Both dates are inclusive.
type CreatePeriodInput struct {
	Nombre      string     `json:"nombre" validate:"required,max=60"`
	FechaInicio types.Date `json:"fecha_inicio"`
	FechaFin    types.Date `json:"fecha_fin"`
	Actor       string     `json:"-"`
}

// ServiceParams groups dependencies for the periods service.
type ServiceParams struct {
	Repo  Repository
	Tx    txRunner
	Audit auditRecorder
}

// Service manages billing periods.
type Service struct {
	repo  Repository
	tx    txRunner
	audit auditRecorder
}

// NewService builds the periods service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "periods repo required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, audit: params.Audit}, nil
}

// Create opens a period. Ranges may not overlap an existing period.
func (s *Service) Create(ctx context.Context, input CreatePeriodInput) (*models.Period, error) {
	input.Nombre = strings.TrimSpace(input.Nombre)
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	if input.FechaInicio.IsZero() || input.FechaFin.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fecha_inicio and fecha_fin are required")
	}
	if input.FechaFin.Before(input.FechaInicio) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "fecha_fin %s is before fecha_inicio %s", input.FechaFin, input.FechaInicio)
	}

	period := &models.Period{
		Nombre:      input.Nombre,
		FechaInicio: input.FechaInicio,
		FechaFin:    input.FechaFin,
		Estado:      enums.PeriodStatusOpen,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		overlapping, err := repo.FindOverlapping(ctx, period.FechaInicio, period.FechaFin)
		if err != nil {
			return db.MapError(err, "check overlapping periods")
		}
		if len(overlapping) > 0 {
			other := overlapping[0]
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"period %s..%s overlaps %q (%s..%s)", period.FechaInicio, period.FechaFin, other.Nombre, other.FechaInicio, other.FechaFin)
		}

		if err := repo.Create(ctx, period); err != nil {
			return db.MapError(err, "create period")
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.AuditActionCreate,
			Table:       models.TablePeriods,
			RecordID:    period.ID,
			Description: fmt.Sprintf("alta periodo %s (%s..%s)", period.Nombre, period.FechaInicio, period.FechaFin),
		})
	})
	if err != nil {
		return nil, err
	}
	return period, nil
}

func (s *Service) List(ctx context.Context) ([]models.Period, error) {
	periods, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.MapError(err, "list periods")
	}
	return periods, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Period, error) {
	return s.GetInTx(ctx, nil, id)
}

// GetInTx loads a period through tx when tx is set.
func (s *Service) GetInTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Period, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}
	period, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("period %d not found", id))
	}
	return period, nil
}

// Previous returns the period that ends before this one starts, or nil.
func (s *Service) Previous(ctx context.Context, period *models.Period) (*models.Period, error) {
	return s.PreviousInTx(ctx, nil, period)
}

func (s *Service) PreviousInTx(ctx context.Context, tx *gorm.DB, period *models.Period) (*models.Period, error) {
	if period == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period required")
	}
	previous, err := s.repo.WithTx(tx).FindPrevious(ctx, period.FechaInicio)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, db.MapError(err, "load previous period")
	}
	return previous, nil
}

// MarkClosedInTx flips an open period to cerrado inside the caller's transaction.
func (s *Service) MarkClosedInTx(ctx context.Context, tx *gorm.DB, id uint, actor string) error {
	period, err := s.GetInTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if period.Estado == enums.PeriodStatusClosed {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is already closed", period.Nombre)
	}
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, id, enums.PeriodStatusClosed); err != nil {
		return db.MapError(err, "close period")
	}
	return s.audit.Record(ctx, tx, audit.Entry{
		Actor:       actor,
		Action:      enums.AuditActionClose,
		Table:       models.TablePeriods,
		RecordID:    id,
		Description: fmt.Sprintf("cierre periodo %s", period.Nombre),
	})
}
