package chargerules

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/money"
)

const periodConstraint = "reglas_cobro.id_periodo"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

// CreateRuleInput describes a billing policy. PeriodID nil makes it a fallback rule.
type CreateRuleInput struct {
	Descripcion  string
	CuotaMensual decimal.Decimal
	PlazoPago    int
	Penalizacion decimal.Decimal
	Descuento    decimal.Decimal
	PeriodID     *uint
	Actor        string
}

func (in CreateRuleInput) validate() error {
	fields := map[string]decimal.Decimal{
		"cuota_mensual": in.CuotaMensual,
		"penalizacion":  in.Penalizacion,
		"descuento":     in.Descuento,
	}
	details := map[string]string{}
	for name, amount := range fields {
		if amount.IsNegative() {
			details[name] = "must not be negative"
			continue
		}
		if err := money.Validate(amount); err != nil {
			details[name] = err.Error()
		}
	}
	if in.PlazoPago < 0 {
		details["plazo_pago"] = "must not be negative"
	}
	if in.PeriodID != nil && *in.PeriodID == 0 {
		details["id_periodo"] = "is invalid"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid charge rule").WithDetails(details)
	}
	return nil
}

// ServiceParams groups dependencies for the charge rule service.
type ServiceParams struct {
	Repo  Repository
	Tx    txRunner
	Audit auditRecorder
}

// Service manages charge rules and resolves the rule for a period.
type Service struct {
	repo  Repository
	tx    txRunner
	audit auditRecorder
}

// NewService builds the charge rule service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge rule repo required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, audit: params.Audit}, nil
}

// Create stores a rule. A period holds at most one rule.
func (s *Service) Create(ctx context.Context, input CreateRuleInput) (*models.ChargeRule, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	rule := &models.ChargeRule{
		Descripcion:  strings.TrimSpace(input.Descripcion),
		CuotaMensual: money.Normalize(input.CuotaMensual),
		PlazoPago:    input.PlazoPago,
		Penalizacion: money.Normalize(input.Penalizacion),
		Descuento:    money.Normalize(input.Descuento),
		PeriodID:     input.PeriodID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, rule); err != nil {
			switch {
			case db.IsUniqueViolation(err, periodConstraint):
				return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, fmt.Sprintf("period %d already has a charge rule", *rule.PeriodID))
			case db.IsForeignKeyViolation(err):
				return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "charge rule references a missing period")
			}
			return db.MapError(err, "create charge rule")
		}
		return s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.AuditActionCreate,
			Table:       models.TableChargeRules,
			RecordID:    rule.ID,
			Description: describe(rule),
		})
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func describe(rule *models.ChargeRule) string {
	scope := "general"
	if rule.PeriodID != nil {
		scope = fmt.Sprintf("periodo %d", *rule.PeriodID)
	}
	return fmt.Sprintf("alta regla %s: cuota %s, descuento %s, penalizacion %s, plazo %d dias",
		scope, money.Format(rule.CuotaMensual), money.Format(rule.Descuento), money.Format(rule.Penalizacion), rule.PlazoPago)
}

func (s *Service) List(ctx context.Context) ([]models.ChargeRule, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, db.MapError(err, "list charge rules")
	}
	normalizeAll(rules)
	return rules, nil
}

// Resolve returns the rule bound to periodID, falling back to the newest
// rule with no period.
func (s *Service) Resolve(ctx context.Context, periodID uint) (*models.ChargeRule, error) {
	return s.ResolveInTx(ctx, nil, periodID)
}

func (s *Service) ResolveInTx(ctx context.Context, tx *gorm.DB, periodID uint) (*models.ChargeRule, error) {
	if periodID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}
	repo := s.repo.WithTx(tx)

	rule, err := repo.FindByPeriod(ctx, periodID)
	if err == nil {
		normalize(rule)
		return rule, nil
	}
	if !db.IsNotFound(err) {
		return nil, db.MapError(err, "load period charge rule")
	}

	rule, err = repo.FindLatestUnbound(ctx)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no charge rule applies to period %d", periodID)
		}
		return nil, db.MapError(err, "load default charge rule")
	}
	normalize(rule)
	return rule, nil
}

// sqlite returns NUMERIC as REAL; round back to column scale.
func normalize(rule *models.ChargeRule) {
	rule.CuotaMensual = money.Normalize(rule.CuotaMensual)
	rule.Penalizacion = money.Normalize(rule.Penalizacion)
	rule.Descuento = money.Normalize(rule.Descuento)
}

func normalizeAll(rules []models.ChargeRule) {
	for i := range rules {
		normalize(&rules[i])
	}
}
