package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/balances"
	"github.com/angelmondragon/clubmanager/internal/ledger"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/money"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

const (
	feeReferencePrefix     = "cuota"
	penaltyReferencePrefix = "penalizacion"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type memberReader interface {
	ListActiveInTx(ctx context.Context, tx *gorm.DB) ([]models.Member, error)
}

type methodReader interface {
	GetByNameInTx(ctx context.Context, tx *gorm.DB, name string) (*models.PaymentMethod, error)
}

type periodCloser interface {
	GetInTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Period, error)
	MarkClosedInTx(ctx context.Context, tx *gorm.DB, id uint, actor string) error
}

type ruleResolver interface {
	ResolveInTx(ctx context.Context, tx *gorm.DB, periodID uint) (*models.ChargeRule, error)
}

type ledgerWriter interface {
	PostInTx(ctx context.Context, tx *gorm.DB, input ledger.PostTransactionInput) (*models.Transaction, error)
	HasReferenceInTx(ctx context.Context, tx *gorm.DB, memberID, periodID uint, reference string) (bool, error)
}

type balanceRecomputer interface {
	RecomputeInTx(ctx context.Context, tx *gorm.DB, periodID uint, actor string) ([]models.PeriodBalance, error)
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Tx           txRunner
	Members      memberReader
	Methods      methodReader
	Periods      periodCloser
	Rules        ruleResolver
	Ledger       ledgerWriter
	Balances     balanceRecomputer
	ChargeMethod string
	Logger       *logger.Logger
	Clock        func() time.Time
}

// Service generates periodic charges and closes billing periods.
type Service struct {
	tx           txRunner
	members      memberReader
	methods      methodReader
	periods      periodCloser
	rules        ruleResolver
	ledger       ledgerWriter
	balances     balanceRecomputer
	chargeMethod string
	logg         *logger.Logger
	now          func() time.Time
}

// ChargeResult reports what ApplyCharges posted.
type ChargeResult struct {
	PeriodID uint                 `json:"id_periodo"`
	Rule     *models.ChargeRule   `json:"regla"`
	Posted   []models.Transaction `json:"posted"`
	Skipped  int                  `json:"skipped"`
}

// CloseResult reports the final state of a closed period.
type CloseResult struct {
	Period    *models.Period         `json:"periodo"`
	Penalties []models.Transaction   `json:"penalties"`
	Balances  []models.PeriodBalance `json:"balances"`
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Members == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "member reader required")
	case params.Methods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method reader required")
	case params.Periods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "period service required")
	case params.Rules == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge rule resolver required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	case params.Balances == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balance service required")
	case params.ChargeMethod == "":
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "charge payment method required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		tx:           params.Tx,
		members:      params.Members,
		methods:      params.Methods,
		periods:      params.Periods,
		rules:        params.Rules,
		ledger:       params.Ledger,
		balances:     params.Balances,
		chargeMethod: params.ChargeMethod,
		logg:         params.Logger,
		now:          clock,
	}, nil
}

func reference(prefix string, periodID uint) string {
	return fmt.Sprintf("%s:%d", prefix, periodID)
}

// ApplyCharges posts the monthly fee of the resolved rule to every active
// member. Members already charged for the period are skipped, so the call can
// be repeated safely. Nothing is posted when any member fails.
func (s *Service) ApplyCharges(ctx context.Context, periodID uint, actor string) (*ChargeResult, error) {
	result := &ChargeResult{PeriodID: periodID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		period, err := s.periods.GetInTx(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if !period.Estado.AcceptsTransactions() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is closed", period.Nombre)
		}

		rule, err := s.rules.ResolveInTx(ctx, tx, periodID)
		if err != nil {
			return err
		}
		result.Rule = rule

		fee := rule.EffectiveFee()
		if fee.IsZero() {
			return nil
		}

		method, err := s.methods.GetByNameInTx(ctx, tx, s.chargeMethod)
		if err != nil {
			return err
		}
		active, err := s.members.ListActiveInTx(ctx, tx)
		if err != nil {
			return err
		}

		ref := reference(feeReferencePrefix, periodID)
		var errs error
		for _, member := range active {
			charged, err := s.ledger.HasReferenceInTx(ctx, tx, member.ID, periodID, ref)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if charged {
				result.Skipped++
				continue
			}
			entry, err := s.ledger.PostInTx(ctx, tx, ledger.PostTransactionInput{
				MemberID:        member.ID,
				PeriodID:        periodID,
				PaymentMethodID: method.ID,
				Tipo:            enums.TransactionTypeCharge,
				Monto:           fee,
				Fecha:           types.NewDate(s.now()),
				Referencia:      ref,
				Actor:           actor,
			})
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("member %s: %w", member.NumeroSocio, err))
				continue
			}
			result.Posted = append(result.Posted, *entry)
		}
		return errs
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(s.logg.WithPeriodID(ctx, periodID), map[string]any{
			"posted":  len(result.Posted),
			"skipped": result.Skipped,
		}), "monthly charges applied")
	}
	return result, nil
}

// ClosePeriod settles and closes an open period: balances are recomputed,
// the late-payment penalty is charged once the payment deadline has passed,
// and the period is marked cerrado.
func (s *Service) ClosePeriod(ctx context.Context, periodID uint, actor string) (*CloseResult, error) {
	result := &CloseResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		period, err := s.periods.GetInTx(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if period.Estado == enums.PeriodStatusClosed {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is already closed", period.Nombre)
		}

		rows, err := s.balances.RecomputeInTx(ctx, tx, periodID, actor)
		if err != nil {
			return err
		}

		penalties, err := s.applyPenalties(ctx, tx, period, rows, actor)
		if err != nil {
			return err
		}
		if len(penalties) > 0 {
			if rows, err = s.balances.RecomputeInTx(ctx, tx, periodID, actor); err != nil {
				return err
			}
		}

		if err := s.periods.MarkClosedInTx(ctx, tx, periodID, actor); err != nil {
			return err
		}
		period.Estado = enums.PeriodStatusClosed
		result.Period = period
		result.Penalties = penalties
		result.Balances = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(s.logg.WithPeriodID(ctx, periodID), map[string]any{
			"penalties": len(result.Penalties),
			"balances":  len(result.Balances),
		}), "period closed")
	}
	return result, nil
}

func (s *Service) applyPenalties(ctx context.Context, tx *gorm.DB, period *models.Period, rows []models.PeriodBalance, actor string) ([]models.Transaction, error) {
	rule, err := s.rules.ResolveInTx(ctx, tx, period.ID)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	if !rule.Penalizacion.IsPositive() {
		return nil, nil
	}
	today := types.NewDate(s.now())
	deadline := period.FechaInicio.AddDays(rule.PlazoPago)
	if !deadline.Before(today) {
		return nil, nil
	}

	owing := balances.Outstanding(rows)
	if len(owing) == 0 {
		return nil, nil
	}
	method, err := s.methods.GetByNameInTx(ctx, tx, s.chargeMethod)
	if err != nil {
		return nil, err
	}

	ref := reference(penaltyReferencePrefix, period.ID)
	var (
		posted []models.Transaction
		errs   error
	)
	for _, b := range owing {
		done, err := s.ledger.HasReferenceInTx(ctx, tx, b.MemberID, period.ID, ref)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if done {
			continue
		}
		entry, err := s.ledger.PostInTx(ctx, tx, ledger.PostTransactionInput{
			MemberID:        b.MemberID,
			PeriodID:        period.ID,
			PaymentMethodID: method.ID,
			Tipo:            enums.TransactionTypeCharge,
			Monto:           money.Normalize(rule.Penalizacion),
			Fecha:           today,
			Referencia:      ref,
			Actor:           actor,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("member %d: %w", b.MemberID, err))
			continue
		}
		posted = append(posted, *entry)
	}
	return posted, errs
}
