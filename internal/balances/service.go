package balances

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

type periodReader interface {
	GetInTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Period, error)
	PreviousInTx(ctx context.Context, tx *gorm.DB, period *models.Period) (*models.Period, error)
}

type transactionReader interface {
	ListByPeriodInTx(ctx context.Context, tx *gorm.DB, periodID uint) ([]models.Transaction, error)
}

// ServiceParams groups dependencies for the balance service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Audit        auditRecorder
	Periods      periodReader
	Transactions transactionReader
	Logger       *logger.Logger
}

// Service derives and verifies per-period balances.
type Service struct {
	repo         Repository
	tx           txRunner
	audit        auditRecorder
	periods      periodReader
	transactions transactionReader
	logg         *logger.Logger
}

// Report summarizes a consistency check over one period.
type Report struct {
	PeriodID     uint                   `json:"id_periodo"`
	Checked      int                    `json:"checked"`
	Inconsistent []models.PeriodBalance `json:"inconsistent,omitempty"`
	Duplicates   []Pair                 `json:"duplicates,omitempty"`
}

// OK reports whether the check found nothing wrong.
func (r Report) OK() bool {
	return len(r.Inconsistent) == 0 && len(r.Duplicates) == 0
}

// NewService wires a balance service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "balance repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	if params.Periods == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "period reader required")
	}
	if params.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction reader required")
	}
	return &Service{
		repo:         params.Repo,
		tx:           params.Tx,
		audit:        params.Audit,
		periods:      params.Periods,
		transactions: params.Transactions,
		logg:         params.Logger,
	}, nil
}

// Recompute rebuilds every balance of the period in one unit of work.
func (s *Service) Recompute(ctx context.Context, periodID uint, actor string) ([]models.PeriodBalance, error) {
	start := time.Now()
	var rows []models.PeriodBalance
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = s.RecomputeInTx(ctx, tx, periodID, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(s.logg.WithPeriodID(ctx, periodID), map[string]any{
			"balances": len(rows),
			"elapsed":  time.Since(start).String(),
		}), "balances recomputed")
	}
	return rows, nil
}

// RecomputeInTx rebuilds the period balances using the caller's transaction.
// Members with transactions in the period or a balance in the previous period
// get a row; the previous saldo_actual carries forward as saldo_anterior.
func (s *Service) RecomputeInTx(ctx context.Context, tx *gorm.DB, periodID uint, actor string) ([]models.PeriodBalance, error) {
	period, err := s.periods.GetInTx(ctx, tx, periodID)
	if err != nil {
		return nil, err
	}
	if !period.Estado.AcceptsTransactions() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is closed; its balances are final", period.Nombre)
	}

	repo := s.repo.WithTx(tx)
	totals := map[uint]*models.PeriodBalance{}
	row := func(memberID uint) *models.PeriodBalance {
		b, ok := totals[memberID]
		if !ok {
			b = &models.PeriodBalance{MemberID: memberID, PeriodID: periodID}
			totals[memberID] = b
		}
		return b
	}

	previous, err := s.periods.PreviousInTx(ctx, tx, period)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		carried, err := repo.ListByPeriod(ctx, previous.ID)
		if err != nil {
			return nil, db.MapError(err, "load previous balances")
		}
		if len(carried) == 0 {
			if err := s.requireNoActivity(ctx, tx, previous); err != nil {
				return nil, err
			}
		}
		for _, b := range carried {
			row(b.MemberID).SaldoAnterior = money.Normalize(b.SaldoActual)
		}
	}

	entries, err := s.transactions.ListByPeriodInTx(ctx, tx, periodID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		b := row(entry.MemberID)
		if !entry.Counts() {
			continue
		}
		switch entry.Tipo {
		case enums.TransactionTypeCharge:
			b.Cargos = b.Cargos.Add(entry.Monto)
		case enums.TransactionTypePayment:
			b.Pagos = b.Pagos.Add(entry.Monto)
		case enums.TransactionTypeRefund:
			b.Pagos = b.Pagos.Sub(entry.Monto)
		}
	}

	memberIDs := make([]uint, 0, len(totals))
	for id := range totals {
		memberIDs = append(memberIDs, id)
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	for _, id := range memberIDs {
		b := totals[id]
		b.Cargos = money.Normalize(b.Cargos)
		b.Pagos = money.Normalize(b.Pagos)
		b.SaldoActual = b.Expected()
		if err := money.Validate(b.SaldoActual); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, fmt.Sprintf("balance of member %d", id))
		}
		if err := repo.Upsert(ctx, b); err != nil {
			return nil, db.MapError(err, "store balance")
		}
	}

	if err := s.audit.Record(ctx, tx, audit.Entry{
		Actor:       actor,
		Action:      enums.AuditActionRecompute,
		Table:       models.TablePeriodBalances,
		RecordID:    periodID,
		Description: fmt.Sprintf("recalculo periodo %s: %d saldos", period.Nombre, len(memberIDs)),
	}); err != nil {
		return nil, err
	}

	rows, err := repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, db.MapError(err, "reload balances")
	}
	return normalizeAll(rows), nil
}

// requireNoActivity refuses to carry a zero balance forward from a period that
// has live entries but was never recomputed.
func (s *Service) requireNoActivity(ctx context.Context, tx *gorm.DB, period *models.Period) error {
	entries, err := s.transactions.ListByPeriodInTx(ctx, tx, period.ID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Counts() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"previous period %q has transactions but no balances; recompute it first", period.Nombre)
		}
	}
	return nil
}

// Check verifies saldo_actual = saldo_anterior + cargos - pagos for every row of
// the period and that no (member, period) pair is stored twice. Every
// violation is reported; the returned error combines them.
func (s *Service) Check(ctx context.Context, periodID uint) (Report, error) {
	report := Report{PeriodID: periodID}
	if periodID == 0 {
		return report, pkgerrors.New(pkgerrors.CodeValidation, "period id required")
	}

	rows, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return report, db.MapError(err, "load balances")
	}
	pairs, err := s.repo.DuplicatePairs(ctx, periodID)
	if err != nil {
		return report, db.MapError(err, "find duplicate balances")
	}

	var errs error
	report.Checked = len(rows)
	for _, b := range normalizeAll(rows) {
		if b.Consistent() {
			continue
		}
		report.Inconsistent = append(report.Inconsistent, b)
		errs = multierr.Append(errs, pkgerrors.Newf(pkgerrors.CodeIntegrity,
			"member %d: saldo_actual %s, expected %s", b.MemberID, money.Format(b.SaldoActual), money.Format(b.Expected())))
	}
	for _, p := range pairs {
		report.Duplicates = append(report.Duplicates, p)
		errs = multierr.Append(errs, pkgerrors.Newf(pkgerrors.CodeIntegrity,
			"member %d has %d balances in period %d", p.MemberID, p.Rows, p.PeriodID))
	}

	if s.logg != nil && errs != nil {
		s.logg.Warn(s.logg.WithFields(s.logg.WithPeriodID(ctx, periodID), map[string]any{
			"inconsistent": len(report.Inconsistent),
			"duplicates":   len(report.Duplicates),
		}), "balance check failed")
	}
	return report, errs
}

func (s *Service) Get(ctx context.Context, memberID, periodID uint) (*models.PeriodBalance, error) {
	b, err := s.repo.Get(ctx, memberID, periodID)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("no balance for member %d in period %d", memberID, periodID))
	}
	normalize(b)
	return b, nil
}

func (s *Service) ListByPeriod(ctx context.Context, periodID uint) ([]models.PeriodBalance, error) {
	rows, err := s.repo.ListByPeriod(ctx, periodID)
	return normalizeAll(rows), db.MapError(err, "list period balances")
}

// ListByPeriodInTx reads balances through the caller's transaction.
func (s *Service) ListByPeriodInTx(ctx context.Context, tx *gorm.DB, periodID uint) ([]models.PeriodBalance, error) {
	rows, err := s.repo.WithTx(tx).ListByPeriod(ctx, periodID)
	return normalizeAll(rows), db.MapError(err, "list period balances")
}

func (s *Service) ListByMember(ctx context.Context, memberID uint) ([]models.PeriodBalance, error) {
	rows, err := s.repo.ListByMember(ctx, memberID)
	return normalizeAll(rows), db.MapError(err, "list member balances")
}

// Outstanding returns the positive balances of the period, i.e. members who owe money.
func Outstanding(rows []models.PeriodBalance) []models.PeriodBalance {
	var owing []models.PeriodBalance
	for _, b := range rows {
		if b.SaldoActual.GreaterThan(decimal.Zero) {
			owing = append(owing, b)
		}
	}
	return owing
}

func normalize(b *models.PeriodBalance) {
	b.SaldoAnterior = money.Normalize(b.SaldoAnterior)
	b.Cargos = money.Normalize(b.Cargos)
	b.Pagos = money.Normalize(b.Pagos)
	b.SaldoActual = money.Normalize(b.SaldoActual)
}

func normalizeAll(rows []models.PeriodBalance) []models.PeriodBalance {
	for i := range rows {
		normalize(&rows[i])
	}
	return rows
}
