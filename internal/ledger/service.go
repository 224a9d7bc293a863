package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/money"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

// PostTransactionInput captures the immutable data a ledger entry requires.
type PostTransactionInput struct {
	MemberID        uint                    `json:"id_usuario"`
	PeriodID        uint                    `json:"id_periodo"`
	PaymentMethodID uint                    `json:"id_metodo"`
	Tipo            enums.TransactionType   `json:"tipo"`
	Monto           decimal.Decimal         `json:"monto"`
	Fecha           types.Date              `json:"fecha"`
	Estado          enums.TransactionStatus `json:"estado"`
	Referencia      string                  `json:"referencia"`
	Actor           string                  `json:"-"`
}

func (in *PostTransactionInput) validate() error {
	details := map[string]string{}
	if in.MemberID == 0 {
		details["id_usuario"] = "is required"
	}
	if in.PeriodID == 0 {
		details["id_periodo"] = "is required"
	}
	if in.PaymentMethodID == 0 {
		details["id_metodo"] = "is required"
	}
	if !in.Tipo.IsValid() {
		details["tipo"] = fmt.Sprintf("has unsupported value %q", in.Tipo)
	}
	if !in.Monto.IsPositive() {
		details["monto"] = "must be greater than zero"
	} else if err := money.Validate(in.Monto); err != nil {
		details["monto"] = err.Error()
	}
	if in.Estado == "" {
		in.Estado = enums.TransactionStatusPending
	}
	if in.Estado == enums.TransactionStatusVoided || !in.Estado.IsValid() {
		details["estado"] = fmt.Sprintf("has unsupported value %q", in.Estado)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction").WithDetails(details)
	}
	return nil
}

// ListParams filters the transaction list.
type ListParams struct {
	MemberID uint
	PeriodID uint
	pagination.Params
}

// ListResult is one page of transactions.
type ListResult struct {
	Rows       []models.Transaction `json:"rows"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Audit  auditRecorder
	Logger *logger.Logger
	Clock  func() time.Time
}

// Service records and voids ledger transactions.
type Service struct {
	repo  Repository
	tx    txRunner
	audit auditRecorder
	logg  *logger.Logger
	now   func() time.Time
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:  params.Repo,
		tx:    params.Tx,
		audit: params.Audit,
		logg:  params.Logger,
		now:   clock,
	}, nil
}

// Post records a transaction in its own unit of work.
func (s *Service) Post(ctx context.Context, input PostTransactionInput) (*models.Transaction, error) {
	var entry *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.PostInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithPeriodID(s.logg.WithMemberID(ctx, entry.MemberID), entry.PeriodID)
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"transaction_id": entry.ID,
			"tipo":           string(entry.Tipo),
			"monto":          money.Format(entry.Monto),
		}), "transaction posted")
	}
	return entry, nil
}

// PostInTx records a transaction using the caller's transaction.
func (s *Service) PostInTx(ctx context.Context, tx *gorm.DB, input PostTransactionInput) (*models.Transaction, error) {
	input.Referencia = strings.TrimSpace(input.Referencia)
	if err := input.validate(); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	if err := s.checkReferences(ctx, repo, input); err != nil {
		return nil, err
	}

	entry := &models.Transaction{
		MemberID:        input.MemberID,
		PeriodID:        input.PeriodID,
		PaymentMethodID: input.PaymentMethodID,
		Tipo:            input.Tipo,
		Monto:           money.Normalize(input.Monto),
		Fecha:           input.Fecha,
		Estado:          input.Estado,
		Referencia:      input.Referencia,
	}
	if entry.Fecha.IsZero() {
		entry.Fecha = types.NewDate(s.now())
	}

	if err := repo.Create(ctx, entry); err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "transaction references a missing member, period or payment method")
		}
		return nil, db.MapError(err, "create transaction")
	}

	if err := s.audit.Record(ctx, tx, audit.Entry{
		MemberID:    audit.MemberRef(entry.MemberID),
		Actor:       input.Actor,
		Action:      enums.AuditActionCreate,
		Table:       models.TableTransactions,
		RecordID:    entry.ID,
		Description: describe(entry),
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) checkReferences(ctx context.Context, repo Repository, input PostTransactionInput) error {
	ok, err := repo.MemberExists(ctx, input.MemberID)
	if err != nil {
		return db.MapError(err, "check member")
	}
	if !ok {
		return missingReference("member", input.MemberID)
	}

	ok, err = repo.PaymentMethodExists(ctx, input.PaymentMethodID)
	if err != nil {
		return db.MapError(err, "check payment method")
	}
	if !ok {
		return missingReference("payment method", input.PaymentMethodID)
	}

	period, err := repo.FindPeriod(ctx, input.PeriodID)
	if err != nil {
		if db.IsNotFound(err) {
			return missingReference("period", input.PeriodID)
		}
		return db.MapError(err, "check period")
	}
	if !period.Estado.AcceptsTransactions() {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is %s and accepts no transactions", period.Nombre, period.Estado)
	}
	return nil
}

func missingReference(kind string, id uint) error {
	return pkgerrors.Newf(pkgerrors.CodeIntegrity, "%s %d does not exist", kind, id)
}

func describe(entry *models.Transaction) string {
	text := fmt.Sprintf("%s %s periodo %d", entry.Tipo, money.Format(entry.Monto), entry.PeriodID)
	if entry.Referencia != "" {
		text += " ref " + entry.Referencia
	}
	return text
}

// Void marks a transaction as anulada. Amounts stay untouched and the period must be open.
func (s *Service) Void(ctx context.Context, id uint, actor string) (*models.Transaction, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	var entry *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return db.MapError(err, fmt.Sprintf("transaction %d not found", id))
		}
		if current.Estado == enums.TransactionStatusVoided {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "transaction %d is already voided", id)
		}

		period, err := repo.FindPeriod(ctx, current.PeriodID)
		if err != nil {
			return db.MapError(err, "load transaction period")
		}
		if !period.Estado.AcceptsTransactions() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "period %q is closed", period.Nombre)
		}

		if err := repo.UpdateStatus(ctx, id, enums.TransactionStatusVoided); err != nil {
			return db.MapError(err, "void transaction")
		}
		current.Estado = enums.TransactionStatusVoided
		entry = current

		return s.audit.Record(ctx, tx, audit.Entry{
			MemberID:    audit.MemberRef(current.MemberID),
			Actor:       actor,
			Action:      enums.AuditActionVoid,
			Table:       models.TableTransactions,
			RecordID:    id,
			Description: "anulada " + describe(current),
		})
	})
	if err != nil {
		return nil, err
	}
	return normalize(entry), nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Transaction, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("transaction %d not found", id))
	}
	return normalize(entry), nil
}

func (s *Service) ListByMember(ctx context.Context, memberID uint) ([]models.Transaction, error) {
	entries, err := s.repo.ListByMember(ctx, memberID)
	return normalizeAll(entries), db.MapError(err, "list member transactions")
}

func (s *Service) ListByPeriod(ctx context.Context, periodID uint) ([]models.Transaction, error) {
	return s.ListByPeriodInTx(ctx, nil, periodID)
}

// ListByPeriodInTx reads through tx so pending writes in the same unit of work are visible.
func (s *Service) ListByPeriodInTx(ctx context.Context, tx *gorm.DB, periodID uint) ([]models.Transaction, error) {
	entries, err := s.repo.WithTx(tx).ListByPeriod(ctx, periodID)
	return normalizeAll(entries), db.MapError(err, "list period transactions")
}

func (s *Service) ListByMemberAndPeriod(ctx context.Context, memberID, periodID uint) ([]models.Transaction, error) {
	entries, err := s.repo.ListByMemberAndPeriod(ctx, memberID, periodID)
	return normalizeAll(entries), db.MapError(err, "list member period transactions")
}

// List pages through transactions, optionally filtered by member and period.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, err := s.repo.List(ctx, ListQuery{
		MemberID: params.MemberID,
		PeriodID: params.PeriodID,
		Cursor:   cursor,
		Limit:    params.Limit,
	})
	if err != nil {
		return ListResult{}, db.MapError(err, "list transactions")
	}
	page, next := pagination.Trim(normalizeAll(entries), params.Limit, func(t models.Transaction) uint { return t.ID })
	return ListResult{Rows: page, NextCursor: next}, nil
}

// HasReferenceInTx reports whether a live entry with reference exists for the member and period.
func (s *Service) HasReferenceInTx(ctx context.Context, tx *gorm.DB, memberID, periodID uint, reference string) (bool, error) {
	ok, err := s.repo.WithTx(tx).ExistsByReference(ctx, memberID, periodID, reference)
	if err != nil {
		return false, db.MapError(err, "check transaction reference")
	}
	return ok, nil
}

func normalize(entry *models.Transaction) *models.Transaction {
	if entry != nil {
		entry.Monto = money.Normalize(entry.Monto)
	}
	return entry
}

func normalizeAll(entries []models.Transaction) []models.Transaction {
	for i := range entries {
		normalize(&entries[i])
	}
	return entries
}
