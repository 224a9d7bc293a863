package members

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
	"github.com/angelmondragon/clubmanager/pkg/types"
	"github.com/angelmondragon/clubmanager/pkg/validators"
)

const numberConstraint = "usuarios.numero_socio"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error
}

type transactionLister interface {
	ListByMember(ctx context.Context, memberID uint) ([]models.Transaction, error)
}

type balanceLister interface {
	ListByMember(ctx context.Context, memberID uint) ([]models.PeriodBalance, error)
}

type logLister interface {
	ListByMember(ctx context.Context, memberID uint) ([]models.Log, error)
}

// RegisterMemberInput carries the fields needed to add a member.
type RegisterMemberInput struct {
	NumeroSocio   string     `json:"numero_socio" validate:"required,max=20"`
	Nombre        string     `json:"nombre" validate:"required,max=100"`
	Apellidos     string     `json:"apellidos" validate:"required,max=150"`
	Telefono      string     `json:"telefono" validate:"omitempty,max=30"`
	Email         string     `json:"email" validate:"omitempty,email,max=150"`
	FechaAlta     types.Date `json:"fecha_alta"`
	Observaciones string     `json:"observaciones" validate:"omitempty,max=500"`
	Actor         string     `json:"-"`
}

func (in *RegisterMemberInput) normalize() {
	in.NumeroSocio = validators.SanitizeString(in.NumeroSocio, 0)
	in.Nombre = validators.SanitizeString(in.Nombre, 0)
	in.Apellidos = validators.SanitizeString(in.Apellidos, 0)
	in.Telefono = validators.SanitizeString(in.Telefono, 0)
	in.Email = strings.ToLower(validators.SanitizeString(in.Email, 0))
	in.Observaciones = validators.SanitizeString(in.Observaciones, 0)
}

// SearchParams drives the member list. An empty Query lists everyone.
type SearchParams struct {
	Query  string
	Status string
	pagination.Params
}

// MemberRow is the list projection shown to the presentation layer.
type MemberRow struct {
	ID          uint               `json:"id"`
	NumeroSocio string             `json:"numero_socio"`
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	Status      enums.MemberStatus `json:"status"`
}

// SearchResult is one page of member rows.
type SearchResult struct {
	Rows       []MemberRow `json:"rows"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Ledger gathers everything recorded against one member.
type Ledger struct {
	Member       models.Member          `json:"member"`
	Transactions []models.Transaction   `json:"transactions"`
	Balances     []models.PeriodBalance `json:"balances"`
	Logs         []models.Log           `json:"logs"`
}

// ServiceParams groups dependencies for the members service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Audit        auditRecorder
	Transactions transactionLister
	Balances     balanceLister
	Logs         logLister
	Logger       *logger.Logger
	Clock        func() time.Time
}

// Service registers and looks up members.
type Service struct {
	repo         Repository
	tx           txRunner
	audit        auditRecorder
	transactions transactionLister
	balances     balanceLister
	logs         logLister
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the members service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "members repo required")
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
		repo:         params.Repo,
		tx:           params.Tx,
		audit:        params.Audit,
		transactions: params.Transactions,
		balances:     params.Balances,
		logs:         params.Logs,
		logg:         params.Logger,
		now:          clock,
	}, nil
}

// Register adds a member. A numero_socio already in use is an integrity violation.
func (s *Service) Register(ctx context.Context, input RegisterMemberInput) (*models.Member, error) {
	input.normalize()
	if err := validators.Struct(input); err != nil {
		return nil, err
	}

	member := &models.Member{
		NumeroSocio:   input.NumeroSocio,
		Nombre:        input.Nombre,
		Apellidos:     input.Apellidos,
		Telefono:      input.Telefono,
		Email:         input.Email,
		FechaAlta:     input.FechaAlta,
		Estado:        enums.MemberStatusActive,
		Observaciones: input.Observaciones,
	}
	if member.FechaAlta.IsZero() {
		member.FechaAlta = types.NewDate(s.now())
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByNumber(ctx, member.NumeroSocio); err == nil {
			return duplicateNumber(member.NumeroSocio, nil)
		} else if !db.IsNotFound(err) {
			return db.MapError(err, "check numero_socio")
		}

		if err := repo.Create(ctx, member); err != nil {
			if db.IsUniqueViolation(err, numberConstraint) {
				return duplicateNumber(member.NumeroSocio, err)
			}
			return db.MapError(err, "create member")
		}

		return s.audit.Record(ctx, tx, audit.Entry{
			MemberID:    audit.MemberRef(member.ID),
			Actor:       input.Actor,
			Action:      enums.AuditActionCreate,
			Table:       models.TableMembers,
			RecordID:    member.ID,
			Description: fmt.Sprintf("alta socio %s (%s)", member.NumeroSocio, member.DisplayName()),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithMemberID(ctx, member.ID), "member registered")
	}
	return member, nil
}

func duplicateNumber(number string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeIntegrity, cause, fmt.Sprintf("numero_socio %q is already registered", number)).
		WithDetails(map[string]string{"numero_socio": number})
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Member, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("member %d not found", id))
	}
	return member, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Member, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "numero_socio required")
	}
	member, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("member %q not found", number))
	}
	return member, nil
}

// Search runs a free-text match against number, name, surnames and email.
func (s *Service) Search(ctx context.Context, params SearchParams) (SearchResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return SearchResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := SearchQuery{Term: params.Query, Cursor: cursor, Limit: params.Limit}
	if strings.TrimSpace(params.Status) != "" {
		status, err := enums.ParseMemberStatus(params.Status)
		if err != nil {
			return SearchResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}

	found, err := s.repo.Search(ctx, query)
	if err != nil {
		return SearchResult{}, db.MapError(err, "search members")
	}

	page, next := pagination.Trim(found, params.Limit, func(m models.Member) uint { return m.ID })
	rows := make([]MemberRow, 0, len(page))
	for _, m := range page {
		rows = append(rows, MemberRow{
			ID:          m.ID,
			NumeroSocio: m.NumeroSocio,
			DisplayName: m.DisplayName(),
			Email:       m.Email,
			Status:      m.Estado,
		})
	}
	return SearchResult{Rows: rows, NextCursor: next}, nil
}

// ChangeStatus moves a member to status. Setting the current status is a no-op.
func (s *Service) ChangeStatus(ctx context.Context, id uint, status enums.MemberStatus, actor string) (*models.Member, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid member status %q", status)
	}

	var member *models.Member
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return db.MapError(err, fmt.Sprintf("member %d not found", id))
		}
		member = current
		previous := current.Estado
		if previous == status {
			return nil
		}

		if err := repo.UpdateStatus(ctx, id, status); err != nil {
			return db.MapError(err, "update member status")
		}
		member.Estado = status

		return s.audit.Record(ctx, tx, audit.Entry{
			MemberID:    audit.MemberRef(id),
			Actor:       actor,
			Action:      enums.AuditActionStatusChange,
			Table:       models.TableMembers,
			RecordID:    id,
			Description: fmt.Sprintf("estado %s -> %s", previous, status),
		})
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ListActive returns every member billed by periodic charges.
func (s *Service) ListActive(ctx context.Context) ([]models.Member, error) {
	return s.ListActiveInTx(ctx, nil)
}

func (s *Service) ListActiveInTx(ctx context.Context, tx *gorm.DB) ([]models.Member, error) {
	members, err := s.repo.WithTx(tx).ListByStatus(ctx, enums.MemberStatusActive)
	if err != nil {
		return nil, db.MapError(err, "list active members")
	}
	return members, nil
}

// Ledger loads the member with its transactions, balances and logs.
func (s *Service) Ledger(ctx context.Context, id uint) (*Ledger, error) {
	if s.transactions == nil || s.balances == nil || s.logs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "member ledger readers not configured")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.ListByMember(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "list member transactions")
	}
	balances, err := s.balances.ListByMember(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "list member balances")
	}
	logs, err := s.logs.ListByMember(ctx, id)
	if err != nil {
		return nil, db.MapError(err, "list member logs")
	}

	return &Ledger{
		Member:       *member,
		Transactions: txs,
		Balances:     balances,
		Logs:         logs,
	}, nil
}
