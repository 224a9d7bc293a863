package audit

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
)

// DefaultActor labels changes made without an explicit operator.
const DefaultActor = "sistema"

// Entry describes one change to record.
type Entry struct {
	// MemberID is the member the change concerns, if any.
	MemberID    *uint
	Actor       string
	Action      enums.AuditAction
	Table       string
	RecordID    uint
	Description string
}

// ServiceParams groups dependencies for the audit service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service writes audit records inside the caller's transaction.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an audit service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit repo required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// Record appends the entry using tx, so it commits or rolls back with the change it describes.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if !entry.Action.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "invalid audit action %q", entry.Action)
	}
	if strings.TrimSpace(entry.Table) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "audit table required")
	}

	row := &models.Log{
		MemberID:           entry.MemberID,
		Accion:             entry.Action,
		TablaAfectada:      entry.Table,
		IDRegistroAfectado: entry.RecordID,
		DescripcionCambio:  describe(entry.Actor, entry.Description),
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write audit log")
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"audit_action": string(entry.Action),
			"table":        entry.Table,
			"record_id":    entry.RecordID,
		}), "audit log recorded")
	}
	return nil
}

func (s *Service) ListByMember(ctx context.Context, memberID uint) ([]models.Log, error) {
	if memberID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	return s.repo.ListByMember(ctx, memberID)
}

func (s *Service) ListByRecord(ctx context.Context, table string, recordID uint) ([]models.Log, error) {
	if strings.TrimSpace(table) == "" || recordID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table and record id required")
	}
	return s.repo.ListByRecord(ctx, table, recordID)
}

// Actor returns the trimmed operator label or DefaultActor.
func Actor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return DefaultActor
	}
	return actor
}

// MemberRef returns a pointer for Entry.MemberID.
func MemberRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func describe(actor, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Sprintf("[%s]", Actor(actor))
	}
	return fmt.Sprintf("[%s] %s", Actor(actor), description)
}
