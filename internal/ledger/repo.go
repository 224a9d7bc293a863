package ledger

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
)

// Repository manages persistence for ledger transactions. Rows are never
// deleted and only estado may change.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.Transaction) error
	FindByID(ctx context.Context, id uint) (*models.Transaction, error)
	ListByMember(ctx context.Context, memberID uint) ([]models.Transaction, error)
	ListByPeriod(ctx context.Context, periodID uint) ([]models.Transaction, error)
	ListByMemberAndPeriod(ctx context.Context, memberID, periodID uint) ([]models.Transaction, error)
	List(ctx context.Context, query ListQuery) ([]models.Transaction, error)
	ExistsByReference(ctx context.Context, memberID, periodID uint, reference string) (bool, error)
	UpdateStatus(ctx context.Context, id uint, status enums.TransactionStatus) error
	MemberExists(ctx context.Context, memberID uint) (bool, error)
	PaymentMethodExists(ctx context.Context, methodID uint) (bool, error)
	FindPeriod(ctx context.Context, periodID uint) (*models.Period, error)
}

// ListQuery filters the transaction list. Zero ids mean no filter.
type ListQuery struct {
	MemberID uint
	PeriodID uint
	Cursor   *pagination.Cursor
	Limit    int
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.Transaction) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var entry models.Transaction
	if err := r.DB(ctx).Where("id_transaccion = ?", id).Take(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID uint) ([]models.Transaction, error) {
	return r.find(r.DB(ctx).Where("id_usuario = ?", memberID))
}

func (r *repository) ListByPeriod(ctx context.Context, periodID uint) ([]models.Transaction, error) {
	return r.find(r.DB(ctx).Where("id_periodo = ?", periodID))
}

func (r *repository) ListByMemberAndPeriod(ctx context.Context, memberID, periodID uint) ([]models.Transaction, error) {
	return r.find(r.DB(ctx).Where("id_usuario = ? AND id_periodo = ?", memberID, periodID))
}

func (r *repository) find(q *gorm.DB) ([]models.Transaction, error) {
	var entries []models.Transaction
	if err := q.Order("id_transaccion ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Transaction, error) {
	q := r.DB(ctx).Model(&models.Transaction{})
	if query.MemberID != 0 {
		q = q.Where("id_usuario = ?", query.MemberID)
	}
	if query.PeriodID != 0 {
		q = q.Where("id_periodo = ?", query.PeriodID)
	}

	var entries []models.Transaction
	if err := repo.Keyset(q, "id_transaccion", query.Cursor, query.Limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ExistsByReference looks for a non-voided entry carrying reference.
func (r *repository) ExistsByReference(ctx context.Context, memberID, periodID uint, reference string) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Transaction{}).
		Where("id_usuario = ? AND id_periodo = ? AND referencia = ? AND estado <> ?",
			memberID, periodID, reference, enums.TransactionStatusVoided).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uint, status enums.TransactionStatus) error {
	res := r.DB(ctx).Model(&models.Transaction{}).Where("id_transaccion = ?", id).Update("estado", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MemberExists(ctx context.Context, memberID uint) (bool, error) {
	return r.Exists(ctx, &models.Member{}, "id_usuario", memberID)
}

func (r *repository) PaymentMethodExists(ctx context.Context, methodID uint) (bool, error) {
	return r.Exists(ctx, &models.PaymentMethod{}, "id_metodo", methodID)
}

func (r *repository) FindPeriod(ctx context.Context, periodID uint) (*models.Period, error) {
	var period models.Period
	if err := r.DB(ctx).Where("id_periodo = ?", periodID).Take(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}
