package balances

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
)

// Repository manages persistence for per-period member balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, balance *models.PeriodBalance) error
	Get(ctx context.Context, memberID, periodID uint) (*models.PeriodBalance, error)
	ListByPeriod(ctx context.Context, periodID uint) ([]models.PeriodBalance, error)
	ListByMember(ctx context.Context, memberID uint) ([]models.PeriodBalance, error)
	DuplicatePairs(ctx context.Context, periodID uint) ([]Pair, error)
}

// Pair is a (member, period) key stored more than once.
type Pair struct {
	MemberID uint `gorm:"column:id_usuario"`
	PeriodID uint `gorm:"column:id_periodo"`
	Rows     int  `gorm:"column:filas"`
}

type repository struct {
	repo.Base
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

// Upsert inserts the balance or overwrites the amounts of the existing
// (member, period) row.
func (r *repository) Upsert(ctx context.Context, balance *models.PeriodBalance) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id_usuario"}, {Name: "id_periodo"}},
		DoUpdates: clause.AssignmentColumns([]string{"saldo_anterior", "cargos", "pagos", "saldo_actual"}),
	}).Create(balance).Error
}

func (r *repository) Get(ctx context.Context, memberID, periodID uint) (*models.PeriodBalance, error) {
	var balance models.PeriodBalance
	if err := r.DB(ctx).
		Where("id_usuario = ? AND id_periodo = ?", memberID, periodID).
		Take(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repository) ListByPeriod(ctx context.Context, periodID uint) ([]models.PeriodBalance, error) {
	var rows []models.PeriodBalance
	if err := r.DB(ctx).
		Where("id_periodo = ?", periodID).
		Order("id_usuario ASC, id_saldo ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID uint) ([]models.PeriodBalance, error) {
	var rows []models.PeriodBalance
	if err := r.DB(ctx).
		Where("id_usuario = ?", memberID).
		Order("id_periodo ASC, id_saldo ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DuplicatePairs(ctx context.Context, periodID uint) ([]Pair, error) {
	var pairs []Pair
	if err := r.DB(ctx).
		Model(&models.PeriodBalance{}).
		Select("id_usuario, id_periodo, COUNT(*) AS filas").
		Where("id_periodo = ?", periodID).
		Group("id_usuario, id_periodo").
		Having("COUNT(*) > 1").
		Scan(&pairs).Error; err != nil {
		return nil, err
	}
	return pairs, nil
}
