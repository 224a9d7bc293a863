package members

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/repo"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
)

// Repository manages persistence for members.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uint) (*models.Member, error)
	FindByNumber(ctx context.Context, number string) (*models.Member, error)
	Search(ctx context.Context, query SearchQuery) ([]models.Member, error)
	UpdateStatus(ctx context.Context, id uint, status enums.MemberStatus) error
	ListByStatus(ctx context.Context, status enums.MemberStatus) ([]models.Member, error)
}

// SearchQuery filters the member list. Term matches numero_socio, nombre,
// apellidos and email case-insensitively.
type SearchQuery struct {
	Term   string
	Status *enums.MemberStatus
	Cursor *pagination.Cursor
	Limit  int
}

type repository struct {
	repo.Base
}

// NewRepository returns a members repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, member *models.Member) error {
	return r.DB(ctx).Create(member).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	if err := r.DB(ctx).Where("id_usuario = ?", id).Take(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Member, error) {
	var member models.Member
	if err := r.DB(ctx).Where("numero_socio = ?", number).Take(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) Search(ctx context.Context, query SearchQuery) ([]models.Member, error) {
	q := r.DB(ctx).Model(&models.Member{})
	if term := strings.ToLower(strings.TrimSpace(query.Term)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where(
			`(fold(numero_socio) LIKE ? ESCAPE '\' OR fold(nombre) LIKE ? ESCAPE '\' OR fold(apellidos) LIKE ? ESCAPE '\' OR fold(COALESCE(email, '')) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern, pattern,
		)
	}
	if query.Status != nil {
		q = q.Where("estado = ?", *query.Status)
	}

	var members []models.Member
	if err := repo.Keyset(q, "id_usuario", query.Cursor, query.Limit).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uint, status enums.MemberStatus) error {
	res := r.DB(ctx).Model(&models.Member{}).Where("id_usuario = ?", id).Update("estado", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.MemberStatus) ([]models.Member, error) {
	var members []models.Member
	if err := r.DB(ctx).
		Where("estado = ?", status).
		Order("id_usuario ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
