package models

import (
	"strings"

	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

// Member is a club participant. numero_socio is assigned outside the system.
type Member struct {
	ID            uint               `gorm:"column:id_usuario;primaryKey;autoIncrement"`
	NumeroSocio   string             `gorm:"column:numero_socio;not null;uniqueIndex"`
	Nombre        string             `gorm:"column:nombre;not null"`
	Apellidos     string             `gorm:"column:apellidos;not null"`
	Telefono      string             `gorm:"column:telefono"`
	Email         string             `gorm:"column:email"`
	FechaAlta     types.Date         `gorm:"column:fecha_alta;type:date"`
	Estado        enums.MemberStatus `gorm:"column:estado;default:activo"`
	Observaciones string             `gorm:"column:observaciones"`
}

func (Member) TableName() string {
	return TableMembers
}

// DisplayName joins given name and surnames the way lists show them.
func (m Member) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(m.Nombre) + " " + strings.TrimSpace(m.Apellidos))
}
