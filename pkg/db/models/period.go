package models

import (
	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

// Period is a named billing interval; both dates are inclusive.
type Period struct {
	ID          uint               `gorm:"column:id_periodo;primaryKey;autoIncrement"`
	Nombre      string             `gorm:"column:nombre;not null"`
	FechaInicio types.Date         `gorm:"column:fecha_inicio;type:date;not null"`
	FechaFin    types.Date         `gorm:"column:fecha_fin;type:date;not null"`
	Estado      enums.PeriodStatus `gorm:"column:estado;default:abierto"`
}

func (Period) TableName() string {
	return TablePeriods
}

// Contains reports whether the date falls within the period.
func (p Period) Contains(d types.Date) bool {
	return !d.Before(p.FechaInicio) && !d.After(p.FechaFin)
}
