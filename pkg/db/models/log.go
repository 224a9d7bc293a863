package models

import (
	"time"

	"github.com/angelmondragon/clubmanager/pkg/enums"
)

// Log is an immutable audit record. MemberID is the member the change concerns, if any.
type Log struct {
	ID                 uint              `gorm:"column:id_log;primaryKey;autoIncrement"`
	MemberID           *uint             `gorm:"column:id_usuario;index"`
	Accion             enums.AuditAction `gorm:"column:accion;not null"`
	TablaAfectada      string            `gorm:"column:tabla_afectada"`
	IDRegistroAfectado uint              `gorm:"column:id_registro_afectado"`
	DescripcionCambio  string            `gorm:"column:descripcion_cambio"`
	FechaHora          time.Time         `gorm:"column:fecha_hora;autoCreateTime"`
}

func (Log) TableName() string {
	return TableLogs
}
