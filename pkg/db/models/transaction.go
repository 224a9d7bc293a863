package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

// Transaction is an append-only ledger entry. Monto is always positive; Tipo
// decides how it moves the balance.
type Transaction struct {
	ID              uint                    `gorm:"column:id_transaccion;primaryKey;autoIncrement"`
	MemberID        uint                    `gorm:"column:id_usuario;not null;index"`
	PeriodID        uint                    `gorm:"column:id_periodo;not null;index"`
	PaymentMethodID uint                    `gorm:"column:id_metodo;not null"`
	Tipo            enums.TransactionType   `gorm:"column:tipo;not null"`
	Monto           decimal.Decimal         `gorm:"column:monto;type:numeric(10,2);not null"`
	Fecha           types.Date              `gorm:"column:fecha;type:date"`
	Estado          enums.TransactionStatus `gorm:"column:estado;default:pendiente"`
	Referencia      string                  `gorm:"column:referencia"`
}

func (Transaction) TableName() string {
	return TableTransactions
}

// Counts reports whether the entry takes part in balance aggregation.
func (t Transaction) Counts() bool {
	return t.Estado != enums.TransactionStatusVoided
}
