package models

import (
	"github.com/shopspring/decimal"
)

// PeriodBalance is the standing of one member in one period.
// SaldoActual must equal SaldoAnterior + Cargos - Pagos.
type PeriodBalance struct {
	ID            uint            `gorm:"column:id_saldo;primaryKey;autoIncrement"`
	MemberID      uint            `gorm:"column:id_usuario;not null;uniqueIndex:idx_saldos_usuario_periodo,priority:1"`
	PeriodID      uint            `gorm:"column:id_periodo;not null;uniqueIndex:idx_saldos_usuario_periodo,priority:2"`
	SaldoAnterior decimal.Decimal `gorm:"column:saldo_anterior;type:numeric(10,2);not null;default:0"`
	Cargos        decimal.Decimal `gorm:"column:cargos;type:numeric(10,2);not null;default:0"`
	Pagos         decimal.Decimal `gorm:"column:pagos;type:numeric(10,2);not null;default:0"`
	SaldoActual   decimal.Decimal `gorm:"column:saldo_actual;type:numeric(10,2);not null;default:0"`
}

func (PeriodBalance) TableName() string {
	return TablePeriodBalances
}

// Expected returns the balance implied by the other three fields.
func (b PeriodBalance) Expected() decimal.Decimal {
	return b.SaldoAnterior.Add(b.Cargos).Sub(b.Pagos).Round(2)
}

// Consistent reports whether SaldoActual matches Expected.
func (b PeriodBalance) Consistent() bool {
	return b.SaldoActual.Round(2).Equal(b.Expected())
}
