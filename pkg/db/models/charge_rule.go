package models

import (
	"github.com/shopspring/decimal"
)

// ChargeRule is a billing policy. A rule with PeriodID set applies only to
// that period; rules without one are fallbacks.
type ChargeRule struct {
	ID           uint            `gorm:"column:id_regla;primaryKey;autoIncrement"`
	Descripcion  string          `gorm:"column:descripcion"`
	CuotaMensual decimal.Decimal `gorm:"column:cuota_mensual;type:numeric(10,2);not null;default:0"`
	PlazoPago    int             `gorm:"column:plazo_pago;not null;default:0"`
	Penalizacion decimal.Decimal `gorm:"column:penalizacion;type:numeric(10,2);not null;default:0"`
	Descuento    decimal.Decimal `gorm:"column:descuento;type:numeric(10,2);not null;default:0"`
	PeriodID     *uint           `gorm:"column:id_periodo;uniqueIndex"`
}

func (ChargeRule) TableName() string {
	return TableChargeRules
}

// EffectiveFee is the monthly fee after discount, never below zero.
func (r ChargeRule) EffectiveFee() decimal.Decimal {
	fee := r.CuotaMensual.Sub(r.Descuento)
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee.Round(2)
}
