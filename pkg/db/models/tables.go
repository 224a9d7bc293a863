package models

// Physical table names. They match stores created by earlier releases.
const (
	TableMembers        = "usuarios"
	TablePaymentMethods = "metodos_pago"
	TablePeriods        = "periodo"
	TableChargeRules    = "reglas_cobro"
	TableTransactions   = "transacciones"
	TablePeriodBalances = "saldos_usuarios"
	TableLogs           = "logs"
)

// All lists every model in dependency order.
func All() []any {
	return []any{
		&Member{},
		&PaymentMethod{},
		&Period{},
		&ChargeRule{},
		&Transaction{},
		&PeriodBalance{},
		&Log{},
	}
}
