package enums

import "fmt"

// TransactionType tags a ledger entry as a charge, a payment or a refund.
type TransactionType string

const (
	TransactionTypeCharge  TransactionType = "cargo"
	TransactionTypePayment TransactionType = "pago"
	TransactionTypeRefund  TransactionType = "reembolso"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeCharge,
	TransactionTypePayment,
	TransactionTypeRefund,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
