package enums

import "fmt"

// PeriodStatus gates whether transactions may be posted against a billing period.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "abierto"
	PeriodStatusClosed PeriodStatus = "cerrado"
)

var validPeriodStatuses = []PeriodStatus{
	PeriodStatusOpen,
	PeriodStatusClosed,
}

// String implements fmt.Stringer.
func (p PeriodStatus) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known PeriodStatus.
func (p PeriodStatus) IsValid() bool {
	for _, candidate := range validPeriodStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePeriodStatus converts raw input into a PeriodStatus.
func ParsePeriodStatus(value string) (PeriodStatus, error) {
	for _, candidate := range validPeriodStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid period status %q", value)
}

// AcceptsTransactions reports whether new ledger entries may be posted.
func (p PeriodStatus) AcceptsTransactions() bool {
	return p == PeriodStatusOpen
}
