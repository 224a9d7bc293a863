package enums

import "fmt"

// AuditAction labels the change recorded in the logs table.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "crear"
	AuditActionStatusChange AuditAction = "cambiar_estado"
	AuditActionVoid         AuditAction = "anular"
	AuditActionRecompute    AuditAction = "recalcular"
	AuditActionClose        AuditAction = "cerrar"
)

var validAuditActions = []AuditAction{
	AuditActionCreate,
	AuditActionStatusChange,
	AuditActionVoid,
	AuditActionRecompute,
	AuditActionClose,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value matches a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into a AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
