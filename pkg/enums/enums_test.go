package enums

import "testing"

func TestParseRoundTrips(t *testing.T) {
	for _, status := range validMemberStatuses {
		got, err := ParseMemberStatus(status.String())
		if err != nil || got != status {
			t.Fatalf("member status %q did not round trip: %v", status, err)
		}
	}
	for _, kind := range validTransactionTypes {
		got, err := ParseTransactionType(string(kind))
		if err != nil || got != kind {
			t.Fatalf("transaction type %q did not round trip: %v", kind, err)
		}
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseMemberStatus("active"); err == nil {
		t.Fatal("expected english status to be rejected")
	}
	if _, err := ParsePeriodStatus(""); err == nil {
		t.Fatal("expected empty period status to be rejected")
	}
	if _, err := ParseTransactionStatus("PENDIENTE"); err == nil {
		t.Fatal("expected case mismatch to be rejected")
	}
	if AuditAction("borrar").IsValid() {
		t.Fatal("delete is not an audit action")
	}
}

func TestPeriodStatusAcceptsTransactions(t *testing.T) {
	if !PeriodStatusOpen.AcceptsTransactions() {
		t.Fatal("open periods accept transactions")
	}
	if PeriodStatusClosed.AcceptsTransactions() {
		t.Fatal("closed periods reject transactions")
	}
}
