package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/internal/storetest"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/pagination"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

type fakeRepository struct {
	Repository
	createFn func(ctx context.Context, entry *models.Transaction) error
	period   *models.Period
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, entry *models.Transaction) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) MemberExists(ctx context.Context, memberID uint) (bool, error) {
	return true, nil
}

func (f *fakeRepository) PaymentMethodExists(ctx context.Context, methodID uint) (bool, error) {
	return true, nil
}

func (f *fakeRepository) FindPeriod(ctx context.Context, periodID uint) (*models.Period, error) {
	if f.period == nil {
		return &models.Period{ID: periodID, Estado: enums.PeriodStatusOpen}, nil
	}
	return f.period, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAudit struct{ entries []audit.Entry }

func (s *stubAudit) Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func validInput() PostTransactionInput {
	return PostTransactionInput{
		MemberID:        1,
		PeriodID:        2,
		PaymentMethodID: 3,
		Tipo:            enums.TransactionTypePayment,
		Monto:           decimal.RequireFromString("30.00"),
	}
}

func TestService_PostDefaults(t *testing.T) {
	repo := &fakeRepository{}
	recorder := &stubAudit{}
	svc, err := NewService(ServiceParams{
		Repo:  repo,
		Tx:    stubTxRunner{},
		Audit: recorder,
		Clock: func() time.Time { return time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.Transaction
	repo.createFn = func(ctx context.Context, entry *models.Transaction) error {
		entry.ID = 11
		created = entry
		return nil
	}

	got, err := svc.Post(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("expected transaction to be created and returned")
	}
	if created.Estado != enums.TransactionStatusPending {
		t.Fatalf("expected pending status, got %q", created.Estado)
	}
	if created.Fecha.String() != "2025-01-20" {
		t.Fatalf("expected fecha to default to today, got %s", created.Fecha)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].RecordID != 11 {
		t.Fatalf("expected audit entry for transaction, got %+v", recorder.entries)
	}
}

func TestService_PostValidation(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &fakeRepository{}, Tx: stubTxRunner{}, Audit: &stubAudit{}})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(in *PostTransactionInput)
		field  string
	}{
		{name: "missing member", mutate: func(in *PostTransactionInput) { in.MemberID = 0 }, field: "id_usuario"},
		{name: "missing period", mutate: func(in *PostTransactionInput) { in.PeriodID = 0 }, field: "id_periodo"},
		{name: "missing method", mutate: func(in *PostTransactionInput) { in.PaymentMethodID = 0 }, field: "id_metodo"},
		{name: "bad type", mutate: func(in *PostTransactionInput) { in.Tipo = "regalo" }, field: "tipo"},
		{name: "zero amount", mutate: func(in *PostTransactionInput) { in.Monto = decimal.Zero }, field: "monto"},
		{name: "negative amount", mutate: func(in *PostTransactionInput) { in.Monto = decimal.NewFromInt(-5) }, field: "monto"},
		{name: "three decimals", mutate: func(in *PostTransactionInput) { in.Monto = decimal.RequireFromString("1.001") }, field: "monto"},
		{name: "too large", mutate: func(in *PostTransactionInput) { in.Monto = decimal.RequireFromString("100000000") }, field: "monto"},
		{name: "voided on post", mutate: func(in *PostTransactionInput) { in.Estado = enums.TransactionStatusVoided }, field: "estado"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.Post(context.Background(), input)
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details := pkgerrors.As(err).Details().(map[string]string)
			if _, ok := details[tc.field]; !ok {
				t.Fatalf("expected detail for %s, got %v", tc.field, details)
			}
		})
	}
}

func TestService_PostClosedPeriodIsStateConflict(t *testing.T) {
	repo := &fakeRepository{period: &models.Period{ID: 2, Nombre: "Enero", Estado: enums.PeriodStatusClosed}}
	svc, err := NewService(ServiceParams{Repo: repo, Tx: stubTxRunner{}, Audit: &stubAudit{}})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	_, err = svc.Post(context.Background(), validInput())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

type fixture struct {
	client *db.Client
	svc    *Service
	member *models.Member
	method *models.PaymentMethod
	period *models.Period
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := storetest.Open(t)
	auditSvc, err := audit.NewService(audit.ServiceParams{Repo: audit.NewRepository(client.DB())})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Repo: NewRepository(client.DB()), Tx: client, Audit: auditSvc})
	require.NoError(t, err)
	return fixture{
		client: client,
		svc:    svc,
		member: storetest.Member(t, client, "001", enums.MemberStatusActive),
		method: storetest.Method(t, client, "Efectivo"),
		period: storetest.Period(t, client, "Enero", "2025-01-01", "2025-01-31", enums.PeriodStatusOpen),
	}
}

func (f fixture) input(kind enums.TransactionType, amount string) PostTransactionInput {
	return PostTransactionInput{
		MemberID:        f.member.ID,
		PeriodID:        f.period.ID,
		PaymentMethodID: f.method.ID,
		Tipo:            kind,
		Monto:           decimal.RequireFromString(amount),
		Fecha:           types.MustDate("2025-01-10"),
	}
}

func TestPostWithValidReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Post(ctx, f.input(enums.TransactionTypeCharge, "45.50"))
	require.NoError(t, err)
	require.NotZero(t, entry.ID)

	stored, err := f.svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.Monto.Equal(decimal.RequireFromString("45.50")))
	assert.Equal(t, "2025-01-10", stored.Fecha.String())
	assert.Equal(t, enums.TransactionStatusPending, stored.Estado)

	byMember, err := f.svc.ListByMember(ctx, f.member.ID)
	require.NoError(t, err)
	assert.Len(t, byMember, 1)
	byPeriod, err := f.svc.ListByPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Len(t, byPeriod, 1)
	both, err := f.svc.ListByMemberAndPeriod(ctx, f.member.ID, f.period.ID)
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestAmountsRoundTripAtColumnScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []string{"99999999.99", "0.10", "12.30"} {
		entry, err := f.svc.Post(ctx, f.input(enums.TransactionTypeCharge, amount))
		require.NoError(t, err)

		var storage string
		require.NoError(t, f.client.Raw(ctx, "SELECT typeof(monto) FROM transacciones WHERE id_transaccion = ?", entry.ID).Scan(&storage).Error)
		assert.Equal(t, "real", storage, "NUMERIC affinity stores decimals as REAL")

		stored, err := f.svc.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, amount, stored.Monto.StringFixed(2))
	}
}

func TestPostMissingReferencesAreIntegrityViolations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]func(in *PostTransactionInput){
		"member": func(in *PostTransactionInput) { in.MemberID = 999 },
		"period": func(in *PostTransactionInput) { in.PeriodID = 999 },
		"method": func(in *PostTransactionInput) { in.PaymentMethodID = 999 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := f.input(enums.TransactionTypePayment, "10")
			mutate(&input)
			_, err := f.svc.Post(ctx, input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeIntegrity, pkgerrors.CodeOf(err))
		})
	}

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStoreRejectsDanglingForeignKeys(t *testing.T) {
	f := newFixture(t)
	err := NewRepository(f.client.DB()).Create(context.Background(), &models.Transaction{
		MemberID:        999,
		PeriodID:        f.period.ID,
		PaymentMethodID: f.method.ID,
		Tipo:            enums.TransactionTypeCharge,
		Monto:           decimal.NewFromInt(1),
		Estado:          enums.TransactionStatusPending,
	})
	require.Error(t, err)
	assert.True(t, db.IsForeignKeyViolation(err))
}

func TestPostIntoClosedPeriod(t *testing.T) {
	f := newFixture(t)
	closed := storetest.Period(t, f.client, "Diciembre", "2024-12-01", "2024-12-31", enums.PeriodStatusClosed)

	input := f.input(enums.TransactionTypePayment, "10")
	input.PeriodID = closed.ID
	_, err := f.svc.Post(context.Background(), input)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Post(ctx, f.input(enums.TransactionTypePayment, "20"))
	require.NoError(t, err)

	voided, err := f.svc.Void(ctx, entry.ID, "tesoreria")
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusVoided, voided.Estado)
	assert.True(t, voided.Monto.Equal(decimal.NewFromInt(20)), "amount is untouched")

	_, err = f.svc.Void(ctx, entry.ID, "tesoreria")
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	_, err = f.svc.Void(ctx, 999, "")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	var logs []models.Log
	require.NoError(t, f.client.DB().Where("tabla_afectada = ? AND id_registro_afectado = ?", models.TableTransactions, entry.ID).
		Order("id_log").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, enums.AuditActionVoid, logs[1].Accion)
}

func TestVoidInClosedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Post(ctx, f.input(enums.TransactionTypePayment, "20"))
	require.NoError(t, err)
	require.NoError(t, f.client.DB().Model(&models.Period{}).Where("id_periodo = ?", f.period.ID).
		Update("estado", enums.PeriodStatusClosed).Error)

	_, err = f.svc.Void(ctx, entry.ID, "")
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestTransactionsAreImmutableInStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Post(ctx, f.input(enums.TransactionTypeCharge, "30"))
	require.NoError(t, err)

	err = f.client.Exec(ctx, "UPDATE transacciones SET monto = 1 WHERE id_transaccion = ?", entry.ID).Error
	require.Error(t, err)
	err = f.client.Exec(ctx, "DELETE FROM transacciones WHERE id_transaccion = ?", entry.ID).Error
	require.Error(t, err)
}

func TestListPaginatesAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := storetest.Member(t, f.client, "002", enums.MemberStatusActive)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Post(ctx, f.input(enums.TransactionTypeCharge, "10"))
		require.NoError(t, err)
	}
	input := f.input(enums.TransactionTypePayment, "5")
	input.MemberID = other.ID
	_, err := f.svc.Post(ctx, input)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(ctx, ListParams{Params: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, rest.Rows, 2)
	assert.Empty(t, rest.NextCursor)

	mine, err := f.svc.List(ctx, ListParams{MemberID: other.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	require.Len(t, mine.Rows, 1)
	assert.Equal(t, enums.TransactionTypePayment, mine.Rows[0].Tipo)
}

func TestHasReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.input(enums.TransactionTypeCharge, "30")
	input.Referencia = "cuota:1"
	entry, err := f.svc.Post(ctx, input)
	require.NoError(t, err)

	ok, err := f.svc.HasReferenceInTx(ctx, nil, f.member.ID, f.period.ID, "cuota:1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.Void(ctx, entry.ID, "")
	require.NoError(t, err)
	ok, err = f.svc.HasReferenceInTx(ctx, nil, f.member.ID, f.period.ID, "cuota:1")
	require.NoError(t, err)
	assert.False(t, ok, "voided entries do not count")
}
