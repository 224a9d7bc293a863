package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubmanager/internal/chargerules"
	"github.com/angelmondragon/clubmanager/internal/ledger"
	"github.com/angelmondragon/clubmanager/internal/members"
	"github.com/angelmondragon/clubmanager/internal/periods"
	"github.com/angelmondragon/clubmanager/internal/storetest"
	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
	"github.com/angelmondragon/clubmanager/pkg/logger"
	"github.com/angelmondragon/clubmanager/pkg/metrics"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

type testEnv struct {
	dispatcher *Dispatcher
	registry   *prometheus.Registry
	logs       *bytes.Buffer
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	client := storetest.Open(t)
	registry := prometheus.NewRegistry()
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: logs})

	d, err := Build(BuildParams{
		Client:  client,
		Billing: config.BillingConfig{Currency: "EUR", ChargeMethod: "Efectivo"},
		Logger:  logg,
		Metrics: metrics.NewActionMetrics(registry),
		Clock:   func() time.Time { return time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return testEnv{dispatcher: d, registry: registry, logs: logs}
}

func counter(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if hasLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range m.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && want == pair.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestNewRequiresServices(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestNotImplementedActionsAreInformational(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stubs := map[string]func(context.Context) error{
		ActionReports:  env.dispatcher.Reports,
		ActionSettings: env.dispatcher.Settings,
		ActionFilters:  env.dispatcher.Filters,
		ActionUndo:     env.dispatcher.Undo,
		ActionRedo:     env.dispatcher.Redo,
	}
	for action, call := range stubs {
		err := call(ctx)
		require.Error(t, err, action)
		assert.True(t, pkgerrors.IsInformational(err), action)
		assert.Equal(t, pkgerrors.CodeNotImplemented, pkgerrors.CodeOf(err))
		assert.Contains(t, err.Error(), "is not implemented yet.")
		assert.EqualValues(t, 1, counter(t, env.registry, "clubmanager_action_informational_total", map[string]string{"action": action}))
		assert.Zero(t, counter(t, env.registry, "clubmanager_action_failure_total", map[string]string{"action": action}))
	}

	err := env.dispatcher.Reports(ctx)
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, "'Reportes' is not implemented yet.", pkgerrors.As(err).Message())
	assert.EqualValues(t, 2, counter(t, env.registry, "clubmanager_action_informational_total", map[string]string{"action": ActionReports}))
}

func TestDispatchTagsLogsWithActionID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.dispatcher.AddMember(context.Background(), members.RegisterMemberInput{NumeroSocio: "001"})
	require.Error(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(env.logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] != "action failed" {
			continue
		}
		found = true
		assert.Equal(t, ActionAddMember, entry["action"])
		assert.NotEmpty(t, entry["action_id"])
		assert.Equal(t, string(pkgerrors.CodeValidation), entry["code"])
	}
	assert.True(t, found, "expected an action failed log line")
	assert.EqualValues(t, 1, counter(t, env.registry, "clubmanager_action_failure_total",
		map[string]string{"action": ActionAddMember, "code": "validation_error"}))
}

func TestClubWorkflow(t *testing.T) {
	env := newTestEnv(t)
	d := env.dispatcher
	ctx := context.Background()

	method, err := d.AddPaymentMethod(ctx, "Efectivo", "tesoreria")
	require.NoError(t, err)
	_, err = d.AddPaymentMethod(ctx, "Efectivo", "tesoreria")
	assert.Equal(t, pkgerrors.CodeIntegrity, pkgerrors.CodeOf(err))
	methods, err := d.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	ana, err := d.AddMember(ctx, members.RegisterMemberInput{NumeroSocio: "001", Nombre: "Ana", Apellidos: "García", Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = d.AddMember(ctx, members.RegisterMemberInput{NumeroSocio: "001", Nombre: "Otra", Apellidos: "Persona"})
	assert.Equal(t, pkgerrors.CodeIntegrity, pkgerrors.CodeOf(err))
	luis, err := d.AddMember(ctx, members.RegisterMemberInput{NumeroSocio: "002", Nombre: "Luis", Apellidos: "Pérez"})
	require.NoError(t, err)

	found, err := d.SearchMembers(ctx, members.SearchParams{Query: "garc"})
	require.NoError(t, err)
	require.Len(t, found.Rows, 1)
	assert.Equal(t, "Ana García", found.Rows[0].DisplayName)

	jan, err := d.AddPeriod(ctx, periods.CreatePeriodInput{
		Nombre:      "Enero 2025",
		FechaInicio: types.MustDate("2025-01-01"),
		FechaFin:    types.MustDate("2025-01-31"),
	})
	require.NoError(t, err)
	listed, err := d.ListPeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = d.AddChargeRule(ctx, chargerules.CreateRuleInput{
		Descripcion:  "cuota",
		CuotaMensual: storetest.Amount("25.00"),
		PlazoPago:    10,
		Penalizacion: storetest.Amount("3.00"),
		PeriodID:     &jan.ID,
	})
	require.NoError(t, err)
	rules, err := d.ListChargeRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	charged, err := d.ApplyCharges(ctx, jan.ID, "tesoreria")
	require.NoError(t, err)
	assert.Len(t, charged.Posted, 2)

	payment, err := d.PostTransaction(ctx, ledger.PostTransactionInput{
		MemberID:        luis.ID,
		PeriodID:        jan.ID,
		PaymentMethodID: method.ID,
		Tipo:            enums.TransactionTypePayment,
		Monto:           storetest.Amount("25.00"),
	})
	require.NoError(t, err)

	wrong, err := d.PostTransaction(ctx, ledger.PostTransactionInput{
		MemberID:        ana.ID,
		PeriodID:        jan.ID,
		PaymentMethodID: method.ID,
		Tipo:            enums.TransactionTypePayment,
		Monto:           storetest.Amount("250.00"),
	})
	require.NoError(t, err)
	_, err = d.VoidTransaction(ctx, wrong.ID, "tesoreria")
	require.NoError(t, err)

	rows, err := d.RecomputeBalances(ctx, jan.ID, "tesoreria")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	report, err := d.CheckBalances(ctx, jan.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())

	page, err := d.ListTransactions(ctx, ledger.ListParams{PeriodID: jan.ID})
	require.NoError(t, err)
	assert.Len(t, page.Rows, 4)

	closed, err := d.ClosePeriod(ctx, jan.ID, "tesoreria")
	require.NoError(t, err)
	require.Len(t, closed.Penalties, 1)
	assert.Equal(t, ana.ID, closed.Penalties[0].MemberID)

	_, err = d.PostTransaction(ctx, ledger.PostTransactionInput{
		MemberID:        ana.ID,
		PeriodID:        jan.ID,
		PaymentMethodID: method.ID,
		Tipo:            enums.TransactionTypePayment,
		Monto:           storetest.Amount("28.00"),
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	final, err := d.ListBalances(ctx, jan.ID)
	require.NoError(t, err)
	for _, b := range final {
		switch b.MemberID {
		case ana.ID:
			assert.Equal(t, "28.00", b.SaldoActual.StringFixed(2))
		case luis.ID:
			assert.Equal(t, "0.00", b.SaldoActual.StringFixed(2))
		}
	}

	_, err = d.ChangeMemberStatus(ctx, luis.ID, "baja", "secretaria")
	require.NoError(t, err)
	_, err = d.ChangeMemberStatus(ctx, luis.ID, "expulsado", "secretaria")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	history, err := d.MemberLedger(ctx, luis.ID)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 2)
	assert.Equal(t, payment.ID, history.Transactions[1].ID)
	assert.NotEmpty(t, history.Balances)
	assert.NotEmpty(t, history.Logs)

	assert.EqualValues(t, 2, counter(t, env.registry, "clubmanager_action_success_total", map[string]string{"action": ActionAddMember}))
	assert.EqualValues(t, 1, counter(t, env.registry, "clubmanager_action_failure_total",
		map[string]string{"action": ActionAddMember, "code": "integrity_violation"}))
}
