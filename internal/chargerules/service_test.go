package chargerules

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubmanager/internal/audit"
	"github.com/angelmondragon/clubmanager/internal/storetest"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubmanager/pkg/errors"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := storetest.Open(t)
	auditSvc, err := audit.NewService(audit.ServiceParams{Repo: audit.NewRepository(client.DB())})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Repo: NewRepository(client.DB()), Tx: client, Audit: auditSvc})
	require.NoError(t, err)
	return svc, client
}

func ptr(v uint) *uint { return &v }

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), CreateRuleInput{
		CuotaMensual: decimal.RequireFromString("-1"),
		Descuento:    decimal.RequireFromString("1.005"),
		PlazoPago:    -3,
		PeriodID:     ptr(0),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details, "cuota_mensual")
	assert.Contains(t, details, "descuento")
	assert.Contains(t, details, "plazo_pago")
	assert.Contains(t, details, "id_periodo")
}

func TestResolvePrefersPeriodRule(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	jan := storetest.Period(t, client, "Enero", "2025-01-01", "2025-01-31", enums.PeriodStatusOpen)
	feb := storetest.Period(t, client, "Febrero", "2025-02-01", "2025-02-28", enums.PeriodStatusOpen)

	_, err := svc.Resolve(ctx, jan.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateRuleInput{Descripcion: "antigua", CuotaMensual: storetest.Amount("25")})
	require.NoError(t, err)
	general, err := svc.Create(ctx, CreateRuleInput{Descripcion: "general", CuotaMensual: storetest.Amount("30")})
	require.NoError(t, err)
	special, err := svc.Create(ctx, CreateRuleInput{
		Descripcion:  "enero",
		CuotaMensual: storetest.Amount("40.50"),
		Descuento:    storetest.Amount("5.25"),
		Penalizacion: storetest.Amount("3"),
		PlazoPago:    10,
		PeriodID:     ptr(jan.ID),
	})
	require.NoError(t, err)

	rule, err := svc.Resolve(ctx, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, special.ID, rule.ID)
	assert.True(t, rule.EffectiveFee().Equal(storetest.Amount("35.25")), rule.EffectiveFee().String())

	rule, err = svc.Resolve(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, general.ID, rule.ID, "newest unbound rule is the fallback")

	rules, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}

func TestCreateOneRulePerPeriod(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	jan := storetest.Period(t, client, "Enero", "2025-01-01", "2025-01-31", enums.PeriodStatusOpen)

	_, err := svc.Create(ctx, CreateRuleInput{CuotaMensual: storetest.Amount("30"), PeriodID: ptr(jan.ID)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRuleInput{CuotaMensual: storetest.Amount("35"), PeriodID: ptr(jan.ID)})
	assert.Equal(t, pkgerrors.CodeIntegrity, pkgerrors.CodeOf(err))

	_, err = svc.Create(ctx, CreateRuleInput{CuotaMensual: storetest.Amount("35"), PeriodID: ptr(999)})
	assert.Equal(t, pkgerrors.CodeIntegrity, pkgerrors.CodeOf(err))
}
