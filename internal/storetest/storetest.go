// Package storetest opens throwaway club stores for package tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/enums"
	"github.com/angelmondragon/clubmanager/pkg/migrate"
	"github.com/angelmondragon/clubmanager/pkg/types"
)

// Open returns a migrated store living in t.TempDir.
func Open(t *testing.T) *db.Client {
	t.Helper()
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "club_manager.db")}
	client, err := db.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, migrate.EnsureSchema(context.Background(), client, nil))
	return client
}

// Member inserts a member with the given number.
func Member(t *testing.T, client *db.Client, number string, status enums.MemberStatus) *models.Member {
	t.Helper()
	m := &models.Member{
		NumeroSocio: number,
		Nombre:      "Socio",
		Apellidos:   number,
		FechaAlta:   types.MustDate("2025-01-01"),
		Estado:      status,
	}
	require.NoError(t, client.DB().Create(m).Error)
	return m
}

// Method inserts a payment method.
func Method(t *testing.T, client *db.Client, name string) *models.PaymentMethod {
	t.Helper()
	pm := &models.PaymentMethod{Nombre: name}
	require.NoError(t, client.DB().Create(pm).Error)
	return pm
}

// Period inserts a period spanning start..end (YYYY-MM-DD).
func Period(t *testing.T, client *db.Client, name, start, end string, status enums.PeriodStatus) *models.Period {
	t.Helper()
	p := &models.Period{
		Nombre:      name,
		FechaInicio: types.MustDate(start),
		FechaFin:    types.MustDate(end),
		Estado:      status,
	}
	require.NoError(t, client.DB().Create(p).Error)
	return p
}

// Tx inserts a transaction directly, bypassing service checks.
func Tx(t *testing.T, client *db.Client, member, period, method uint, kind enums.TransactionType, amount string, status enums.TransactionStatus) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		MemberID:        member,
		PeriodID:        period,
		PaymentMethodID: method,
		Tipo:            kind,
		Monto:           decimal.RequireFromString(amount),
		Fecha:           types.MustDate("2025-01-15"),
		Estado:          status,
	}
	require.NoError(t, client.DB().Create(tx).Error)
	return tx
}

// Amount parses a fixture amount.
func Amount(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
