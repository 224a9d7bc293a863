package migrate

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubmanager/pkg/config"
	"github.com/angelmondragon/clubmanager/pkg/db"
	"github.com/angelmondragon/clubmanager/pkg/db/models"
	"github.com/angelmondragon/clubmanager/pkg/logger"
)

const latestVersion = int64(20250402120000)

func openStore(t *testing.T) *db.Client {
	t.Helper()
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "club.db")}
	client, err := db.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func columnExists(t *testing.T, client *db.Client, table, column string) bool {
	t.Helper()
	var count int64
	require.NoError(t, client.Raw(context.Background(),
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count).Error)
	return count > 0
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, Validate(FS(), DefaultDir))
}

func TestValidateRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/001_init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	err := Validate(fsys, "migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")

	fsys = fstest.MapFS{
		"migrations/20250101000000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	err = Validate(fsys, "migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-- +goose Down")

	fsys = fstest.MapFS{
		"migrations/20250101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"migrations/20250101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	err = Validate(fsys, "migrations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version")

	require.Error(t, Validate(fstest.MapFS{"migrations/README": {Data: []byte("x")}}, "migrations"))
}

func TestEnsureSchemaCreatesEveryTable(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, client, nil))

	migrator := client.DB().Migrator()
	for _, model := range models.All() {
		assert.True(t, migrator.HasTable(model), "missing table for %T", model)
	}
	assert.True(t, columnExists(t, client, models.TableChargeRules, "id_periodo"))

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	version, err := Version(ctx, sqlDB)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, version)
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()

	require.NoError(t, EnsureSchema(ctx, client, nil))
	require.NoError(t, client.Exec(ctx,
		"INSERT INTO usuarios (numero_socio, nombre, apellidos) VALUES ('001', 'Ana', 'Pérez')").Error)

	require.NoError(t, EnsureSchema(ctx, client, nil))

	var count int64
	require.NoError(t, client.Raw(ctx, "SELECT COUNT(*) FROM usuarios").Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureSchemaUpgradesLegacyStore(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()

	require.NoError(t, client.Exec(ctx, `CREATE TABLE reglas_cobro (
		id_regla INTEGER PRIMARY KEY AUTOINCREMENT,
		descripcion VARCHAR,
		cuota_mensual NUMERIC(10, 2),
		plazo_pago INTEGER,
		penalizacion NUMERIC(10, 2),
		descuento NUMERIC(10, 2)
	)`).Error)
	require.NoError(t, client.Exec(ctx,
		"INSERT INTO reglas_cobro (descripcion, cuota_mensual) VALUES ('legacy', 30)").Error)

	require.NoError(t, EnsureSchema(ctx, client, nil))

	assert.True(t, columnExists(t, client, models.TableChargeRules, "id_periodo"))
	var count int64
	require.NoError(t, client.Raw(ctx, "SELECT COUNT(*) FROM reglas_cobro").Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLogsAreAppendOnly(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client, nil))

	require.NoError(t, client.Exec(ctx,
		"INSERT INTO logs (accion, tabla_afectada, id_registro_afectado) VALUES ('crear', 'usuarios', 1)").Error)

	err := client.Exec(ctx, "DELETE FROM logs").Error
	require.Error(t, err)
	assert.True(t, db.IsIntegrityViolation(err))

	err = client.Exec(ctx, "UPDATE logs SET accion = 'anular'").Error
	require.Error(t, err)
	assert.True(t, db.IsIntegrityViolation(err))
}

func TestMigrateToVersionDown(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client, nil))

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)

	require.NoError(t, client.Exec(ctx,
		"INSERT INTO periodo (nombre, fecha_inicio, fecha_fin, estado) VALUES ('Enero', '2025-01-01', '2025-01-31', 'abierto')").Error)
	require.NoError(t, client.Exec(ctx,
		"INSERT INTO reglas_cobro (descripcion, cuota_mensual, id_periodo) VALUES ('enero', 30, 1)").Error)

	require.NoError(t, MigrateToVersion(ctx, sqlDB, "20250301100000"))
	version, err := Version(ctx, sqlDB)
	require.NoError(t, err)
	assert.EqualValues(t, 20250301100000, version)
	assert.False(t, columnExists(t, client, models.TableChargeRules, "id_periodo"))

	var rules int64
	require.NoError(t, client.Raw(ctx, "SELECT COUNT(*) FROM reglas_cobro WHERE descripcion = 'enero'").Scan(&rules).Error)
	assert.EqualValues(t, 1, rules, "rules survive the rebuild")

	require.NoError(t, client.Exec(ctx,
		"INSERT INTO logs (accion) VALUES ('crear')").Error)
	require.NoError(t, client.Exec(ctx, "DELETE FROM logs").Error, "guards removed below their version")

	require.NoError(t, MigrateToVersion(ctx, sqlDB, "20250402120000"))
	version, err = Version(ctx, sqlDB)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, version)
	assert.True(t, columnExists(t, client, models.TableChargeRules, "id_periodo"))

	require.NoError(t, MigrateToVersion(ctx, sqlDB, "20250301100000"))
	require.NoError(t, EnsureSchema(ctx, client, nil), "schema reapplies after a rollback")

	require.Error(t, MigrateToVersion(ctx, sqlDB, "latest"))
	require.Error(t, MigrateToVersion(ctx, nil, "1"))
}

func TestInitializeHonoursAutoMigrate(t *testing.T) {
	client := openStore(t)
	ctx := context.Background()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: logger.FormatJSON})

	cfg := &config.Config{DB: config.DBConfig{AutoMigrate: false}}
	require.NoError(t, Initialize(ctx, cfg, logg, client, false))
	assert.False(t, client.DB().Migrator().HasTable(&models.Member{}))

	require.NoError(t, Initialize(ctx, cfg, logg, client, true))
	assert.True(t, client.DB().Migrator().HasTable(&models.Member{}))
	assert.Contains(t, buf.String(), "schema ready")

	require.Error(t, Initialize(ctx, nil, logg, client, true))
}
