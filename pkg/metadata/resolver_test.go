package metadata

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&TenantDatasourceRecord{}, &DataProductRecord{}, &TenantRecord{},
	))
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&TenantDatasourceRecord{
		TenantID:           "acme",
		DataProductID:      "orders",
		DataProductVersion: "1",
		Host:               "warehouse.example.com",
		Database:           "orders_dwh",
		Port:               5432,
		Schema:             "analytics",
		Username:           "etl",
	}).Error)
	require.NoError(t, db.Create(&DataProductRecord{
		ID:          "orders",
		Version:     "1",
		Name:        "Orders",
		StoragePath: "/dataproducts/orders/1/",
	}).Error)
	require.NoError(t, db.Create(&TenantRecord{ID: "acme", Name: "Acme Corp"}).Error)
}

func TestResolveDatasource(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	r := NewResolver(db, "ds-secret", nil)

	ds, err := r.ResolveDatasource(context.Background(), "acme", "orders", "1", "orders_acme")
	require.NoError(t, err)
	assert.Equal(t, "orders_acme", ds.ID)
	assert.Equal(t, "orders_acme", ds.Name)
	assert.Equal(t, "warehouse.example.com", ds.Host)
	assert.Equal(t, "orders_dwh", ds.DBName)
	assert.Equal(t, 5432, ds.Port)
	assert.Equal(t, "etl", ds.Username)
	assert.Equal(t, "ds-secret", ds.Password, "password comes from the secret source, not the catalog")
}

func TestResolveDatasourceNotFoundNamesEntity(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, "ds-secret", nil)

	_, err := r.ResolveDatasource(context.Background(), "acme", "orders", "2", "orders_acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "datasource")
	assert.Contains(t, err.Error(), "version=2")
}

func TestResolveDataProductNormalizesStoragePath(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	r := NewResolver(db, "", nil)

	dp, err := r.ResolveDataProduct(context.Background(), "orders", "1")
	require.NoError(t, err)
	assert.Equal(t, "Orders", dp.Name)
	assert.Equal(t, "dataproducts/orders/1", dp.StoragePath)
}

func TestResolveDataProductNotFound(t *testing.T) {
	db := setupTestDB(t)
	r := NewResolver(db, "", nil)

	_, err := r.ResolveDataProduct(context.Background(), "orders", "9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "dataproduct")
}

func TestResolveTenant(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	r := NewResolver(db, "", nil)

	tn, err := r.ResolveTenant(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", tn.Name)

	_, err = r.ResolveTenant(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "tenant")
}

func TestDatasourceLogValueMasksPassword(t *testing.T) {
	ds := DatasourceMetadata{ID: "orders_acme", Username: "etl", Password: "ds-secret"}

	var sb strings.Builder
	log := slog.New(slog.NewTextHandler(&sb, nil))
	log.Info("creating datasource", "config", ds)

	out := sb.String()
	assert.Contains(t, out, "orders_acme")
	assert.NotContains(t, out, "ds-secret")
}
