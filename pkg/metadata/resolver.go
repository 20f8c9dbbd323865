// Package metadata resolves tenant, data product, and datasource descriptors
// from the catalog store. Descriptors are owned by a single pipeline run and
// discarded when it ends; nothing here caches across runs.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a required catalog lookup matches no rows.
var ErrNotFound = errors.New("not found in metadata store")

// DatasourceMetadata describes the tenant datasource to register on the
// platform. Password is injected from the secret source, never from the
// catalog store.
type DatasourceMetadata struct {
	ID       string
	Name     string
	Host     string
	DBName   string
	Port     int
	Schema   string
	Username string
	Password string
}

// LogValue implements slog.LogValuer so a logged descriptor never carries the
// password.
func (d DatasourceMetadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", d.ID),
		slog.String("name", d.Name),
		slog.String("host", d.Host),
		slog.String("dbName", d.DBName),
		slog.Int("port", d.Port),
		slog.String("schema", d.Schema),
		slog.String("username", d.Username),
	)
}

// DataProductMetadata describes the data product template being provisioned.
type DataProductMetadata struct {
	Name        string
	StoragePath string
}

// TenantMetadata describes the tenant record.
type TenantMetadata struct {
	Name string
}

// Bundle is the full descriptor set a pipeline run works from.
type Bundle struct {
	Datasource  DatasourceMetadata
	DataProduct DataProductMetadata
	Tenant      TenantMetadata
}

// Resolver looks descriptors up in the catalog store. The datasource secret
// is injected at construction and attached to resolved datasource metadata.
type Resolver struct {
	db                 *gorm.DB
	datasourcePassword string
	logger             *slog.Logger
}

// NewResolver creates a Resolver over an open catalog store connection.
func NewResolver(db *gorm.DB, datasourcePassword string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{db: db, datasourcePassword: datasourcePassword, logger: logger}
}

// ResolveDatasource fetches the tenant datasource connection record and
// attaches the injected credentials and the derived datasource identifier.
func (r *Resolver) ResolveDatasource(ctx context.Context, tenant, dataProduct, version, datasourceID string) (DatasourceMetadata, error) {
	r.logger.Info("resolving datasource metadata",
		"tenant", tenant, "dataProduct", dataProduct, "version", version)

	var rec TenantDatasourceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND data_product_id = ? AND data_product_version = ?",
			tenant, dataProduct, version).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DatasourceMetadata{}, fmt.Errorf(
				"%w: datasource (tenant=%s, dataProduct=%s, version=%s)",
				ErrNotFound, tenant, dataProduct, version)
		}
		return DatasourceMetadata{}, fmt.Errorf("resolve datasource: %w", err)
	}

	return DatasourceMetadata{
		ID:       datasourceID,
		Name:     datasourceID,
		Host:     rec.Host,
		DBName:   rec.Database,
		Port:     rec.Port,
		Schema:   rec.Schema,
		Username: rec.Username,
		Password: r.datasourcePassword,
	}, nil
}

// ResolveDataProduct fetches the data product catalog record. The storage
// path is normalized by stripping leading and trailing separators.
func (r *Resolver) ResolveDataProduct(ctx context.Context, dataProduct, version string) (DataProductMetadata, error) {
	r.logger.Info("resolving data product metadata",
		"dataProduct", dataProduct, "version", version)

	var rec DataProductRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", dataProduct, version).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DataProductMetadata{}, fmt.Errorf(
				"%w: dataproduct (id=%s, version=%s)", ErrNotFound, dataProduct, version)
		}
		return DataProductMetadata{}, fmt.Errorf("resolve dataproduct: %w", err)
	}

	return DataProductMetadata{
		Name:        rec.Name,
		StoragePath: strings.Trim(rec.StoragePath, "/"),
	}, nil
}

// ResolveTenant fetches the tenant record.
func (r *Resolver) ResolveTenant(ctx context.Context, tenant string) (TenantMetadata, error) {
	r.logger.Info("resolving tenant metadata", "tenant", tenant)

	var rec TenantRecord
	err := r.db.WithContext(ctx).Where("id = ?", tenant).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TenantMetadata{}, fmt.Errorf("%w: tenant (id=%s)", ErrNotFound, tenant)
		}
		return TenantMetadata{}, fmt.Errorf("resolve tenant: %w", err)
	}
	return TenantMetadata{Name: rec.Name}, nil
}
