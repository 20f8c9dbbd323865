package metadata

// Catalog store rows. The catalog schema is owned by the wider platform;
// these models map only the columns the provisioning lookups read.

// TenantDatasourceRecord is one row of tenant_data_source: the database
// connection a tenant's data product reads from.
type TenantDatasourceRecord struct {
	TenantID           string `gorm:"column:tenant_id;primaryKey"`
	DataProductID      string `gorm:"column:data_product_id;primaryKey"`
	DataProductVersion string `gorm:"column:data_product_version;primaryKey"`
	Host               string `gorm:"column:host"`
	Database           string `gorm:"column:database"`
	Port               int    `gorm:"column:port"`
	Schema             string `gorm:"column:schema"`
	Username           string `gorm:"column:username"`
}

// TableName returns the GORM table name.
func (TenantDatasourceRecord) TableName() string { return "tenant_data_source" }

// DataProductRecord is one row of data_product_catalog: a versioned data
// product template.
type DataProductRecord struct {
	ID          string `gorm:"column:id;primaryKey"`
	Version     string `gorm:"column:version;primaryKey"`
	Name        string `gorm:"column:name"`
	StoragePath string `gorm:"column:storage_path"`
}

// TableName returns the GORM table name.
func (DataProductRecord) TableName() string { return "data_product_catalog" }

// TenantRecord is one row of tenant.
type TenantRecord struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

// TableName returns the GORM table name.
func (TenantRecord) TableName() string { return "tenant" }
