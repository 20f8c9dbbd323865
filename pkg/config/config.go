// Package config loads the provisioning configuration: a YAML file describing
// the catalog store, the analytics platform, the artifact repository, and the
// declarative provisioning defaults, plus secrets sourced exclusively from the
// environment. Components receive the resulting Config by reference and never
// read ambient process state themselves.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingConfiguration is returned when a required secret or setting is
// absent at startup. It is checked eagerly so that provisioning never starts
// partially configured.
var ErrMissingConfiguration = errors.New("missing configuration")

// ErrUnknownResourceKind is returned when a declared workspace token is not
// one of the recognized kinds ("parent" or "child").
var ErrUnknownResourceKind = errors.New("unknown resource kind")

// Environment variable names for secrets. Secrets are never read from the
// config file.
const (
	EnvMetadataStorePassword = "METADATA_STORE_PASSWORD"
	EnvPlatformToken         = "PLATFORM_TOKEN"
	EnvDatasourcePassword    = "DATASOURCE_PASSWORD"
)

// MetadataStoreConfig describes the catalog store connection.
type MetadataStoreConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	DBName   string `mapstructure:"db_name"`
	Schema   string `mapstructure:"schema"`
	Password string `mapstructure:"password"` // env only
}

// DSN returns the postgres connection string for the catalog store.
func (c MetadataStoreConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=require",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// MaskedDSN returns the connection string with the password masked, safe for
// logging.
func (c MetadataStoreConfig) MaskedDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=**** dbname=%s sslmode=require",
		c.Host, c.Port, c.User, c.DBName)
}

// PlatformConfig describes the analytics platform endpoint.
type PlatformConfig struct {
	Host  string `mapstructure:"host"`
	Token string `mapstructure:"token"` // env only
}

// ObjectStorageConfig describes the artifact repository bucket. Credentials
// come from the standard AWS credential chain.
type ObjectStorageConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, for S3-compatible stores
}

// UsergroupDeclaration declares a tenant user group by short name together
// with the permission it receives on workspaces.
type UsergroupDeclaration struct {
	Name       string `mapstructure:"name"`
	Permission string `mapstructure:"permission"`
}

// WorkspacePermissionDeclaration declares the full permission set for one
// workspace, identified by its kind token ("parent" or "child").
type WorkspacePermissionDeclaration struct {
	Workspace  string                 `mapstructure:"workspace"`
	Usergroups []UsergroupDeclaration `mapstructure:"usergroups"`
}

// DefaultUser declares a user provisioned for every new tenant.
type DefaultUser struct {
	UserID    string `mapstructure:"user_id"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
	Email     string `mapstructure:"email"`
}

// ProvisioningConfig holds the declarative defaults applied to every tenant:
// which user groups exist, which permissions they hold on which workspace,
// and which users are created up front. Names are resolved into concrete
// identifiers at pipeline execution time, never persisted.
type ProvisioningConfig struct {
	DefaultUsergroups               []UsergroupDeclaration           `mapstructure:"default_usergroups"`
	WorkspacePermissions            []WorkspacePermissionDeclaration `mapstructure:"workspace_permissions"`
	DefaultUsergroupForDefaultUsers string                           `mapstructure:"default_usergroup_for_default_users"`
	DefaultUsers                    []DefaultUser                    `mapstructure:"default_users"`
}

// Config is the complete provisioning configuration, constructed once at
// startup.
type Config struct {
	MetadataStore      MetadataStoreConfig `mapstructure:"metadata_store"`
	Platform           PlatformConfig      `mapstructure:"platform"`
	ObjectStorage      ObjectStorageConfig `mapstructure:"object_storage"`
	Provisioning       ProvisioningConfig  `mapstructure:"provisioning"`
	DatasourcePassword string              `mapstructure:"datasource_password"` // env only
}

// Load reads the YAML config file at path and merges in the environment
// secrets. The returned config is validated eagerly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Secrets are bound to flat environment variables and never read from
	// the file itself. The defaults register the keys so Unmarshal sees
	// them even when the file omits the section.
	v.SetDefault("metadata_store.password", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("datasource_password", "")
	if err := v.BindEnv("metadata_store.password", EnvMetadataStorePassword); err != nil {
		return nil, err
	}
	if err := v.BindEnv("platform.token", EnvPlatformToken); err != nil {
		return nil, err
	}
	if err := v.BindEnv("datasource_password", EnvDatasourcePassword); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every required setting and secret is present. All
// missing values are reported in one error so operators fix them in one pass.
func (c *Config) Validate() error {
	var missing []string

	if c.MetadataStore.Host == "" {
		missing = append(missing, "metadata_store.host")
	}
	if c.MetadataStore.DBName == "" {
		missing = append(missing, "metadata_store.db_name")
	}
	if c.MetadataStore.Password == "" {
		missing = append(missing, EnvMetadataStorePassword)
	}
	if c.Platform.Host == "" {
		missing = append(missing, "platform.host")
	}
	if c.Platform.Token == "" {
		missing = append(missing, EnvPlatformToken)
	}
	if c.ObjectStorage.Bucket == "" {
		missing = append(missing, "object_storage.bucket")
	}
	if c.DatasourcePassword == "" {
		missing = append(missing, EnvDatasourcePassword)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// WorkspaceForToken maps a declared workspace kind token to the concrete
// workspace identifier. Only "parent" and "child" are recognized.
func WorkspaceForToken(token, parentID, childID string) (string, error) {
	switch token {
	case "parent":
		return parentID, nil
	case "child":
		return childID, nil
	}
	return "", fmt.Errorf("%w: workspace token %q", ErrUnknownResourceKind, token)
}
