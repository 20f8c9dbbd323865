// Package identifier derives the stable platform resource identifiers used
// throughout tenant provisioning. Every identifier is a pure function of the
// (data product, tenant) pair, so any pipeline step can recompute it without
// threading return values from earlier steps.
package identifier

import "fmt"

// DatasourceID returns the platform data source identifier for a tenant's
// instance of a data product.
func DatasourceID(dataProductID, tenantID string) string {
	return fmt.Sprintf("%s_%s", dataProductID, tenantID)
}

// ParentWorkspaceID returns the identifier of the top-level workspace holding
// the tenant's data product models.
func ParentWorkspaceID(dataProductID, tenantID string) string {
	return fmt.Sprintf("%s_%s_parent", dataProductID, tenantID)
}

// ChildWorkspaceID returns the identifier of the workspace nested under the
// parent, where tenant users work.
func ChildWorkspaceID(dataProductID, tenantID string) string {
	return fmt.Sprintf("%s_%s_child", dataProductID, tenantID)
}

// UsergroupID returns the identifier of a tenant-scoped user group.
func UsergroupID(dataProductID, tenantID, usergroup string) string {
	return fmt.Sprintf("%s_%s_%s", dataProductID, tenantID, usergroup)
}
