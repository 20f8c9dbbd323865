package platform

import (
	"context"
	"fmt"

	"github.com/petrsabatka/hw-backend-functions/pkg/metadata"
)

// datasourcePayload is the declarative data source entity. Password is only
// ever serialized toward the platform, never logged.
type datasourcePayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbName"`
	Schema   string `json:"schema"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// workspacePayload is the declarative workspace entity. ParentID empty means
// a top-level workspace.
type workspacePayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// PermissionAssignment grants one permission to one user group on a
// workspace.
type PermissionAssignment struct {
	UsergroupID string
	Permission  string
}

type permissionAssignee struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type workspacePermission struct {
	Assignee permissionAssignee `json:"assignee"`
	Name     string             `json:"name"`
}

// workspacePermissionsPayload replaces the full declarative permission set of
// a workspace. Hierarchy permissions are passed through empty.
type workspacePermissionsPayload struct {
	HierarchyPermissions []workspacePermission `json:"hierarchyPermissions"`
	Permissions          []workspacePermission `json:"permissions"`
}

type usergroupPayload struct {
	ID string `json:"id"`
}

type userPayload struct {
	ID         string   `json:"id"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Email      string   `json:"email,omitempty"`
	UserGroups []string `json:"userGroups"`
}

type userListResponse struct {
	Users []userPayload `json:"users"`
}

// User describes a platform user to provision.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// UpsertDatasource registers the tenant datasource on the platform, creating
// or updating it in place.
func (c *Client) UpsertDatasource(ctx context.Context, ds metadata.DatasourceMetadata) error {
	// The descriptor's LogValue masks the password.
	c.logger.Info("creating datasource", "config", ds)

	return c.putJSON(ctx, "/api/v1/datasources/"+ds.ID, datasourcePayload{
		ID:       ds.ID,
		Name:     ds.Name,
		Type:     "postgres",
		Host:     ds.Host,
		Port:     ds.Port,
		DBName:   ds.DBName,
		Schema:   ds.Schema,
		Username: ds.Username,
		Password: ds.Password,
	})
}

// UpsertWorkspace creates or updates a workspace. An empty parentID makes it
// a top-level workspace; otherwise it is nested under the parent.
func (c *Client) UpsertWorkspace(ctx context.Context, id, name, parentID string) error {
	if parentID != "" {
		c.logger.Info("creating workspace", "id", id, "parentId", parentID)
	} else {
		c.logger.Info("creating workspace", "id", id)
	}
	return c.putJSON(ctx, "/api/v1/workspaces/"+id, workspacePayload{
		ID:       id,
		Name:     name,
		ParentID: parentID,
	})
}

// PutPDM uploads the physical data model for a datasource. It must precede
// the LDM push, which references the datasource.
func (c *Client) PutPDM(ctx context.Context, datasourceID string, bundle *Bundle) error {
	c.logger.Info("putting pdm", "datasourceId", datasourceID)
	return c.putJSON(ctx, "/api/v1/datasources/"+datasourceID+"/physicalModel", bundle.PDM)
}

// PutLDM uploads the logical data model into a workspace. Datasource
// references in the staged model point at whatever datasource the model was
// exported from; they are remapped to the live datasource first.
func (c *Client) PutLDM(ctx context.Context, workspaceID, datasourceID string, bundle *Bundle) error {
	c.logger.Info("putting ldm", "workspaceId", workspaceID, "datasourceId", datasourceID)
	remapDatasourceReferences(bundle.LDM, datasourceID)
	return c.putJSON(ctx, "/api/v1/workspaces/"+workspaceID+"/logicalModel", bundle.LDM)
}

// PutAM uploads the analytics model into a workspace. It must follow the LDM
// push, whose objects it references.
func (c *Client) PutAM(ctx context.Context, workspaceID string, bundle *Bundle) error {
	c.logger.Info("putting am", "workspaceId", workspaceID)
	return c.putJSON(ctx, "/api/v1/workspaces/"+workspaceID+"/analyticsModel", bundle.AM)
}

// UpsertUserGroup creates or updates a user group.
func (c *Client) UpsertUserGroup(ctx context.Context, id string) error {
	c.logger.Info("creating user group", "usergroupId", id)
	return c.putJSON(ctx, "/api/v1/usergroups/"+id, usergroupPayload{ID: id})
}

// AssignWorkspacePermissions replaces the full declarative permission set of
// a workspace with the given assignments.
func (c *Client) AssignWorkspacePermissions(ctx context.Context, workspaceID string, assignments []PermissionAssignment) error {
	payload := workspacePermissionsPayload{
		HierarchyPermissions: []workspacePermission{},
		Permissions:          make([]workspacePermission, 0, len(assignments)),
	}
	for _, a := range assignments {
		payload.Permissions = append(payload.Permissions, workspacePermission{
			Assignee: permissionAssignee{ID: a.UsergroupID, Type: "userGroup"},
			Name:     a.Permission,
		})
	}

	c.logger.Info("assigning workspace permissions",
		"workspaceId", workspaceID, "assignments", len(assignments))
	return c.putJSON(ctx, "/api/v1/workspaces/"+workspaceID+"/permissions", payload)
}

// UpsertUser creates or updates a user. If the user already exists its group
// membership becomes the union of existing and requested groups; membership
// is never replaced.
func (c *Client) UpsertUser(ctx context.Context, user User, groupIDs []string) error {
	var list userListResponse
	if err := c.getJSON(ctx, "/api/v1/users", &list); err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	merged := groupIDs
	for _, existing := range list.Users {
		if existing.ID == user.ID {
			merged = unionGroups(existing.UserGroups, groupIDs)
			break
		}
	}

	c.logger.Info("creating user", "userId", user.ID, "userGroups", merged)
	return c.putJSON(ctx, "/api/v1/users/"+user.ID, userPayload{
		ID:         user.ID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Email:      user.Email,
		UserGroups: merged,
	})
}

// unionGroups merges two group ID lists, preserving first-seen order.
func unionGroups(existing, requested []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range append(append([]string{}, existing...), requested...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
