// Package provision drives tenant provisioning: a fixed, strictly sequential
// sequence of idempotent steps against the catalog store, the artifact
// repository, and the analytics platform. Each step is audit-logged; the
// first failure aborts the run. There is no automatic rollback — platform
// operations are create-or-update and safe to re-run, so recovery is a new
// run (or manual cleanup, guided by the rollback-required flag).
package provision

import (
	"context"
	"errors"
	"log/slog"

	"github.com/petrsabatka/hw-backend-functions/pkg/audit"
	"github.com/petrsabatka/hw-backend-functions/pkg/config"
	"github.com/petrsabatka/hw-backend-functions/pkg/identifier"
	"github.com/petrsabatka/hw-backend-functions/pkg/metadata"
	"github.com/petrsabatka/hw-backend-functions/pkg/platform"
)

// Scenario is the audit scenario type of tenant provisioning runs.
const Scenario = "CreateTenant"

// Request is the immutable provisioning input.
type Request struct {
	Tenant             string
	DataProduct        string
	DataProductVersion string
}

// DatasourceID derives the tenant datasource identifier.
func (r Request) DatasourceID() string {
	return identifier.DatasourceID(r.DataProduct, r.Tenant)
}

// ParentWorkspaceID derives the parent workspace identifier.
func (r Request) ParentWorkspaceID() string {
	return identifier.ParentWorkspaceID(r.DataProduct, r.Tenant)
}

// ChildWorkspaceID derives the child workspace identifier.
func (r Request) ChildWorkspaceID() string {
	return identifier.ChildWorkspaceID(r.DataProduct, r.Tenant)
}

// UsergroupID derives a tenant usergroup identifier.
func (r Request) UsergroupID(name string) string {
	return identifier.UsergroupID(r.DataProduct, r.Tenant, name)
}

// MetadataResolver resolves descriptors from the catalog store.
type MetadataResolver interface {
	ResolveDatasource(ctx context.Context, tenant, dataProduct, version, datasourceID string) (metadata.DatasourceMetadata, error)
	ResolveDataProduct(ctx context.Context, dataProduct, version string) (metadata.DataProductMetadata, error)
	ResolveTenant(ctx context.Context, tenant string) (metadata.TenantMetadata, error)
}

// ArtifactFetcher stages declarative model artifacts locally.
type ArtifactFetcher interface {
	Stage(ctx context.Context, storagePath, destPath string) error
}

// Gateway is the analytics platform surface the pipeline drives. Every
// operation has create-or-update semantics.
type Gateway interface {
	UpsertDatasource(ctx context.Context, ds metadata.DatasourceMetadata) error
	UpsertWorkspace(ctx context.Context, id, name, parentID string) error
	PutPDM(ctx context.Context, datasourceID string, bundle *platform.Bundle) error
	PutLDM(ctx context.Context, workspaceID, datasourceID string, bundle *platform.Bundle) error
	PutAM(ctx context.Context, workspaceID string, bundle *platform.Bundle) error
	UpsertUserGroup(ctx context.Context, id string) error
	AssignWorkspacePermissions(ctx context.Context, workspaceID string, assignments []platform.PermissionAssignment) error
	UpsertUser(ctx context.Context, user platform.User, groupIDs []string) error
}

// Pipeline executes one provisioning run. It owns its collaborators for the
// whole run; concurrent runs for the same tenant must be serialized by the
// caller.
type Pipeline struct {
	req        Request
	resolver   MetadataResolver
	fetcher    ArtifactFetcher
	gateway    Gateway
	trail      *audit.Trail
	cfg        *config.Config
	stagingDir string
	logger     *slog.Logger

	meta             metadata.Bundle
	rollbackRequired bool
}

// New wires a Pipeline. stagingDir is the local working area artifacts are
// staged into; it is cleared by the staging step.
func New(req Request, resolver MetadataResolver, fetcher ArtifactFetcher, gateway Gateway,
	trail *audit.Trail, cfg *config.Config, stagingDir string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		req:        req,
		resolver:   resolver,
		fetcher:    fetcher,
		gateway:    gateway,
		trail:      trail,
		cfg:        cfg,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// RollbackRequired reports whether the failed run may have left partially
// created platform resources behind. It flips true once the run moves past
// artifact staging into platform mutations and stays true for the rest of
// the run.
func (p *Pipeline) RollbackRequired() bool { return p.rollbackRequired }

// Run executes the provisioning sequence. The order is fixed: later steps
// depend on resources earlier steps create (the model push needs the
// datasource, the child workspace needs the parent, permissions need the
// workspace and the groups). The first failing step aborts the run after
// being audit-logged; steps are never retried.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.trail.Step(ctx, "get_metadata", p.getMetadata); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "get_dataproduct", p.getDataproduct); err != nil {
		return err
	}

	// Everything below mutates the platform.
	p.rollbackRequired = true

	if err := p.trail.Step(ctx, "create_datasource", p.createDatasource); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "create_empty_parent", p.createEmptyParent); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "create_empty_child", p.createEmptyChild); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "deploy_dataproduct", p.deployDataproduct); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "create_user_groups", p.createUserGroups); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "assign_workspace_permissions", p.assignWorkspacePermissions); err != nil {
		return err
	}
	if err := p.trail.Step(ctx, "provision_default_users", p.provisionDefaultUsers); err != nil {
		return err
	}

	p.logger.Info("provisioning finished", "tenant", p.req.Tenant, "dataProduct", p.req.DataProduct)
	return nil
}

func (p *Pipeline) getMetadata(ctx context.Context) error {
	ds, err := p.resolver.ResolveDatasource(ctx, p.req.Tenant, p.req.DataProduct,
		p.req.DataProductVersion, p.req.DatasourceID())
	if err != nil {
		return err
	}
	dp, err := p.resolver.ResolveDataProduct(ctx, p.req.DataProduct, p.req.DataProductVersion)
	if err != nil {
		return err
	}
	tn, err := p.resolver.ResolveTenant(ctx, p.req.Tenant)
	if err != nil {
		return err
	}
	p.meta = metadata.Bundle{Datasource: ds, DataProduct: dp, Tenant: tn}
	return nil
}

func (p *Pipeline) getDataproduct(ctx context.Context) error {
	return p.fetcher.Stage(ctx, p.meta.DataProduct.StoragePath, p.stagingDir)
}

func (p *Pipeline) createDatasource(ctx context.Context) error {
	return p.gateway.UpsertDatasource(ctx, p.meta.Datasource)
}

func (p *Pipeline) createEmptyParent(ctx context.Context) error {
	id := p.req.ParentWorkspaceID()
	return p.gateway.UpsertWorkspace(ctx, id, id, "")
}

func (p *Pipeline) createEmptyChild(ctx context.Context) error {
	id := p.req.ChildWorkspaceID()
	return p.gateway.UpsertWorkspace(ctx, id, id, p.req.ParentWorkspaceID())
}

func (p *Pipeline) deployDataproduct(ctx context.Context) error {
	bundle, err := platform.LoadBundle(p.stagingDir)
	if err != nil {
		return err
	}

	datasourceID := p.req.DatasourceID()
	workspaceID := p.req.ParentWorkspaceID()

	// PDM before LDM before AM: each layer references objects of the
	// previous one.
	if err := p.gateway.PutPDM(ctx, datasourceID, bundle); err != nil {
		return err
	}
	if err := p.gateway.PutLDM(ctx, workspaceID, datasourceID, bundle); err != nil {
		return err
	}
	return p.gateway.PutAM(ctx, workspaceID, bundle)
}

func (p *Pipeline) createUserGroups(ctx context.Context) error {
	for _, group := range p.cfg.Provisioning.DefaultUsergroups {
		if err := p.gateway.UpsertUserGroup(ctx, p.req.UsergroupID(group.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) assignWorkspacePermissions(ctx context.Context) error {
	for _, decl := range p.cfg.Provisioning.WorkspacePermissions {
		workspaceID, err := config.WorkspaceForToken(decl.Workspace,
			p.req.ParentWorkspaceID(), p.req.ChildWorkspaceID())
		if err != nil {
			return err
		}

		assignments := make([]platform.PermissionAssignment, 0, len(decl.Usergroups))
		for _, group := range decl.Usergroups {
			assignments = append(assignments, platform.PermissionAssignment{
				UsergroupID: p.req.UsergroupID(group.Name),
				Permission:  group.Permission,
			})
		}
		if err := p.gateway.AssignWorkspacePermissions(ctx, workspaceID, assignments); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) provisionDefaultUsers(ctx context.Context) error {
	groupID := p.req.UsergroupID(p.cfg.Provisioning.DefaultUsergroupForDefaultUsers)
	for _, user := range p.cfg.Provisioning.DefaultUsers {
		err := p.gateway.UpsertUser(ctx, platform.User{
			ID:        user.UserID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
		}, []string{groupID})
		if err != nil {
			return err
		}
	}
	return nil
}

// ErrorKind names the error classification used in the operator-facing
// failure report.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		return "NotFound"
	case errors.Is(err, config.ErrUnknownResourceKind):
		return "UnknownResourceKind"
	case errors.Is(err, config.ErrMissingConfiguration):
		return "MissingConfiguration"
	default:
		return "Unclassified"
	}
}
