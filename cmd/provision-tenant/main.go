// Command provision-tenant provisions a new analytics tenant: it registers
// the tenant datasource, creates the parent/child workspace pair, deploys the
// declarative data product model, and sets up default groups, permissions,
// and users.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petrsabatka/hw-backend-functions/pkg/audit"
	"github.com/petrsabatka/hw-backend-functions/pkg/config"
	"github.com/petrsabatka/hw-backend-functions/pkg/dataproduct"
	"github.com/petrsabatka/hw-backend-functions/pkg/metadata"
	"github.com/petrsabatka/hw-backend-functions/pkg/platform"
	"github.com/petrsabatka/hw-backend-functions/pkg/provision"
)

var (
	tenant             string
	dataProduct        string
	dataProductVersion string
	configPath         string
	debug              bool
)

var rootCmd = &cobra.Command{
	Use:           "provision-tenant",
	Short:         "Provision analytics for a new tenant",
	Long:          "provision-tenant creates or updates a tenant's analytics resources from a versioned data product template: datasource, workspaces, declarative models, user groups, permissions, and default users.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant ID to be created or updated")
	rootCmd.Flags().StringVarP(&dataProduct, "dataproduct", "p", "", "Data product ID, the template with the tenant definition")
	rootCmd.Flags().StringVarP(&dataProductVersion, "dataproduct-version", "v", "", "Data product version")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Increase logging level to debug")

	_ = rootCmd.MarkFlagRequired("tenant")
	_ = rootCmd.MarkFlagRequired("dataproduct")
	_ = rootCmd.MarkFlagRequired("dataproduct-version")
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config and secrets are validated before any step runs, so partial
	// provisioning never starts with an incomplete environment.
	cfg, err := config.Load(configPath)
	if err != nil {
		return reportFailure(err, false)
	}

	db, err := metadata.Open(cfg.MetadataStore, logger)
	if err != nil {
		return reportFailure(err, false)
	}
	defer func() { _ = metadata.Close(db) }()

	storage, err := dataproduct.NewS3Storage(ctx, cfg.ObjectStorage, logger)
	if err != nil {
		return reportFailure(err, false)
	}

	stagingDir, err := os.MkdirTemp("", "dataproduct-")
	if err != nil {
		return reportFailure(err, false)
	}
	defer os.RemoveAll(stagingDir)

	req := provision.Request{
		Tenant:             tenant,
		DataProduct:        dataProduct,
		DataProductVersion: dataProductVersion,
	}
	pipeline := provision.New(
		req,
		metadata.NewResolver(db, cfg.DatasourcePassword, logger),
		dataproduct.NewFetcher(storage, logger),
		platform.NewClient(cfg.Platform.Host, cfg.Platform.Token, logger),
		audit.NewTrail(audit.NewStore(db), provision.Scenario, tenant, logger),
		cfg,
		stagingDir,
		logger,
	)

	if err := pipeline.Run(ctx); err != nil {
		return reportFailure(err, pipeline.RollbackRequired())
	}

	fmt.Println("The execution finished successfully")
	return nil
}

// reportFailure prints the operator-facing failure summary: the error kind
// and whether partially created platform resources may need manual cleanup.
func reportFailure(err error, rollbackRequired bool) error {
	fmt.Printf("The execution failed (error=%s, rollback_required=%t)\n",
		provision.ErrorKind(err), rollbackRequired)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
