// Command provision-server exposes tenant provisioning as an HTTP trigger:
// one endpoint fed by query-string parameters, mirroring the CLI. Runs are
// serialized per process because provisioning the same tenant concurrently is
// unsafe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/petrsabatka/hw-backend-functions/pkg/audit"
	"github.com/petrsabatka/hw-backend-functions/pkg/config"
	"github.com/petrsabatka/hw-backend-functions/pkg/dataproduct"
	"github.com/petrsabatka/hw-backend-functions/pkg/metadata"
	"github.com/petrsabatka/hw-backend-functions/pkg/platform"
	"github.com/petrsabatka/hw-backend-functions/pkg/provision"
)

const usageHint = "Pass tenant=&dataproduct=&dataproduct_version= in the query string to trigger provisioning.\n"

type server struct {
	cfg    *config.Config
	db     *gorm.DB
	client *platform.Client
	store  *audit.Store
	logger *slog.Logger

	// One provisioning run at a time; the pipeline has no cross-process
	// locking and concurrent runs for one tenant are unsafe.
	mu      sync.Mutex
	fetcher *dataproduct.Fetcher
}

func (s *server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant := q.Get("tenant")
	dataProduct := q.Get("dataproduct")
	version := q.Get("dataproduct_version")

	if tenant == "" || dataProduct == "" || version == "" {
		_, _ = w.Write([]byte(usageHint))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stagingDir, err := os.MkdirTemp("", "dataproduct-")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(stagingDir)

	req := provision.Request{
		Tenant:             tenant,
		DataProduct:        dataProduct,
		DataProductVersion: version,
	}
	pipeline := provision.New(
		req,
		metadata.NewResolver(s.db, s.cfg.DatasourcePassword, s.logger),
		s.fetcher,
		s.client,
		audit.NewTrail(s.store, provision.Scenario, tenant, s.logger),
		s.cfg,
		stagingDir,
		s.logger,
	)

	if err := pipeline.Run(r.Context()); err != nil {
		msg := fmt.Sprintf("The execution failed (error=%s, rollback_required=%t)\n",
			provision.ErrorKind(err), pipeline.RollbackRequired())
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "tenant=%s dataproduct=%s dataproduct_version=%s\n\nThe execution finished successfully\n",
		tenant, dataProduct, version)
}

func main() {
	var (
		listenAddr string
		configPath string
	)
	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the provisioning config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fail fast on incomplete configuration; no request may start a
	// partially configured run.
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	db, err := metadata.Open(cfg.MetadataStore, logger)
	if err != nil {
		logger.Error("metadata store unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = metadata.Close(db) }()

	storage, err := dataproduct.NewS3Storage(ctx, cfg.ObjectStorage, logger)
	if err != nil {
		logger.Error("artifact repository unavailable", "error", err)
		os.Exit(1)
	}

	srv := &server{
		cfg:     cfg,
		db:      db,
		client:  platform.NewClient(cfg.Platform.Host, cfg.Platform.Token, logger),
		store:   audit.NewStore(db),
		logger:  logger,
		fetcher: dataproduct.NewFetcher(storage, logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/api/create_tenant", srv.handleCreateTenant)
	r.Post("/api/create_tenant", srv.handleCreateTenant)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("provision server listening", "addr", listenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
