// Package main provides the SST registry server entry point. It hosts the
// document aggregates (ATS, PETAR, PETS, IPERC, risk evaluations, PPE
// deliveries) with master data, audit trail and repair jobs under a single
// process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	"github.com/sigeso/sst-registry/pkg/api"
	"github.com/sigeso/sst-registry/pkg/audit"
	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/blob"
	"github.com/sigeso/sst-registry/pkg/db"
	"github.com/sigeso/sst-registry/pkg/documents/ats"
	"github.com/sigeso/sst-registry/pkg/documents/delivery"
	"github.com/sigeso/sst-registry/pkg/documents/iperc"
	"github.com/sigeso/sst-registry/pkg/documents/petar"
	"github.com/sigeso/sst-registry/pkg/documents/pets"
	"github.com/sigeso/sst-registry/pkg/documents/riskeval"
	"github.com/sigeso/sst-registry/pkg/ha"
	"github.com/sigeso/sst-registry/pkg/jobs"
	"github.com/sigeso/sst-registry/pkg/ledger"
	"github.com/sigeso/sst-registry/pkg/masterdata"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
	"github.com/sigeso/sst-registry/pkg/tenancy"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		policyPath   string
		tenancyMode  string
	)

	pflag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	pflag.StringVar(&databaseType, "db-type", "", "Database type (postgres, mysql or sqlite)")
	pflag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	pflag.StringVar(&policyPath, "policy", "", "Path to the duration policy YAML (optional)")
	pflag.StringVar(&tenancyMode, "tenancy-mode", "", "Tenancy mode (single or company)")
	// glog registers its flags on the stdlib set.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if tenancyMode == "" {
		tenancyMode = os.Getenv("SST_TENANCY_MODE")
	}
	mode := tenancy.ModeSingle
	if tenancyMode == string(tenancy.ModeCompany) {
		mode = tenancy.ModeCompany
	}

	logger.Info("starting sst-registry server",
		"listen", listenAddr,
		"tenancyMode", mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	dbCfg := db.FromEnv()
	if databaseType != "" {
		dbCfg.Type = databaseType
	}
	if databaseDSN != "" {
		dbCfg.DSN = databaseDSN
	}
	gormDB, err := db.Connect(dbCfg, logger)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	haCfg := ha.HAConfigFromEnv()

	// Stores and services
	seq := sequence.New(gormDB)
	master := masterdata.NewStore(gormDB)
	resolver := snapshot.NewStoreResolver(master, time.Minute)
	auditStore := ledger.NewAuditStore(gormDB)
	jobStore := jobs.NewJobStore(gormDB)

	blobs, err := openBlobStore(ctx)
	if err != nil {
		glog.Fatalf("Failed to open blob store: %v", err)
	}

	policy := petar.DefaultPolicy()
	if policyPath != "" {
		policy, err = petar.LoadPolicy(policyPath, logger)
		if err != nil {
			glog.Fatalf("Failed to load duration policy: %v", err)
		}
	}

	atsSvc := ats.NewService(gormDB, seq, resolver)
	petarSvc := petar.NewService(gormDB, seq, resolver, policy)
	petsSvc := pets.NewService(gormDB, seq, resolver)
	ipercSvc := iperc.NewService(gormDB, seq)
	evalSvc := riskeval.NewService(gormDB, seq)
	deliverySvc := delivery.NewService(gormDB, seq, resolver, blobs)

	elector := ha.NewLeaderElector(haCfg, gormDB, haCfg.Identity, logger)

	// Run all schema changes under the migration lock so concurrent
	// replicas never race AutoMigrate.
	migrate := func() error {
		migrations := []func() error{
			seq.AutoMigrate,
			master.AutoMigrate,
			auditStore.AutoMigrate,
			jobStore.AutoMigrate,
			elector.AutoMigrate,
			atsSvc.Store().AutoMigrate,
			petarSvc.Store().AutoMigrate,
			petsSvc.Store().AutoMigrate,
			ipercSvc.Store().AutoMigrate,
			evalSvc.Store().AutoMigrate,
			deliverySvc.Store().AutoMigrate,
		}
		for _, m := range migrations {
			if err := m(); err != nil {
				return err
			}
		}
		return nil
	}
	if haCfg.MigrationLockEnabled {
		locker := ha.NewMigrationLocker(gormDB)
		err = locker.WithLock(ctx, migrate)
	} else {
		err = migrate()
	}
	if err != nil {
		glog.Fatalf("Failed to run migrations: %v", err)
	}

	// Background loops: repair job workers and audit retention. With leader
	// election enabled they run only on the elected replica.
	auditCfg := audit.AuditConfigFromEnv()
	jobCfg := jobs.JobConfigFromEnv()
	pool := jobs.NewWorkerPool(jobStore, func(scope string) (jobs.Repairer, bool) {
		if scope == "entregas" {
			return deliverySvc, true
		}
		return nil, false
	}, jobCfg, logger)
	retention := audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)

	runLoops := func(loopCtx context.Context) {
		go pool.Run(loopCtx)
		go retention.Run(loopCtx)
	}
	if haCfg.LeaderElectionEnabled {
		go elector.Run(ctx)
		elector.OnStartLeading(runLoops)
	} else {
		runLoops(ctx)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tenancy.CompanyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(tenancy.NewMiddleware(mode))
	router.Use(authz.IdentityMiddleware())
	if auditCfg.Enabled {
		router.Use(audit.Middleware(auditStore, auditCfg, logger))
		logger.Info("audit middleware enabled",
			"logDenied", auditCfg.LogDenied,
			"retentionDays", auditCfg.RetentionDays)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Mount("/ats", ats.NewRouter(atsSvc))
		r.Mount("/petar", petar.NewRouter(petarSvc))
		r.Mount("/pets", pets.NewRouter(petsSvc))
		r.Mount("/iperc", iperc.NewRouter(ipercSvc))
		r.Mount("/evaluaciones", riskeval.NewRouter(evalSvc))
		r.Mount("/entregas", delivery.NewRouter(deliverySvc))
		r.Mount("/maestros", masterdata.NewRouter(master, resolver))
		r.Mount("/auditoria", audit.Router(auditStore))
		r.Mount("/reparaciones", jobs.Router(jobStore))
	})

	healthz := func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	router.Get("/healthz", healthz)
	router.Get("/livez", healthz)
	router.Get("/readyz", readyz(gormDB))

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("sst-registry server ready", "listen", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("sst-registry server stopped")
}

// openBlobStore picks the signature blob backend from SST_BLOB_DRIVER:
// "s3", "filesystem" or "memory" (default).
func openBlobStore(ctx context.Context) (blob.Store, error) {
	switch driver := os.Getenv("SST_BLOB_DRIVER"); driver {
	case "s3":
		return blob.S3FromEnv(ctx)
	case "filesystem":
		dir := os.Getenv("SST_BLOB_DIR")
		if dir == "" {
			dir = "/var/lib/sst-registry/blobs"
		}
		return blob.NewFilesystemStore(dir, os.Getenv("SST_BLOB_BASE_URL"))
	case "", "memory":
		return blob.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}

func readyz(gormDB *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := gormDB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
