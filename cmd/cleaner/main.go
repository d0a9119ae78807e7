package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/robfig/cron/v3"

	"github.com/briefcase-app/briefcase-server/internal/config"
	"github.com/briefcase-app/briefcase-server/internal/logger"
	"github.com/briefcase-app/briefcase-server/internal/repository/postgres"
	"github.com/briefcase-app/briefcase-server/internal/service"
	storage "github.com/briefcase-app/briefcase-server/internal/storage/minio"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	runOnce := flag.Bool("once", false, "run every maintenance job once and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	blobStorage, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	docRepo := postgres.NewDocumentRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	groupRepo := postgres.NewGroupRepository(db)
	auditRepo := postgres.NewAccessLogRepository(db)
	eventRepo := postgres.NewLifecycleEventRepository(db)
	jobRepo := postgres.NewCleanupJobRepository(db)
	configRepo := postgres.NewLifecycleConfigRepository(db)

	permissionService := service.NewPermission(permRepo, roleRepo, groupRepo, docRepo, logger)
	lifecycleService := service.NewLifecycle(docRepo, eventRepo, jobRepo, configRepo, auditRepo, blobStorage, logger)

	if err := permissionService.EnsureDefaultRoles(ctx); err != nil {
		logger.Fatal("failed to ensure default roles", "error", err)
	}
	if err := lifecycleService.InitializeConfig(ctx); err != nil {
		logger.Fatal("failed to initialize lifecycle config", "error", err)
	}

	logAppVersion()

	if *runOnce {
		runAllJobs(ctx, logger, lifecycleService)
		return
	}

	scheduler := cron.New()
	jobs := []struct {
		schedule string
		name     string
		run      func(context.Context) (int, error)
	}{
		{cfg.Cleanup.ExpireSchedule, "document expiration", lifecycleService.ExpireDocuments},
		{cfg.Cleanup.PurgeSchedule, "document cleanup", lifecycleService.CleanupDeletedDocuments},
		{cfg.Cleanup.AuditSchedule, "audit cleanup", lifecycleService.CleanupOldAuditLogs},
	}
	for _, job := range jobs {
		if _, err := scheduler.AddFunc(job.schedule, makeJobFunc(ctx, logger, job.name, job.run)); err != nil {
			logger.Fatal("failed to schedule job", "job", job.name, "schedule", job.schedule, "error", err)
		}
		logger.Info("scheduled job", "job", job.name, "schedule", job.schedule)
	}

	scheduler.Start()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	// Stop returns a context that is done when in-flight jobs finish.
	<-scheduler.Stop().Done()
	logger.Info("shutdown complete")
}

func makeJobFunc(ctx context.Context, logger *logger.Logger, name string, run func(context.Context) (int, error)) func() {
	return func() {
		processed, err := run(ctx)
		if err != nil {
			logger.Error("job run failed", "job", name, "error", err)
			return
		}
		logger.Info("job run finished", "job", name, "processed", processed)
	}
}

func runAllJobs(ctx context.Context, logger *logger.Logger, lifecycleService *service.Lifecycle) {
	makeJobFunc(ctx, logger, "document expiration", lifecycleService.ExpireDocuments)()
	makeJobFunc(ctx, logger, "document cleanup", lifecycleService.CleanupDeletedDocuments)()
	makeJobFunc(ctx, logger, "audit cleanup", lifecycleService.CleanupOldAuditLogs)()
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
