package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/calyptra/permcore"
	"github.com/calyptra/permcore/internal/config"
	"github.com/calyptra/permcore/internal/db"
	"github.com/calyptra/permcore/internal/routes"
	"github.com/calyptra/permcore/zapLogger"
)

func main() {
	logFile := zapLogger.Init()

	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Log.Fatalf("Failed to load config: %v", err)
	}

	pgDB, err := db.NewPostgresDB(cfg)
	if err != nil {
		zapLogger.Log.Fatalf("Failed to initialize PostgreSQL: %v", err)
	}
	zapLogger.Log.Info("Successfully connected to PostgreSQL database")
	defer pgDB.Close()

	redisClient, err := db.NewRedisClient(cfg)
	if err != nil {
		zapLogger.Log.Fatalf("Failed to initialize Redis: %v", err)
	}
	zapLogger.Log.Info("Successfully connected to Redis")
	defer redisClient.Close()

	store, err := permcore.NewGormStore(pgDB.GormDB, cfg.AutoMigrate)
	if err != nil {
		zapLogger.Log.Fatalf("Failed to initialize permission store: %v", err)
	}

	var audit *permcore.AuditTrail
	if cfg.EnableAuditLogging {
		audit = permcore.NewAuditTrail(pgDB.GormDB, redisClient)
		if err := audit.Migrate(); err != nil {
			zapLogger.Log.Fatalf("Failed to migrate audit trail: %v", err)
		}
	}

	svc, err := permcore.New(permcore.Config{
		Store:         store,
		Directory:     store,
		Logger:        zapLogger.Log,
		UserTTL:       cfg.UserCacheTTL,
		HierarchyTTL:  cfg.HierarchyCacheTTL,
		SweepInterval: cfg.SweepInterval,
		Audit:         audit,
	})
	if err != nil {
		zapLogger.Log.Fatalf("Failed to initialize permission service: %v", err)
	}
	defer svc.Close()

	app := fiber.New()
	app.Use(zapLogger.FiberLoggingMiddleware(logFile))
	routes.Setup(app, svc, pgDB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Log.Infof("Server started on port %d", cfg.AppPort)
		return app.Listen(fmt.Sprintf(":%d", cfg.AppPort))
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.Shutdown()
	})
	if err := g.Wait(); err != nil {
		zapLogger.Log.Fatalf("Server exited: %v", err)
	}
}
