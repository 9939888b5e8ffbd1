package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attachstore/internal/config"
	"attachstore/internal/database"
	"attachstore/internal/database/migration"
	handlers "attachstore/internal/http/handler"
	"attachstore/internal/http/middleware"
	"attachstore/internal/model"
	"attachstore/internal/otel"
	"attachstore/internal/repository/postgres"
	"attachstore/internal/service"
	"attachstore/internal/storage"
	"attachstore/internal/transform"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	// OpenTelemetry tracer provider (no-op when OTEL_SDK_DISABLED=true)
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Initialize repositories and services
	recRepo := postgres.NewRecordPostgres(db)
	tokRepo := postgres.NewTokenPostgres(db)
	recSvc := service.NewRecordService(objStore, recRepo)
	tokSvc := service.NewTokenService(tokRepo, recRepo, cfg.Token)
	resolver := service.NewURLResolver(objStore, tokSvc, cfg.AppHost, cfg.MinIO, cfg.Storage)
	fetcher := service.NewFetcher(nil)

	// Each attach request configures its own single-attribute orchestrator;
	// oversized images get normalized before upload.
	reencoder := transform.NewImageReencoder(1600, 1600, 85)
	attach := func(attribute string, access model.Access, supersede bool) (*service.Orchestrator, error) {
		return service.NewOrchestrator(objStore, recRepo, fetcher, service.OrchestratorConfig{
			Attributes: []service.AttributeSpec{{
				Name:               attribute,
				Access:             access,
				SupersedePrevious:  supersede,
				Transform:          reencoder,
				TransformMimeTypes: []string{"image/png", "image/jpeg"},
			}},
			BasePath: cfg.Storage.BasePath,
		})
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMw, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register prometheus metrics: %v", err)
	}
	app.Use(promMw.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       db,
		Records:  recSvc,
		Tokens:   tokSvc,
		Resolver: resolver,
		Store:    objStore,
		Attach:   attach,
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
