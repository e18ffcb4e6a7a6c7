package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/historify/internal/application"
	apppipeline "github.com/bryanwahyu/historify/internal/application/pipeline"
	"github.com/bryanwahyu/historify/internal/config"
	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
	"github.com/bryanwahyu/historify/internal/infra/ai/openai"
	"github.com/bryanwahyu/historify/internal/infra/db/mysql"
	"github.com/bryanwahyu/historify/internal/infra/db/postgres"
	"github.com/bryanwahyu/historify/internal/infra/db/sqlite"
	"github.com/bryanwahyu/historify/internal/infra/geocode"
	"github.com/bryanwahyu/historify/internal/infra/httpserver"
	"github.com/bryanwahyu/historify/internal/infra/imaging"
	"github.com/bryanwahyu/historify/internal/infra/ocr"
	"github.com/bryanwahyu/historify/internal/infra/storage"
	"github.com/bryanwahyu/historify/internal/infra/vision"
	"github.com/bryanwahyu/historify/internal/middleware"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", configPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage tiers connect independently. A tier that is down at boot is
	// skipped so the service still runs on whatever remains; only zero
	// reachable tiers is fatal.
	var (
		backends []domain.Repository
		checkers = map[string]middleware.HealthChecker{}
	)

	if cfg.Postgres.Host != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Printf("postgres unavailable, skipping tier: %v", err)
		} else {
			repo := postgres.NewRecordRepository(db)
			if err := repo.Migrate(ctx); err != nil {
				log.Fatalf("migrate postgres: %v", err)
			}
			backends = append(backends, repo)
			checkers["postgres"] = &middleware.DatabaseHealthChecker{DB: db}
			defer db.Close()
		}
	}

	if cfg.MySQL.Host != "" {
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Printf("mysql unavailable, skipping tier: %v", err)
		} else {
			repo := mysql.NewRecordRepository(db)
			if err := repo.Migrate(ctx); err != nil {
				log.Fatalf("migrate mysql: %v", err)
			}
			backends = append(backends, repo)
			checkers["mysql"] = &middleware.DatabaseHealthChecker{DB: db}
			defer db.Close()
		}
	}

	sqliteRepo, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		log.Printf("sqlite unavailable, skipping tier: %v", err)
	} else {
		backends = append(backends, sqliteRepo)
		checkers["sqlite"] = middleware.HealthCheckFunc(func(ctx context.Context) error {
			_, err := sqliteRepo.Stats(ctx)
			return err
		})
		defer sqliteRepo.Close()
	}

	if len(backends) == 0 {
		log.Fatal("no storage backend reachable")
	}

	var images domain.ImageStore
	if cfg.Minio.Endpoint != "" {
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Printf("object storage unavailable, records will have no image_url: %v", err)
		} else {
			images = store
		}
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	svc := &apppipeline.Service{
		Pre:        imaging.NewProcessor(),
		OCR:        ocr.NewExtractor(cfg.OCR.Languages...),
		Captioner:  openai.NewCaptioner(cfg.OpenAI.APIKey, cfg.OpenAI.CaptionModel),
		Detector:   vision.NewDetector(httpClient, cfg.Detector.Endpoint, cfg.Detector.MinConfidence),
		Inferencer: openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
		Geocoder:   geocode.NewNominatim(httpClient, cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent),
		Images:     images,
		Chain:      apppipeline.NewChain(time.Duration(cfg.Pipeline.PersistTimeoutSec)*time.Second, backends...),
		Clock:      application.SystemClock{},

		StageTimeout:    time.Duration(cfg.Pipeline.StageTimeoutSec) * time.Second,
		PipelineTimeout: time.Duration(cfg.Pipeline.OverallTimeoutSec) * time.Second,
	}

	router := httpserver.NewRouter(svc, int64(cfg.Pipeline.MaxUploadSizeBytes), checkers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// The pipeline runs synchronously inside the request, so the
		// write timeout must cover the whole run.
		WriteTimeout: time.Duration(cfg.Pipeline.OverallTimeoutSec+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s backends=%d", srv.Addr, len(backends))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
