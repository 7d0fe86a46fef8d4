package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"blockdrive/internal/apperr"
	"blockdrive/internal/config"
	"blockdrive/internal/handler"
	"blockdrive/internal/identity"
	"blockdrive/internal/notify"
	"blockdrive/internal/repository"
	"blockdrive/internal/service"
	"blockdrive/internal/service/s3"
)

// Типы ресурсов, у которых коллабораторы хранятся в shared_records,
// а не в массивах на самом ресурсе.
var legacyRecordTypes = []string{"block_library"}

func connectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.Database.GetDSN()

	// Сначала подключаемся к системной базе postgres, чтобы при
	// необходимости создать рабочую базу.
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Database.Name)
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Database.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Подключение к сервису аутентификации
	identityConfig, err := identity.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	identityClient := identity.NewClient(identityConfig)

	// Уведомления об изменениях ресурсов
	var notifier notify.Sink
	if appConfig.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookSink(appConfig.Notify.WebhookURL)
	} else {
		notifier = notify.NewLogSink()
	}

	localizer := apperr.NewTableLocalizer()

	// Инициализация репозиториев
	resourceRepo := repository.NewResourceRepository(db)
	recordRepo := repository.NewSharedRecordRepository(db)
	quotaRepo := repository.NewStorageQuotaRepository(db)

	// Инициализация сервисов
	ledgers := service.NewLedgers(resourceRepo, recordRepo, legacyRecordTypes)
	accessService := service.NewAccessService(identityClient, ledgers)
	revocationService := service.NewRevocationService(resourceRepo)
	quotaService := service.NewStorageQuotaService(quotaRepo)
	hierarchyService := service.NewHierarchyService(resourceRepo, recordRepo, ledgers, revocationService, s3Client, quotaRepo, notifier)

	cascadePool := service.NewCascadePool(hierarchyService, appConfig.Cascade.Workers, appConfig.Cascade.QueueSize)
	cascadePool.Start()

	shareService := service.NewShareService(resourceRepo, recordRepo, ledgers, revocationService, cascadePool, notifier)
	resourceService := service.NewResourceService(
		resourceRepo,
		recordRepo,
		accessService,
		shareService,
		revocationService,
		hierarchyService,
		cascadePool,
		s3Client,
		quotaService,
		identityClient,
		notifier,
	)

	// Инициализация хендлеров
	resourceHandler := handler.NewResourceHandler(resourceService, identityClient, localizer)
	shareHandler := handler.NewShareHandler(resourceService, identityClient, localizer)
	quotaHandler := handler.NewStorageQuotaHandler(quotaService, identityClient)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("Incoming request: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/folders", resourceHandler.CreateFolder)
		r.Get("/folders/{id}", resourceHandler.ListFolder)

		r.Post("/files", resourceHandler.UploadFile)
		r.Get("/files/{id}", resourceHandler.DownloadFile)

		r.Get("/resources", resourceHandler.ListRoot)

		r.Route("/resources/{id}", func(r chi.Router) {
			r.Put("/rename", resourceHandler.Rename)
			r.Put("/move", resourceHandler.Move)
			r.Delete("/", resourceHandler.Delete)
			r.Post("/opt-out", resourceHandler.OptOut)
			r.Post("/share", shareHandler.Share)
			r.Post("/unshare", shareHandler.Unshare)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuotaInfo)
			r.Put("/limit", quotaHandler.UpdateQuotaLimit)
			r.Post("/recalculate", quotaHandler.RecalculateQuota)
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down servers...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	// Дожидаемся каскадных задач, поставленных до остановки
	cascadePool.Wait()
	cascadePool.Stop()

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
