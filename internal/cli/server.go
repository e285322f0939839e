package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vendor-risk-service/internal/app"
	"vendor-risk-service/internal/config"
	"vendor-risk-service/internal/domain"
	"vendor-risk-service/internal/infra/memory"
	pgstore "vendor-risk-service/internal/infra/postgres"
	redisinfra "vendor-risk-service/internal/infra/redis"
	"vendor-risk-service/internal/infra/storage"
	"vendor-risk-service/internal/logger"
	"vendor-risk-service/internal/metrics"
	"vendor-risk-service/internal/tracing"
	transport "vendor-risk-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the questionnaire server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				log.Warn("shutdown tracing", zap.Error(err))
			}
		}()
	}
	metrics.Register()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	sessionTTL := config.Duration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		loader     memory.TemplateLoader
		seedBundle demoBundle
	)
	if pool != nil {
		loader = pgstore.NewTemplateLoader(pool)
	} else {
		seedBundle, err = loadDemoBundle(cfg.Templates.SeedFile)
		if err != nil {
			return err
		}
		loader = memory.NewStaticTemplateLoader(map[string]domain.Template{seedBundle.template.ID: seedBundle.template})
	}

	templateTTL := config.Duration(cfg.Templates.TTL, 10*time.Minute)
	var templates app.TemplateRepository
	if redisClient != nil {
		templates = redisinfra.NewTemplateRepository(redisClient, loader, templateTTL, log)
	} else {
		templates = memory.NewTemplateRepository(loader, templateTTL)
	}

	var backend app.Backend
	if pool != nil {
		backend = pgstore.NewBackend(pool, templates)
	} else {
		memBackend := memory.NewBackend(templates)
		memBackend.AddQuestionnaire(seedBundle.questionnaire)
		backend = memBackend
		log.Info("running without postgres; demo questionnaire loaded",
			zap.String("questionnaireId", seedBundle.questionnaire.ID),
			zap.String("vendorId", seedBundle.questionnaire.VendorID))
	}

	files, err := newFileStorage(ctx, cfg, finalPort)
	if err != nil {
		return err
	}

	var store app.SessionRepository
	if redisClient != nil {
		instance := uuid.NewString()
		store = redisinfra.NewSessionStore(redisClient, sessionTTL, instance)
		log.Info("sharing session markers through redis", zap.String("instance", instance))
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewResponseService(store, backend, files, app.SessionOptions{
		Autosave: app.AutosaveOptions{
			Delay:       config.Duration(cfg.Autosave.Delay, app.DefaultAutosaveDelay),
			SaveTimeout: config.Duration(cfg.Autosave.SaveTimeout, 10*time.Second),
		},
		FlushOnClose: cfg.FlushOnClose(),
		Logger:       log,
	})
	wsHandler := transport.NewWSHandler(service, log, transport.EditLimit{
		PerSecond: cfg.Limits.EditsPerSecond,
		Burst:     cfg.Limits.EditBurst,
	})
	apiHandler := transport.NewAPIHandler(service, log, cfg.Limits.MaxUploadMB<<20)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)
	if local, ok := files.(*storage.MemoryStorage); ok {
		mux.Handle("GET /evidence/", http.StripPrefix("/evidence", local))
	}

	var handler http.Handler = mux
	if cfg.Tracing.Enabled {
		handler = tracing.Middleware(mux)
	}

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting questionnaire service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
	// Hijacked websocket connections outlive Shutdown; closing sessions flushes their edits.
	return service.CloseAll(shutdownCtx)
}

func newFileStorage(ctx context.Context, cfg config.Config, port string) (app.FileStorage, error) {
	if cfg.Storage.Endpoint == "" {
		return storage.NewMemoryStorage("http://localhost:" + port + "/evidence"), nil
	}
	minioStorage, err := storage.NewMinioStorage(storage.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return minioStorage, nil
}
