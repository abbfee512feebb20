package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"legal-backend/internal/analyses"
	"legal-backend/internal/documents"
	"legal-backend/internal/llm"
	openai "legal-backend/internal/llm/openai"
	"legal-backend/internal/pipeline"
	"legal-backend/internal/queue"
	"legal-backend/internal/shared/config"
	"legal-backend/internal/shared/server"
	"legal-backend/internal/shared/storage/db"
	"legal-backend/internal/shared/storage/object"
	localstore "legal-backend/internal/shared/storage/object/local"
	s3store "legal-backend/internal/shared/storage/object/s3"
	"legal-backend/internal/stages"
)

// App holds shared dependencies for every entry point.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Redis            *redis.Client
	Store            object.ObjectStore
	Queue            queue.Client
	DocumentsRepo    documents.DocumentsRepo
	AnalysesRepo     analyses.Repo
	DocumentsService *documents.Service
	LLM              llm.Client
	Stages           stages.Stages
	Orchestrator     *pipeline.Orchestrator
	Dispatcher       pipeline.Dispatcher
	DocumentsHandler *documents.Handler
	PipelineHandler  *pipeline.Handler
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  redisClient,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocumentsHandler,
		PipelineHandler: app.PipelineHandler,
		Admission:       app.Orchestrator.Admission(),
	})

	return app, nil
}

// Close releases connections. Safe on a partially built App.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("bootstrap: close redis: %v", err)
		}
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			log.Printf("bootstrap: close database: %v", err)
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions(cfg.MaxConcurrentAnalyses))
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			log.Printf("bootstrap: run migrations: %v", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.SQSQueueURL == "" {
		return nil, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := pipeline.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: redis unavailable; using in-process run locks: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAITimeout)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "", "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func buildServices(app *App) error {
	var docRepo documents.DocumentsRepo
	var analysisRepo analyses.Repo

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
	}

	llmClient, err := buildLLM(app.Config)
	if err != nil {
		return err
	}
	stageSet := stages.NewLLMStages(llmClient, stages.DefaultRegistry())

	var locker pipeline.Locker = pipeline.NewKeyLocker()
	if app.Redis != nil {
		locker = pipeline.NewRedisLocker(app.Redis, 0)
	}

	orch := pipeline.New(pipeline.Deps{
		Documents:                  docSvc,
		Analyses:                   analysisRepo,
		Stages:                     stageSet,
		Admission:                  pipeline.NewAdmission(app.Config.MaxConcurrentAnalyses),
		Locker:                     locker,
		RunTimeout:                 app.Config.RunTimeout,
		ConjointTimeoutPerDocument: app.Config.ConjointTimeoutPerDocument,
	})

	var dispatcher pipeline.Dispatcher = pipeline.InProcessDispatcher{Orchestrator: orch}
	if app.Queue != nil {
		dispatcher = pipeline.QueueDispatcher{Queue: app.Queue}
	}

	app.DocumentsRepo = docRepo
	app.AnalysesRepo = analysisRepo
	app.DocumentsService = docSvc
	app.LLM = llmClient
	app.Stages = stageSet
	app.Orchestrator = orch
	app.Dispatcher = dispatcher
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.PipelineHandler = pipeline.NewHandler(docSvc, analysisRepo, dispatcher)

	if app.DocumentsHandler == nil || app.PipelineHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
