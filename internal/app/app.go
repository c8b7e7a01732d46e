package app

import (
	"log"
	"net/http"
	"time"

	"workshop_backend/internal/config"
	"workshop_backend/internal/repository"
	"workshop_backend/internal/service"
	"workshop_backend/pkg/database"
	"workshop_backend/pkg/logger"
	"workshop_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the composition root: it wires configuration, storage and the
// question engine together for the embedding API layer. It owns no transport
// of its own.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Cache     *repository.CachedQuestionStore
	Questions *service.QuestionService
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	repo := repository.NewQuestionRepository(db)

	var store service.QuestionStore = repo
	var rdb *redis.Client
	var cache *repository.CachedQuestionStore
	if cfg.Cache.Enabled {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		cache = repository.NewCachedQuestionStore(repo, rdb, ttl)
		store = cache
	}

	monitoring.Init()

	return &App{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Cache:     cache,
		Questions: service.NewQuestionService(store, repo, logger.Log),
	}
}

// ApplyConfig picks up the runtime-tunable settings from a reloaded config.
// Only the cache toggle is applied; storage and server settings need a
// restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a.Cache != nil {
		a.Cache.SetEnabled(cfg.Cache.Enabled)
		logger.Log.Info("Cache toggle applied", zap.Bool("enabled", cfg.Cache.Enabled))
	}
}

// MetricsHandler exposes prometheus metrics for the embedding layer to mount.
func (a *App) MetricsHandler() http.Handler {
	return monitoring.Handler()
}
