package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/careerpath/config"
	"github.com/yoockh/careerpath/internal/api/handlers"
	"github.com/yoockh/careerpath/internal/api/middleware"
	"github.com/yoockh/careerpath/internal/api/routes"
	"github.com/yoockh/careerpath/internal/cache"
	"github.com/yoockh/careerpath/internal/logger"
	"github.com/yoockh/careerpath/internal/providers/llm"
	"github.com/yoockh/careerpath/internal/providers/textextract"
	mongorepo "github.com/yoockh/careerpath/internal/repositories/mongo"
	pgrepo "github.com/yoockh/careerpath/internal/repositories/postgres"
	"github.com/yoockh/careerpath/internal/services"
	"github.com/yoockh/careerpath/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init MongoDB
	mongoClient, err := config.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.MongoDB)
	if err := config.EnsureMongoIndexes(ctx, db); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}
	log.Info("MongoDB connected")

	var roadmaps mongorepo.RoadmapRepository = mongorepo.NewRoadmapRepo(db)
	users := mongorepo.NewUserRepo(db)

	// Init Redis (optional read cache)
	if cfg.RedisAddr != "" {
		rdb, err := config.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, roadmap cache disabled")
		} else {
			defer rdb.Close()
			roadmaps = cache.NewRoadmapStore(roadmaps, cache.NewRedisCache(rdb, "careerpath:"), cfg.RoadmapCacheTTL, log)
			log.Info("Redis connected")
		}
	}

	// Init PostgreSQL (optional run audit)
	runs := services.NopRunRecorder()
	if cfg.PostgresURI != "" {
		pg, err := config.NewPostgres(cfg.PostgresURI)
		if err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		if err := pgrepo.Migrate(pg); err != nil {
			log.WithError(err).Fatal("PostgreSQL migrate error")
		}
		runs = pgrepo.NewGenerationRunRepo(pg)
		log.Info("PostgreSQL connected")
	}

	scratch, closeScratch, err := newScratch(ctx, cfg.Uploads)
	if err != nil {
		log.WithError(err).Fatal("upload storage init error")
	}
	defer closeScratch()

	gen, closeGen, err := newGenerator(ctx, cfg.LLM, log)
	if err != nil {
		log.WithError(err).Fatal("llm init error")
	}
	defer closeGen()

	roadmapSvc := services.NewRoadmapService(services.RoadmapServiceDeps{
		Extractor:         textextract.NewPDF(),
		Generator:         gen,
		Store:             roadmaps,
		Scratch:           scratch,
		Runs:              runs,
		Logger:            log,
		GenerationTimeout: cfg.LLM.GenerationTimeout,
		MaxUploadBytes:    cfg.Uploads.MaxBytes,
	})
	authSvc := services.NewAuthService(users, cfg.JWTSecret, cfg.JWTTTL)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxBytes
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS(cfg.CORSOrigins))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:      handlers.NewAuthHandler(authSvc),
		Roadmap:   handlers.NewRoadmapHandler(roadmapSvc),
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// in-flight generations may run up to the generation bound
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLM.GenerationTimeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
}

func newScratch(ctx context.Context, cfg config.UploadConfig) (storage.Scratch, func(), error) {
	if cfg.Bucket != "" {
		s, err := storage.NewGCSScratch(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s, err := storage.NewLocalScratch(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {}, nil
}

func newGenerator(ctx context.Context, cfg config.LLMConfig, log *logrus.Logger) (llm.Generator, func(), error) {
	switch cfg.Provider {
	case "vertex":
		v, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel, log)
		if err != nil {
			return nil, nil, err
		}
		return v, func() { _ = v.Close() }, nil
	default:
		return llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.GenerationTimeout + 5*time.Second,
			Logger:  log,
		}), func() {}, nil
	}
}
