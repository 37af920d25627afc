package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/config"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/processing"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/crontab"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database"
	_ "github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/dbschema"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/repository/cacherepo"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/repository/contextrepo"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/repository/personarepo"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/repository/synthesisrepo"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/database/repository/thoughtrepo"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/embedding"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/events"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/inference"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/messaging"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
)

// Application holds the wired processing engine for one worker process.
type Application struct {
	cfg      *config.Config
	batch    *processing.BatchRunner
	consumer *messaging.Consumer
	sweep    *messaging.PendingSweep
	crontab  *crontab.Crontab
	redis    *messaging.RedisClient
}

// CreateApplication wires every component by hand, bottom-up.
func CreateApplication(cfg *config.Config) (*Application, error) {
	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.DatabaseURL,
		MaxIdle:     10,
		MaxOpen:     25,
		MaxLifetime: 1 * time.Hour,
		LogLevel:    gormlogger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migration(db, cfg.EmbeddingDimensions); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	redisClient, err := messaging.NewRedisClient(messaging.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	inferenceClient, err := inference.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	embeddingClient, err := embedding.NewClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	thoughtRepo := thoughtrepo.NewThoughtGormRepository(db, cfg.EncryptionSecret)
	contextRepo := contextrepo.NewContextGormRepository(db)
	personaRepo := personarepo.NewPersonaGormRepository(db)
	cacheRepo := cacherepo.NewCacheGormRepository(db)
	synthesisRepo := synthesisrepo.NewSynthesisGormRepository(db)

	pipeline := agent.NewPipeline(inferenceClient, cfg.PromptCacheEnabled)
	groupRunner := agent.NewGroupRunner(pipeline, cfg.MaxGroupConcurrent)
	cache := semanticcache.New(cacheRepo, embeddingClient, cfg.CacheSimilarityThreshold, cfg.CacheTTL)
	publisher := events.NewRedisPublisher(redisClient.RawClient())

	orchestrator := processing.NewOrchestrator(
		thoughtRepo, contextRepo, personaRepo,
		pipeline, groupRunner, cache, publisher,
		cfg.ProcessingTimeout,
	)
	synthesis := processing.NewSynthesisService(thoughtRepo, contextRepo, synthesisRepo, pipeline)

	app := &Application{cfg: cfg, redis: redisClient}

	switch cfg.WorkerMode {
	case "stream":
		dlq := messaging.NewDeadLetterQueue(redisClient, cfg.StreamName)
		worker := processing.NewStreamWorker(thoughtRepo, orchestrator)
		app.consumer = messaging.NewConsumer(redisClient, dlq, messaging.ConsumerConfig{
			Stream:       cfg.StreamName,
			Group:        cfg.ConsumerGroup,
			Consumer:     cfg.ConsumerName,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, func(ctx context.Context, msg messaging.ThoughtMessage) error {
			return worker.Handle(ctx, msg.ThoughtID)
		})
		app.sweep = messaging.NewPendingSweep(thoughtRepo, messaging.NewProducer(redisClient, cfg.StreamName))
		app.crontab = crontab.NewCrontab(nil, cache)
	default:
		app.batch = processing.NewBatchRunner(thoughtRepo, orchestrator, synthesis, cache, cfg.InterThoughtDelay)
		app.crontab = crontab.NewCrontab(app.batch, cache)
	}

	return app, nil
}

// Run starts the mode-appropriate work loops plus the metrics endpoint and
// blocks until the context ends or a component fails.
func (app *Application) Run(ctx context.Context) error {
	defer app.redis.Close()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return app.serveMetrics(ctx)
	})

	if app.cfg.WorkerMode == "stream" {
		eg.Go(func() error {
			if _, err := app.sweep.Run(ctx); err != nil {
				return fmt.Errorf("pending sweep: %w", err)
			}
			return app.consumer.Run(ctx)
		})
		eg.Go(func() error {
			return app.crontab.Run(ctx)
		})
		return ignoreCancelled(eg.Wait())
	}

	// Batch mode: a single pass by default, a poll loop when continuous.
	if !app.cfg.ContinuousMode {
		_, err := app.batch.Run(ctx)
		return err
	}

	eg.Go(func() error {
		return app.runContinuous(ctx)
	})
	eg.Go(func() error {
		return app.crontab.Run(ctx)
	})
	return ignoreCancelled(eg.Wait())
}

func (app *Application) runContinuous(ctx context.Context) error {
	ticker := time.NewTicker(app.cfg.BatchPollInterval)
	defer ticker.Stop()

	for {
		if _, err := app.batch.Run(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (app *Application) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.MetricsPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func ignoreCancelled(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}
