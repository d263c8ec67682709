package bootstrap

import (
	"context"
	"fmt"

	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/controller"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/internal/service"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/capability"
	"workflow-agent-be/pkg/cache"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/database"
	"workflow-agent-be/pkg/embedding"
	"workflow-agent-be/pkg/embedding/jina"
	"workflow-agent-be/pkg/events"
	"workflow-agent-be/pkg/history"
	"workflow-agent-be/pkg/llm/factory"
	"workflow-agent-be/pkg/observe"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/workflow"

	pktNats "workflow-agent-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	Logger   *logger.ZapLogger
	DB       *gorm.DB
	Registry *connector.Registry

	Orchestrator *agent.Orchestrator
	History      *history.Service

	// Background consumers, started by main.
	StatsConsumer *observe.StatsConsumer

	WorkflowAgentService service.IWorkflowAgentService
	WorkflowController   controller.IWorkflowController

	pubSub  *gochannel.GoChannel
	closers []func()
}

// NewContainer wires every dependency from cfg. Optional infrastructure
// (Postgres, Redis, NATS) is skipped when its URL is empty; the process then
// runs with the in-process fallbacks.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	return NewContainerWithLogger(ctx, cfg, logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction()))
}

func NewContainerWithLogger(ctx context.Context, cfg *config.Config, sysLogger *logger.ZapLogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Core
	registry, err := connector.NewDefaultRegistry(sysLogger)
	if err != nil {
		return nil, err
	}
	engine := workflow.NewEngine(registry, sysLogger)
	c.Registry = registry

	// 2. Attempt observation bus
	c.pubSub = observe.NewPubSub()
	recorder := observe.NewRecorder(c.pubSub, sysLogger)
	c.StatsConsumer = observe.NewStatsConsumer(c.pubSub, sysLogger)
	hook := recorder.Hook()

	// 3. Infrastructure
	var uowFactory unitofwork.RepositoryFactory
	var dbErr error
	if cfg.Database.Connection != "" {
		gormCfg := database.GormConfig{
			DSN:          cfg.Database.Connection,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			LogLevel:     cfg.Database.LogLevel,
		}
		db, err := database.NewGormDB(ctx, gormCfg)
		if err != nil {
			dbErr = err
			sysLogger.Error("BOOTSTRAP", "Failed to connect to database, will keep retrying on use", map[string]interface{}{"error": err.Error()})
			db, err = database.NewLazyGormDB(gormCfg)
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("open database pool: %w", err)
			}
		}
		c.DB = db
		uowFactory = unitofwork.NewRepositoryFactory(db)
		c.closers = append(c.closers, func() { _ = database.Close(db) })
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var kv cache.Store
	if cfg.App.RedisURL != "" {
		redisStore, err := cache.NewRedisStoreFromURL(ctx, cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, using in-process cache", map[string]interface{}{"error": err.Error()})
		} else {
			kv = redisStore
			c.closers = append(c.closers, func() { _ = redisStore.Close() })
		}
	}
	if kv == nil {
		kv = cache.NewMemoryStore(cfg.Agent.CacheTTL)
	}
	responseCache := cache.NewLayer(kv, cfg.Agent.CacheTTL, cfg.Agent.Cache.Policy("cache").WithHook(hook), sysLogger)

	// 4. History
	var durable history.StorageBackend
	if uowFactory != nil {
		durable = history.NewDurableBackend(uowFactory)
	}
	c.History = history.NewService(
		durable,
		history.NewEphemeralBackend(cfg.Agent.CacheTTL),
		cfg.Agent.HistoryWindow,
		cfg.Agent.Store.Policy("store").WithHook(hook),
		publisher,
		sysLogger,
	)
	if dbErr != nil {
		c.History.ReportUnavailable(ctx, dbErr)
	}

	// 5. Model providers
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  cfg.Ai.LLMBaseURL,
		APIKey:   cfg.Ai.LLMAPIKey,
		Timeout:  cfg.Ai.LLMTimeout,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	var retriever agent.Retriever
	if uowFactory != nil {
		retriever = capability.NewVectorRetriever(
			NewEmbeddingProvider(cfg.Ai),
			uowFactory,
			cfg.Ai.RetrievalTopK,
			cfg.Ai.RetrievalThreshold,
			sysLogger,
		)
	} else {
		retriever = capability.NewCatalogRetriever(registry, cfg.Ai.RetrievalTopK)
	}

	// 6. Orchestrator
	policies := agent.Policies{
		Classification: modelPolicy(cfg.Agent.Classification.Policy("classification"), hook),
		Generation:     modelPolicy(cfg.Agent.Generation.Policy("generation"), hook),
		Retrieval:      cfg.Agent.Retrieval.Policy("retrieval").WithHook(hook),
	}
	generator := capability.NewLLMGenerator(llmProvider, sysLogger)
	c.Orchestrator = agent.NewOrchestrator(agent.Dependencies{
		Classifier: capability.NewLLMClassifier(llmProvider, sysLogger),
		Retriever:  retriever,
		Generator:  generator,
		Modifier:   generator,
		Responder:  capability.NewLLMResponder(llmProvider, sysLogger),
		Engine:     engine,
		History:    c.History,
		Cache:      responseCache,
		Policies:   policies,
		Logger:     sysLogger,
	})

	// 7. Service & controller
	c.WorkflowAgentService = service.NewWorkflowAgentService(c.Orchestrator, c.History, registry, engine, c.StatsConsumer, sysLogger)
	c.WorkflowController = controller.NewWorkflowController(c.WorkflowAgentService, cfg.App.JWTSecret)

	return c, nil
}

// NewEmbeddingProvider selects the embedding backend named in cfg.
func NewEmbeddingProvider(cfg config.AIConfig) embedding.EmbeddingProvider {
	if cfg.EmbeddingProvider == "jina" {
		return jina.NewJinaProvider(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL)
	}
	return embedding.NewOllamaProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
}

// modelPolicy stops retrying on permanent provider rejections.
func modelPolicy(p retry.Policy, hook retry.Hook) retry.Policy {
	p.Retryable = capability.Retryable
	return p.WithHook(hook)
}

// Close releases infrastructure in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	_ = c.Logger.Sync()
}
