// Package aegis provides the alert triage service server implementation.
package aegis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/aegis/internal/aegis/biz"
	"github.com/kart-io/aegis/internal/aegis/handler"
	"github.com/kart-io/aegis/internal/aegis/router"
	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/pkg/app"
	"github.com/kart-io/aegis/pkg/llm"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
	cacheopts "github.com/kart-io/aegis/pkg/options/cache"
	httpopts "github.com/kart-io/aegis/pkg/options/http"
	llmopts "github.com/kart-io/aegis/pkg/options/llm"
	logopts "github.com/kart-io/aegis/pkg/options/logger"
	milvusopts "github.com/kart-io/aegis/pkg/options/milvus"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
	storeopts "github.com/kart-io/aegis/pkg/options/store"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/aegis/pkg/llm/ollama"
	_ "github.com/kart-io/aegis/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "aegis"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	StoreOptions     *storeopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	CacheOptions     *cacheopts.Options
	AnalyzerOptions  *analyzeropts.Options
}

// Server represents the aegis server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting aegis service...")

	var closers []func()

	// 2. 初始化向量存储
	vectorStore, err := cfg.newVectorStore()
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = vectorStore.Close() })
	logger.Infow("Vector store initialized", "driver", cfg.StoreOptions.Driver)

	// 3. 初始化查询缓存
	queryCache, redisClose := cfg.newQueryCache(ctx)
	if redisClose != nil {
		closers = append(closers, redisClose)
	}

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化 Biz 层
	history := store.NewHistoryStore(cfg.AnalyzerOptions.HistoryLimit)
	analyzer := biz.NewAnalyzer(chatProvider, history, cfg.AnalyzerOptions)
	ragService := biz.NewRAGService(vectorStore, embedProvider, chatProvider, queryCache, cfg.RAGOptions)
	logger.Infow("Business layer initialized",
		"cache.enabled", cfg.CacheOptions.Enabled,
		"history.limit", cfg.AnalyzerOptions.HistoryLimit,
	)

	// 6. 初始化 Handler 层并注册路由
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := handler.NewHealthHandler(analyzer, ragService, embedProvider, chatProvider)
	analysisHandler := handler.NewAnalysisHandler(analyzer)
	ragHandler := handler.NewRAGHandler(ragService)
	if err := router.Register(engine, healthHandler, analysisHandler, ragHandler); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	logger.Info("aegis service is ready")
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// newVectorStore 按配置选择向量存储后端。
func (cfg *Config) newVectorStore() (store.VectorStore, error) {
	switch cfg.StoreOptions.Driver {
	case storeopts.DriverMemory:
		return store.NewMemoryStore(), nil
	case storeopts.DriverMilvus:
		milvusStore, err := store.NewMilvusStore(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus store: %w", err)
		}
		return milvusStore, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreOptions.Driver)
	}
}

// newQueryCache 初始化 Redis 查询缓存。连接失败时禁用缓存但不阻止启动。
func (cfg *Config) newQueryCache(ctx context.Context) (*biz.QueryCache, func()) {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Query cache is disabled")
		return nil, nil
	}

	redisOpts := cfg.CacheOptions.Redis
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         redisOpts.Addr(),
		Password:     redisOpts.Password,
		DB:           redisOpts.Database,
		MaxRetries:   redisOpts.MaxRetries,
		PoolSize:     redisOpts.PoolSize,
		MinIdleConns: redisOpts.MinIdleConns,
		DialTimeout:  redisOpts.DialTimeout,
		ReadTimeout:  redisOpts.ReadTimeout,
		WriteTimeout: redisOpts.WriteTimeout,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnw("failed to connect to redis, query cache disabled", "error", err.Error())
		_ = redisClient.Close()
		return nil, nil
	}

	logger.Infow("Query cache initialized",
		"addr", redisOpts.Addr(),
		"ttl", cfg.CacheOptions.TTL,
	)
	return biz.NewQueryCache(redisClient, cfg.CacheOptions), func() { _ = redisClient.Close() }
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for _, closeFn := range s.closers {
			closeFn()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down aegis service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("aegis service stopped")
	return nil
}
