package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/pkg/llm"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
)

// GenerationUnavailableAnswer 生成阶段不可用时的降级回答前缀。
const GenerationUnavailableAnswer = "Answer generation is currently unavailable. The most relevant knowledge base excerpts are returned instead."

// RAGService 定义知识库问答服务接口。
type RAGService interface {
	// IndexText 索引一篇上传文档。
	IndexText(ctx context.Context, title, content string) (*model.Document, error)
	// Query 执行知识库问答。
	Query(ctx context.Context, question string) (*model.QueryResult, error)
	// Reset 清空知识库与查询缓存。
	Reset(ctx context.Context) error
	// Stats 返回知识库统计信息。
	Stats(ctx context.Context) (map[string]any, error)
}

// ragService 组合索引、检索与生成，提供完整的问答链路。
type ragService struct {
	indexer       *Indexer
	retriever     *Retriever
	generator     *Generator
	cache         *QueryCache
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	opts          *ragopts.Options
}

var _ RAGService = (*ragService)(nil)

// NewRAGService 创建知识库问答服务。cache 可以为 nil。
func NewRAGService(
	vectorStore store.VectorStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	cache *QueryCache,
	opts *ragopts.Options,
) RAGService {
	return &ragService{
		indexer:       NewIndexer(vectorStore, embedProvider, opts),
		retriever:     NewRetriever(vectorStore, embedProvider, opts),
		generator:     NewGenerator(chatProvider, opts),
		cache:         cache,
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		opts:          opts,
	}
}

// IndexText 索引一篇上传文档。
func (s *ragService) IndexText(ctx context.Context, title, content string) (*model.Document, error) {
	return s.indexer.IndexText(ctx, title, content)
}

// Query 执行知识库问答。
// 除维度不匹配这类配置错误外不返回错误：检索或生成失败时返回降级结果。
func (s *ragService) Query(ctx context.Context, question string) (*model.QueryResult, error) {
	if cached := s.cache.Get(ctx, question); cached != nil {
		logger.Debugw("查询缓存命中", "question", question)
		return cached, nil
	}

	retrieval, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		if store.IsDimensionMismatch(err) {
			return nil, err
		}
		logger.Warnw("检索失败，返回降级回答", "error", err.Error(), "question", question)
		return &model.QueryResult{
			Answer:   GenerationUnavailableAnswer,
			Sources:  []model.ChunkSource{},
			Degraded: true,
		}, nil
	}

	sources := make([]model.ChunkSource, len(retrieval.Results))
	for i, res := range retrieval.Results {
		sources[i] = model.ChunkSource{
			DocumentID:   res.DocumentID,
			DocumentName: res.DocumentName,
			ChunkIndex:   res.ChunkIndex,
			Content:      res.Content,
			Score:        res.Score,
		}
	}

	resp, err := s.generator.GenerateAnswer(ctx, question, retrieval.Results)
	if err != nil {
		logger.Warnw("生成失败，返回检索结果与降级回答", "error", err.Error(), "question", question)
		return &model.QueryResult{
			Answer:   GenerationUnavailableAnswer,
			Sources:  sources,
			Degraded: true,
		}, nil
	}

	result := &model.QueryResult{
		Answer:  resp.Content,
		Sources: sources,
	}

	// 空库的固定回答不缓存，避免入库后仍命中旧答案。
	if len(sources) > 0 {
		s.cache.Set(ctx, question, result)
	}

	logger.Infow("知识库查询完成",
		"question", question,
		"sources", len(sources),
		"answer_length", len(result.Answer),
	)
	return result, nil
}

// Reset 清空知识库集合与查询缓存。
func (s *ragService) Reset(ctx context.Context) error {
	if err := s.indexer.DropAll(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if _, err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("缓存清理失败", "error", err.Error())
	}
	return nil
}

// Stats 返回知识库统计信息。
func (s *ragService) Stats(ctx context.Context) (map[string]any, error) {
	stats, err := s.store.GetStats(ctx, s.opts.Collection)
	if err != nil {
		return nil, err
	}

	stats["embed_provider"] = s.embedProvider.Name()
	stats["chat_provider"] = s.chatProvider.Name()
	stats["top_k"] = s.opts.TopK
	stats["chunk_size"] = s.opts.ChunkSize
	stats["chunk_overlap"] = s.opts.ChunkOverlap
	stats["cache"] = s.cache.Stats(ctx)
	return stats, nil
}
