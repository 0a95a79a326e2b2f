package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/pkg/llm"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
)

// RetrievalResult 一次检索的结果集。
type RetrievalResult struct {
	// Query 原始查询。
	Query string
	// Results 检索结果，按相似度降序。
	Results []*store.SearchResult
}

// Retriever 负责向量检索。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	opts          *ragopts.Options
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, opts *ragopts.Options) *Retriever {
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		opts:          opts,
	}
}

// Retrieve 向量化查询并检索 TopK 相关文本块。
// 空集合不视为错误，返回空结果集由上层走固定答案路径。
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievalResult, error) {
	embedding, err := r.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embedding) != r.opts.EmbeddingDim {
		return nil, store.DimensionMismatchf("provider returned dimension %d, expected %d", len(embedding), r.opts.EmbeddingDim)
	}

	results, err := r.store.Search(ctx, r.opts.Collection, embedding, r.opts.TopK)
	if err != nil {
		if store.IsEmptyCorpus(err) {
			logger.Debugw("知识库为空", "question", question)
			return &RetrievalResult{Query: question, Results: nil}, nil
		}
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	// 过滤低于相似度下限的结果。
	filtered := results[:0]
	for _, res := range results {
		if float64(res.Score) >= r.opts.MinScore {
			filtered = append(filtered, res)
		}
	}

	logger.Debugw("检索完成",
		"question", question,
		"hits", len(filtered),
	)
	return &RetrievalResult{Query: question, Results: filtered}, nil
}
