package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/internal/pkg/textutil"
	"github.com/kart-io/aegis/pkg/llm"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
)

// Indexer 负责文档切分、向量化与入库。
type Indexer struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	opts          *ragopts.Options
}

// NewIndexer 创建索引器实例。
func NewIndexer(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, opts *ragopts.Options) *Indexer {
	return &Indexer{
		store:         vectorStore,
		embedProvider: embedProvider,
		opts:          opts,
	}
}

// EnsureCollection 确保知识库集合存在。
func (i *Indexer) EnsureCollection(ctx context.Context) error {
	return i.store.CreateCollection(ctx, &store.CollectionConfig{
		Name:        i.opts.Collection,
		Description: "aegis knowledge base collection",
		Dimension:   i.opts.EmbeddingDim,
	})
}

// IndexText 索引一篇上传文档，返回文档元信息。
func (i *Indexer) IndexText(ctx context.Context, title, content string) (*model.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("document content is empty")
	}

	if err := i.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	docID := textutil.HashString(title + content)
	pieces := textutil.SplitIntoChunks(content, i.opts.ChunkSize, i.opts.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	chunks := make([]*store.Chunk, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	for idx, piece := range pieces {
		chunks = append(chunks, &store.Chunk{
			// 块 ID 由文档哈希与偏移序号派生，重复上传覆盖旧块。
			ID:           fmt.Sprintf("%s-%d", docID, idx),
			DocumentID:   docID,
			DocumentName: title,
			ChunkIndex:   idx,
			Content:      piece,
		})
		texts = append(texts, piece)
	}

	embeddings, err := i.embedProvider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count %d does not match chunk count %d", len(embeddings), len(chunks))
	}
	for idx, chunk := range chunks {
		if len(embeddings[idx]) != i.opts.EmbeddingDim {
			return nil, store.DimensionMismatchf("provider returned dimension %d, expected %d", len(embeddings[idx]), i.opts.EmbeddingDim)
		}
		chunk.Embedding = embeddings[idx]
	}

	if _, err := i.store.Insert(ctx, i.opts.Collection, chunks); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	logger.Infow("文档索引完成",
		"document_id", docID,
		"title", title,
		"chunks", len(chunks),
	)

	return &model.Document{
		ID:        docID,
		Title:     title,
		Source:    "upload",
		Hash:      docID,
		ChunkNum:  len(chunks),
		CreatedAt: time.Now(),
	}, nil
}

// DropAll 删除知识库集合及其全部数据。
func (i *Indexer) DropAll(ctx context.Context) error {
	return i.store.DropCollection(ctx, i.opts.Collection)
}
