// Package store 提供向量存储与分析历史存储的抽象及实现。
package store

import (
	"context"
	"errors"
	"fmt"
)

// 存储层哨兵错误。上层通过 errors.Is 判断并决定降级策略。
var (
	// ErrDimensionMismatch 表示向量维度与集合维度不一致。
	ErrDimensionMismatch = errors.New("store: embedding dimension mismatch")

	// ErrEmptyCorpus 表示在空集合上执行检索。
	ErrEmptyCorpus = errors.New("store: empty corpus")
)

// DimensionMismatchf 包装维度不匹配错误并附加上下文。
func DimensionMismatchf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDimensionMismatch, fmt.Sprintf(format, args...))
}

// IsDimensionMismatch 判断错误是否为维度不匹配。
func IsDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

// IsEmptyCorpus 判断错误是否为空集合检索。
func IsEmptyCorpus(err error) bool {
	return errors.Is(err, ErrEmptyCorpus)
}

// Chunk 表示待入库的文本块及其向量。
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
}

// SearchResult 表示一次向量检索的单条命中。
type SearchResult struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
}

// CollectionConfig 描述集合的创建参数。
type CollectionConfig struct {
	Name        string
	Dimension   int
	Description string
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// CreateCollection 创建集合，已存在时为幂等操作。
	CreateCollection(ctx context.Context, cfg *CollectionConfig) error

	// Insert 批量写入文本块，返回生成的 ID 列表。
	// 向量维度与集合不一致时返回 ErrDimensionMismatch。
	Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error)

	// Search 返回与查询向量最相似的 topK 条结果，按相似度降序。
	// 集合为空时返回 ErrEmptyCorpus。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// DropCollection 删除集合及其全部数据。
	DropCollection(ctx context.Context, collection string) error

	// GetStats 返回集合统计信息。
	GetStats(ctx context.Context, collection string) (map[string]any, error)

	// Close 释放底层连接。
	Close() error
}
