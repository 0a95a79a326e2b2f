package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/aegis/internal/pkg/textutil"
	"github.com/kart-io/aegis/pkg/utils/id"
)

// memoryCollection 保存单个集合的全部数据。
type memoryCollection struct {
	dimension int
	chunks    []*Chunk // 按插入顺序保存
}

// MemoryStore 是内存版 VectorStore，主要用于开发环境与测试。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// CreateCollection 创建集合，已存在时为幂等操作。
func (s *MemoryStore) CreateCollection(_ context.Context, cfg *CollectionConfig) error {
	if cfg.Dimension <= 0 {
		return fmt.Errorf("invalid dimension: %d", cfg.Dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[cfg.Name]; ok {
		return nil
	}
	s.collections[cfg.Name] = &memoryCollection{dimension: cfg.Dimension}
	return nil
}

// Insert 批量写入文本块。任一块维度不匹配时整批拒绝。
func (s *MemoryStore) Insert(_ context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection not found: %s", collection)
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != coll.dimension {
			return nil, DimensionMismatchf("chunk %d has dimension %d, expected %d", i, len(chunk.Embedding), coll.dimension)
		}
	}

	positions := make(map[string]int, len(coll.chunks))
	for i, existing := range coll.chunks {
		positions[existing.ID] = i
	}

	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		stored := *chunk
		if stored.ID == "" {
			stored.ID = id.NewULID()
		}
		// 相同 ID 覆盖原有块，保留其插入位次。
		if pos, ok := positions[stored.ID]; ok {
			coll.chunks[pos] = &stored
		} else {
			positions[stored.ID] = len(coll.chunks)
			coll.chunks = append(coll.chunks, &stored)
		}
		ids = append(ids, stored.ID)
	}
	return ids, nil
}

// Search 计算查询向量与全部块的余弦相似度，返回得分最高的 topK 条。
// 得分相同时先插入的块排在前面。
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 集合不存在等同于空库。
	coll, ok := s.collections[collection]
	if !ok || len(coll.chunks) == 0 {
		return nil, fmt.Errorf("%w: collection %s has no entities", ErrEmptyCorpus, collection)
	}
	if len(embedding) != coll.dimension {
		return nil, DimensionMismatchf("query has dimension %d, expected %d", len(embedding), coll.dimension)
	}

	type scored struct {
		chunk *Chunk
		score float64
		order int
	}
	candidates := make([]scored, 0, len(coll.chunks))
	for i, chunk := range coll.chunks {
		score := textutil.CosineSimilarity(embedding, chunk.Embedding)
		candidates = append(candidates, scored{chunk: chunk, score: score, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]*SearchResult, 0, topK)
	for _, c := range candidates[:topK] {
		results = append(results, &SearchResult{
			ID:           c.chunk.ID,
			DocumentID:   c.chunk.DocumentID,
			DocumentName: c.chunk.DocumentName,
			ChunkIndex:   c.chunk.ChunkIndex,
			Content:      c.chunk.Content,
			Score:        float32(c.score),
		})
	}
	return results, nil
}

// DropCollection 删除集合及其全部数据。
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

// GetStats 返回集合统计信息。
func (s *MemoryStore) GetStats(_ context.Context, collection string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 集合不存在时报告零条，与空库语义一致。
	var count int64
	if coll, ok := s.collections[collection]; ok {
		count = int64(len(coll.chunks))
	}
	return map[string]any{
		"collection": collection,
		"row_count":  count,
	}, nil
}

// Close 对内存存储为空操作。
func (s *MemoryStore) Close() error {
	return nil
}
