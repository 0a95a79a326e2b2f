package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/entity"

	milvuscomp "github.com/kart-io/aegis/pkg/component/milvus"
	milvusopts "github.com/kart-io/aegis/pkg/options/milvus"
)

// 集合元数据字段。向量字段与主键由组件层统一管理。
const (
	fieldDocumentID   = "document_id"
	fieldDocumentName = "document_name"
	fieldChunkIndex   = "chunk_index"
	fieldContent      = "content"
)

// milvusClient 抽象组件层客户端，便于在测试中替换。
type milvusClient interface {
	CreateCollection(ctx context.Context, schema *milvuscomp.CollectionSchema) error
	HasCollection(ctx context.Context, collectionName string) (bool, error)
	Insert(ctx context.Context, collectionName string, data *milvuscomp.InsertData) ([]int64, error)
	DeleteByExpr(ctx context.Context, collectionName string, expr string) error
	Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]milvuscomp.SearchResult, error)
	DropCollection(ctx context.Context, collectionName string) error
	GetCollectionStats(ctx context.Context, collectionName string) (int64, error)
	Close(ctx context.Context) error
}

var _ milvusClient = (*milvuscomp.Client)(nil)

// MilvusStore 是基于 Milvus 的 VectorStore 实现。
type MilvusStore struct {
	client milvusClient
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 根据配置创建 Milvus 存储。
func NewMilvusStore(opts *milvusopts.Options) (*MilvusStore, error) {
	client, err := milvuscomp.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	return &MilvusStore{client: client}, nil
}

// CreateCollection 创建知识库集合，已存在时直接返回。
func (s *MilvusStore) CreateCollection(ctx context.Context, cfg *CollectionConfig) error {
	schema := &milvuscomp.CollectionSchema{
		Name:        cfg.Name,
		Description: cfg.Description,
		Dimension:   cfg.Dimension,
		MetaFields: []milvuscomp.MetaField{
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldDocumentName, DataType: entity.FieldTypeVarChar, MaxLen: 256},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 8192},
		},
	}
	return s.client.CreateCollection(ctx, schema)
}

// Insert 批量写入文本块。所有块的向量维度必须一致。
func (s *MilvusStore) Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	dim := len(chunks[0].Embedding)
	embeddings := make([][]float32, 0, len(chunks))
	docIDs := make([]any, 0, len(chunks))
	docNames := make([]any, 0, len(chunks))
	chunkIdxs := make([]any, 0, len(chunks))
	contents := make([]any, 0, len(chunks))
	seenDocs := make(map[string]bool)

	for i, chunk := range chunks {
		if len(chunk.Embedding) != dim {
			return nil, DimensionMismatchf("chunk %d has dimension %d, expected %d", i, len(chunk.Embedding), dim)
		}
		embeddings = append(embeddings, chunk.Embedding)
		docIDs = append(docIDs, chunk.DocumentID)
		docNames = append(docNames, chunk.DocumentName)
		chunkIdxs = append(chunkIdxs, int64(chunk.ChunkIndex))
		contents = append(contents, chunk.Content)
		seenDocs[chunk.DocumentID] = true
	}

	// 重复上传同一文档时先清理旧块，保证文档级覆盖写。
	for docID := range seenDocs {
		expr := fmt.Sprintf("%s == %q", fieldDocumentID, docID)
		if err := s.client.DeleteByExpr(ctx, collection, expr); err != nil {
			return nil, fmt.Errorf("failed to replace document %s: %w", docID, err)
		}
	}

	ids, err := s.client.Insert(ctx, collection, &milvuscomp.InsertData{
		Embeddings: embeddings,
		Metadata: map[string][]any{
			fieldDocumentID:   docIDs,
			fieldDocumentName: docNames,
			fieldChunkIndex:   chunkIdxs,
			fieldContent:      contents,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.FormatInt(id, 10)
	}
	return strIDs, nil
}

// Search 执行向量相似度检索，按相似度降序返回 topK 条结果。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	// 集合不存在等同于空库。
	if !exists {
		return nil, fmt.Errorf("%w: collection %s does not exist", ErrEmptyCorpus, collection)
	}

	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: collection %s has no entities", ErrEmptyCorpus, collection)
	}

	outputFields := []string{fieldDocumentID, fieldDocumentName, fieldChunkIndex, fieldContent}
	hits, err := s.client.Search(ctx, collection, embedding, topK, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, hit := range hits {
		result := &SearchResult{
			ID:    strconv.FormatInt(hit.ID, 10),
			Score: hit.Score,
		}
		if v, ok := hit.Metadata[fieldDocumentID].(string); ok {
			result.DocumentID = v
		}
		if v, ok := hit.Metadata[fieldDocumentName].(string); ok {
			result.DocumentName = v
		}
		if v, ok := hit.Metadata[fieldChunkIndex].(int64); ok {
			result.ChunkIndex = int(v)
		}
		if v, ok := hit.Metadata[fieldContent].(string); ok {
			result.Content = v
		}
		results = append(results, result)
	}
	return results, nil
}

// DropCollection 删除集合及其全部数据。
func (s *MilvusStore) DropCollection(ctx context.Context, collection string) error {
	return s.client.DropCollection(ctx, collection)
}

// GetStats 返回集合统计信息。集合不存在时报告零条。
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (map[string]any, error) {
	exists, err := s.client.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}

	var count int64
	if exists {
		count, err = s.client.GetCollectionStats(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to get collection stats: %w", err)
		}
	}
	return map[string]any{
		"collection": collection,
		"row_count":  count,
	}, nil
}

// Close 关闭底层 Milvus 连接。
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}
