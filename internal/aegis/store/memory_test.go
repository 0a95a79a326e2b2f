package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dim int) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	err := s.CreateCollection(context.Background(), &CollectionConfig{
		Name:      "test",
		Dimension: dim,
	})
	require.NoError(t, err)
	return s
}

func TestMemoryStore_CreateCollection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t.Run("创建集合", func(t *testing.T) {
		err := s.CreateCollection(ctx, &CollectionConfig{Name: "kb", Dimension: 4})
		assert.NoError(t, err)
	})

	t.Run("重复创建为幂等操作", func(t *testing.T) {
		err := s.CreateCollection(ctx, &CollectionConfig{Name: "kb", Dimension: 4})
		assert.NoError(t, err)
	})

	t.Run("维度非法", func(t *testing.T) {
		err := s.CreateCollection(ctx, &CollectionConfig{Name: "bad", Dimension: 0})
		assert.Error(t, err)
	})
}

func TestMemoryStore_Insert(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	t.Run("正常写入返回ID", func(t *testing.T) {
		ids, err := s.Insert(ctx, "test", []*Chunk{
			{DocumentID: "doc-1", Content: "a", Embedding: []float32{1, 0, 0}},
			{DocumentID: "doc-1", Content: "b", Embedding: []float32{0, 1, 0}},
		})
		require.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.NotEmpty(t, ids[0])
		assert.NotEqual(t, ids[0], ids[1])
	})

	t.Run("维度不匹配整批拒绝", func(t *testing.T) {
		_, err := s.Insert(ctx, "test", []*Chunk{
			{Content: "ok", Embedding: []float32{1, 0, 0}},
			{Content: "bad", Embedding: []float32{1, 0}},
		})
		require.Error(t, err)
		assert.True(t, IsDimensionMismatch(err))

		stats, err := s.GetStats(ctx, "test")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats["row_count"])
	})

	t.Run("相同ID覆盖写", func(t *testing.T) {
		_, err := s.Insert(ctx, "test", []*Chunk{
			{ID: "fixed", Content: "old", Embedding: []float32{1, 0, 0}},
		})
		require.NoError(t, err)

		_, err = s.Insert(ctx, "test", []*Chunk{
			{ID: "fixed", Content: "new", Embedding: []float32{0, 0, 1}},
		})
		require.NoError(t, err)

		stats, err := s.GetStats(ctx, "test")
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats["row_count"])

		results, err := s.Search(ctx, "test", []float32{0, 0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "fixed", results[0].ID)
		assert.Equal(t, "new", results[0].Content)
	})

	t.Run("空批次", func(t *testing.T) {
		ids, err := s.Insert(ctx, "test", nil)
		assert.NoError(t, err)
		assert.Nil(t, ids)
	})

	t.Run("集合不存在", func(t *testing.T) {
		_, err := s.Insert(ctx, "missing", []*Chunk{{Embedding: []float32{1, 0, 0}}})
		assert.Error(t, err)
	})
}

func TestMemoryStore_Search(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	t.Run("空集合返回ErrEmptyCorpus", func(t *testing.T) {
		_, err := s.Search(ctx, "test", []float32{1, 0, 0}, 3)
		require.Error(t, err)
		assert.True(t, IsEmptyCorpus(err))
	})

	_, err := s.Insert(ctx, "test", []*Chunk{
		{ID: "c1", Content: "exact", Embedding: []float32{1, 0, 0}},
		{ID: "c2", Content: "near", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "c3", Content: "far", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	t.Run("按相似度降序返回", func(t *testing.T) {
		results, err := s.Search(ctx, "test", []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "c1", results[0].ID)
		assert.Equal(t, "c2", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("完全相同向量得分为1", func(t *testing.T) {
		results, err := s.Search(ctx, "test", []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("topK大于总量时返回全部", func(t *testing.T) {
		results, err := s.Search(ctx, "test", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("得分相同时先插入者优先", func(t *testing.T) {
		_, err := s.Insert(ctx, "test", []*Chunk{
			{ID: "dup1", Content: "same", Embedding: []float32{0, 1, 0}},
			{ID: "dup2", Content: "same", Embedding: []float32{0, 1, 0}},
		})
		require.NoError(t, err)

		results, err := s.Search(ctx, "test", []float32{0, 1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "dup1", results[0].ID)
		assert.Equal(t, "dup2", results[1].ID)
	})

	t.Run("查询向量维度不匹配", func(t *testing.T) {
		_, err := s.Search(ctx, "test", []float32{1, 0}, 3)
		require.Error(t, err)
		assert.True(t, IsDimensionMismatch(err))
	})
}

func TestMemoryStore_DropCollection(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	_, err := s.Insert(ctx, "test", []*Chunk{{Embedding: []float32{1, 0, 0}}})
	require.NoError(t, err)

	require.NoError(t, s.DropCollection(ctx, "test"))

	stats, err := s.GetStats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["row_count"])
}

func TestMemoryStore_Concurrency(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Insert(ctx, "test", []*Chunk{
				{Content: fmt.Sprintf("chunk-%d", n), Embedding: []float32{1, 0, 0}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := s.GetStats(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats["row_count"])
}
