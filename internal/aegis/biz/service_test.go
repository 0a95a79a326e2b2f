package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/pkg/llm"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
)

// topicEmbedder 按主题词返回正交向量，保证相关块相似度严格高于无关块。
func topicEmbedder(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "memory") {
		return []float32{1, 0, 0, 0}
	}
	return []float32{0, 1, 0, 0}
}

func newTestRAGService(t *testing.T, chat *mockChatProvider) (RAGService, *store.MemoryStore) {
	t.Helper()

	opts := ragopts.NewOptions()
	opts.Collection = "test_kb"
	opts.EmbeddingDim = 4

	vectorStore := store.NewMemoryStore()
	embed := &mockEmbeddingProvider{dim: 4, embedF: topicEmbedder}
	svc := NewRAGService(vectorStore, embed, chat, nil, opts)
	return svc, vectorStore
}

func TestRAGService_IndexText(t *testing.T) {
	svc, vectorStore := newTestRAGService(t, &mockChatProvider{reply: "ok"})
	ctx := context.Background()

	t.Run("索引上传文档", func(t *testing.T) {
		doc, err := svc.IndexText(ctx, "rust.md", "Rust guarantees memory safety without garbage collection.")
		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, "rust.md", doc.Title)
		assert.Equal(t, 1, doc.ChunkNum)

		stats, err := vectorStore.GetStats(ctx, "test_kb")
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats["row_count"])
	})

	t.Run("空内容拒绝", func(t *testing.T) {
		_, err := svc.IndexText(ctx, "empty.md", "   ")
		assert.Error(t, err)
	})
}

func TestRAGService_QueryEmptyStore(t *testing.T) {
	chat := &mockChatProvider{reply: "should never be called"}
	svc, _ := newTestRAGService(t, chat)

	result, err := svc.Query(context.Background(), "What guarantees does Rust provide about memory?")
	require.NoError(t, err)

	// 空库走固定回答路径，不触发任何生成调用。
	assert.Equal(t, NoContextAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, int64(0), chat.calls.Load())
}

func TestRAGService_QueryEndToEnd(t *testing.T) {
	chat := &mockChatProvider{reply: "Rust guarantees memory safety, as stated in rust.md."}
	svc, _ := newTestRAGService(t, chat)
	ctx := context.Background()

	_, err := svc.IndexText(ctx, "rust.md", "Rust guarantees memory safety without garbage collection.")
	require.NoError(t, err)
	_, err = svc.IndexText(ctx, "fruit.md", "Bananas are yellow fruit rich in potassium.")
	require.NoError(t, err)

	result, err := svc.Query(ctx, "What guarantees does Rust provide about memory?")
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	assert.Contains(t, result.Answer, "memory safety")
	require.NotEmpty(t, result.Sources)

	// 相关块排在首位，且得分严格高于无关块。
	assert.Contains(t, result.Sources[0].Content, "memory safety")
	if len(result.Sources) > 1 {
		assert.Greater(t, result.Sources[0].Score, result.Sources[1].Score)
	}

	// 上下文包含检索到的块内容。
	assert.Contains(t, chat.lastInput, "memory safety")
	assert.Contains(t, chat.lastInput, "What guarantees does Rust provide")
}

func TestRAGService_QueryGenerationFailure(t *testing.T) {
	chat := &mockChatProvider{err: llm.RemoteUnavailablef("model offline")}
	svc, _ := newTestRAGService(t, chat)
	ctx := context.Background()

	_, err := svc.IndexText(ctx, "rust.md", "Rust guarantees memory safety without garbage collection.")
	require.NoError(t, err)

	result, err := svc.Query(ctx, "What guarantees does Rust provide about memory?")
	require.NoError(t, err)

	// 生成失败不报错，返回降级回答且保留检索结果。
	assert.True(t, result.Degraded)
	assert.Equal(t, GenerationUnavailableAnswer, result.Answer)
	require.NotEmpty(t, result.Sources)
	assert.Contains(t, result.Sources[0].Content, "memory safety")
}

func TestRAGService_Reset(t *testing.T) {
	svc, vectorStore := newTestRAGService(t, &mockChatProvider{reply: "ok"})
	ctx := context.Background()

	_, err := svc.IndexText(ctx, "rust.md", "Rust guarantees memory safety without garbage collection.")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	stats, err := vectorStore.GetStats(ctx, "test_kb")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats["row_count"])
}

func TestRAGService_Stats(t *testing.T) {
	svc, _ := newTestRAGService(t, &mockChatProvider{reply: "ok"})
	ctx := context.Background()

	_, err := svc.IndexText(ctx, "rust.md", "Rust guarantees memory safety without garbage collection.")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["row_count"])
	assert.Equal(t, "mock-embedding", stats["embed_provider"])
	assert.Equal(t, "mock-chat", stats["chat_provider"])
}
