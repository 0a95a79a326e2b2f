package biz

import (
	"context"
	"sync/atomic"

	"github.com/kart-io/aegis/pkg/llm"
)

// === Mock 实现 ===

// mockChatProvider 模拟 ChatProvider，可注入固定回复或错误。
type mockChatProvider struct {
	reply     string
	err       error
	calls     atomic.Int64
	lastInput string
}

var _ llm.ChatProvider = (*mockChatProvider)(nil)

func (m *mockChatProvider) Chat(_ context.Context, _ []llm.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockChatProvider) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	m.calls.Add(1)
	m.lastInput = prompt
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{Content: m.reply}, nil
}

func (m *mockChatProvider) Name() string {
	return "mock-chat"
}

// mockEmbeddingProvider 模拟 EmbeddingProvider，按文本内容返回确定性向量。
type mockEmbeddingProvider struct {
	dim    int
	err    error
	embedF func(text string) []float32
}

var _ llm.EmbeddingProvider = (*mockEmbeddingProvider)(nil)

func (m *mockEmbeddingProvider) embed(text string) []float32 {
	if m.embedF != nil {
		return m.embedF(text)
	}
	// 默认向量：首维为文本长度，保证不同长度文本可区分。
	v := make([]float32, m.dim)
	v[0] = float32(len(text)%10 + 1)
	v[1] = 1
	return v
}

func (m *mockEmbeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.embed(text)
	}
	return out, nil
}

func (m *mockEmbeddingProvider) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.embed(text), nil
}

func (m *mockEmbeddingProvider) Name() string {
	return "mock-embedding"
}
