package biz

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/internal/pkg/textutil"
	"github.com/kart-io/aegis/pkg/llm"
	ragopts "github.com/kart-io/aegis/pkg/options/rag"
)

// NoContextAnswer 知识库无相关内容时的固定回答。此路径不调用模型。
const NoContextAnswer = "No relevant context was found in the knowledge base to answer this question."

// Generator 负责基于检索上下文生成答案。
type Generator struct {
	chatProvider llm.ChatProvider
	opts         *ragopts.Options
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, opts *ragopts.Options) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		opts:         opts,
	}
}

// GenerateAnswer 根据检索结果生成答案。检索结果为空时返回固定回答。
func (g *Generator) GenerateAnswer(ctx context.Context, question string, results []*store.SearchResult) (*llm.GenerateResponse, error) {
	if len(results) == 0 {
		return &llm.GenerateResponse{Content: NoContextAnswer}, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled before generation: %w", ctx.Err())
	}

	prompt := strings.ReplaceAll(g.opts.SystemPrompt, "{{context}}", g.assembleContext(results))
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	resp, err := g.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	if resp.TokenUsage != nil {
		logger.Debugw("答案生成完成",
			"answer_length", len(resp.Content),
			"total_tokens", resp.TokenUsage.TotalTokens,
		)
	} else {
		logger.Debugw("答案生成完成", "answer_length", len(resp.Content))
	}
	return resp, nil
}

// assembleContext 按相似度降序拼接上下文，超出字符预算时优先裁剪低相似度块。
func (g *Generator) assembleContext(results []*store.SearchResult) string {
	var b strings.Builder
	remaining := g.opts.ContextBudget

	for i, result := range results {
		if remaining <= 0 {
			break
		}
		entry := fmt.Sprintf("[%d] From %s (chunk %d):\n%s\n\n",
			i+1, result.DocumentName, result.ChunkIndex, result.Content)

		runes := utf8.RuneCountInString(entry)
		if runes > remaining {
			entry = textutil.TruncateString(entry, remaining)
			runes = remaining
		}
		b.WriteString(entry)
		remaining -= runes
	}
	return b.String()
}
