package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/aegis/internal/aegis/biz"
	"github.com/kart-io/aegis/pkg/app"
	"github.com/kart-io/aegis/pkg/llm"
)

// pingTimeout 健康检查中探测远端模型服务的超时。
const pingTimeout = 5 * time.Second

// HealthHandler handles health and service-level statistics requests.
type HealthHandler struct {
	analyzer      *biz.Analyzer
	ragService    biz.RAGService
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	startedAt     time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(analyzer *biz.Analyzer, ragService biz.RAGService, embedProvider llm.EmbeddingProvider, chatProvider llm.ChatProvider) *HealthHandler {
	return &HealthHandler{
		analyzer:      analyzer,
		ragService:    ragService,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		startedAt:     time.Now(),
	}
}

// providerStatus 探测供应商可达性。不支持探测的供应商报告 unknown。
func providerStatus(ctx context.Context, p any) string {
	pinger, ok := p.(llm.Pinger)
	if !ok {
		return "unknown"
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		return "unreachable"
	}
	return "ok"
}

// Healthz reports service liveness, build info and remote model reachability.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(h.startedAt).String(),
		"version": app.GetVersionInfo(),
		"providers": gin.H{
			"embedding": providerStatus(ctx, h.embedProvider),
			"chat":      providerStatus(ctx, h.chatProvider),
		},
	})
}

// Stats returns combined analysis and knowledge base statistics.
func (h *HealthHandler) Stats(c *gin.Context) {
	stats := gin.H{
		"analysis": h.analyzer.Stats(),
		"uptime":   time.Since(h.startedAt).String(),
	}

	if ragStats, err := h.ragService.Stats(c.Request.Context()); err == nil {
		stats["knowledge_base"] = ragStats
	}

	writeSuccess(c, stats)
}
