package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/aegis/biz"
	"github.com/kart-io/aegis/internal/aegis/store"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
	"github.com/kart-io/aegis/pkg/utils/json"
)

// pingableEmbedder 带可控探测结果的嵌入供应商替身。
type pingableEmbedder struct {
	pingErr error
}

func (p *pingableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (p *pingableEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (p *pingableEmbedder) Name() string { return "fake-embed" }

func (p *pingableEmbedder) Ping(_ context.Context) error { return p.pingErr }

func newHealthRouter(embedder *pingableEmbedder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	analyzer := biz.NewAnalyzer(nil, store.NewHistoryStore(100), analyzeropts.NewOptions())
	h := NewHealthHandler(analyzer, &mockRAGService{}, embedder, nil)

	engine := gin.New()
	engine.GET("/healthz", h.Healthz)
	engine.GET("/v1/stats", h.Stats)
	return engine
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Run("供应商可达", func(t *testing.T) {
		engine := newHealthRouter(&pingableEmbedder{})
		w := doJSON(engine, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Status    string            `json:"status"`
			Uptime    string            `json:"uptime"`
			Providers map[string]string `json:"providers"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, resp.Uptime)
		assert.Equal(t, "ok", resp.Providers["embedding"])
		// chat provider 未实现探测接口，报告 unknown。
		assert.Equal(t, "unknown", resp.Providers["chat"])
	})

	t.Run("供应商不可达", func(t *testing.T) {
		engine := newHealthRouter(&pingableEmbedder{pingErr: errors.New("connection refused")})
		w := doJSON(engine, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Providers map[string]string `json:"providers"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unreachable", resp.Providers["embedding"])
	})
}

func TestHealthHandler_Stats(t *testing.T) {
	engine := newHealthRouter(&pingableEmbedder{})
	w := doJSON(engine, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Analysis      map[string]any `json:"analysis"`
			KnowledgeBase map[string]any `json:"knowledge_base"`
			Uptime        string         `json:"uptime"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data.Analysis)
	assert.NotNil(t, resp.Data.KnowledgeBase)
	assert.NotEmpty(t, resp.Data.Uptime)
}
