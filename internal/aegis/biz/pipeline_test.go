package biz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/pkg/llm"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
)

func TestAnalyzer_Analyze(t *testing.T) {
	ctx := context.Background()
	opts := analyzeropts.NewOptions()

	t.Run("远端正常时结果非降级", func(t *testing.T) {
		chat := &mockChatProvider{
			reply: `{"attack_technique":"SQL Injection","risk_score":9,"threat_level":"high","recommendations":["patch"],"analysis":"tautology"}`,
		}
		analyzer := NewAnalyzer(chat, store.NewHistoryStore(10), opts)

		record := analyzer.Analyze(ctx, &model.Alert{Message: "' OR '1'='1", SourceIP: "10.0.0.5"})
		require.NotNil(t, record)
		assert.NotEmpty(t, record.TaskID)
		assert.Equal(t, model.CategoryWebAttack, record.Route.Category)
		assert.False(t, record.Finding.Degraded)
		assert.Equal(t, 9, record.Finding.RiskScore)
		assert.GreaterOrEqual(t, record.Timing.TotalMillis, record.Timing.ExpertMillis)
	})

	t.Run("远端不可用时降级但不失败", func(t *testing.T) {
		chat := &mockChatProvider{err: llm.RemoteUnavailablef("connection refused")}
		analyzer := NewAnalyzer(chat, store.NewHistoryStore(10), opts)

		record := analyzer.Analyze(ctx, &model.Alert{Message: "' OR '1'='1", SourceIP: "10.0.0.5"})
		require.NotNil(t, record)
		assert.Equal(t, model.CategoryWebAttack, record.Route.Category)
		assert.True(t, record.Finding.Degraded)
		assert.GreaterOrEqual(t, record.Finding.RiskScore, 1)
		assert.LessOrEqual(t, record.Finding.RiskScore, 10)
	})

	t.Run("分析记录写入历史", func(t *testing.T) {
		history := store.NewHistoryStore(10)
		analyzer := NewAnalyzer(&mockChatProvider{err: llm.RemoteUnavailablef("down")}, history, opts)

		analyzer.Analyze(ctx, &model.Alert{Message: "cve-2021-44228"})
		analyzer.Analyze(ctx, &model.Alert{Message: "reverse shell to 1.2.3.4:4444"})

		records := analyzer.History(0)
		require.Len(t, records, 2)
		assert.Equal(t, model.CategoryIllegalConnection, records[0].Route.Category)
		assert.Equal(t, model.CategoryVulnerabilityAttack, records[1].Route.Category)
	})
}

func TestAnalyzer_AnalyzeBatch(t *testing.T) {
	ctx := context.Background()
	analyzer := NewAnalyzer(&mockChatProvider{err: llm.RemoteUnavailablef("down")}, store.NewHistoryStore(100), analyzeropts.NewOptions())

	alerts := []*model.Alert{
		{Message: "union select 1,2,3"},
		{Message: "${jndi:ldap://x/a}"},
		{Message: "reverse shell to 1.2.3.4:4444"},
	}
	for i := 0; i < 10; i++ {
		alerts = append(alerts, &model.Alert{Message: fmt.Sprintf("union select col%d", i)})
	}

	records := analyzer.AnalyzeBatch(ctx, alerts)
	require.Len(t, records, len(alerts))

	// 结果与输入顺序一一对应。
	assert.Equal(t, model.CategoryWebAttack, records[0].Route.Category)
	assert.Equal(t, model.CategoryVulnerabilityAttack, records[1].Route.Category)
	assert.Equal(t, model.CategoryIllegalConnection, records[2].Route.Category)
	for _, record := range records {
		require.NotNil(t, record)
		assert.NotEmpty(t, record.TaskID)
	}

	t.Run("空批次", func(t *testing.T) {
		assert.Empty(t, analyzer.AnalyzeBatch(ctx, nil))
	})
}

func TestAnalyzer_HistoryManagement(t *testing.T) {
	ctx := context.Background()
	analyzer := NewAnalyzer(&mockChatProvider{err: llm.RemoteUnavailablef("down")}, store.NewHistoryStore(10), analyzeropts.NewOptions())

	analyzer.Analyze(ctx, &model.Alert{Message: "union select 1"})
	analyzer.Analyze(ctx, &model.Alert{Message: "union select 2"})

	stats := analyzer.Stats()
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, 2, stats.Degraded)

	assert.Equal(t, 2, analyzer.ClearHistory())
	assert.Empty(t, analyzer.History(0))
}
