package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/pkg/llm"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
)

func TestExpert_AnalyzeLLMPath(t *testing.T) {
	opts := analyzeropts.NewOptions()
	ctx := context.Background()

	t.Run("解析结构化输出", func(t *testing.T) {
		chat := &mockChatProvider{
			reply: `{"attack_technique":"SQL Injection","risk_score":8,"threat_level":"high","recommendations":["use prepared statements"],"analysis":"classic tautology probe"}`,
		}
		expert := NewExpert(model.CategoryWebAttack, chat, opts)

		finding := expert.Analyze(ctx, &model.Alert{Message: "' OR '1'='1"})
		require.NotNil(t, finding)
		assert.False(t, finding.Degraded)
		assert.Equal(t, "SQL Injection", finding.AttackTechnique)
		assert.Equal(t, 8, finding.RiskScore)
		assert.Equal(t, model.ThreatLevelHigh, finding.ThreatLevel)
		assert.Len(t, finding.Recommendations, 1)
	})

	t.Run("容忍markdown包裹的JSON", func(t *testing.T) {
		chat := &mockChatProvider{
			reply: "```json\n{\"attack_technique\":\"XSS\",\"risk_score\":5,\"threat_level\":\"medium\",\"recommendations\":[],\"analysis\":\"reflected\"}\n```",
		}
		expert := NewExpert(model.CategoryWebAttack, chat, opts)

		finding := expert.Analyze(ctx, &model.Alert{Message: "<script>"})
		assert.False(t, finding.Degraded)
		assert.Equal(t, "XSS", finding.AttackTechnique)
	})

	t.Run("小数评分四舍五入", func(t *testing.T) {
		chat := &mockChatProvider{
			reply: `{"attack_technique":"Probe","risk_score":7.6,"threat_level":"medium","recommendations":[],"analysis":"x"}`,
		}
		expert := NewExpert(model.CategoryWebAttack, chat, opts)

		finding := expert.Analyze(ctx, &model.Alert{Message: "scan"})
		assert.False(t, finding.Degraded)
		assert.Equal(t, 8, finding.RiskScore)
		assert.Equal(t, model.ThreatLevelHigh, finding.ThreatLevel)
	})
}

func TestExpert_Fallback(t *testing.T) {
	opts := analyzeropts.NewOptions()
	ctx := context.Background()

	tests := []struct {
		name  string
		chat  *mockChatProvider
		alert *model.Alert
	}{
		{
			name:  "远端不可用",
			chat:  &mockChatProvider{err: llm.RemoteUnavailablef("connection refused")},
			alert: &model.Alert{Message: "union select 1 from dual"},
		},
		{
			name:  "输出不是JSON",
			chat:  &mockChatProvider{reply: "I cannot analyze this alert."},
			alert: &model.Alert{Message: "union select 1 from dual"},
		},
		{
			name:  "评分越界",
			chat:  &mockChatProvider{reply: `{"attack_technique":"x","risk_score":42,"threat_level":"high","recommendations":[],"analysis":"y"}`},
			alert: &model.Alert{Message: "union select 1 from dual"},
		},
		{
			name:  "评分非数字",
			chat:  &mockChatProvider{reply: `{"attack_technique":"x","risk_score":"severe","threat_level":"high","recommendations":[],"analysis":"y"}`},
			alert: &model.Alert{Message: "union select 1 from dual"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expert := NewExpert(model.CategoryWebAttack, tt.chat, opts)
			finding := expert.Analyze(ctx, tt.alert)

			require.NotNil(t, finding)
			assert.True(t, finding.Degraded)
			assert.GreaterOrEqual(t, finding.RiskScore, 1)
			assert.LessOrEqual(t, finding.RiskScore, 10)
			assert.NotEmpty(t, finding.AttackTechnique)
			assert.NotEmpty(t, finding.Recommendations)
		})
	}

	t.Run("兜底命中SQL注入规则", func(t *testing.T) {
		expert := NewExpert(model.CategoryWebAttack, &mockChatProvider{err: llm.RemoteUnavailablef("down")}, opts)
		finding := expert.Analyze(ctx, &model.Alert{Message: "payload ' or '1'='1"})

		assert.True(t, finding.Degraded)
		assert.Equal(t, "SQL Injection", finding.AttackTechnique)
		assert.Equal(t, model.ThreatLevelHigh, finding.ThreatLevel)
	})

	t.Run("无规则命中时保守兜底", func(t *testing.T) {
		expert := NewExpert(model.CategoryIllegalConnection, nil, opts)
		finding := expert.Analyze(ctx, &model.Alert{Message: "odd traffic"})

		assert.True(t, finding.Degraded)
		assert.Equal(t, 5, finding.RiskScore)
		assert.Equal(t, model.ThreatLevelMedium, finding.ThreatLevel)
	})
}

func TestExpert_ThreatLevelBreakpoints(t *testing.T) {
	opts := analyzeropts.NewOptions()
	expert := NewExpert(model.CategoryWebAttack, nil, opts)

	tests := []struct {
		score int
		want  model.ThreatLevel
	}{
		{10, model.ThreatLevelHigh},
		{8, model.ThreatLevelHigh},
		{7, model.ThreatLevelMedium},
		{4, model.ThreatLevelMedium},
		{3, model.ThreatLevelLow},
		{1, model.ThreatLevelLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expert.threatLevel(tt.score), "score %d", tt.score)
	}
}
